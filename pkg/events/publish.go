package events

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Metadata keys set on every published message, so that handlers can route
// without decoding the payload.
const (
	SequenceNumberKey = "sequence_number"
	EventTypeKey      = "event_type"
	InboxIDKey        = "inbox_id"
)

// PublisherManager sends events to a set of publishers, each one on the
// topic it was subscribed with. Sequence numbers follow the order of Publish
// calls on one manager.
type PublisherManager struct {
	Publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mutex          sync.Mutex
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		Publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, sub message.Publisher) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Publishers[topic] = append(s.Publishers[topic], sub)
}

// Publish encodes e as JSON. The watermill message id is the event id.
// A failing publisher is logged and the others still get the event.
func (s *PublisherManager) Publish(e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrapf(err, "could not encode %s event", e.Type())
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta := e.Metadata()
	msg := message.NewMessage(meta.ID.String(), b)
	msg.Metadata.Set(SequenceNumberKey, strconv.FormatUint(s.sequenceNumber, 10))
	msg.Metadata.Set(EventTypeKey, string(e.Type()))
	msg.Metadata.Set(InboxIDKey, meta.InboxID)
	s.sequenceNumber++

	for topic, subs := range s.Publishers {
		for _, sub := range subs {
			if err := sub.Publish(topic, msg); err != nil {
				log.Warn().Err(err).Str("topic", topic).Str("inbox_id", meta.InboxID).Msg("failed to publish")
			}
		}
	}
	return nil
}

func (s *PublisherManager) PublishBlind(e Event) {
	if err := s.Publish(e); err != nil {
		log.Warn().Err(err).Msg("failed to publish")
	}
}
