// Package events fans conversation updates out over watermill.
//
// Events are JSON documents tagged with a "type" field so that handlers on
// the other side of a topic can decode them with NewEventFromJSON.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/shinkai/pkg/conversation"
)

type EventType string

const (
	EventTypeViewUpdated      EventType = "view-updated"
	EventTypeRefreshScheduled EventType = "refresh-scheduled"
	EventTypeFetchFailed      EventType = "fetch-failed"
)

type EventMetadata struct {
	ID      uuid.UUID `json:"id" yaml:"id"`
	InboxID string    `json:"inbox_id" yaml:"inbox_id"`
	Time    time.Time `json:"time" yaml:"time"`
}

func NewEventMetadata(inboxID string) EventMetadata {
	return EventMetadata{
		ID:      uuid.New(),
		InboxID: inboxID,
		Time:    time.Now(),
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", em.ID.String())
	e.Str("inbox_id", em.InboxID)
	e.Time("time", em.Time)
}

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// raw JSON when the event was decoded by NewEventFromJSON
	payload []byte
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

var _ Event = &EventImpl{}

// EventViewUpdated carries the messages that were not part of the previous
// view of the inbox. New follows the previous newest message, Older
// precedes the previous oldest one.
type EventViewUpdated struct {
	EventImpl
	Total  int                    `json:"total"`
	Older  []conversation.Message `json:"older,omitempty"`
	New    []conversation.Message `json:"new"`
	Latest *conversation.Message  `json:"latest,omitempty"`
}

func NewViewUpdatedEvent(
	metadata EventMetadata,
	total int,
	older []conversation.Message,
	newMessages []conversation.Message,
	latest *conversation.Message,
) *EventViewUpdated {
	return &EventViewUpdated{
		EventImpl: EventImpl{Type_: EventTypeViewUpdated, Metadata_: metadata},
		Total:     total,
		Older:     older,
		New:       newMessages,
		Latest:    latest,
	}
}

var _ Event = &EventViewUpdated{}

// EventRefreshScheduled is sent when the inbox starts waiting for a reply.
type EventRefreshScheduled struct {
	EventImpl
}

func NewRefreshScheduledEvent(metadata EventMetadata) *EventRefreshScheduled {
	return &EventRefreshScheduled{
		EventImpl: EventImpl{Type_: EventTypeRefreshScheduled, Metadata_: metadata},
	}
}

var _ Event = &EventRefreshScheduled{}

type EventFetchFailed struct {
	EventImpl
	Cursor string `json:"cursor,omitempty"`
	Error  string `json:"error"`
}

func NewFetchFailedEvent(metadata EventMetadata, err error) *EventFetchFailed {
	ret := &EventFetchFailed{
		EventImpl: EventImpl{Type_: EventTypeFetchFailed, Metadata_: metadata},
	}
	if err != nil {
		ret.Error = err.Error()
	}
	var fetchErr *conversation.FetchError
	if errors.As(err, &fetchErr) {
		ret.Cursor = fetchErr.Cursor
	}
	return ret
}

var _ Event = &EventFetchFailed{}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil || ret == nil {
		return nil, false
	}
	return ret, true
}

func NewEventFromJSON(b []byte) (Event, error) {
	var e *EventImpl
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not decode event")
	}
	if e == nil {
		return nil, errors.New("empty event")
	}
	e.payload = b

	switch e.Type_ {
	case EventTypeViewUpdated:
		ret, ok := ToTypedEvent[EventViewUpdated](e)
		if !ok {
			return nil, errors.New("could not cast event to EventViewUpdated")
		}
		ret.payload = b
		return ret, nil
	case EventTypeRefreshScheduled:
		ret, ok := ToTypedEvent[EventRefreshScheduled](e)
		if !ok {
			return nil, errors.New("could not cast event to EventRefreshScheduled")
		}
		ret.payload = b
		return ret, nil
	case EventTypeFetchFailed:
		ret, ok := ToTypedEvent[EventFetchFailed](e)
		if !ok {
			return nil, errors.New("could not cast event to EventFetchFailed")
		}
		ret.payload = b
		return ret, nil
	default:
		return nil, errors.Errorf("unknown event type %q", e.Type_)
	}
}
