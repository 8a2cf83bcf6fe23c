package events

import (
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/shinkai/pkg/conversation"
)

// ViewPublisher turns controller notifications into events on the topic of
// the controller's inbox.
type ViewPublisher struct {
	publisher message.Publisher
	logger    zerolog.Logger
}

type ViewPublisherOption func(*ViewPublisher)

func WithViewPublisherLogger(logger zerolog.Logger) ViewPublisherOption {
	return func(p *ViewPublisher) {
		p.logger = logger
	}
}

func NewViewPublisher(publisher message.Publisher, options ...ViewPublisherOption) *ViewPublisher {
	ret := &ViewPublisher{
		publisher: publisher,
		logger:    log.Logger,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Watcher publishes the updates of one controller.
type Watcher struct {
	inboxID     string
	manager     *PublisherManager
	logger      zerolog.Logger
	unsubscribe func()

	mu        sync.Mutex
	head      string
	tail      string
	total     int
	scheduled bool
}

// Watch subscribes to c. Older pages show up as an update whose Older field
// holds the messages before the previous oldest one. The current view, if not empty, is published right
// away as the first update.
func (p *ViewPublisher) Watch(c *conversation.Controller) *Watcher {
	w := &Watcher{
		inboxID: c.InboxID(),
		manager: NewPublisherManager(),
		logger:  p.logger.With().Str("inbox_id", c.InboxID()).Logger(),
	}
	w.manager.SubscribePublisher(TopicForInbox(c.InboxID()), p.publisher)

	w.unsubscribe = c.Subscribe(func(v conversation.View) {
		w.onView(v, c.Status().RefreshScheduled)
	})
	if v := c.View(); v.Len() > 0 {
		w.onView(v, c.Status().RefreshScheduled)
	}
	return w
}

func (w *Watcher) onView(v conversation.View, scheduled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	older := v.Before(w.head)
	fresh := v.Since(w.tail)
	latest := v.Latest()
	if latest != nil {
		w.tail = latest.Hash
	}
	if oldest := v.Oldest(); oldest != nil {
		w.head = oldest.Hash
	}
	if len(older) > 0 || len(fresh) > 0 || v.Len() != w.total {
		w.logger.Debug().Int("count", len(fresh)).Int("older", len(older)).Msg("publishing view update")
		w.manager.PublishBlind(NewViewUpdatedEvent(NewEventMetadata(w.inboxID), v.Len(), older, fresh, latest))
	}
	w.total = v.Len()

	if scheduled && !w.scheduled {
		w.manager.PublishBlind(NewRefreshScheduledEvent(NewEventMetadata(w.inboxID)))
	}
	w.scheduled = scheduled
}

// PublishError reports a failed fetch on the inbox topic.
func (w *Watcher) PublishError(err error) {
	w.manager.PublishBlind(NewFetchFailedEvent(NewEventMetadata(w.inboxID), err))
}

// Stop unsubscribes from the controller.
func (w *Watcher) Stop() {
	w.unsubscribe()
}
