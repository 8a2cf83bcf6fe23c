package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/go-go-golems/shinkai/pkg/inbox"
)

// CursorStrategy selects the cursor sent by LoadOlder.
type CursorStrategy int

const (
	// CursorPinnedToInitialPage always uses the oldest message of the first
	// page ever fetched. Fetching the same cursor again replaces the page that
	// was fetched for it.
	CursorPinnedToInitialPage CursorStrategy = iota
	// CursorFromOldestPage uses the oldest message of the view and walks
	// strictly backward.
	CursorFromOldestPage
)

func (s CursorStrategy) String() string {
	switch s {
	case CursorPinnedToInitialPage:
		return "pinned"
	case CursorFromOldestPage:
		return "oldest"
	default:
		return "unknown"
	}
}

// ParseCursorStrategy is the inverse of String. The empty string is the
// default strategy.
func ParseCursorStrategy(s string) (CursorStrategy, error) {
	switch s {
	case "", "pinned":
		return CursorPinnedToInitialPage, nil
	case "oldest":
		return CursorFromOldestPage, nil
	default:
		return 0, errors.Errorf("unknown cursor strategy %q", s)
	}
}

type Status struct {
	Loading          bool
	LoadingOlder     bool
	Refreshing       bool
	HasOlder         bool
	RefreshScheduled bool
	Err              error
}

type Option func(*Controller)

func WithPageSize(pageSize int) Option {
	return func(c *Controller) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(c *Controller) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

func WithRefreshEnabled(enabled bool) Option {
	return func(c *Controller) {
		c.enabled = enabled
	}
}

func WithClassifier(classifier inbox.Classifier) Option {
	return func(c *Controller) {
		c.classifier = classifier
	}
}

func WithScheduler(scheduler Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = scheduler
	}
}

func WithCursorStrategy(strategy CursorStrategy) Option {
	return func(c *Controller) {
		c.strategy = strategy
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// page holds the messages fetched for one cursor, oldest first. The newest
// page has an empty cursor and also receives the messages merged by refreshes.
type page struct {
	cursor   string
	messages []Message
}

type subscriber struct {
	id int
	fn func(View)
}

// Controller owns the paginated view of one inbox.
//
// At most one fetch runs at a time. Concurrent LoadInitial or LoadOlder calls
// share the result of the call already in flight. Once Close returns, nothing
// a pending fetch brings back is applied to the view.
type Controller struct {
	inboxID    string
	fetcher    Fetcher
	pageSize   int
	interval   time.Duration
	classifier inbox.Classifier
	scheduler  Scheduler
	strategy   CursorStrategy
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sem   chan struct{}
	group singleflight.Group

	mu           sync.Mutex
	closed       bool
	enabled      bool
	pages        []page
	pinnedCursor string
	lastPageLen  int
	err          error
	loading      bool
	loadingOlder bool
	refreshing   bool
	timer        Timer
	timerSeq     uint64

	version     uint64
	notified    uint64
	flushing    bool
	subscribers []subscriber
	nextSubID   int
}

func NewController(inboxID string, fetcher Fetcher, options ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		inboxID:    inboxID,
		fetcher:    fetcher,
		pageSize:   DefaultPageSize,
		interval:   DefaultRefreshInterval,
		classifier: inbox.DefaultClassifier,
		scheduler:  RealScheduler{},
		strategy:   CursorPinnedToInitialPage,
		enabled:    true,
		logger:     log.Logger,
		ctx:        ctx,
		cancel:     cancel,
		sem:        make(chan struct{}, 1),
	}
	for _, o := range options {
		o(c)
	}
	c.logger = c.logger.With().Str("inbox_id", inboxID).Logger()
	return c
}

func (c *Controller) InboxID() string {
	return c.inboxID
}

func (c *Controller) PageSize() int {
	return c.pageSize
}

// LoadInitial fetches the newest page. It is a no-op once a page exists.
func (c *Controller) LoadInitial(ctx context.Context) error {
	return c.shared(ctx, "initial", c.loadInitial)
}

// LoadOlder fetches the page before the cursor chosen by the cursor strategy.
// It returns ErrNoMoreHistory without fetching when no page exists yet or
// the last history page was short.
//
// Concurrent calls share one fetch. That fetch is bound to the controller
// and not to any caller: ctx only bounds how long this call waits, and a
// caller that gives up does not cancel the page for the others.
func (c *Controller) LoadOlder(ctx context.Context) error {
	return c.shared(ctx, "older", c.loadOlder)
}

// shared runs load once per key for all concurrent callers, under the
// controller context. Subscribers are notified once the load is done, even
// when ctx ends first.
func (c *Controller) shared(ctx context.Context, key string, load func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return nil, load(c.ctx)
	})
	select {
	case r := <-ch:
		c.flush()
		return r.Err
	case <-ctx.Done():
		go func() {
			<-ch
			c.flush()
		}()
		return ctx.Err()
	}
}

// Refresh fetches the newest page and appends what came after the current
// tail. Unlike a scheduled refresh, a failure is returned.
func (c *Controller) Refresh(ctx context.Context) error {
	err := c.refresh(ctx, false)
	c.flush()
	return err
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Loading:          c.loading,
		LoadingOlder:     c.loadingOlder,
		Refreshing:       c.refreshing,
		HasOlder:         c.hasOlderLocked(),
		RefreshScheduled: c.timer != nil,
		Err:              c.err,
	}
}

// Subscribe registers fn to receive the view after every merge. fn runs on
// the goroutine that performed the merge and must not block for long.
func (c *Controller) Subscribe(fn func(View)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subscribers {
			if s.id == id {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// SetRefreshEnabled toggles live tailing. Disabling cancels the pending
// refresh, enabling evaluates the refresh decision at once.
func (c *Controller) SetRefreshEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.stopTimerLocked()
		return
	}
	c.evaluateLocked()
}

// Close cancels the fetch in flight and the pending refresh. It is safe to
// call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.subscribers = nil
	c.cancel()
	c.logger.Debug().Msg("conversation controller closed")
}

func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		if c.ctx.Err() != nil {
			return ErrClosed
		}
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *Controller) release() {
	<-c.sem
}

// fetch asks the fetcher for one page and returns it oldest first. The
// request is canceled by either ctx or Close.
func (c *Controller) fetch(ctx context.Context, cursor string) ([]Message, error) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	c.logger.Debug().Str("cursor", cursor).Int("limit", c.pageSize).Msg("fetching messages")
	msgs, err := c.fetcher.FetchMessages(ctx, FetchRequest{
		InboxID: c.inboxID,
		Cursor:  cursor,
		Limit:   c.pageSize,
	})
	if err != nil {
		return nil, &FetchError{InboxID: c.inboxID, Cursor: cursor, Err: err}
	}
	return reversed(msgs), nil
}

// staleLocked reports whether a finished fetch came back after Close. Its
// result and error are then dropped.
func (c *Controller) staleLocked(kind string, err error) bool {
	if !c.closed {
		return false
	}
	c.logger.Debug().
		Str("kind", kind).
		AnErr("fetch_error", err).
		Err(ErrStaleRequest).
		Msg("discarding fetch result")
	return true
}

func (c *Controller) loadInitial(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if len(c.pages) > 0 {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.mu.Unlock()

	msgs, err := c.fetch(ctx, "")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if c.staleLocked("initial", err) {
		return nil
	}
	if err != nil {
		c.err = err
		return err
	}

	c.err = nil
	c.pages = []page{{messages: msgs}}
	c.lastPageLen = len(msgs)
	if len(msgs) > 0 {
		c.pinnedCursor = msgs[0].Hash
	}
	c.logger.Debug().Int("count", len(msgs)).Msg("loaded newest page")
	c.evaluateLocked()
	c.version++
	return nil
}

func (c *Controller) loadOlder(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.hasOlderLocked() {
		c.mu.Unlock()
		return ErrNoMoreHistory
	}
	cursor := c.olderCursorLocked()
	if cursor == "" {
		c.mu.Unlock()
		return ErrNoMoreHistory
	}
	c.loadingOlder = true
	c.mu.Unlock()

	msgs, err := c.fetch(ctx, cursor)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadingOlder = false
	if c.staleLocked("older", err) {
		return nil
	}
	if err != nil {
		c.err = err
		return err
	}

	c.err = nil
	c.lastPageLen = len(msgs)
	replaced := false
	for i := range c.pages {
		if c.pages[i].cursor == cursor {
			c.pages[i].messages = msgs
			replaced = true
			break
		}
	}
	if !replaced {
		c.pages = append([]page{{cursor: cursor, messages: msgs}}, c.pages...)
	}
	c.logger.Debug().
		Str("cursor", cursor).
		Int("count", len(msgs)).
		Bool("replaced", replaced).
		Msg("loaded older page")
	c.evaluateLocked()
	c.version++
	return nil
}

// refresh merges the newest page into the view. A background refresh that
// finds another fetch in flight, or that fails, is simply rescheduled.
func (c *Controller) refresh(ctx context.Context, background bool) error {
	if background {
		select {
		case c.sem <- struct{}{}:
		default:
			c.mu.Lock()
			if !c.closed {
				c.evaluateLocked()
			}
			c.mu.Unlock()
			return nil
		}
	} else if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if len(c.pages) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.refreshing = true
	c.mu.Unlock()

	msgs, err := c.fetch(ctx, "")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	if c.staleLocked("refresh", err) {
		return nil
	}
	if err != nil {
		c.logger.Debug().Err(err).Msg("refresh failed")
		c.evaluateLocked()
		if background {
			return nil
		}
		return err
	}

	added := c.mergeTailLocked(msgs)
	c.logger.Debug().Int("count", added).Msg("refreshed newest page")
	c.evaluateLocked()
	if added > 0 {
		c.version++
	}
	return nil
}

// mergeTailLocked appends the messages of the newest page that come after the
// current tail. If the tail is not part of the page, every message not yet in
// the view is appended.
func (c *Controller) mergeTailLocked(newest []Message) int {
	view := c.viewLocked()
	var fresh []Message
	if tail := view.Latest(); tail != nil {
		idx := -1
		for i, m := range newest {
			if m.Hash == tail.Hash {
				idx = i
				break
			}
		}
		if idx >= 0 {
			fresh = newest[idx+1:]
		} else {
			seen := make(map[string]struct{}, len(view.Messages))
			for _, m := range view.Messages {
				seen[m.Hash] = struct{}{}
			}
			for _, m := range newest {
				if _, ok := seen[m.Hash]; !ok {
					fresh = append(fresh, m)
				}
			}
			if len(fresh) > 0 {
				c.logger.Warn().Str("tail", tail.Hash).Msg("tail not found in newest page, messages may be missing")
			}
		}
	} else {
		fresh = newest
	}

	if len(fresh) == 0 {
		return 0
	}
	last := &c.pages[len(c.pages)-1]
	last.messages = append(append([]Message(nil), last.messages...), fresh...)
	return len(fresh)
}

func (c *Controller) hasOlderLocked() bool {
	return len(c.pages) > 0 && c.lastPageLen >= c.pageSize
}

func (c *Controller) olderCursorLocked() string {
	switch c.strategy {
	case CursorFromOldestPage:
		if oldest := c.viewLocked().Oldest(); oldest != nil {
			return oldest.Hash
		}
		return ""
	case CursorPinnedToInitialPage:
		fallthrough
	default:
		return c.pinnedCursor
	}
}

// viewLocked flattens the pages oldest first. A hash is only kept the first
// time it is seen.
func (c *Controller) viewLocked() View {
	n := 0
	for _, p := range c.pages {
		n += len(p.messages)
	}
	ret := View{InboxID: c.inboxID, Messages: make([]Message, 0, n)}
	seen := make(map[string]struct{}, n)
	for _, p := range c.pages {
		for _, m := range p.messages {
			if _, ok := seen[m.Hash]; ok {
				continue
			}
			seen[m.Hash] = struct{}{}
			ret.Messages = append(ret.Messages, m)
		}
	}
	return ret
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

// evaluateLocked replaces the pending refresh, if any, with the one the
// current view calls for.
func (c *Controller) evaluateLocked() {
	c.stopTimerLocked()
	if c.closed || len(c.pages) == 0 {
		return
	}
	delay, ok := DecideRefresh(RefreshInput{
		InboxID:    c.inboxID,
		Latest:     c.viewLocked().Latest(),
		Enabled:    c.enabled,
		Interval:   c.interval,
		Classifier: c.classifier,
	})
	if !ok {
		return
	}
	seq := c.timerSeq
	c.timer = c.scheduler.Schedule(delay, func() {
		c.onTimer(seq)
	})
	c.logger.Debug().Dur("delay", delay).Msg("refresh scheduled")
}

func (c *Controller) onTimer(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	if err := c.refresh(c.ctx, true); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Debug().Err(err).Msg("scheduled refresh failed")
	}
	c.flush()
}

// flush delivers the newest view to subscribers if it has not been
// delivered yet. A flush started from a subscriber callback is folded into
// the one already running.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for !c.closed && c.notified != c.version {
		c.notified = c.version
		view := c.viewLocked()
		subscribers := append([]subscriber(nil), c.subscribers...)
		c.mu.Unlock()
		for _, s := range subscribers {
			s.fn(view)
		}
		c.mu.Lock()
	}
	c.flushing = false
	c.mu.Unlock()
}
