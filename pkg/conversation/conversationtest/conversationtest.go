// Package conversationtest has deterministic collaborators for testing code
// built on conversation controllers.
package conversationtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/shinkai/pkg/conversation"
)

var BaseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Msg builds a message whose hash is "m<i>" and whose timestamp grows with i.
func Msg(i int, local bool) conversation.Message {
	return conversation.Message{
		Hash:      fmt.Sprintf("m%d", i),
		Content:   fmt.Sprintf("message %d", i),
		Sender:    "@@node/main",
		IsLocal:   local,
		Timestamp: BaseTime.Add(time.Duration(i) * time.Second),
	}
}

// Msgs builds m<from>..m<to>, oldest first. Every message is local iff local.
func Msgs(from, to int, local bool) []conversation.Message {
	var ret []conversation.Message
	for i := from; i <= to; i++ {
		ret = append(ret, Msg(i, local))
	}
	return ret
}

func Hashes(msgs []conversation.Message) []string {
	ret := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ret = append(ret, m.Hash)
	}
	return ret
}

// Scheduler is a manual clock. Scheduled functions only run from Advance.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*Timer
}

var _ conversation.Scheduler = (*Scheduler)(nil)

type Timer struct {
	Delay time.Duration

	s       *Scheduler
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) Schedule(delay time.Duration, fn func()) conversation.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Timer{Delay: delay, s: s, at: s.now + delay, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *Timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Pending returns the timers that have neither fired nor been stopped.
func (s *Scheduler) Pending() []*Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ret []*Timer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			ret = append(ret, t)
		}
	}
	return ret
}

// Advance moves the clock forward and runs every timer that became due,
// earliest first. It returns how many ran.
func (s *Scheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	s.now += d
	fired := 0
	for {
		var due []*Timer
		for _, t := range s.timers {
			if !t.stopped && !t.fired && t.at <= s.now {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
		t := due[0]
		t.fired = true
		fired++
		s.mu.Unlock()
		t.fn()
		s.mu.Lock()
	}
	s.mu.Unlock()
	return fired
}

// Fetcher serves pages out of in-memory histories with the same cursor rules
// as the node: up to Limit messages strictly older than Cursor.
type Fetcher struct {
	mu        sync.Mutex
	histories map[string][]conversation.Message
	requests  []conversation.FetchRequest
	errs      []error
	gate      chan struct{}
	started   chan conversation.FetchRequest
}

var _ conversation.Fetcher = (*Fetcher)(nil)

func NewFetcher() *Fetcher {
	return &Fetcher{histories: map[string][]conversation.Message{}}
}

// Append adds messages, oldest first, to the end of an inbox history.
func (f *Fetcher) Append(inboxID string, msgs ...conversation.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histories[inboxID] = append(f.histories[inboxID], msgs...)
}

// FailNext makes the next fetches return the given errors, one per call.
func (f *Fetcher) FailNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errs...)
}

// Hold makes every fetch block, ignoring its context, until release is
// called. Each blocked fetch is announced on started.
func (f *Fetcher) Hold() (started <-chan conversation.FetchRequest, release func()) {
	gate := make(chan struct{})
	ch := make(chan conversation.FetchRequest, 16)
	f.mu.Lock()
	f.gate = gate
	f.started = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			f.gate = nil
			f.started = nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

func (f *Fetcher) Requests() []conversation.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]conversation.FetchRequest(nil), f.requests...)
}

func (f *Fetcher) FetchMessages(_ context.Context, req conversation.FetchRequest) ([]conversation.Message, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		started <- req
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}

	history := f.histories[req.InboxID]
	end := len(history)
	if req.Cursor != "" {
		end = -1
		for i, m := range history {
			if m.Hash == req.Cursor {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, errors.Errorf("unknown cursor %s", req.Cursor)
		}
	}
	start := end - req.Limit
	if start < 0 {
		start = 0
	}

	page := history[start:end]
	ret := make([]conversation.Message, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		ret = append(ret, page[i])
	}
	return ret, nil
}
