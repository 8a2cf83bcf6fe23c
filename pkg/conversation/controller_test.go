package conversation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/shinkai/pkg/conversation"
	"github.com/go-go-golems/shinkai/pkg/conversation/conversationtest"
	"github.com/go-go-golems/shinkai/pkg/inbox"
)

const (
	jobInbox  = "job_inbox::jobid_1::false"
	peerInbox = "inbox::@@alice.shinkai::@@bob.shinkai::false"
)

func newController(
	t *testing.T,
	inboxID string,
	fetcher conversation.Fetcher,
	sched *conversationtest.Scheduler,
	options ...conversation.Option,
) *conversation.Controller {
	options = append([]conversation.Option{
		conversation.WithScheduler(sched),
		conversation.WithLogger(zerolog.Nop()),
	}, options...)
	c := conversation.NewController(inboxID, fetcher, options...)
	t.Cleanup(c.Close)
	return c
}

func requireAscendingUnique(t *testing.T, v conversation.View) {
	t.Helper()
	seen := map[string]bool{}
	for i, m := range v.Messages {
		require.False(t, seen[m.Hash], "duplicate hash %s", m.Hash)
		seen[m.Hash] = true
		if i > 0 {
			require.True(t, v.Messages[i-1].Timestamp.Before(m.Timestamp),
				"%s is not after %s", m.Hash, v.Messages[i-1].Hash)
		}
	}
}

func cursors(reqs []conversation.FetchRequest) []string {
	ret := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ret = append(ret, r.Cursor)
	}
	return ret
}

func TestLoadInitialOrdersAscending(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 20, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())

	require.NoError(t, c.LoadInitial(context.Background()))

	v := c.View()
	assert.Equal(t, peerInbox, v.InboxID)
	assert.Empty(t, cmp.Diff(conversationtest.Hashes(conversationtest.Msgs(1, 20, false)), conversationtest.Hashes(v.Messages)))
	assert.Equal(t, "m20", v.Latest().Hash)
	assert.Equal(t, "m1", v.Oldest().Hash)
	assert.True(t, c.Status().HasOlder)

	reqs := f.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, conversation.FetchRequest{InboxID: peerInbox, Limit: 20}, reqs[0])

	// a second call does not fetch again
	require.NoError(t, c.LoadInitial(context.Background()))
	assert.Len(t, f.Requests(), 1)
}

func TestOlderPageThenEndOfHistory(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 25, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())
	ctx := context.Background()

	require.NoError(t, c.LoadInitial(ctx))
	assert.Equal(t, 20, c.View().Len())
	assert.Equal(t, "m6", c.View().Oldest().Hash)

	require.NoError(t, c.LoadOlder(ctx))
	v := c.View()
	assert.Equal(t, 25, v.Len())
	assert.Empty(t, cmp.Diff(conversationtest.Hashes(conversationtest.Msgs(1, 25, false)), conversationtest.Hashes(v.Messages)))
	requireAscendingUnique(t, v)
	assert.False(t, c.Status().HasOlder)

	err := c.LoadOlder(ctx)
	assert.True(t, errors.Is(err, conversation.ErrNoMoreHistory))
	assert.Equal(t, []string{"", "m6"}, cursors(f.Requests()))
}

func TestShortInitialPageHasNoOlder(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 7, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())

	require.NoError(t, c.LoadInitial(context.Background()))
	err := c.LoadOlder(context.Background())
	assert.True(t, errors.Is(err, conversation.ErrNoMoreHistory))
	assert.Len(t, f.Requests(), 1)
}

func TestLoadOlderBeforeInitial(t *testing.T) {
	f := conversationtest.NewFetcher()
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())

	err := c.LoadOlder(context.Background())
	assert.True(t, errors.Is(err, conversation.ErrNoMoreHistory))
	assert.Empty(t, f.Requests())
}

func TestEmptyInbox(t *testing.T) {
	f := conversationtest.NewFetcher()
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)

	require.NoError(t, c.LoadInitial(context.Background()))
	assert.Equal(t, 0, c.View().Len())
	assert.Nil(t, c.View().Latest())
	assert.False(t, c.Status().HasOlder)
	assert.Empty(t, sched.Pending())
}

func TestPinnedCursorNeverDuplicates(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 60, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())
	ctx := context.Background()

	require.NoError(t, c.LoadInitial(ctx))
	for i := 0; i < 3; i++ {
		require.NoError(t, c.LoadOlder(ctx))
		v := c.View()
		requireAscendingUnique(t, v)
		assert.Equal(t, 40, v.Len())
		assert.Equal(t, "m21", v.Oldest().Hash)
	}

	assert.Equal(t, []string{"", "m41", "m41", "m41"}, cursors(f.Requests()))
}

func TestCursorFromOldestPageWalksBackward(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 45, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler(),
		conversation.WithCursorStrategy(conversation.CursorFromOldestPage))
	ctx := context.Background()

	require.NoError(t, c.LoadInitial(ctx))
	for {
		err := c.LoadOlder(ctx)
		if errors.Is(err, conversation.ErrNoMoreHistory) {
			break
		}
		require.NoError(t, err)
		requireAscendingUnique(t, c.View())
	}

	v := c.View()
	assert.Empty(t, cmp.Diff(conversationtest.Hashes(conversationtest.Msgs(1, 45, false)), conversationtest.Hashes(v.Messages)))
	assert.Equal(t, []string{"", "m26", "m6"}, cursors(f.Requests()))
}

func TestCustomPageSize(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 12, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler(),
		conversation.WithPageSize(5),
		conversation.WithCursorStrategy(conversation.CursorFromOldestPage))
	ctx := context.Background()

	require.NoError(t, c.LoadInitial(ctx))
	require.NoError(t, c.LoadOlder(ctx))
	require.NoError(t, c.LoadOlder(ctx))
	assert.Equal(t, 12, c.View().Len())
	assert.True(t, errors.Is(c.LoadOlder(ctx), conversation.ErrNoMoreHistory))
	for _, r := range f.Requests() {
		assert.Equal(t, 5, r.Limit)
	}
}

func TestFetchErrorLeavesViewUnchanged(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 30, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())
	ctx := context.Background()
	boom := errors.New("connection reset")

	f.FailNext(boom)
	err := c.LoadInitial(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	var fetchErr *conversation.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, peerInbox, fetchErr.InboxID)
	assert.Equal(t, "", fetchErr.Cursor)
	assert.Equal(t, 0, c.View().Len())
	assert.Equal(t, err, c.Status().Err)

	require.NoError(t, c.LoadInitial(ctx))
	assert.Nil(t, c.Status().Err)
	before := c.View()

	f.FailNext(boom)
	err = c.LoadOlder(ctx)
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "m11", fetchErr.Cursor)
	assert.Empty(t, cmp.Diff(before, c.View()))
	assert.True(t, c.Status().HasOlder)

	require.NoError(t, c.LoadOlder(ctx))
	assert.Equal(t, 30, c.View().Len())
}

func TestViewIsACopy(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 3, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())
	require.NoError(t, c.LoadInitial(context.Background()))

	v := c.View()
	v.Messages[0].Content = "changed"
	assert.Equal(t, "message 1", c.View().Messages[0].Content)
}

func TestRefreshScheduledForPendingJobReply(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msg(1, true))
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)

	require.NoError(t, c.LoadInitial(context.Background()))
	pending := sched.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 5*time.Second, pending[0].Delay)
	assert.True(t, c.Status().RefreshScheduled)

	f.Append(jobInbox, conversationtest.Msg(2, false))
	assert.Equal(t, 0, sched.Advance(4999*time.Millisecond))
	assert.Equal(t, 1, sched.Advance(time.Millisecond))

	v := c.View()
	assert.Equal(t, []string{"m1", "m2"}, conversationtest.Hashes(v.Messages))
	assert.Empty(t, sched.Pending())
	assert.False(t, c.Status().RefreshScheduled)
	assert.Len(t, f.Requests(), 2)

	assert.Equal(t, 0, sched.Advance(time.Minute))
	assert.Len(t, f.Requests(), 2)
}

func TestNoRefreshWhenSettled(t *testing.T) {
	tests := []struct {
		name    string
		inboxID string
		local   bool
		options []conversation.Option
	}{
		{name: "agent replied", inboxID: jobInbox, local: false},
		{name: "peer inbox", inboxID: peerInbox, local: true},
		{name: "disabled", inboxID: jobInbox, local: true, options: []conversation.Option{conversation.WithRefreshEnabled(false)}},
		{
			name:    "custom classifier",
			inboxID: jobInbox,
			local:   true,
			options: []conversation.Option{conversation.WithClassifier(inbox.ClassifierFunc(func(string) bool { return false }))},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := conversationtest.NewFetcher()
			f.Append(tt.inboxID, conversationtest.Msgs(1, 3, tt.local)...)
			sched := conversationtest.NewScheduler()
			c := newController(t, tt.inboxID, f, sched, tt.options...)

			require.NoError(t, c.LoadInitial(context.Background()))
			assert.Empty(t, sched.Pending())
			assert.Equal(t, 0, sched.Advance(time.Hour))
			assert.Len(t, f.Requests(), 1)
		})
	}
}

func TestRefreshKeepsPollingUntilReply(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msg(1, true))
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched, conversation.WithRefreshInterval(2*time.Second))

	var views []conversation.View
	unsubscribe := c.Subscribe(func(v conversation.View) {
		views = append(views, v)
	})
	defer unsubscribe()

	require.NoError(t, c.LoadInitial(context.Background()))
	require.Len(t, views, 1)

	assert.Equal(t, 1, sched.Advance(2*time.Second))
	assert.Equal(t, 1, sched.Advance(2*time.Second))
	require.Len(t, sched.Pending(), 1)
	// nothing new arrived, so nobody is notified
	assert.Len(t, views, 1)

	f.Append(jobInbox, conversationtest.Msg(2, false))
	assert.Equal(t, 1, sched.Advance(2*time.Second))
	assert.Empty(t, sched.Pending())
	require.Len(t, views, 2)
	assert.Equal(t, "m2", views[1].Latest().Hash)
	assert.Len(t, f.Requests(), 4)
}

func TestFailedRefreshIsSilentAndRescheduled(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msgs(1, 2, true)...)
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)

	require.NoError(t, c.LoadInitial(context.Background()))
	before := c.View()

	f.FailNext(errors.New("503"))
	assert.Equal(t, 1, sched.Advance(5*time.Second))
	assert.Empty(t, cmp.Diff(before, c.View()))
	assert.Nil(t, c.Status().Err)
	require.Len(t, sched.Pending(), 1)

	f.Append(jobInbox, conversationtest.Msg(3, false))
	assert.Equal(t, 1, sched.Advance(5*time.Second))
	assert.Equal(t, 3, c.View().Len())
	assert.Empty(t, sched.Pending())
}

func TestManualRefreshReturnsError(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msg(1, false))
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())
	ctx := context.Background()
	require.NoError(t, c.LoadInitial(ctx))

	boom := errors.New("boom")
	f.FailNext(boom)
	err := c.Refresh(ctx)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, c.View().Len())

	f.Append(peerInbox, conversationtest.Msg(2, false))
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 2, c.View().Len())
}

func TestRefreshNeverTruncates(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msgs(1, 40, true)...)
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)
	ctx := context.Background()

	require.NoError(t, c.LoadInitial(ctx))
	require.NoError(t, c.LoadOlder(ctx))
	require.Equal(t, 40, c.View().Len())

	f.Append(jobInbox, conversationtest.Msgs(41, 43, true)...)
	assert.Equal(t, 1, sched.Advance(5*time.Second))

	v := c.View()
	assert.Equal(t, 43, v.Len())
	assert.Equal(t, "m1", v.Oldest().Hash)
	assert.Equal(t, "m43", v.Latest().Hash)
	requireAscendingUnique(t, v)
}

func TestRefreshWithTailOutsideNewestPage(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 20, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler())
	ctx := context.Background()
	require.NoError(t, c.LoadInitial(ctx))

	f.Append(peerInbox, conversationtest.Msgs(21, 45, false)...)
	require.NoError(t, c.Refresh(ctx))

	v := c.View()
	requireAscendingUnique(t, v)
	assert.Equal(t, 40, v.Len())
	assert.Equal(t, "m20", v.Messages[19].Hash)
	assert.Equal(t, "m26", v.Messages[20].Hash)
	assert.Equal(t, "m45", v.Latest().Hash)
}

func TestSetRefreshEnabled(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msg(1, true))
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)

	require.NoError(t, c.LoadInitial(context.Background()))
	require.Len(t, sched.Pending(), 1)

	c.SetRefreshEnabled(false)
	assert.Empty(t, sched.Pending())
	assert.Equal(t, 0, sched.Advance(time.Minute))

	c.SetRefreshEnabled(true)
	require.Len(t, sched.Pending(), 1)
	assert.Equal(t, 1, sched.Advance(5*time.Second))
	assert.Len(t, f.Requests(), 2)
}

func TestOnlyOnePendingRefresh(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msgs(1, 40, true)...)
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)
	ctx := context.Background()

	require.NoError(t, c.LoadInitial(ctx))
	require.NoError(t, c.LoadOlder(ctx))
	c.SetRefreshEnabled(true)
	require.NoError(t, c.Refresh(ctx))
	assert.Len(t, sched.Pending(), 1)
}

func TestCloseDuringInitialFetchDiscardsResult(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msgs(1, 5, true)...)
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)

	notified := 0
	c.Subscribe(func(conversation.View) { notified++ })

	started, release := f.Hold()
	done := make(chan error, 1)
	go func() {
		done <- c.LoadInitial(context.Background())
	}()
	<-started
	assert.True(t, c.Status().Loading)

	c.Close()
	release()
	require.NoError(t, <-done)

	assert.Equal(t, 0, c.View().Len())
	assert.Equal(t, 0, notified)
	assert.Empty(t, sched.Pending())
	assert.True(t, errors.Is(c.LoadOlder(context.Background()), conversation.ErrClosed))
	assert.True(t, errors.Is(c.LoadInitial(context.Background()), conversation.ErrClosed))
}

func TestCloseDuringRefreshDiscardsResult(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msg(1, true))
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)
	require.NoError(t, c.LoadInitial(context.Background()))

	f.Append(jobInbox, conversationtest.Msg(2, false))
	started, release := f.Hold()
	done := make(chan int, 1)
	go func() {
		done <- sched.Advance(5 * time.Second)
	}()
	<-started
	assert.True(t, c.Status().Refreshing)

	c.Close()
	release()
	assert.Equal(t, 1, <-done)
	assert.Equal(t, []string{"m1"}, conversationtest.Hashes(c.View().Messages))
	assert.Empty(t, sched.Pending())
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newController(t, peerInbox, conversationtest.NewFetcher(), conversationtest.NewScheduler())
	c.Close()
	c.Close()
	unsubscribe := c.Subscribe(func(conversation.View) {})
	unsubscribe()
	c.SetRefreshEnabled(true)
}

func TestConcurrentLoadOlderIsCoalesced(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 40, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler(),
		conversation.WithCursorStrategy(conversation.CursorFromOldestPage))
	require.NoError(t, c.LoadInitial(context.Background()))

	started, release := f.Hold()
	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.LoadOlder(context.Background())
		}(i)
	}
	<-started
	assert.True(t, c.Status().LoadingOlder)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"", "m21"}, cursors(f.Requests()))
	assert.Equal(t, 40, c.View().Len())
}

func TestCoalescedLoadOlderOutlivesFirstCaller(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 40, false)...)
	c := newController(t, peerInbox, conversation.FetcherFunc(
		func(ctx context.Context, req conversation.FetchRequest) ([]conversation.Message, error) {
			msgs, err := f.FetchMessages(ctx, req)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return msgs, err
		}), conversationtest.NewScheduler(),
		conversation.WithCursorStrategy(conversation.CursorFromOldestPage))
	require.NoError(t, c.LoadInitial(context.Background()))

	started, release := f.Hold()
	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		first <- c.LoadOlder(ctx)
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		second <- c.LoadOlder(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-first, context.Canceled))

	release()
	require.NoError(t, <-second)
	assert.Equal(t, []string{"", "m21"}, cursors(f.Requests()))
	assert.Equal(t, 40, c.View().Len())
	assert.Nil(t, c.Status().Err)
}

func TestScheduledRefreshYieldsToFetchInFlight(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(jobInbox, conversationtest.Msgs(1, 40, true)...)
	sched := conversationtest.NewScheduler()
	c := newController(t, jobInbox, f, sched)
	require.NoError(t, c.LoadInitial(context.Background()))

	started, release := f.Hold()
	done := make(chan error, 1)
	go func() {
		done <- c.LoadOlder(context.Background())
	}()
	<-started

	assert.Equal(t, 1, sched.Advance(5*time.Second))
	assert.Len(t, f.Requests(), 2)
	assert.Len(t, sched.Pending(), 1)

	release()
	require.NoError(t, <-done)
	assert.Len(t, sched.Pending(), 1)
	assert.Len(t, f.Requests(), 2)
}

func TestSubscribersSeeEveryMerge(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 60, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler(),
		conversation.WithCursorStrategy(conversation.CursorFromOldestPage))
	ctx := context.Background()

	var first, second []int
	unsubscribeFirst := c.Subscribe(func(v conversation.View) { first = append(first, v.Len()) })
	c.Subscribe(func(v conversation.View) { second = append(second, v.Len()) })

	require.NoError(t, c.LoadInitial(ctx))
	require.NoError(t, c.LoadOlder(ctx))
	unsubscribeFirst()
	require.NoError(t, c.LoadOlder(ctx))

	assert.Equal(t, []int{20, 40}, first)
	assert.Equal(t, []int{20, 40, 60}, second)
}

func TestSubscriberMayLoadOlder(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 50, false)...)
	c := newController(t, peerInbox, f, conversationtest.NewScheduler(),
		conversation.WithCursorStrategy(conversation.CursorFromOldestPage))

	var lens []int
	c.Subscribe(func(v conversation.View) {
		lens = append(lens, v.Len())
		if err := c.LoadOlder(context.Background()); err != nil {
			assert.True(t, errors.Is(err, conversation.ErrNoMoreHistory))
		}
	})

	require.NoError(t, c.LoadInitial(context.Background()))
	assert.Equal(t, []int{20, 40, 50}, lens)
}

func TestCanceledContext(t *testing.T) {
	f := conversationtest.NewFetcher()
	f.Append(peerInbox, conversationtest.Msgs(1, 5, false)...)
	c := newController(t, peerInbox, conversation.FetcherFunc(
		func(ctx context.Context, req conversation.FetchRequest) ([]conversation.Message, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return f.FetchMessages(ctx, req)
		}), conversationtest.NewScheduler())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.LoadInitial(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	require.NoError(t, c.LoadInitial(context.Background()))
	assert.Equal(t, 5, c.View().Len())
}
