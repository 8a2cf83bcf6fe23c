package conversation

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

const previewConcurrency = 4

// LoadLatest fetches the newest limit messages of each inbox, oldest first.
// It stops at the first failing inbox.
func LoadLatest(ctx context.Context, fetcher Fetcher, inboxIDs []string, limit int) (map[string][]Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var mu sync.Mutex
	ret := make(map[string][]Message, len(inboxIDs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(previewConcurrency)
	for _, inboxID := range inboxIDs {
		inboxID := inboxID
		eg.Go(func() error {
			msgs, err := fetcher.FetchMessages(ctx, FetchRequest{InboxID: inboxID, Limit: limit})
			if err != nil {
				return &FetchError{InboxID: inboxID, Err: err}
			}
			mu.Lock()
			ret[inboxID] = reversed(msgs)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}
