package conversation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/go-go-golems/shinkai/pkg/api"
)

// FetchRequest asks for up to Limit messages older than Cursor. An empty
// Cursor asks for the newest messages.
type FetchRequest struct {
	InboxID string
	Cursor  string
	Limit   int
}

// Fetcher returns a page of messages, newest first.
type Fetcher interface {
	FetchMessages(ctx context.Context, req FetchRequest) ([]Message, error)
}

type FetcherFunc func(ctx context.Context, req FetchRequest) ([]Message, error)

func (f FetcherFunc) FetchMessages(ctx context.Context, req FetchRequest) ([]Message, error) {
	return f(ctx, req)
}

type nodeFetcher struct {
	client *api.Client
}

var _ Fetcher = (*nodeFetcher)(nil)

// NewNodeFetcher fetches pages from /v2/last_messages. The node answers
// oldest first; the page is turned around to match the Fetcher contract.
func NewNodeFetcher(client *api.Client) Fetcher {
	return &nodeFetcher{client: client}
}

func (f *nodeFetcher) FetchMessages(ctx context.Context, req FetchRequest) ([]Message, error) {
	chatMessages, err := f.client.GetLastMessages(ctx, api.LastMessagesRequest{
		InboxName: req.InboxID,
		Limit:     req.Limit,
		OffsetKey: req.Cursor,
	})
	if err != nil {
		return nil, err
	}

	ret := make([]Message, 0, len(chatMessages))
	for i := len(chatMessages) - 1; i >= 0; i-- {
		m, err := FromChatMessage(chatMessages[i])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid message %s", chatMessages[i].Hash)
		}
		ret = append(ret, m)
	}
	return ret, nil
}
