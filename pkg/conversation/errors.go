package conversation

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoMoreHistory is returned by LoadOlder once the oldest page has been
	// fetched. No request is sent.
	ErrNoMoreHistory = errors.New("no more history")
	// ErrStaleRequest marks a fetch that completed after its controller was
	// closed. It never leaves the package.
	ErrStaleRequest = errors.New("stale request")
	ErrClosed       = errors.New("conversation controller is closed")
)

// FetchError wraps the error returned by the Fetcher for one page.
type FetchError struct {
	InboxID string
	Cursor  string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("could not fetch newest messages of %s: %v", e.InboxID, e.Err)
	}
	return fmt.Sprintf("could not fetch messages of %s before %s: %v", e.InboxID, e.Cursor, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
