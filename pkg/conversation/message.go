// Package conversation keeps a paginated, live-tailed view of one inbox.
//
// A Controller fetches the newest page of an inbox, walks backward through
// older pages on demand and, while a job conversation waits for an agent to
// answer a locally sent message, polls for the reply. All fetched pages are
// merged into one ascending View. A Registry shares one Controller between
// every consumer observing the same inbox.
package conversation

import (
	"time"

	"github.com/go-go-golems/shinkai/pkg/api"
)

const (
	DefaultPageSize        = 20
	DefaultRefreshInterval = 5 * time.Second
)

// Message is one entry of a conversation. Hash is unique within an inbox and
// is used as the pagination cursor.
type Message struct {
	Hash       string    `json:"hash" yaml:"hash"`
	Content    string    `json:"content" yaml:"content"`
	Sender     string    `json:"sender" yaml:"sender"`
	IsLocal    bool      `json:"is_local" yaml:"is_local"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	ParentHash string    `json:"parent_hash,omitempty" yaml:"parent_hash,omitempty"`
}

// FromChatMessage converts a node message.
func FromChatMessage(m api.ChatMessage) (Message, error) {
	ts, err := m.Timestamp()
	if err != nil {
		return Message{}, err
	}
	sender := m.Sender
	if m.SenderSubidentity != "" {
		sender += "/" + m.SenderSubidentity
	}
	return Message{
		Hash:       m.Hash,
		Content:    m.JobMessage.Content,
		Sender:     sender,
		IsLocal:    m.IsLocal(),
		Timestamp:  ts,
		ParentHash: m.NodeAPIData.ParentHash,
	}, nil
}

// View is the merged, ascending sequence of every page fetched so far.
// A View is a snapshot; changing it does not affect the controller.
type View struct {
	InboxID  string    `json:"inbox_id" yaml:"inbox_id"`
	Messages []Message `json:"messages" yaml:"messages"`
}

func (v View) Len() int {
	return len(v.Messages)
}

// Latest returns the newest message, or nil for an empty view.
func (v View) Latest() *Message {
	if len(v.Messages) == 0 {
		return nil
	}
	m := v.Messages[len(v.Messages)-1]
	return &m
}

// Oldest returns the oldest message, or nil for an empty view.
func (v View) Oldest() *Message {
	if len(v.Messages) == 0 {
		return nil
	}
	m := v.Messages[0]
	return &m
}

// Since returns the messages of v that come after the message with the given
// hash. An unknown hash returns every message.
func (v View) Since(hash string) []Message {
	if hash == "" {
		return append([]Message(nil), v.Messages...)
	}
	for i := len(v.Messages) - 1; i >= 0; i-- {
		if v.Messages[i].Hash == hash {
			return append([]Message(nil), v.Messages[i+1:]...)
		}
	}
	return append([]Message(nil), v.Messages...)
}

// Before returns the messages of v that come before the message with the
// given hash. An unknown or empty hash returns nothing.
func (v View) Before(hash string) []Message {
	if hash == "" {
		return nil
	}
	for i, m := range v.Messages {
		if m.Hash == hash {
			return append([]Message(nil), v.Messages[:i]...)
		}
	}
	return nil
}

func reversed(msgs []Message) []Message {
	ret := make([]Message, len(msgs))
	for i, m := range msgs {
		ret[len(msgs)-1-i] = m
	}
	return ret
}
