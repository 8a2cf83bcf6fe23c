package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ChatMessage is a message as returned by /v2/last_messages.
type ChatMessage struct {
	Hash                string      `json:"hash"`
	JobMessage          JobMessage  `json:"job_message"`
	Sender              string      `json:"sender"`
	SenderSubidentity   string      `json:"sender_subidentity"`
	Receiver            string      `json:"receiver"`
	ReceiverSubidentity string      `json:"receiver_subidentity"`
	Inbox               string      `json:"inbox"`
	NodeAPIData         NodeAPIData `json:"node_api_data"`
}

type JobMessage struct {
	JobID   string   `json:"job_id"`
	Content string   `json:"content"`
	Files   []string `json:"files,omitempty"`
	Parent  *string  `json:"parent,omitempty"`
}

type NodeAPIData struct {
	NodeMessageHash string `json:"node_message_hash"`
	NodeTimestamp   string `json:"node_timestamp"`
	ParentHash      string `json:"parent_hash"`
}

// IsLocal reports whether the message was written by the local user rather
// than by an agent. Agent replies carry a sender subidentity with an "agent"
// path segment, e.g. "main/agent/my_gpt".
func (m ChatMessage) IsLocal() bool {
	for _, segment := range strings.Split(m.SenderSubidentity, "/") {
		if segment == "agent" {
			return false
		}
	}
	return true
}

// Timestamp parses the node timestamp.
func (m ChatMessage) Timestamp() (time.Time, error) {
	if m.NodeAPIData.NodeTimestamp == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, m.NodeAPIData.NodeTimestamp)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid node timestamp %q", m.NodeAPIData.NodeTimestamp)
	}
	return t, nil
}

type Inbox struct {
	InboxID         string          `json:"inbox_id"`
	CustomName      string          `json:"custom_name"`
	DatetimeCreated string          `json:"datetime_created"`
	LastMessage     *ChatMessage    `json:"last_message,omitempty"`
	IsFinished      bool            `json:"is_finished"`
	JobScope        json.RawMessage `json:"job_scope,omitempty"`
}

// LastMessagesRequest asks for up to Limit messages ending just before
// OffsetKey (a message hash). An empty OffsetKey means the newest messages.
type LastMessagesRequest struct {
	InboxName string
	Limit     int
	OffsetKey string
}

func (c *Client) GetInboxes(ctx context.Context) ([]Inbox, error) {
	var ret []Inbox
	if err := c.get(ctx, "/v2/all_inboxes", nil, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// GetLastMessages returns a page of an inbox, oldest message first.
func (c *Client) GetLastMessages(ctx context.Context, req LastMessagesRequest) ([]ChatMessage, error) {
	if req.InboxName == "" {
		return nil, errors.New("inbox name is required")
	}
	q := url.Values{}
	q.Set("inbox_name", req.InboxName)
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.OffsetKey != "" {
		q.Set("offset_key", req.OffsetKey)
	}

	var ret []ChatMessage
	if err := c.get(ctx, "/v2/last_messages", q, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

type JobCreationInfo struct {
	Scope    json.RawMessage `json:"scope,omitempty"`
	IsHidden bool            `json:"is_hidden"`
}

type CreateJobRequest struct {
	LLMProvider     string          `json:"llm_provider"`
	JobCreationInfo JobCreationInfo `json:"job_creation_info"`
}

type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*CreateJobResponse, error) {
	var ret CreateJobResponse
	if err := c.post(ctx, "/v2/create_job", nil, req, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

type SendJobMessageRequest struct {
	JobMessage JobMessage `json:"job_message"`
}

type SendJobMessageResponse struct {
	MessageID       string `json:"message_id"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
	Inbox           string `json:"inbox"`
	ScheduledTime   string `json:"scheduled_time,omitempty"`
}

func (c *Client) SendJobMessage(ctx context.Context, req SendJobMessageRequest) (*SendJobMessageResponse, error) {
	if req.JobMessage.JobID == "" {
		return nil, errors.New("job id is required")
	}
	var ret SendJobMessageResponse
	if err := c.post(ctx, "/v2/job_message", nil, req, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

type UpdateInboxNameRequest struct {
	InboxName  string `json:"inbox_name"`
	CustomName string `json:"custom_name"`
}

func (c *Client) UpdateInboxName(ctx context.Context, req UpdateInboxNameRequest) error {
	return c.post(ctx, "/v2/update_job_inbox_name", nil, req, nil)
}

type HealthResponse struct {
	Status     string `json:"status"`
	NodeName   string `json:"node_name"`
	IsPristine bool   `json:"is_pristine"`
	Version    string `json:"version"`
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var ret HealthResponse
	if err := c.get(ctx, "/v2/health", nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}
