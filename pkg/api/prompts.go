package api

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
)

type Prompt struct {
	RowID      int64     `json:"rowid,omitempty"`
	Name       string    `json:"name"`
	Prompt     string    `json:"prompt"`
	IsSystem   bool      `json:"is_system"`
	IsEnabled  bool      `json:"is_enabled"`
	IsFavorite bool      `json:"is_favorite"`
	Version    string    `json:"version"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

func (c *Client) GetAllPrompts(ctx context.Context) ([]Prompt, error) {
	var ret []Prompt
	if err := c.get(ctx, "/v2/get_all_custom_prompts", nil, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) SearchPrompts(ctx context.Context, query string) ([]Prompt, error) {
	q := url.Values{}
	q.Set("query", query)
	var ret []Prompt
	if err := c.get(ctx, "/v2/search_custom_prompts", q, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) CreatePrompt(ctx context.Context, prompt Prompt) (*Prompt, error) {
	if prompt.Name == "" {
		return nil, errors.New("prompt name is required")
	}
	var ret Prompt
	if err := c.post(ctx, "/v2/add_custom_prompt", nil, prompt, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) UpdatePrompt(ctx context.Context, prompt Prompt) (*Prompt, error) {
	var ret Prompt
	if err := c.post(ctx, "/v2/update_custom_prompt", nil, prompt, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) DeletePrompt(ctx context.Context, name string) error {
	return c.post(ctx, "/v2/delete_custom_prompt", nil, map[string]string{"prompt_name": name}, nil)
}
