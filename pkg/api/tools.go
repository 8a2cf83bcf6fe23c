package api

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"
)

// Tool is the node's tagged tool envelope, e.g. {"type": "Deno", "content": [...]}.
// The content schema depends on the tool type and is kept raw.
type Tool struct {
	Type    string            `json:"type"`
	Content []json.RawMessage `json:"content"`
}

// ToolHeader is the summary returned by the list and search endpoints.
type ToolHeader struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	ToolRouterKey string          `json:"tool_router_key"`
	ToolType      string          `json:"tool_type"`
	Version       string          `json:"version"`
	Author        string          `json:"author"`
	Enabled       bool            `json:"enabled"`
	Config        json.RawMessage `json:"config,omitempty"`
}

func (c *Client) AddTool(ctx context.Context, tool Tool) (*Tool, error) {
	if tool.Type == "" {
		return nil, errors.New("tool type is required")
	}
	var ret Tool
	if err := c.post(ctx, "/v2/add_shinkai_tool", nil, tool, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) GetTool(ctx context.Context, toolKey string) (*Tool, error) {
	q := url.Values{}
	q.Set("tool_name", toolKey)
	var ret Tool
	if err := c.get(ctx, "/v2/get_shinkai_tool", q, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) ListTools(ctx context.Context) ([]ToolHeader, error) {
	var ret []ToolHeader
	if err := c.get(ctx, "/v2/list_all_shinkai_tools", nil, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) SearchTools(ctx context.Context, query string) ([]ToolHeader, error) {
	q := url.Values{}
	q.Set("query", query)
	var ret []ToolHeader
	if err := c.get(ctx, "/v2/search_shinkai_tool", q, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) UpdateTool(ctx context.Context, toolKey string, tool Tool) (*Tool, error) {
	q := url.Values{}
	q.Set("tool_name", toolKey)
	var ret Tool
	if err := c.post(ctx, "/v2/set_shinkai_tool", q, tool, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

type PayInvoiceRequest struct {
	InvoiceID   string          `json:"invoice_id"`
	DataForTool json.RawMessage `json:"data_for_tool,omitempty"`
}

func (c *Client) PayInvoice(ctx context.Context, req PayInvoiceRequest) (json.RawMessage, error) {
	var ret json.RawMessage
	if err := c.post(ctx, "/v2/pay_invoice", nil, req, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

type ExecuteToolCodeRequest struct {
	Code        string                 `json:"code"`
	ToolType    string                 `json:"tool_type"`
	Parameters  map[string]interface{} `json:"parameters"`
	ExtraConfig map[string]interface{} `json:"extra_config,omitempty"`
	LLMProvider string                 `json:"llm_provider"`
	Tools       []string               `json:"tools"`
}

func (c *Client) ExecuteToolCode(ctx context.Context, req ExecuteToolCodeRequest) (map[string]interface{}, error) {
	if req.Tools == nil {
		req.Tools = []string{}
	}
	if req.Parameters == nil {
		req.Parameters = map[string]interface{}{}
	}
	ret := map[string]interface{}{}
	if err := c.post(ctx, "/v2/code_execution", nil, req, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

type PlaygroundTool struct {
	ToolRouterKey string          `json:"tool_router_key,omitempty"`
	Metadata      json.RawMessage `json:"metadata"`
	JobID         string          `json:"job_id"`
	Code          string          `json:"code"`
	Language      string          `json:"language,omitempty"`
}

func (c *Client) SavePlaygroundTool(ctx context.Context, tool PlaygroundTool) (*PlaygroundTool, error) {
	var ret PlaygroundTool
	if err := c.post(ctx, "/v2/set_playground_tool", nil, tool, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Client) ListPlaygroundTools(ctx context.Context) ([]PlaygroundTool, error) {
	var ret []PlaygroundTool
	if err := c.get(ctx, "/v2/list_playground_tools", nil, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Client) GetPlaygroundTool(ctx context.Context, toolKey string) (*PlaygroundTool, error) {
	q := url.Values{}
	q.Set("tool_key", toolKey)
	var ret PlaygroundTool
	if err := c.get(ctx, "/v2/get_playground_tool", q, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}
