// Package api contains thin bindings for the v2 HTTP API of a Shinkai node.
//
// Every call is a single request: the bearer token is attached, the JSON body
// (if any) is encoded, and the JSON response is decoded into a typed value.
// Retries and backoff are left to the caller's http.Client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 30 * time.Second

// Client talks to one node with one bearer token.
type Client struct {
	nodeAddress string
	token       string
	userAgent   string
	httpClient  *http.Client
	metrics     *clientMetrics
	logger      zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the timeout of the client's own http.Client. It has no
// effect if WithHTTPClient is given afterwards.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics registers request counters and latency histograms on reg.
// Several clients may share the same registerer.
func WithMetrics(reg prometheus.Registerer) ClientOption {
	return func(c *Client) {
		c.metrics = newClientMetrics(reg)
	}
}

func NewClient(nodeAddress string, token string, options ...ClientOption) *Client {
	c := &Client{
		nodeAddress: nodeAddress,
		token:       token,
		userAgent:   "shinkai-go",
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		logger:      log.Logger,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *Client) NodeAddress() string {
	return c.nodeAddress
}

// JoinURL joins a node address and an endpoint path with exactly one slash.
func JoinURL(base string, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, endpoint, query, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint string, query url.Values, payload interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, endpoint, query, payload, out)
}

func (c *Client) do(
	ctx context.Context,
	method string,
	endpoint string,
	query url.Values,
	payload interface{},
	out interface{},
) error {
	u := JoinURL(c.nodeAddress, endpoint)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(err, "could not encode %s payload", endpoint)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(endpoint, "error", time.Since(start))
		return errors.Wrapf(err, "%s %s failed", method, endpoint)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.observe(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return errors.Wrapf(err, "failed to read %s response body", endpoint)
	}

	c.logger.Trace().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Int("bytes", len(respBody)).
		Msg("node request")

	if resp.StatusCode >= 400 {
		return newHTTPError(method, endpoint, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s response body", endpoint)
	}
	return nil
}
