// Package upstream posts canonical submissions to the workflow trigger.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	defaultMaxBody = 1 << 20
)

// Response is what came back from the workflow trigger.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Client sends exactly one POST per call; it never retries.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	maxBody int64
}

// NewClient creates a Client for the trigger URL. The URL is opaque and is
// never logged by this package.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:     url,
		http:    &http.Client{},
		timeout: defaultTimeout,
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-call bound.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Post serializes payload and posts it as JSON. The call outlives a
// cancelled ctx (client disconnects) but never exceeds the timeout.
// Errors wrap ErrBuildRequest or ErrTransport.
func (c *Client) Post(ctx context.Context, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildRequest, err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, redact(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, redact(err))
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
	}, nil
}

// redact strips the request URL from *url.Error so signature query
// parameters do not leak into logs or audit records.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
