// Package httpclient is the transport collaborator of the engine: one
// long-lived HTTP handle constructed per run and passed explicitly to every
// component that fetches.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cubicmc/proton/pkg/common"
)

const (
	defaultUserAgent = "Cubic Proton/1.0"
	defaultTimeout   = 5 * time.Minute
)

// Fetcher is the capability every network-touching component depends on:
// fetch a URL, get a byte stream or a typed error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Client is the production Fetcher backed by net/http.
type Client struct {
	hc        *http.Client
	userAgent string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		hc:        &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch issues a GET and hands the body stream to the caller, who owns
// closing it. Any transport failure or non-200 status becomes a
// *common.NetworkError; a URL the request cannot even be built from is not a
// network error and is not retried upstream.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &common.NetworkError{URL: url, Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, &common.NetworkError{URL: url, Status: resp.StatusCode}
	}

	return resp.Body, nil
}

// FetchJSON fetches a document and decodes it into v, returning the raw
// bytes alongside so callers can persist the document as published.
func FetchJSON(ctx context.Context, f Fetcher, url string, v any) ([]byte, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &common.NetworkError{URL: url, Cause: err}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return nil, &common.ParseError{Context: url, Cause: err}
	}

	return data, nil
}
