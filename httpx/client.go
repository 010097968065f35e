package httpx

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Client is a JSON API client bound to one base URL. It is safe for
// concurrent use.
type Client struct {
	resty *resty.Client
}

func NewClient(opts ...ClientOption) *Client {
	cfg := defaultClientOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New().
		SetTimeout(cfg.timeout).
		SetHeaders(cfg.headers).
		SetHeader("User-Agent", cfg.userAgent)
	if cfg.baseURL != "" {
		rc.SetBaseURL(cfg.baseURL)
	}
	return &Client{resty: rc}
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string { return c.resty.BaseURL }

// RequestOption adjusts a single request.
type RequestOption func(*resty.Request)

func WithRequestHeaders(headers map[string]string) RequestOption {
	return func(r *resty.Request) { r.SetHeaders(headers) }
}

func WithQuery(params map[string]string) RequestOption {
	return func(r *resty.Request) { r.SetQueryParams(params) }
}

// Get decodes a JSON response into result when result is non-nil.
func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodGet, path, result, opts)
}

// GetBytes returns the raw body of a successful GET.
func (c *Client) GetBytes(ctx context.Context, path string, opts ...RequestOption) ([]byte, error) {
	resp, err := c.do(ctx, resty.MethodGet, path, nil, opts)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (c *Client) Delete(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodDelete, path, result, opts)
}

// do returns a *StatusError for non-2xx answers, alongside the response.
func (c *Client) do(ctx context.Context, method, path string, result any, opts []RequestOption) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx)
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return resp, err
	}
	if resp.IsError() {
		return resp, &StatusError{StatusCode: resp.StatusCode(), Body: resp.Body()}
	}
	return resp, nil
}
