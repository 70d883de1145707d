// Package httpexec is the HTTP implementation of executor.Executor.
package httpexec

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wesleyorama2/replay/internal/executor"
)

// TraceHeader carries the per-request test marker
// (PC=<resource>;TSN=<test case>;VU=<thread>).
const TraceHeader = "x-replay-test"

// TransportConfig tunes the connection pool shared by every worker.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool
	InsecureSkipVerify  bool
}

// DefaultTransportConfig sizes the pool for a few hundred workers.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 500,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Client submits requests against a base URL. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	traceID    string
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a client with a 30s timeout and the default transport.
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: newTransport(DefaultTransportConfig()),
		},
		headers: make(map[string]string),
	}
	for _, option := range options {
		option(client)
	}
	return client
}

func newTransport(cfg TransportConfig) *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
	}
	if cfg.InsecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return t
}

// WithBaseURL sets the service root resources are resolved against.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHeaders adds several default headers.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithTransport replaces the connection pool settings.
func WithTransport(cfg TransportConfig) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = newTransport(cfg)
	}
}

// WithTraceID prefixes the test marker header with an external trace id.
func WithTraceID(id string) ClientOption {
	return func(c *Client) {
		c.traceID = id
	}
}

// WithHTTPClient swaps the underlying client, mostly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Root returns the base URL.
func (c *Client) Root() string {
	return c.baseURL
}

// URL resolves a resource against the base URL.
func (c *Client) URL(sub *executor.Submission) string {
	u := c.baseURL
	if sub.Resource != "" && !strings.HasPrefix(sub.Resource, "/") {
		u += "/"
	}
	u += sub.Resource
	if len(sub.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + sub.Query.Encode()
	}
	return u
}

// Submit performs one round trip. Start and End bracket the time from
// sending the request to having read the whole body.
func (c *Client) Submit(ctx context.Context, sub *executor.Submission) (*executor.Result, error) {
	method := sub.Method
	if method == "" {
		method = http.MethodGet
	}
	res := &executor.Result{URL: c.URL(sub)}

	var body io.Reader
	if len(sub.Body) > 0 {
		body = bytes.NewReader(sub.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, res.URL, body)
	if err != nil {
		now := time.Now()
		res.Start, res.End = now, now
		return res, fmt.Errorf("building request for %s: %w", sub.TestCaseID, err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range sub.Headers {
		req.Header.Set(key, value)
	}
	req.Header.Set(TraceHeader, c.marker(sub))
	if len(sub.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	res.Start = time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		res.End = time.Now()
		return res, err
	}
	defer httpResp.Body.Close()

	res.Body, err = io.ReadAll(httpResp.Body)
	res.End = time.Now()
	res.StatusCode = httpResp.StatusCode
	res.BodyBytes = int64(len(res.Body))
	if err != nil {
		return res, fmt.Errorf("reading response body: %w", err)
	}
	return res, nil
}

func (c *Client) marker(sub *executor.Submission) string {
	m := fmt.Sprintf("PC=%s;TSN=%s;VU=%s", sub.Resource, sub.TestCaseID, sub.Thread)
	if c.traceID != "" {
		m = "ID=" + c.traceID + ";" + m
	}
	return m
}
