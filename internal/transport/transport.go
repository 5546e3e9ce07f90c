package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 120 * time.Second

	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
	maxErrorBodySize       = 64 * 1024
)

// Request is an outbound vendor request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	Stream bool
}

// Response is a 2xx vendor response. The caller must close Body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// StatusError is returned for non-2xx responses. Body holds at most the
// first 64 KiB of the response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream error status %d", e.StatusCode)
}

// Client sends vendor requests.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPClient is a Client backed by net/http.
type HTTPClient struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient returns a client with a tuned transport. A zero timeout
// selects DefaultTimeout; streamed bodies are bounded by the request
// context instead.
func NewHTTPClient(timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &HTTPClient{
		client: &http.Client{Transport: transport},
		logger: logger,
	}
}

// Do sends req. Non-2xx responses are drained, closed and reported as
// *StatusError.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("request must not be nil")
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	c.logger.Debug("upstream response",
		slog.String("url", httpReq.URL.Redacted()),
		slog.Int("status", resp.StatusCode),
		slog.Bool("stream", req.Stream),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if readErr != nil {
			c.logger.Warn("read upstream error body", slog.Any("error", readErr))
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
