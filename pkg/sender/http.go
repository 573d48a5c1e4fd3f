package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/uhyunpark/orderflood/pkg/order"
)

// ErrTransport marks a send that never got a response (refused connection,
// DNS failure, timeout). Response status codes are not errors.
var ErrTransport = errors.New("sender: transport error")

// Sender issues one request per order. It knows nothing about pacing.
type Sender interface {
	Send(ctx context.Context, o order.Order) error
}

// HTTPSender posts orders as JSON to a fixed URL.
type HTTPSender struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

type Option func(*HTTPSender)

// WithClient replaces the default pooled client.
func WithClient(c *http.Client) Option {
	return func(s *HTTPSender) { s.client = c }
}

// WithTimeout bounds each send. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSender) { s.timeout = d }
}

func NewHTTPSender(url string, opts ...Option) (*HTTPSender, error) {
	s := &HTTPSender{url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		c, err := NewClient()
		if err != nil {
			return nil, err
		}
		s.client = c
	}
	return s, nil
}

// NewClient returns a client tuned for many concurrent requests to one host.
func NewClient() (*http.Client, error) {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10000,
		MaxIdleConnsPerHost: 1000,
		IdleConnTimeout:     90 * time.Second,
	}
	// h2 only kicks in for https targets; plain http stays HTTP/1.1.
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("sender: configure http2: %w", err)
	}
	return &http.Client{Transport: tr}, nil
}

// Send posts one order and returns as soon as the response headers arrive.
// The body is drained in the background. Only transport failures are
// returned.
func (s *HTTPSender) Send(ctx context.Context, o order.Order) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("sender: marshal order: %w", err)
	}

	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		cancel()
		return fmt.Errorf("sender: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	go drain(resp.Body, cancel)
	return nil
}

// drain reads the body to EOF so the connection goes back to the pool.
func drain(body io.ReadCloser, done context.CancelFunc) {
	defer done()
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}
