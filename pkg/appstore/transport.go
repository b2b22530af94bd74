package appstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// Timeouts bound a single round trip. Zero means "use the transport default".
type Timeouts struct {
	Open time.Duration
	Read time.Duration
}

// Transport posts a JSON body and returns the raw reply body. Implementations
// report failures as *TimeoutError or *TransportError.
type Transport interface {
	Post(ctx context.Context, url string, body []byte, timeouts Timeouts) ([]byte, error)
}

// HTTPTransport is the default Transport, backed by net/http.
type HTTPTransport struct {
	client *http.Client

	mu      sync.Mutex
	derived map[Timeouts]*http.Client
}

// NewHTTPTransport wraps client. A nil client gets a 30 second overall timeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{
		client:  client,
		derived: make(map[Timeouts]*http.Client),
	}
}

func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte, timeouts Timeouts) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("appstore: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.clientFor(timeouts).Do(req)
	if err != nil {
		return nil, classifyTransportError("post "+url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError("read "+url, err)
	}
	return data, nil
}

// clientFor returns an http.Client honouring timeouts. Clients are cached
// per distinct Timeouts value so connections keep being reused.
func (t *HTTPTransport) clientFor(timeouts Timeouts) *http.Client {
	if timeouts == (Timeouts{}) {
		return t.client
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.derived[timeouts]; ok {
		return c
	}

	base, ok := t.client.Transport.(*http.Transport)
	if !ok || base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	tr := base.Clone()
	if timeouts.Open > 0 {
		tr.DialContext = (&net.Dialer{Timeout: timeouts.Open, KeepAlive: 30 * time.Second}).DialContext
		tr.TLSHandshakeTimeout = timeouts.Open
	}
	if timeouts.Read > 0 {
		tr.ResponseHeaderTimeout = timeouts.Read
	}

	c := *t.client
	c.Transport = tr
	if timeouts.Read > 0 {
		c.Timeout = timeouts.Open + timeouts.Read
	}
	t.derived[timeouts] = &c
	return &c
}

func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	// Resets, refusals, broken pipes and TLS failures all land here.
	return &TransportError{Op: op, Err: err}
}
