package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// Logger is the subset of a leveled logger used by this package.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientSharedSecret sets the default app-specific shared secret sent as
// the request password.
func WithClientSharedSecret(secret string) ClientOption {
	return func(c *Client) {
		c.sharedSecret = &secret
	}
}

// WithDefaultExcludeOldTransactions sets the default for
// exclude-old-transactions.
func WithDefaultExcludeOldTransactions(exclude bool) ClientOption {
	return func(c *Client) {
		c.excludeOldTransactions = &exclude
	}
}

// WithTimeouts sets the default open and read timeouts.
func WithTimeouts(open, read time.Duration) ClientOption {
	return func(c *Client) {
		c.timeouts = Timeouts{Open: open, Read: read}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithEndpoint overrides the URL used for env. The Environment values
// themselves are left untouched.
func WithEndpoint(env Environment, url string) ClientOption {
	return func(c *Client) {
		c.endpoints[env.Name] = url
	}
}

func WithLogger(l Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client verifies receipts against one Environment. It keeps no per-call
// state and is safe for concurrent use.
type Client struct {
	env                    Environment
	endpoints              map[string]string
	sharedSecret           *string
	excludeOldTransactions *bool
	timeouts               Timeouts
	transport              Transport
	logger                 Logger
}

// NewClient returns a Client bound to env.
func NewClient(env Environment, opts ...ClientOption) *Client {
	c := &Client{
		env:       env,
		endpoints: make(map[string]string),
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(nil)
	}
	return c
}

// ForEnvironment returns a Client bound to the environment called name.
func ForEnvironment(name string, opts ...ClientOption) (*Client, error) {
	env, err := ResolveEnvironment(name)
	if err != nil {
		return nil, err
	}
	return NewClient(env, opts...), nil
}

func (c *Client) Environment() Environment {
	return c.env
}

// Endpoint is the URL this client posts to.
func (c *Client) Endpoint() string {
	if url, ok := c.endpoints[c.env.Name]; ok {
		return url
	}
	return c.env.Endpoint
}

// WithEnvironment returns a copy of c bound to env. c is not modified.
func (c *Client) WithEnvironment(env Environment) *Client {
	cp := *c
	cp.env = env
	cp.endpoints = maps.Clone(c.endpoints)
	return &cp
}

// NewRequest builds the request body for receiptData. Per-call options win
// over client defaults; fields set by neither are omitted.
func (c *Client) NewRequest(receiptData string, o VerifyOptions) VerificationRequest {
	req := VerificationRequest{
		ReceiptData:            receiptData,
		Password:               c.sharedSecret,
		ExcludeOldTransactions: c.excludeOldTransactions,
	}
	if o.SharedSecret != nil {
		req.Password = o.SharedSecret
	}
	if o.ExcludeOldTransactions != nil {
		req.ExcludeOldTransactions = o.ExcludeOldTransactions
	}
	return req
}

func (c *Client) timeoutsFor(o VerifyOptions) Timeouts {
	t := c.timeouts
	if o.OpenTimeout > 0 {
		t.Open = o.OpenTimeout
	}
	if o.ReadTimeout > 0 {
		t.Read = o.ReadTimeout
	}
	return t
}

// Verify posts receiptData once and returns the receipt for status 0 or
// 21006. Any other status is returned as a *VerificationError; transport and
// decoding problems as *TimeoutError, *TransportError or
// *InvalidResponseError.
func (c *Client) Verify(ctx context.Context, receiptData string, opts ...VerifyOption) (*Receipt, error) {
	o := collectVerifyOptions(opts)

	body, err := json.Marshal(c.NewRequest(receiptData, o))
	if err != nil {
		return nil, fmt.Errorf("appstore: encode request: %w", err)
	}

	endpoint := c.Endpoint()
	c.logger.Debugf("appstore: verifying receipt against %s (%s)", c.env.Name, endpoint)

	raw, err := c.transport.Post(ctx, endpoint, body, c.timeoutsFor(o))
	if err != nil {
		return nil, err
	}

	response, status, err := decodeResponse(raw)
	if err != nil {
		return nil, err
	}

	// Apple's own tag is missing on some replies and inconsistently cased.
	response["environment"] = c.env.Name

	switch status {
	case StatusOK, StatusSubscriptionExpired:
		return NewReceipt(response), nil
	default:
		return nil, newVerificationError(status, response)
	}
}

func decodeResponse(raw []byte) (map[string]any, int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var response map[string]any
	if err := dec.Decode(&response); err != nil {
		return nil, 0, &InvalidResponseError{Body: raw, Err: err}
	}
	if response == nil {
		return nil, 0, &InvalidResponseError{Body: raw, Err: errors.New("reply is not a JSON object")}
	}

	v, ok := response["status"]
	if !ok || v == nil {
		return nil, 0, &InvalidResponseError{Body: raw, Err: errors.New("missing status")}
	}
	status, err := parseInt(v)
	if err != nil {
		return nil, 0, &InvalidResponseError{Body: raw, Err: fmt.Errorf("status: %w", err)}
	}
	return response, int(status), nil
}
