package appstore

import (
	"context"
	"errors"
	"time"
)

// MaxRetry bounds retries after retryable statuses and transport failures.
// Environment corrections do not count against it.
const MaxRetry = 3

// Attempt describes one round trip made by a Verifier.
type Attempt struct {
	Environment Environment
	// Retry is the number of retries consumed before this attempt.
	Retry    int
	Duration time.Duration
	Err      error
}

// Observer is notified after every attempt.
type Observer interface {
	ObserveAttempt(a Attempt)
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClientOptions configures the underlying Client.
func WithClientOptions(opts ...ClientOption) VerifierOption {
	return func(v *Verifier) {
		v.clientOpts = append(v.clientOpts, opts...)
	}
}

// WithMaxRetry changes the retry budget. Negative values are ignored.
func WithMaxRetry(n int) VerifierOption {
	return func(v *Verifier) {
		if n >= 0 {
			v.maxRetry = n
		}
	}
}

func WithObserver(o Observer) VerifierOption {
	return func(v *Verifier) {
		v.observer = o
	}
}

func WithVerifierLogger(l Logger) VerifierOption {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
			v.clientOpts = append(v.clientOpts, WithLogger(l))
		}
	}
}

// Verifier sends a receipt to production first and follows the App Store's
// hints: environment mismatches are corrected once per direction, retryable
// failures are repeated against the same environment up to the retry budget.
type Verifier struct {
	client     *Client
	clientOpts []ClientOption
	maxRetry   int
	observer   Observer
	logger     Logger
}

func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		maxRetry: MaxRetry,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.client = NewClient(Production, v.clientOpts...)
	return v
}

// Verify runs the full verification flow for receiptData.
//
// After exhausting retries the last error is returned unchanged: a
// *VerificationError for status failures, or the transport error itself.
func (v *Verifier) Verify(ctx context.Context, receiptData string, opts ...VerifyOption) (*Receipt, error) {
	client := v.client.WithEnvironment(Production)

	var (
		retries           int
		switchedToSandbox bool
		switchedToProd    bool
	)

	for {
		start := time.Now()
		receipt, err := client.Verify(ctx, receiptData, opts...)
		if v.observer != nil {
			v.observer.ObserveAttempt(Attempt{
				Environment: client.Environment(),
				Retry:       retries,
				Duration:    time.Since(start),
				Err:         err,
			})
		}
		if err == nil {
			return receipt, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		var verr *VerificationError
		switch {
		case errors.As(err, &verr) && verr.Code == StatusSandboxReceipt && !switchedToSandbox:
			switchedToSandbox = true
			v.logger.Infof("appstore: sandbox receipt sent to %s, switching to %s", client.Environment(), Development)
			client = client.WithEnvironment(Development)

		case errors.As(err, &verr) && verr.Code == StatusProductionReceipt && !switchedToProd:
			switchedToProd = true
			v.logger.Infof("appstore: production receipt sent to %s, switching to %s", client.Environment(), Production)
			client = client.WithEnvironment(Production)

		case errors.As(err, &verr):
			if !verr.Retryable {
				return nil, err
			}
			retries++
			if retries > v.maxRetry {
				return nil, err
			}
			v.logger.Warnf("appstore: retryable status %d from %s, retry %d/%d", verr.Code, client.Environment(), retries, v.maxRetry)

		case IsTransportFailure(err):
			retries++
			if retries > v.maxRetry {
				return nil, err
			}
			v.logger.Warnf("appstore: %v, retry %d/%d", err, retries, v.maxRetry)

		default:
			return nil, err
		}
	}
}

// VerifyOrFalse is Verify for callers that only need a yes/no answer. Every
// failure is reported as ok == false.
func (v *Verifier) VerifyOrFalse(ctx context.Context, receiptData string, opts ...VerifyOption) (*Receipt, bool) {
	receipt, err := v.Verify(ctx, receiptData, opts...)
	if err != nil {
		v.logger.Debugf("appstore: receipt rejected: %v", err)
		return nil, false
	}
	return receipt, true
}

var defaultVerifier = NewVerifier()

// Verify verifies receiptData with a Verifier using default settings.
func Verify(ctx context.Context, receiptData string, opts ...VerifyOption) (*Receipt, error) {
	return defaultVerifier.Verify(ctx, receiptData, opts...)
}

// VerifyOrFalse is the non-failing form of Verify.
func VerifyOrFalse(ctx context.Context, receiptData string, opts ...VerifyOption) (*Receipt, bool) {
	return defaultVerifier.VerifyOrFalse(ctx, receiptData, opts...)
}
