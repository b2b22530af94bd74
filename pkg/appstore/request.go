package appstore

import "time"

// VerificationRequest is the JSON body posted to verifyReceipt. Unset
// optional fields are left out of the body entirely.
type VerificationRequest struct {
	ReceiptData            string  `json:"receipt-data"`
	Password               *string `json:"password,omitempty"`
	ExcludeOldTransactions *bool   `json:"exclude-old-transactions,omitempty"`
}

// VerifyOptions are per-call overrides of the Client defaults.
type VerifyOptions struct {
	SharedSecret           *string
	ExcludeOldTransactions *bool
	OpenTimeout            time.Duration
	ReadTimeout            time.Duration
}

// VerifyOption sets a per-call override.
type VerifyOption func(*VerifyOptions)

func WithSharedSecret(secret string) VerifyOption {
	return func(o *VerifyOptions) {
		o.SharedSecret = &secret
	}
}

func WithExcludeOldTransactions(exclude bool) VerifyOption {
	return func(o *VerifyOptions) {
		o.ExcludeOldTransactions = &exclude
	}
}

// WithOpenTimeout bounds connection setup, including the TLS handshake.
func WithOpenTimeout(d time.Duration) VerifyOption {
	return func(o *VerifyOptions) {
		o.OpenTimeout = d
	}
}

// WithReadTimeout bounds the wait for the reply once connected.
func WithReadTimeout(d time.Duration) VerifyOption {
	return func(o *VerifyOptions) {
		o.ReadTimeout = d
	}
}

func collectVerifyOptions(opts []VerifyOption) VerifyOptions {
	var o VerifyOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
