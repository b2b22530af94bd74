package appstore

import (
	"errors"
	"fmt"

	goiap "github.com/awa/go-iap/appstore"
)

// Status codes returned by the verifyReceipt endpoints.
const (
	StatusOK                    = 0
	StatusMalformedJSON         = 21000
	StatusMalformedReceiptData  = 21002
	StatusNotAuthenticated      = 21003
	StatusSharedSecretMismatch  = 21004
	StatusServerUnavailable     = 21005
	StatusSubscriptionExpired   = 21006
	StatusSandboxReceipt        = 21007
	StatusProductionReceipt     = 21008
	StatusNotAuthorized         = 21010
	StatusInternalDataAccessMin = 21100
	StatusInternalDataAccessMax = 21199
)

// VerificationError is a non-success status returned by the App Store. It
// keeps the whole decoded reply so callers can read undocumented fields.
type VerificationError struct {
	Code      int
	Retryable bool
	Response  map[string]any
}

func newVerificationError(code int, response map[string]any) *VerificationError {
	retryable, _ := retryableFlag(response)
	return &VerificationError{
		Code:      code,
		Retryable: retryable,
		Response:  response,
	}
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("appstore: verification failed with status %d: %s", e.Code, e.Message())
}

// Message describes the status code.
func (e *VerificationError) Message() string {
	return StatusMessage(e.Code)
}

// Unwrap exposes the go-iap error for the same status so errors.Is works
// against that library's sentinels.
func (e *VerificationError) Unwrap() error {
	return goiap.HandleError(e.Code)
}

// StatusMessage returns the human readable meaning of a verifyReceipt status.
func StatusMessage(code int) string {
	switch {
	case code == StatusOK:
		return "The receipt is valid."
	case code == StatusMalformedJSON:
		return "The App Store could not read the JSON object you provided."
	case code == StatusMalformedReceiptData:
		return "The data in the receipt-data property was malformed."
	case code == StatusNotAuthenticated:
		return "The receipt could not be authenticated."
	case code == StatusSharedSecretMismatch:
		return "The shared secret you provided does not match the shared secret on file for your account."
	case code == StatusServerUnavailable:
		return "The receipt server is not currently available."
	case code == StatusSubscriptionExpired:
		return "This receipt is valid but the subscription has expired."
	case code == StatusSandboxReceipt:
		return "This receipt is a sandbox receipt, but it was sent to the production service for verification."
	case code == StatusProductionReceipt:
		return "This receipt is a production receipt, but it was sent to the sandbox service for verification."
	case code == StatusNotAuthorized:
		return "This receipt could not be authorized. Treat this the same as if a purchase was never made."
	case code >= StatusInternalDataAccessMin && code <= StatusInternalDataAccessMax:
		return "Internal data access error."
	default:
		return fmt.Sprintf("Unknown error: %d", code)
	}
}

// TimeoutError reports that the transport gave up waiting for the App Store.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("appstore: %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Timeout satisfies net.Error style checks.
func (e *TimeoutError) Timeout() bool { return true }

// TransportError covers connection level failures other than timeouts:
// refused or reset connections, broken pipes, TLS handshake failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("appstore: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvalidResponseError reports a reply body that is not a JSON object with an
// integer status.
type InvalidResponseError struct {
	Body []byte
	Err  error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("appstore: invalid response body: %v", e.Err)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// IsTransportFailure reports whether err is a timeout, a connection failure or
// an undecodable reply. These are safe to retry since verification is
// idempotent.
func IsTransportFailure(err error) bool {
	var (
		timeoutErr   *TimeoutError
		transportErr *TransportError
		invalidErr   *InvalidResponseError
	)
	return errors.As(err, &timeoutErr) || errors.As(err, &transportErr) || errors.As(err, &invalidErr)
}

// IsRetryable reports whether the Verifier would retry after err.
func IsRetryable(err error) bool {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Retryable
	}
	return IsTransportFailure(err)
}

// retryableFlag reads is_retryable, or its hyphenated variant, from a reply.
func retryableFlag(response map[string]any) (bool, bool) {
	for _, key := range []string{"is_retryable", "is-retryable"} {
		if v, ok := response[key]; ok && v != nil {
			if b, ok := parseBool(v); ok {
				return b, true
			}
		}
	}
	return false, false
}

// ErrorKind labels err for metrics and logs: "ok", "status_<code>",
// "timeout", "transport", "invalid_response" or "error".
func ErrorKind(err error) string {
	var (
		verr         *VerificationError
		timeoutErr   *TimeoutError
		transportErr *TransportError
		invalidErr   *InvalidResponseError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return fmt.Sprintf("status_%d", verr.Code)
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &invalidErr):
		return "invalid_response"
	default:
		return "error"
	}
}
