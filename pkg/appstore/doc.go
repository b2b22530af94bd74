// Package appstore verifies base64-encoded App Store purchase receipts against
// Apple's verifyReceipt endpoints and maps the JSON reply into typed receipts.
//
// A Client talks to exactly one Environment. A Verifier drives one or more
// Clients through the environment-correction and retry rules: a sandbox receipt
// sent to production (21007) is resent to the sandbox, a production receipt sent
// to the sandbox (21008) is resent to production, and remote-declared retryable
// statuses as well as transport failures are retried up to MaxRetry times.
//
// Optional receipt fields that are missing or cannot be parsed are left nil.
// The untouched reply stays available through Receipt.OriginalJSONResponse.
package appstore
