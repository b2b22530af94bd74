package appstore

import (
	"encoding/json"
	"maps"
	"time"
)

// Receipt is a verified app receipt together with the subscription details
// returned alongside it.
type Receipt struct {
	// Status is StatusOK or StatusSubscriptionExpired.
	Status int

	// Environment is the name of the environment that accepted the receipt.
	Environment string

	BundleID                   string
	ApplicationVersion         string
	OriginalApplicationVersion string
	OriginalPurchaseDate       *time.Time
	ExpiresAt                  *time.Time

	// Not documented by Apple but present on most receipts.
	ReceiptType      string
	AdamID           *int64
	DownloadID       *int64
	RequestedAt      *time.Time
	ReceiptCreatedAt *time.Time

	InApp              []InAppReceipt
	LatestReceiptInfo  []InAppReceipt
	PendingRenewalInfo []PendingRenewalInfo

	// LatestReceipt is the base64 receipt for the latest renewal.
	LatestReceipt string

	// OriginalJSONResponse is a copy of the decoded reply. Its nested
	// "receipt" object is copied as well and never refers back to it.
	OriginalJSONResponse map[string]any
}

// NewReceipt builds a Receipt from a successful verifyReceipt reply.
func NewReceipt(response map[string]any) *Receipt {
	resp := attributes(response)
	status, _ := parseInt(response["status"])

	var body attributes
	if m, ok := response["receipt"].(map[string]any); ok {
		body = m
	} else {
		body = attributes{}
	}

	r := &Receipt{
		Status:                     int(status),
		Environment:                resp.str("environment"),
		BundleID:                   body.str("bundle_id"),
		ApplicationVersion:         body.str("application_version"),
		OriginalApplicationVersion: body.str("original_application_version"),
		OriginalPurchaseDate:       body.timestamp("original_purchase_date"),
		ExpiresAt:                  body.timestamp("expiration_date"),
		ReceiptType:                body.str("receipt_type"),
		AdamID:                     body.int64Ptr("adam_id"),
		DownloadID:                 body.int64Ptr("download_id"),
		RequestedAt:                body.timestamp("request_date"),
		ReceiptCreatedAt:           body.timestamp("receipt_creation_date"),
		InApp:                      newInAppReceipts(body.objects("in_app")),
		LatestReceipt:              resp.str("latest_receipt"),
		OriginalJSONResponse:       cloneResponse(response),
	}

	latest := resp.objects("latest_receipt_info")
	if latest == nil {
		// Older replies nested it under the receipt.
		latest = body.objects("latest_receipt_info")
	}
	r.LatestReceiptInfo = newInAppReceipts(latest)

	pending := resp.objects("pending_renewal_info")
	r.PendingRenewalInfo = make([]PendingRenewalInfo, 0, len(pending))
	for _, attrs := range pending {
		r.PendingRenewalInfo = append(r.PendingRenewalInfo, newPendingRenewalInfo(attrs))
	}

	return r
}

// cloneResponse copies the reply one level deep and gives the nested receipt
// object its own map, so nothing attached to the copy reaches the original.
func cloneResponse(response map[string]any) map[string]any {
	out := maps.Clone(response)
	if out == nil {
		return map[string]any{}
	}
	if body, ok := out["receipt"].(map[string]any); ok {
		out["receipt"] = maps.Clone(body)
	}
	return out
}

// Expired reports whether the App Store flagged the subscription as expired
// (status 21006). The receipt itself is still valid.
func (r *Receipt) Expired() bool {
	return r.Status == StatusSubscriptionExpired
}

// FindTransaction looks a transaction up in LatestReceiptInfo first and then
// in InApp.
func (r *Receipt) FindTransaction(transactionID string) *InAppReceipt {
	for i := range r.LatestReceiptInfo {
		if r.LatestReceiptInfo[i].TransactionID == transactionID {
			return &r.LatestReceiptInfo[i]
		}
	}
	for i := range r.InApp {
		if r.InApp[i].TransactionID == transactionID {
			return &r.InApp[i]
		}
	}
	return nil
}

// LatestTransaction returns the most recently purchased transaction, looking
// at LatestReceiptInfo when present and InApp otherwise.
func (r *Receipt) LatestTransaction() *InAppReceipt {
	list := r.LatestReceiptInfo
	if len(list) == 0 {
		list = r.InApp
	}
	var latest *InAppReceipt
	for i := range list {
		e := &list[i]
		if e.PurchasedAt == nil {
			continue
		}
		if latest == nil || e.PurchasedAt.After(*latest.PurchasedAt) {
			latest = e
		}
	}
	return latest
}

func (r *Receipt) ToMap() map[string]any {
	inApp := make([]map[string]any, 0, len(r.InApp))
	for i := range r.InApp {
		inApp = append(inApp, r.InApp[i].ToMap())
	}
	latest := make([]map[string]any, 0, len(r.LatestReceiptInfo))
	for i := range r.LatestReceiptInfo {
		latest = append(latest, r.LatestReceiptInfo[i].ToMap())
	}
	pending := make([]map[string]any, 0, len(r.PendingRenewalInfo))
	for i := range r.PendingRenewalInfo {
		pending = append(pending, r.PendingRenewalInfo[i].ToMap())
	}

	return map[string]any{
		"status":                       r.Status,
		"environment":                  r.Environment,
		"bundle_id":                    r.BundleID,
		"application_version":          r.ApplicationVersion,
		"original_application_version": r.OriginalApplicationVersion,
		"original_purchase_date":       formatTime(r.OriginalPurchaseDate),
		"expires_at":                   formatTime(r.ExpiresAt),
		"receipt_type":                 r.ReceiptType,
		"adam_id":                      nilIfNil(r.AdamID),
		"download_id":                  nilIfNil(r.DownloadID),
		"requested_at":                 formatTime(r.RequestedAt),
		"receipt_created_at":           formatTime(r.ReceiptCreatedAt),
		"in_app":                       inApp,
		"latest_receipt_info":          latest,
		"pending_renewal_info":         pending,
		"latest_receipt":               r.LatestReceipt,
	}
}

func (r *Receipt) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}
