package appstore

import (
	"encoding/json"
	"time"
)

// InAppReceipt is one purchased line item: a single purchase or one period
// of an auto-renewable subscription.
type InAppReceipt struct {
	Quantity                  *int
	ProductID                 string
	TransactionID             string
	WebOrderLineItemID        string
	PurchasedAt               *time.Time
	AppItemID                 string
	VersionExternalIdentifier string
	IsTrialPeriod             *bool
	IsInIntroOfferPeriod      *bool

	// ExpiresAt is set for auto-renewable subscriptions.
	ExpiresAt *time.Time

	// CancellationAt is set when Apple customer support refunded the transaction.
	CancellationAt *time.Time

	// Original is the transaction this one restores or renews. It is built
	// from the original_* keys and never has an Original of its own.
	Original *InAppReceipt
}

func newInAppReceipt(attrs attributes) InAppReceipt {
	r := InAppReceipt{
		Quantity:                  attrs.intPtr("quantity"),
		ProductID:                 attrs.str("product_id"),
		TransactionID:             attrs.str("transaction_id"),
		WebOrderLineItemID:        attrs.str("web_order_line_item_id"),
		PurchasedAt:               attrs.timestamp("purchase_date"),
		AppItemID:                 attrs.str("app_item_id"),
		VersionExternalIdentifier: attrs.str("version_external_identifier"),
		IsTrialPeriod:             attrs.boolPtr("is_trial_period"),
		IsInIntroOfferPeriod:      attrs.boolPtr("is_in_intro_offer_period"),
		ExpiresAt:                 attrs.timestamp("expires_date"),
		CancellationAt:            attrs.timestamp("cancellation_date"),
	}

	if attrs.has("original_transaction_id") || attrs.has("original_purchase_date") {
		original := attributes{}
		for from, to := range map[string]string{
			"original_transaction_id":   "transaction_id",
			"original_purchase_date":    "purchase_date",
			"original_purchase_date_ms": "purchase_date_ms",
		} {
			if attrs.has(from) {
				original[to] = attrs[from]
			}
		}
		o := newInAppReceipt(original)
		r.Original = &o
	}

	return r
}

func newInAppReceipts(list []attributes) []InAppReceipt {
	out := make([]InAppReceipt, 0, len(list))
	for _, attrs := range list {
		out = append(out, newInAppReceipt(attrs))
	}
	return out
}

// OriginalTransactionID is the transaction id of Original, if any.
func (r *InAppReceipt) OriginalTransactionID() string {
	if r.Original == nil {
		return ""
	}
	return r.Original.TransactionID
}

// ToMap renders the receipt with timestamps formatted as HTTP dates and
// absent values as nil.
func (r *InAppReceipt) ToMap() map[string]any {
	m := map[string]any{
		"quantity":                    nilIfNil(r.Quantity),
		"product_id":                  r.ProductID,
		"transaction_id":              r.TransactionID,
		"web_order_line_item_id":      r.WebOrderLineItemID,
		"purchase_date":               formatTime(r.PurchasedAt),
		"original_transaction_id":     nil,
		"original_purchase_date":      nil,
		"app_item_id":                 r.AppItemID,
		"version_external_identifier": r.VersionExternalIdentifier,
		"is_trial_period":             nilIfNil(r.IsTrialPeriod),
		"is_in_intro_offer_period":    nilIfNil(r.IsInIntroOfferPeriod),
		"expires_at":                  formatTime(r.ExpiresAt),
		"cancellation_at":             formatTime(r.CancellationAt),
	}
	if r.Original != nil {
		m["original_transaction_id"] = r.Original.TransactionID
		m["original_purchase_date"] = formatTime(r.Original.PurchasedAt)
	}
	return m
}

func (r InAppReceipt) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// nilIfNil turns a typed nil pointer into an untyped nil and dereferences
// everything else.
func nilIfNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
