package appstore

import (
	"encoding/json"
	"time"
)

// PendingRenewalInfo describes the next renewal of an auto-renewable
// subscription.
type PendingRenewalInfo struct {
	ExpirationIntent       *int
	AutoRenewStatus        *int
	AutoRenewProductID     string
	IsInBillingRetryPeriod *bool
	ProductID              string
	PriceConsentStatus     *int
	CancellationReason     *int
	GracePeriodExpiresAt   *time.Time
	OriginalTransactionID  string
}

func newPendingRenewalInfo(attrs attributes) PendingRenewalInfo {
	info := PendingRenewalInfo{
		ExpirationIntent:      attrs.intPtr("expiration_intent"),
		AutoRenewStatus:       attrs.intPtr("auto_renew_status"),
		AutoRenewProductID:    attrs.str("auto_renew_product_id"),
		ProductID:             attrs.str("product_id"),
		PriceConsentStatus:    attrs.intPtr("price_consent_status"),
		CancellationReason:    attrs.intPtr("cancellation_reason"),
		GracePeriodExpiresAt:  attrs.timestamp("grace_period_expires_date"),
		OriginalTransactionID: attrs.str("original_transaction_id"),
	}
	if attrs.has("is_in_billing_retry_period") {
		retrying := attrs.str("is_in_billing_retry_period") == "1"
		info.IsInBillingRetryPeriod = &retrying
	}
	return info
}

func (p *PendingRenewalInfo) ToMap() map[string]any {
	return map[string]any{
		"expiration_intent":          nilIfNil(p.ExpirationIntent),
		"auto_renew_status":          nilIfNil(p.AutoRenewStatus),
		"auto_renew_product_id":      p.AutoRenewProductID,
		"is_in_billing_retry_period": nilIfNil(p.IsInBillingRetryPeriod),
		"product_id":                 p.ProductID,
		"price_consent_status":       nilIfNil(p.PriceConsentStatus),
		"cancellation_reason":        nilIfNil(p.CancellationReason),
		"grace_period_expires_at":    formatTime(p.GracePeriodExpiresAt),
		"original_transaction_id":    p.OriginalTransactionID,
	}
}

func (p PendingRenewalInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToMap())
}
