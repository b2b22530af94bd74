package appstore

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeReply(t *testing.T, reply string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(reply)))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestNewReceipt(t *testing.T) {
	r := NewReceipt(decodeReply(t, successReply))

	assert.Equal(t, StatusOK, r.Status)
	assert.False(t, r.Expired())
	assert.Equal(t, "com.foo.bar", r.BundleID)
	assert.Equal(t, "2", r.ApplicationVersion)
	assert.Equal(t, "1", r.OriginalApplicationVersion)
	assert.Equal(t, "Production", r.ReceiptType)
	require.NotNil(t, r.AdamID)
	assert.Equal(t, int64(7654321), *r.AdamID)
	require.NotNil(t, r.DownloadID)
	assert.Equal(t, int64(1234567), *r.DownloadID)
	require.NotNil(t, r.OriginalPurchaseDate)
	assert.Equal(t, int64(1400292585000), r.OriginalPurchaseDate.UnixMilli())
	require.NotNil(t, r.RequestedAt)
	assert.Equal(t, int64(1401924047883), r.RequestedAt.UnixMilli())
	require.NotNil(t, r.ExpiresAt)
	assert.Equal(t, int64(1401924047883), r.ExpiresAt.UnixMilli())
	assert.Nil(t, r.ReceiptCreatedAt)
	assert.Equal(t, "bGF0ZXN0", r.LatestReceipt)

	require.Len(t, r.InApp, 1)
	assert.Len(t, r.LatestReceiptInfo, 2)
	require.Len(t, r.PendingRenewalInfo, 1)
	assert.Equal(t, "2000", r.PendingRenewalInfo[0].OriginalTransactionID)
}

func TestNewReceiptInAppCountMatchesSource(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		items := make([]map[string]any, n)
		for i := range items {
			items[i] = map[string]any{"transaction_id": i}
		}
		reply := mustJSON(t, map[string]any{"status": 0, "receipt": map[string]any{"in_app": items}})

		r := NewReceipt(decodeReply(t, reply))
		assert.Len(t, r.InApp, n)
	}
}

func TestNewReceiptLatestReceiptInfoShapes(t *testing.T) {
	t.Run("single object", func(t *testing.T) {
		r := NewReceipt(decodeReply(t, `{"status":0,"receipt":{},"latest_receipt_info":{"transaction_id":"9"}}`))
		require.Len(t, r.LatestReceiptInfo, 1)
		assert.Equal(t, "9", r.LatestReceiptInfo[0].TransactionID)
	})

	t.Run("array", func(t *testing.T) {
		r := NewReceipt(decodeReply(t, `{"status":0,"receipt":{},"latest_receipt_info":[{"transaction_id":"1"},{"transaction_id":"2"},{"transaction_id":"3"}]}`))
		assert.Len(t, r.LatestReceiptInfo, 3)
	})

	t.Run("nested under receipt", func(t *testing.T) {
		r := NewReceipt(decodeReply(t, `{"status":0,"receipt":{"latest_receipt_info":[{"transaction_id":"1"}]}}`))
		assert.Len(t, r.LatestReceiptInfo, 1)
	})

	t.Run("absent", func(t *testing.T) {
		r := NewReceipt(decodeReply(t, `{"status":0,"receipt":{}}`))
		assert.Empty(t, r.LatestReceiptInfo)
	})
}

func TestNewReceiptExpiredStatus(t *testing.T) {
	r := NewReceipt(decodeReply(t, `{"status":21006,"receipt":{"bundle_id":"com.foo.bar"}}`))
	assert.True(t, r.Expired())
	assert.Equal(t, "com.foo.bar", r.BundleID)
}

func TestNewReceiptOriginalJSONResponseHasNoBackReference(t *testing.T) {
	raw := decodeReply(t, successReply)
	body := raw["receipt"].(map[string]any)
	keysBefore := len(body)

	r := NewReceipt(raw)

	attached, ok := r.OriginalJSONResponse["receipt"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, attached, "original_json_response")
	assert.Len(t, body, keysBefore, "parsed receipt object must not be mutated")

	attached["marker"] = true
	assert.NotContains(t, body, "marker", "attached receipt must be a copy")

	r.OriginalJSONResponse["marker"] = true
	assert.NotContains(t, raw, "marker")
}

func TestReceiptTransactionLookups(t *testing.T) {
	r := NewReceipt(decodeReply(t, successReply))

	found := r.FindTransaction("2001")
	require.NotNil(t, found)
	assert.Equal(t, "com.foo.sub", found.ProductID)

	found = r.FindTransaction("1000000070107111")
	require.NotNil(t, found)
	assert.Equal(t, "com.foo.product1", found.ProductID)

	assert.Nil(t, r.FindTransaction("nope"))

	latest := r.LatestTransaction()
	require.NotNil(t, latest)
	assert.Equal(t, "2001", latest.TransactionID)
}

func TestReceiptToMap(t *testing.T) {
	r := NewReceipt(decodeReply(t, successReply))
	m := r.ToMap()

	assert.Equal(t, "com.foo.bar", m["bundle_id"])
	assert.Equal(t, int64(7654321), m["adam_id"])
	assert.Equal(t, time.UnixMilli(1401924047883).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"), m["expires_at"])
	assert.Nil(t, m["receipt_created_at"])
	assert.Len(t, m["in_app"], 1)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bundle_id":"com.foo.bar"`)
}

func TestNewInAppReceipt(t *testing.T) {
	attrs := attributes{
		"quantity":                    json.Number("1"),
		"product_id":                  "com.foo.product1",
		"transaction_id":              "1000000070107235",
		"web_order_line_item_id":      "1000000026812043",
		"purchase_date":               "2014-05-28 14:47:53 Etc/GMT",
		"purchase_date_ms":            "1401288473000",
		"original_transaction_id":     "140xxx867509",
		"original_purchase_date":      "2014-05-28 14:47:53 Etc/GMT",
		"original_purchase_date_ms":   "1401288473000",
		"is_trial_period":             false,
		"is_in_intro_offer_period":    "true",
		"version_external_identifier": "123",
		"app_item_id":                 "com.foo.app1",
		"expires_date":                "2014-06-28 07:47:53 America/Los_Angeles",
		"cancellation_date_ms":        "1403967000000",
	}

	r := newInAppReceipt(attrs)

	require.NotNil(t, r.Quantity)
	assert.Equal(t, 1, *r.Quantity)
	assert.Equal(t, "com.foo.product1", r.ProductID)
	assert.Equal(t, "1000000070107235", r.TransactionID)
	assert.Equal(t, "1000000026812043", r.WebOrderLineItemID)
	assert.Equal(t, "com.foo.app1", r.AppItemID)
	assert.Equal(t, "123", r.VersionExternalIdentifier)
	require.NotNil(t, r.PurchasedAt)
	assert.Equal(t, int64(1401288473000), r.PurchasedAt.UnixMilli())
	require.NotNil(t, r.IsTrialPeriod)
	assert.False(t, *r.IsTrialPeriod)
	require.NotNil(t, r.IsInIntroOfferPeriod)
	assert.True(t, *r.IsInIntroOfferPeriod)
	require.NotNil(t, r.ExpiresAt)
	assert.Equal(t, time.Date(2014, 6, 28, 14, 47, 53, 0, time.UTC), r.ExpiresAt.UTC())
	require.NotNil(t, r.CancellationAt)
	assert.Equal(t, int64(1403967000000), r.CancellationAt.UnixMilli())

	require.NotNil(t, r.Original)
	assert.Equal(t, "140xxx867509", r.Original.TransactionID)
	require.NotNil(t, r.Original.PurchasedAt)
	assert.Nil(t, r.Original.Original)
	assert.Equal(t, "140xxx867509", r.OriginalTransactionID())

	m := r.ToMap()
	assert.Equal(t, "140xxx867509", m["original_transaction_id"])
	assert.NotNil(t, m["original_purchase_date"])
}

func TestNewInAppReceiptWithoutOriginal(t *testing.T) {
	r := newInAppReceipt(attributes{"transaction_id": "1", "quantity": "many"})
	assert.Nil(t, r.Original)
	assert.Nil(t, r.Quantity)
	assert.Nil(t, r.ExpiresAt)
	assert.Equal(t, "", r.OriginalTransactionID())
}

func TestInAppExpiresAtNumericFallback(t *testing.T) {
	fromMS := newInAppReceipt(attributes{"expires_date_ms": "1406559000000"})
	fromPlain := newInAppReceipt(attributes{"expires_date": "1406559000000"})

	require.NotNil(t, fromMS.ExpiresAt)
	require.NotNil(t, fromPlain.ExpiresAt)
	assert.True(t, fromMS.ExpiresAt.Equal(*fromPlain.ExpiresAt))
}

func TestNewPendingRenewalInfo(t *testing.T) {
	info := newPendingRenewalInfo(attributes{
		"auto_renew_product_id":        "com.foo.product1",
		"original_transaction_id":      "37xxxxxxxxx89",
		"product_id":                   "com.foo.product1",
		"auto_renew_status":            "0",
		"is_in_billing_retry_period":   "0",
		"expiration_intent":            "1",
		"grace_period_expires_date_ms": "1406559000000",
	})

	require.NotNil(t, info.ExpirationIntent)
	assert.Equal(t, 1, *info.ExpirationIntent)
	require.NotNil(t, info.AutoRenewStatus)
	assert.Equal(t, 0, *info.AutoRenewStatus)
	assert.Equal(t, "com.foo.product1", info.AutoRenewProductID)
	assert.Equal(t, "com.foo.product1", info.ProductID)
	assert.Equal(t, "37xxxxxxxxx89", info.OriginalTransactionID)
	require.NotNil(t, info.IsInBillingRetryPeriod)
	assert.False(t, *info.IsInBillingRetryPeriod)
	assert.Nil(t, info.PriceConsentStatus)
	assert.Nil(t, info.CancellationReason)
	require.NotNil(t, info.GracePeriodExpiresAt)

	assert.Equal(t, map[string]any{
		"expiration_intent":          1,
		"auto_renew_status":          0,
		"auto_renew_product_id":      "com.foo.product1",
		"is_in_billing_retry_period": false,
		"product_id":                 "com.foo.product1",
		"price_consent_status":       nil,
		"cancellation_reason":        nil,
		"grace_period_expires_at":    time.UnixMilli(1406559000000).UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"),
		"original_transaction_id":    "37xxxxxxxxx89",
	}, info.ToMap())
}

func TestPendingRenewalBillingRetryFlag(t *testing.T) {
	cases := map[string]struct {
		value any
		want  *bool
	}{
		"string one":  {"1", boolp(true)},
		"number one":  {json.Number("1"), boolp(true)},
		"string zero": {"0", boolp(false)},
		"true word":   {"true", boolp(false)},
		"bool true":   {true, boolp(false)},
		"absent":      {nil, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			attrs := attributes{}
			if tc.value != nil {
				attrs["is_in_billing_retry_period"] = tc.value
			}
			assert.Equal(t, tc.want, newPendingRenewalInfo(attrs).IsInBillingRetryPeriod)
		})
	}
}

func boolp(b bool) *bool { return &b }
