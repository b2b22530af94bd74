package appstore

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordedCall is one request seen by a scriptedServer.
type recordedCall struct {
	Path    string
	Header  http.Header
	Body    map[string]any
	RawBody string
}

// scriptedServer replies to successive requests with successive bodies and
// repeats the last one once the script runs out.
type scriptedServer struct {
	*httptest.Server

	mu      sync.Mutex
	replies []string
	calls   []recordedCall
}

func newScriptedServer(t *testing.T, replies ...string) *scriptedServer {
	t.Helper()

	s := &scriptedServer{replies: replies}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		s.mu.Lock()
		idx := len(s.calls)
		s.calls = append(s.calls, recordedCall{Path: r.URL.Path, Header: r.Header.Clone(), Body: body, RawBody: string(raw)})
		reply := "{}"
		if len(s.replies) > 0 {
			reply = s.replies[min(idx, len(s.replies)-1)]
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *scriptedServer) Calls() []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedCall(nil), s.calls...)
}

func (s *scriptedServer) Paths() []string {
	var paths []string
	for _, c := range s.Calls() {
		paths = append(paths, c.Path)
	}
	return paths
}

// endpointOptions routes both environments to the test server under
// /production and /development.
func (s *scriptedServer) endpointOptions() []ClientOption {
	return []ClientOption{
		WithEndpoint(Production, s.URL+"/production"),
		WithEndpoint(Development, s.URL+"/development"),
		WithTransport(NewHTTPTransport(s.Client())),
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

const successReply = `{
  "status": 0,
  "environment": "Production",
  "receipt": {
    "receipt_type": "Production",
    "adam_id": 7654321,
    "bundle_id": "com.foo.bar",
    "application_version": "2",
    "download_id": 1234567,
    "request_date": "2014-06-04 23:20:47 Etc/GMT",
    "request_date_ms": "1401924047883",
    "original_purchase_date": "2014-05-17 02:09:45 Etc/GMT",
    "original_purchase_date_ms": "1400292585000",
    "original_application_version": "1",
    "expiration_date": "1401924047883",
    "in_app": [
      {
        "quantity": "1",
        "product_id": "com.foo.product1",
        "transaction_id": "1000000070107111",
        "original_transaction_id": "1000000061051111",
        "purchase_date": "2014-05-28 14:47:53 Etc/GMT",
        "purchase_date_ms": "1401288473000",
        "original_purchase_date": "2014-05-28 14:47:53 Etc/GMT",
        "original_purchase_date_ms": "1401288473000",
        "expires_date": "2014-06-28 14:47:53 Etc/GMT",
        "is_trial_period": "false"
      }
    ]
  },
  "latest_receipt": "bGF0ZXN0",
  "latest_receipt_info": [
    {"quantity": "1", "product_id": "com.foo.sub", "transaction_id": "2000", "purchase_date_ms": "1401288473000", "expires_date_ms": "1403967000000"},
    {"quantity": "1", "product_id": "com.foo.sub", "transaction_id": "2001", "purchase_date_ms": "1403967000000", "expires_date_ms": "1406559000000"}
  ],
  "pending_renewal_info": [
    {"auto_renew_product_id": "com.foo.sub", "original_transaction_id": "2000", "product_id": "com.foo.sub", "auto_renew_status": "1", "is_in_billing_retry_period": "0"}
  ]
}`
