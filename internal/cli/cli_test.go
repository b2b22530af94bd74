package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okReply = `{"status":0,"receipt":{"bundle_id":"com.example.app","application_version":"42",
"in_app":[{"product_id":"pro","transaction_id":"1000","purchase_date_ms":"1401288473000"}]},
"latest_receipt_info":[{"product_id":"pro.monthly","transaction_id":"2000","purchase_date_ms":"1401288473000","expires_date_ms":"1403880473000"}]}`

type appleStub struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
}

// newAppleStub answers 21007 on /production and replies on /sandbox.
func newAppleStub(t *testing.T, sandboxReply string) (*appleStub, *httptest.Server) {
	stub := &appleStub{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		stub.mu.Lock()
		stub.paths = append(stub.paths, r.URL.Path)
		stub.bodies = append(stub.bodies, body)
		stub.mu.Unlock()

		if r.URL.Path == "/production" {
			_, _ = io.WriteString(w, `{"status":21007}`)
			return
		}
		_, _ = io.WriteString(w, sandboxReply)
	}))
	t.Cleanup(srv.Close)
	return stub, srv
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"verify", "environments"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "", "environments", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEnvironments(t *testing.T) {
	out, err := execute(t, "", "environments")
	require.NoError(t, err)
	assert.Contains(t, out, "production")
	assert.Contains(t, out, "https://buy.itunes.apple.com/verifyReceipt")
	assert.Contains(t, out, "https://sandbox.itunes.apple.com/verifyReceipt")

	out, err = execute(t, "", "environments", "--format", "json")
	require.NoError(t, err)
	var list []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "development", list[1]["name"])
}

func TestVerifyFallsBackToSandbox(t *testing.T) {
	stub, srv := newAppleStub(t, okReply)

	out, err := execute(t, "  cmVjZWlwdA==\n", "verify",
		"--endpoint", srv.URL+"/production",
		"--sandbox-endpoint", srv.URL+"/sandbox",
		"--secret", "shh",
		"--exclude-old")
	require.NoError(t, err)

	assert.Contains(t, out, "environment:  development")
	assert.Contains(t, out, "bundle id:    com.example.app")
	assert.Contains(t, out, "latest:       2000 pro.monthly expires 2014-06-27T14:47:53Z")

	assert.Equal(t, []string{"/production", "/sandbox"}, stub.paths)
	for _, body := range stub.bodies {
		assert.Equal(t, "cmVjZWlwdA==", body["receipt-data"])
		assert.Equal(t, "shh", body["password"])
		assert.Equal(t, true, body["exclude-old-transactions"])
	}
}

func TestVerifyFromFileAsJSON(t *testing.T) {
	_, srv := newAppleStub(t, okReply)
	path := filepath.Join(t.TempDir(), "receipt.txt")
	require.NoError(t, os.WriteFile(path, []byte("cmVjZWlwdA=="), 0o600))

	out, err := execute(t, "", "verify", path, "--format", "json",
		"--endpoint", srv.URL+"/production",
		"--sandbox-endpoint", srv.URL+"/sandbox")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "com.example.app", got["bundle_id"])
	assert.Equal(t, "development", got["environment"])
}

func TestVerifyPinnedEnvironment(t *testing.T) {
	stub, srv := newAppleStub(t, okReply)

	_, err := execute(t, "cmVjZWlwdA==", "verify", "--env", "production",
		"--endpoint", srv.URL+"/production")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21007")
	assert.Equal(t, []string{"/production"}, stub.paths)

	_, err = execute(t, "cmVjZWlwdA==", "verify", "--env", "staging")
	require.Error(t, err)
}

func TestVerifyBool(t *testing.T) {
	_, srv := newAppleStub(t, `{"status":21003}`)
	args := []string{"verify", "--bool", "--endpoint", srv.URL + "/production", "--sandbox-endpoint", srv.URL + "/sandbox"}

	out, err := execute(t, "cmVjZWlwdA==", args...)
	assert.ErrorIs(t, err, ErrInvalidReceipt)
	assert.Equal(t, "invalid\n", out)

	_, okSrv := newAppleStub(t, okReply)
	out, err = execute(t, "cmVjZWlwdA==", "verify", "--bool", "--format", "json",
		"--endpoint", okSrv.URL+"/production", "--sandbox-endpoint", okSrv.URL+"/sandbox")
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true}`, out)
}

func TestVerifyEmptyInput(t *testing.T) {
	_, err := execute(t, "   \n", "verify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
