package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "APPSTORE_OPEN_TIMEOUT", "APPSTORE_MAX_RETRY", "REDIS_URL", "BATCH_CONCURRENCY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.AppStoreOpenTimeout)
	assert.Equal(t, 3, cfg.AppStoreMaxRetry)
	assert.Equal(t, "", cfg.RedisURL)
	assert.Equal(t, 4, cfg.BatchConcurrency)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APPSTORE_SHARED_SECRET", "shhh")
	t.Setenv("APPSTORE_EXCLUDE_OLD_TRANSACTIONS", "true")
	t.Setenv("APPSTORE_OPEN_TIMEOUT", "2s")
	t.Setenv("APPSTORE_READ_TIMEOUT", "7.5")
	t.Setenv("APPSTORE_MAX_RETRY", "5")
	t.Setenv("IAP_VERIFICATION_ENDPOINT", "http://localhost:9999/verifyReceipt")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "shhh", cfg.AppStoreSharedSecret)
	assert.True(t, cfg.AppStoreExcludeOldTransactions)
	assert.Equal(t, 2*time.Second, cfg.AppStoreOpenTimeout)
	assert.Equal(t, 7500*time.Millisecond, cfg.AppStoreReadTimeout)
	assert.Equal(t, 5, cfg.AppStoreMaxRetry)
	assert.Equal(t, "http://localhost:9999/verifyReceipt", cfg.VerificationEndpoint)
}

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	t.Setenv("SOME_BOOL", "perhaps")
	t.Setenv("SOME_DURATION", "soon")

	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
	assert.True(t, getEnvBool("SOME_BOOL", true))
	assert.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))
}
