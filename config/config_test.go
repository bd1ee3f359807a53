package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("VAULT_TEST_INT", "42")
	t.Setenv("VAULT_TEST_BAD_INT", "x")
	t.Setenv("VAULT_TEST_BOOL", "yes")
	t.Setenv("VAULT_TEST_LIST", " 1, ,2 ,*")
	t.Setenv("VAULT_TEST_DURATIONS", "1s,250ms")
	t.Setenv("VAULT_TEST_BAD_DURATIONS", "1s,soon")

	require.Equal(t, 42, getEnvInt("VAULT_TEST_INT", 7))
	require.Equal(t, 7, getEnvInt("VAULT_TEST_BAD_INT", 7))
	require.Equal(t, int64(9), getEnvInt64("VAULT_TEST_MISSING", 9))
	require.True(t, getEnvBool("VAULT_TEST_BOOL", false))
	require.True(t, getEnvBool("VAULT_TEST_MISSING", true))
	require.Equal(t, []string{"1", "2", "*"}, getEnvList("VAULT_TEST_LIST", nil))
	require.Equal(t, []time.Duration{time.Second, 250 * time.Millisecond},
		getEnvDurationList("VAULT_TEST_DURATIONS", nil))
	require.Equal(t, []time.Duration{time.Minute},
		getEnvDurationList("VAULT_TEST_BAD_DURATIONS", []time.Duration{time.Minute}))
	require.Equal(t, "fallback", getEnv("VAULT_TEST_MISSING", "fallback"))
}

func TestInitConfigReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.env")
	content := "AUTH_SECRET_KEY=from-file\nUSER_WHITELIST=1,2\nDB_DRIVER=sqlite\nPUBLIC_BASE_URL=http://pi.local:8000/\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("VAULT_ENV_FILE", path)
	t.Setenv("DAILY_UPLOAD_LIMIT_BYTES", "2048")

	require.NoError(t, InitConfig())
	require.Equal(t, "from-file", AppConfig.JWTSecret)
	require.Equal(t, []string{"1", "2"}, AppConfig.UserWhitelist)
	require.Equal(t, "sqlite", AppConfig.DBDriver)
	require.Equal(t, int64(2048), AppConfig.DailyUploadLimitBytes)
	require.Equal(t, "http://pi.local:8000", AppConfig.PublicBaseURL)
	require.Equal(t, 24*time.Hour, AppConfig.TokenTTL)
	require.NotNil(t, StorageConfigInstance)
}

func TestInitConfigWithoutWhitelistAdmitsNobody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.env")
	require.NoError(t, os.WriteFile(path, []byte("AUTH_SECRET_KEY=s\n"), 0o600))
	t.Setenv("VAULT_ENV_FILE", path)
	t.Setenv("USER_WHITELIST", "")

	require.NoError(t, InitConfig())
	require.Empty(t, AppConfig.UserWhitelist)
}

func TestValidateRejectsBadWhitelist(t *testing.T) {
	cfg := Config{
		LogLevel:       "info",
		JWTSecret:      "s",
		DBDriver:       "sqlite",
		CacheDir:       "cache",
		CacheSyncMode:  "inline",
		MaxUploadBytes: 1,
		PublicBaseURL:  "http://localhost:8000",
		UserWhitelist:  []string{"alice"},
	}
	require.ErrorContains(t, Validate(&cfg), "USER_WHITELIST")

	cfg.UserWhitelist = []string{"*", "3"}
	require.NoError(t, Validate(&cfg))

	cfg.CacheSyncMode = "kafka"
	require.ErrorContains(t, Validate(&cfg), "CacheSyncMode")
}
