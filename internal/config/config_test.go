package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "LLM_PROVIDER", "MAX_NAN_RATIO", "MOCK_AUTH", "API_KEYS", "STORE_BACKEND", "REDIS_DB"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LLMProvider != "offline" || cfg.StoreBackend != "memory" || cfg.ConnectorProvider != "fixture" {
		t.Fatalf("unexpected providers: %+v", cfg)
	}
	if cfg.MaxNaNRatio != 0.2 || cfg.OutlierIQRMultiplier != 3.0 {
		t.Fatalf("quality defaults: %v %v", cfg.MaxNaNRatio, cfg.OutlierIQRMultiplier)
	}
	if !cfg.MockAuth || len(cfg.APIKeys) != 0 {
		t.Fatalf("auth defaults: mock=%v keys=%v", cfg.MockAuth, cfg.APIKeys)
	}
	if cfg.RequestTimeout() != 90*time.Second || cfg.FetchTimeout() != 10*time.Second {
		t.Fatalf("timeouts: %v %v", cfg.RequestTimeout(), cfg.FetchTimeout())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_NAN_RATIO", "0.05")
	t.Setenv("MAX_RENDER_ROWS", "not-a-number")
	t.Setenv("API_KEYS", " alpha, ,beta ")
	t.Setenv("MOCK_AUTH", "false")
	t.Setenv("RATE_LIMIT_FAIL_CLOSED", "yes")
	t.Setenv("REDIS_DB", "0")

	cfg := FromEnv()
	if cfg.MaxNaNRatio != 0.05 {
		t.Fatalf("MaxNaNRatio = %v", cfg.MaxNaNRatio)
	}
	if cfg.MaxRenderRows != 5000 {
		t.Fatalf("invalid int should fall back, got %d", cfg.MaxRenderRows)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[0] != "alpha" || cfg.APIKeys[1] != "beta" {
		t.Fatalf("APIKeys = %v", cfg.APIKeys)
	}
	if cfg.MockAuth || !cfg.RateLimitFailClosed {
		t.Fatalf("bools: mock=%v failClosed=%v", cfg.MockAuth, cfg.RateLimitFailClosed)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("RedisDB = %d", cfg.RedisDB)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_FORMAT=text\nHTTP_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("HTTP_ADDR", ":7000")
	os.Unsetenv("LOG_FORMAT")
	t.Cleanup(func() { os.Unsetenv("LOG_FORMAT") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("environment should win over .env, got %q", cfg.HTTPAddr)
	}
}

func TestLoadWithoutDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
}
