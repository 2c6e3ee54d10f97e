package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte(`
server:
  port: "9090"
  mode: debug
redis:
  addr: localhost:6379
quiz:
  duration: 15m
heartbeat:
  interval: 10s
auth:
  jwt_secret: from-file
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Auth.JWTSecret != "from-env" || cfg.Redis.DB != 3 {
		t.Fatalf("expected env overrides, got secret=%q db=%d", cfg.Auth.JWTSecret, cfg.Redis.DB)
	}
	if cfg.Log.Level != "debug" || cfg.Storage.Type != "local" {
		t.Fatalf("expected defaults derived from mode, got level=%q storage=%q", cfg.Log.Level, cfg.Storage.Type)
	}
	if got := Duration(cfg.Quiz.Duration, 0); got != 15*time.Minute {
		t.Fatalf("expected 15m quiz duration, got %s", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Mode != "release" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil || !strings.Contains(err.Error(), "REDIS_DB") {
		t.Fatalf("expected REDIS_DB parse error, got %v", err)
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Fatalf("empty: got %s", got)
	}
	if got := Duration("soon", time.Second); got != time.Second {
		t.Fatalf("malformed: got %s", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Fatalf("valid: got %s", got)
	}
}
