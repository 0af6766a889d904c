package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
environment: development
server:
  port: 8080
clickhouse:
  host: localhost
  database: fincast
stream:
  symbols:
    - BINANCE:BTCUSDT
forecast:
  lookback: 60
  history_bars: 500
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Environment != "development" {
		t.Fatalf("environment %q", c.Environment)
	}
	if c.Server.Port != 8080 {
		t.Fatalf("port %d", c.Server.Port)
	}
	if c.Forecast.Lookback != 60 {
		t.Fatalf("lookback %d", c.Forecast.Lookback)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsBadLookback(t *testing.T) {
	bad := `
environment: development
clickhouse:
  host: localhost
stream:
  symbols: [BINANCE:BTCUSDT]
forecast:
  lookback: 1
  history_bars: 500
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected validation error for lookback 1")
	}
}

func TestValidateRejectsHistoryNotExceedingLookback(t *testing.T) {
	bad := `
environment: development
clickhouse:
  host: localhost
stream:
  symbols: [BINANCE:BTCUSDT]
forecast:
  lookback: 60
  history_bars: 60
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected validation error for history_bars == lookback")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SYMBOLS", "BINANCE:ETHUSDT,BINANCE:SOLUSDT")

	c, err := LoadWithEnv(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Redis.Addr != "redis:6379" {
		t.Fatalf("redis addr %q", c.Redis.Addr)
	}
	if len(c.Stream.Symbols) != 2 || c.Stream.Symbols[0] != "BINANCE:ETHUSDT" {
		t.Fatalf("symbols %v", c.Stream.Symbols)
	}
}
