package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\nserver:\n  port: 9001\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != 9001 {
		t.Errorf("port = %d, want 9001", c.Server.Port)
	}
	if c.Signal.Window != 180 || c.Signal.Interval != "4h" || c.Signal.Beta != 1 {
		t.Errorf("signal defaults not applied: %+v", c.Signal)
	}
	if c.Binance.Timeout != 10*time.Second {
		t.Errorf("binance timeout = %v", c.Binance.Timeout)
	}
	if c.Ledger.Backend != "csv" {
		t.Errorf("ledger backend = %q", c.Ledger.Backend)
	}
}

func TestLoadRejectsUnknownLedger(t *testing.T) {
	path := writeConfig(t, "ledger:\n  backend: postgres\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	env := map[string]string{
		"BINANCE_API_KEY": "k",
		"KAFKA_BROKERS":   "a:1,b:2",
		"SERVER_PORT":     "8123",
		"LEDGER_BACKEND":  "clickhouse",
	}
	if err := c.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if c.Binance.APIKey != "k" || c.Server.Port != 8123 || c.Ledger.Backend != "clickhouse" {
		t.Errorf("env overrides not applied: %+v", c)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "b:2" {
		t.Errorf("brokers = %v", c.Kafka.Brokers)
	}

	if err := c.applyEnv(func(k string) string {
		if k == "SERVER_PORT" {
			return "x"
		}
		return ""
	}); err == nil {
		t.Error("expected error for non-numeric SERVER_PORT")
	}
}
