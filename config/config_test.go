package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err == nil {
		t.Fatal("first run must instruct the operator to fill in OperatorAddress")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config was not written: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "OperatorAddress = \"mkt1qqqsyqcyq5rqwzqfpg9scrgwpugpzysnzs23v9ccrydpk8qarc0jqxuzx4s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8561" {
		t.Fatalf("RPCAddress default missing: %q", cfg.RPCAddress)
	}
	if cfg.DataDir != "./marketdata" {
		t.Fatalf("DataDir default missing: %q", cfg.DataDir)
	}
	if cfg.RPCTokenEnv != "MARKET_RPC_TOKEN" {
		t.Fatalf("RPCTokenEnv default missing: %q", cfg.RPCTokenEnv)
	}
}

func TestLoadRejectsMissingOperator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("RPCAddress = \"127.0.0.1:9000\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing OperatorAddress")
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `RPCAddress = "0.0.0.0:9561"
DataDir = "/var/lib/marketd"
NetworkName = "market-test"
RPCTokenEnv = "CUSTOM_TOKEN"
OperatorAddress = "mkt1qqqsyqcyq5rqwzqfpg9scrgwpugpzysnzs23v9ccrydpk8qarc0jqxuzx4s"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9561" || cfg.NetworkName != "market-test" || cfg.RPCTokenEnv != "CUSTOM_TOKEN" {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}
