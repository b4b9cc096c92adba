package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Network.ChainID != 56 {
		t.Errorf("expected chain id 56 (BSC), got %d", cfg.Network.ChainID)
	}
	if cfg.Network.ChainIDHex() != "0x38" {
		t.Errorf("expected chain id hex 0x38, got %s", cfg.Network.ChainIDHex())
	}
	if cfg.Network.NativeCurrency.Symbol != "BNB" || cfg.Network.NativeCurrency.Decimals != 18 {
		t.Errorf("unexpected native currency: %+v", cfg.Network.NativeCurrency)
	}
	if cfg.Contracts.USDTDecimals != 18 || cfg.Contracts.MTECDecimals != 18 {
		t.Errorf("expected 18 decimals for both tokens, got %d/%d", cfg.Contracts.USDTDecimals, cfg.Contracts.MTECDecimals)
	}
	if cfg.Client.ReadConcurrency != 1 {
		t.Errorf("expected sequential reads by default, got %d", cfg.Client.ReadConcurrency)
	}
	if cfg.Wallet.InitialChainID != 1 {
		t.Errorf("expected wallet to start on chain 1, got %d", cfg.Wallet.InitialChainID)
	}
	if !strings.HasSuffix(cfg.Wallet.KeystoreDir, filepath.Join(".autostake", "keystore")) {
		t.Errorf("unexpected keystore dir %s", cfg.Wallet.KeystoreDir)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network.ChainID != 56 {
		t.Errorf("expected defaults, got chain %d", cfg.Network.ChainID)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Client.ReadConcurrency = 4
	cfg.Client.RefBaseURL = "https://stake.example/app"
	cfg.Client.ConfirmTimeout = 90 * time.Second
	cfg.Log.Level = "debug"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Client.ReadConcurrency != 4 {
		t.Errorf("read_concurrency not persisted: %d", loaded.Client.ReadConcurrency)
	}
	if loaded.Client.RefBaseURL != "https://stake.example/app" {
		t.Errorf("ref_base_url not persisted: %s", loaded.Client.RefBaseURL)
	}
	if loaded.Client.ConfirmTimeout != 90*time.Second {
		t.Errorf("confirm_timeout not persisted: %v", loaded.Client.ConfirmTimeout)
	}
	if loaded.Network.ChainName != "BNB Smart Chain" {
		t.Errorf("inline network descriptor not persisted: %q", loaded.Network.ChainName)
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("log level not persisted: %s", loaded.Log.Level)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "client:\n  mock: true\n  read_concurrency: 2\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Client.Mock {
		t.Error("expected mock mode from file")
	}
	if cfg.Client.ReadConcurrency != 2 {
		t.Errorf("expected read_concurrency 2, got %d", cfg.Client.ReadConcurrency)
	}
	if cfg.Contracts.AutoStake == "" {
		t.Error("unset fields should keep their defaults")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("network: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvRPCURL, "https://rpc.example")
	t.Setenv(EnvMock, "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network.RPCURLs[0] != "https://rpc.example" {
		t.Errorf("env RPC URL should be primary, got %v", cfg.Network.RPCURLs)
	}
	if len(cfg.Network.RPCURLs) != 2 {
		t.Errorf("default endpoint should be kept as fallback, got %v", cfg.Network.RPCURLs)
	}
	if !cfg.Client.Mock {
		t.Error("expected mock from env")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero chain", func(c *Config) { c.Network.ChainID = 0 }, "chain_id"},
		{"read concurrency zero", func(c *Config) { c.Client.ReadConcurrency = 0 }, "read_concurrency"},
		{"read concurrency huge", func(c *Config) { c.Client.ReadConcurrency = 100 }, "read_concurrency"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"relative ref url", func(c *Config) { c.Client.RefBaseURL = "/app" }, "ref_base_url"},
		{"decimals too large", func(c *Config) { c.Contracts.MTECDecimals = 40 }, "decimals"},
		{"no rpc", func(c *Config) { c.Network.RPCURLs = nil }, "rpc_urls"},
		{"zero contract", func(c *Config) { c.Contracts.AutoStake = "0x0000000000000000000000000000000000000000" }, "zero address"},
		{"short token", func(c *Config) { c.Contracts.USDT = "0x1234" }, "42 characters"},
		{"bad account", func(c *Config) { c.Wallet.Account = "wallet" }, "wallet.account"},
		{"non-positive timeout", func(c *Config) { c.Client.ConfirmTimeout = 0 }, "confirm_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_MockSkipsChainChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Client.Mock = true
	cfg.Network.RPCURLs = nil
	cfg.Contracts.AutoStake = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("mock config should not need endpoints or addresses: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := expandPath("~/keys"); got != filepath.Join(homeDir, "keys") {
		t.Errorf("expandPath(~/keys) = %s", got)
	}
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path should be unchanged, got %s", got)
	}
}

func TestExplorer(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.Explorer(cfg.Contracts.AutoStake)
	want := "https://bscscan.com/address/0xaC222708698da5E9Fc75aeaaD75b29102C9bBA90"
	if got != want {
		t.Errorf("Explorer() = %s, want %s", got, want)
	}

	cfg.Network.BlockExplorerURLs = nil
	if cfg.Explorer("0x1") != "" {
		t.Error("expected empty explorer link without explorer URL")
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wallet.KeystoreDir = filepath.Join(t.TempDir(), "ks")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if _, err := os.Stat(cfg.Wallet.KeystoreDir); err != nil {
		t.Errorf("keystore dir not created: %v", err)
	}
}
