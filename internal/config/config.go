package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mtecstake/autostake/pkg/types"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvRPCURL         = "AUTOSTAKE_RPC_URL"
	EnvMock           = "AUTOSTAKE_MOCK"
	EnvWalletPassword = "AUTOSTAKE_WALLET_PASSWORD"
)

// Config represents the complete client configuration
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Contracts ContractsConfig `yaml:"contracts"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// NetworkConfig describes the required chain and how to reach it
type NetworkConfig struct {
	types.NetworkDescriptor `yaml:",inline"`

	BlockConfirmations int     `yaml:"block_confirmations"` // Extra blocks to wait after mining
	MaxGasPriceGwei    int64   `yaml:"max_gas_price_gwei"`  // Cap applied to suggested gas price
	RPCRateLimit       float64 `yaml:"rpc_rate_limit"`      // Read calls per second (0 = unlimited)
	RPCBurst           int     `yaml:"rpc_burst"`
}

// ContractsConfig holds the deployed contract addresses and token scales
type ContractsConfig struct {
	AutoStake    string `yaml:"autostake"`
	USDT         string `yaml:"usdt"`
	MTEC         string `yaml:"mtec"`
	USDTDecimals uint8  `yaml:"usdt_decimals"`
	MTECDecimals uint8  `yaml:"mtec_decimals"`
}

// WalletConfig contains keystore wallet settings
type WalletConfig struct {
	KeystoreDir    string `yaml:"keystore_dir"`
	Account        string `yaml:"account,omitempty"` // Preferred account when the keystore holds several
	InitialChainID uint64 `yaml:"initial_chain_id"`  // Chain the wallet starts on before switching
	UseKeyring     bool   `yaml:"use_keyring"`       // Read the password from the OS keyring
}

// ClientConfig contains flow behaviour settings
type ClientConfig struct {
	Mock            bool          `yaml:"mock"`             // In-memory contract simulation
	ReadConcurrency int           `yaml:"read_concurrency"` // Parallel per-stake reads (1 = sequential)
	RefBaseURL      string        `yaml:"ref_base_url"`     // Base of generated referral links
	ConfirmTimeout  time.Duration `yaml:"confirm_timeout"`  // Max wait for one transaction
	PollInterval    time.Duration `yaml:"poll_interval"`    // Portfolio refresh when no websocket
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// MetricsConfig contains Prometheus exporter settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// BSCMainnet is the network the auto-stake contract is deployed on
func BSCMainnet() types.NetworkDescriptor {
	return types.NetworkDescriptor{
		ChainID:   56,
		ChainName: "BNB Smart Chain",
		RPCURLs:   []string{"https://bsc-dataseed.binance.org/"},
		NativeCurrency: types.NativeCurrency{
			Name:     "BNB",
			Symbol:   "BNB",
			Decimals: 18,
		},
		BlockExplorerURLs: []string{"https://bscscan.com"},
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".autostake")

	return &Config{
		Network: NetworkConfig{
			NetworkDescriptor:  BSCMainnet(),
			BlockConfirmations: 1,
			MaxGasPriceGwei:    20,
			RPCRateLimit:       20,
			RPCBurst:           10,
		},
		Contracts: ContractsConfig{
			AutoStake:    "0xaC222708698da5E9Fc75aeaaD75b29102C9bBA90",
			USDT:         "0x55d398326f99059fF775485246999027B3197955",
			MTEC:         "0x2D36AC3c4D4484aC60dcE5f1D4d2B69A826F52A4",
			USDTDecimals: 18,
			MTECDecimals: 18,
		},
		Wallet: WalletConfig{
			KeystoreDir:    filepath.Join(baseDir, "keystore"),
			InitialChainID: 1,
			UseKeyring:     true,
		},
		Client: ClientConfig{
			ReadConcurrency: 1,
			ConfirmTimeout:  3 * time.Minute,
			PollInterval:    30 * time.Second,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
	}
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the config to path
func (c *Config) Save(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if c.Network.ChainID == 0 {
		return fmt.Errorf("network.chain_id is required")
	}
	if c.Network.ChainName == "" {
		return fmt.Errorf("network.chain_name is required")
	}
	if c.Network.BlockConfirmations < 0 {
		return fmt.Errorf("block_confirmations must not be negative, got %d", c.Network.BlockConfirmations)
	}
	if c.Network.RPCRateLimit < 0 {
		return fmt.Errorf("rpc_rate_limit must not be negative")
	}

	if c.Contracts.USDTDecimals > 36 || c.Contracts.MTECDecimals > 36 {
		return fmt.Errorf("token decimals must be at most 36")
	}

	if c.Client.ReadConcurrency < 1 || c.Client.ReadConcurrency > 32 {
		return fmt.Errorf("read_concurrency must be between 1 and 32, got %d", c.Client.ReadConcurrency)
	}
	if c.Client.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm_timeout must be positive")
	}
	if c.Client.RefBaseURL != "" {
		u, err := url.Parse(c.Client.RefBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ref_base_url must be an absolute URL, got %q", c.Client.RefBaseURL)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	// Endpoints and addresses only matter against a real chain
	if !c.Client.Mock {
		if len(c.Network.RPCURLs) == 0 {
			return fmt.Errorf("network.rpc_urls must list at least one endpoint")
		}
		addrs := map[string]string{
			"contracts.autostake": c.Contracts.AutoStake,
			"contracts.usdt":      c.Contracts.USDT,
			"contracts.mtec":      c.Contracts.MTEC,
		}
		for name, addr := range addrs {
			if err := validateEthAddress(name, addr); err != nil {
				return err
			}
		}
		if c.Wallet.KeystoreDir == "" {
			return fmt.Errorf("wallet.keystore_dir is required")
		}
	}

	if c.Wallet.Account != "" {
		if err := validateEthAddress("wallet.account", c.Wallet.Account); err != nil {
			return err
		}
	}

	return nil
}

// validateEthAddress checks that an Ethereum address is 0x-prefixed, 40 hex chars, and non-zero.
func validateEthAddress(name, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required when client.mock is false", name)
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("%s must start with 0x, got %q", name, addr)
	}
	hexPart := addr[2:]
	if len(hexPart) != 40 {
		return fmt.Errorf("%s must be 42 characters (0x + 40 hex), got %d", name, len(addr))
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return fmt.Errorf("%s contains invalid hex characters: %w", name, err)
	}
	if strings.Trim(hexPart, "0") == "" {
		return fmt.Errorf("%s must not be the zero address", name)
	}
	return nil
}

// applyEnv lets the environment override a few settings without editing the file
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRPCURL); v != "" {
		c.Network.RPCURLs = mergeURLs(v, c.Network.RPCURLs)
	}
	if v := os.Getenv(EnvMock); v != "" {
		if mock, err := strconv.ParseBool(v); err == nil {
			c.Client.Mock = mock
		}
	}
}

// mergeURLs combines a primary URL with a list, deduplicating and preserving order.
func mergeURLs(primary string, extras []string) []string {
	seen := make(map[string]bool)
	var result []string

	if primary != "" {
		result = append(result, primary)
		seen[primary] = true
	}
	for _, u := range extras {
		if u != "" && !seen[u] {
			result = append(result, u)
			seen[u] = true
		}
	}
	return result
}

// expandPaths expands ~ in all path fields
func (c *Config) expandPaths() {
	c.Wallet.KeystoreDir = expandPath(c.Wallet.KeystoreDir)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".autostake", "config.yaml")
}

// EnsureDirectories creates the directories the client writes to
func (c *Config) EnsureDirectories() error {
	if c.Wallet.KeystoreDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Wallet.KeystoreDir, 0700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return nil
}

// Explorer returns the block explorer page for addr on the configured network
func (c *Config) Explorer(addr string) string {
	base := strings.TrimRight(c.Network.Explorer(), "/")
	if base == "" {
		return ""
	}
	return base + "/address/" + addr
}
