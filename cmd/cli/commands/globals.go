package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/mtecstake/autostake/internal/config"
	"github.com/mtecstake/autostake/internal/logging"
)

// Global CLI flags
var (
	// ConfigPath is the config file, default ~/.autostake/config.yaml
	ConfigPath string

	// LogLevel overrides log.level from the config
	LogLevel string

	// AssumeYes answers every wallet consent prompt with yes
	AssumeYes bool

	// MockMode runs against the in-memory contract simulation
	MockMode bool

	// OutputFormat controls output format: "" (auto), "json", "plain"
	OutputFormat string
)

// loadConfig loads the config file and applies the global flag overrides
func loadConfig() (*config.Config, error) {
	path := ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if MockMode {
		cfg.Client.Mock = true
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	if err := configureLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configureLogging sends logs to stderr so they never mix with command output
func configureLogging(cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Configure(os.Stderr, level, cfg.Log.Format)
	return nil
}

// jsonOutput reports whether --output json was requested
func jsonOutput() bool {
	return OutputFormat == "json"
}

// printJSON writes v as indented JSON to stdout
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// Version information (set at build time)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// GetVersion returns the version string
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	// Try to get version from build info
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

// GetCommit returns the git commit
func GetCommit() string {
	if Commit != "unknown" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				if len(setting.Value) > 8 {
					return setting.Value[:8]
				}
				return setting.Value
			}
		}
	}
	return "unknown"
}

// GetGoVersion returns the Go version
func GetGoVersion() string {
	return runtime.Version()
}
