package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	defaultLogger *slog.Logger
	mu            sync.RWMutex
)

func init() {
	// JSON to stderr keeps stdout free for command output
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// SetLogger sets the global logger
func SetLogger(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// Configure installs a redacting logger writing format ("json" or "text")
// to w at the given level.
func Configure(w io.Writer, level slog.Level, format string) {
	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	if strings.EqualFold(format, "json") {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	defer mu.Unlock()
	defaultLogger = slog.New(NewRedactingHandler(inner))
}

// ParseLevel maps a config/flag level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger returns the default logger
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at warn level
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at error level
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// Common field helpers
func Account(a common.Address) slog.Attr {
	return slog.String("account", a.Hex())
}

func ContractAddr(a common.Address) slog.Attr {
	return slog.String("contract", a.Hex())
}

func TxHash(hash common.Hash) slog.Attr {
	return slog.String("tx_hash", hash.Hex())
}

func Method(name string) slog.Attr {
	return slog.String("method", name)
}

func PackageID(id uint64) slog.Attr {
	return slog.Uint64("package_id", id)
}

func StakeIndex(index uint64) slog.Attr {
	return slog.Uint64("stake_index", index)
}

func ChainID(id uint64) slog.Attr {
	return slog.Uint64("chain_id", id)
}

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
