// Package config handles signer configuration.
//
// Settings come from three layers, later layers winning:
//   - Network defaults (see Default)
//   - The key = value config file in the data directory
//   - Command-line flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies the Algorand network the signer talks to.
type NetworkType string

const (
	Mainnet  NetworkType = "mainnet"
	Testnet  NetworkType = "testnet"
	Betanet  NetworkType = "betanet"
	Localnet NetworkType = "localnet"
)

// Config holds the signer's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Node access
	Algod AlgodConfig

	// Hardware signing bridge
	Hardware HardwareConfig

	// Queue behaviour
	Signing SigningConfig

	// Logging
	Log LogConfig
}

// AlgodConfig holds the algod endpoint settings.
type AlgodConfig struct {
	URL     string        `conf:"algod.url"`
	Token   string        `conf:"algod.token"`
	Timeout time.Duration `conf:"algod.timeout"`
}

// HardwareConfig holds the hardware bridge daemon settings.
type HardwareConfig struct {
	Enabled      bool          `conf:"hardware.enabled"`
	BridgeURL    string        `conf:"hardware.bridge"`
	PollInterval time.Duration `conf:"hardware.poll"`
	Timeout      time.Duration `conf:"hardware.timeout"` // Per-request RPC timeout
}

// SigningConfig holds signing queue settings.
type SigningConfig struct {
	FeeRetry string `conf:"signing.feeretry"` // send or all
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.pera-signer
//	macOS:   ~/Library/Application Support/PeraSigner
//	Windows: %APPDATA%\PeraSigner
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pera-signer"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "PeraSigner")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "PeraSigner")
		}
		return filepath.Join(home, "AppData", "Roaming", "PeraSigner")
	default:
		return filepath.Join(home, ".pera-signer")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DirectoryDir returns the account directory database path.
func (c *Config) DirectoryDir() string {
	return filepath.Join(c.NetworkDataDir(), "directory")
}

// KeystoreDir returns the encrypted key directory. Keys are shared across
// networks.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.DataDir, "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "pera-signer.conf")
}

// EnsureDataDirs creates the data directories and writes a default config
// file when none exists. It is safe to call repeatedly.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.NetworkDataDir(), cfg.KeystoreDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	if _, err := os.Stat(cfg.ConfigFile()); os.IsNotExist(err) {
		return WriteDefaultConfig(cfg.ConfigFile(), cfg.Network)
	}
	return nil
}
