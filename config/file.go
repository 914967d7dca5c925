package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Node
	case "algod.url":
		cfg.Algod.URL = value
	case "algod.token":
		cfg.Algod.Token = value
	case "algod.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Algod.Timeout = d

	// Hardware bridge
	case "hardware.enabled", "hardware":
		cfg.Hardware.Enabled = parseBool(value)
	case "hardware.bridge":
		cfg.Hardware.BridgeURL = value
	case "hardware.poll":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Hardware.PollInterval = d
	case "hardware.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Hardware.Timeout = d

	// Signing
	case "signing.feeretry":
		cfg.Signing.FeeRetry = strings.ToLower(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	def := Default(network)
	content := `# Pera Signer Configuration

# Network: mainnet, testnet, betanet or localnet
network = ` + string(network) + `

# Data directory
# datadir = ~/.pera-signer

# ============================================================================
# Algod node
# ============================================================================

algod.url = ` + def.Algod.URL + `
# algod.token =
algod.timeout = ` + def.Algod.Timeout.String() + `

# ============================================================================
# Hardware signing bridge
# ============================================================================

hardware.enabled = false
hardware.bridge = ` + def.Hardware.BridgeURL + `
hardware.poll = ` + def.Hardware.PollInterval.String() + `
hardware.timeout = ` + def.Hardware.Timeout.String() + `

# ============================================================================
# Signing
# ============================================================================

# Which transactions are rebuilt when a device reports a different fee:
# send (payments and asset transfers only) or all
signing.feeretry = send

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0600)
}
