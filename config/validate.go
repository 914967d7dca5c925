package config

import (
	"fmt"
	"net/url"
)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Betanet, Localnet:
	default:
		return fmt.Errorf("network must be one of %q, %q, %q or %q", Mainnet, Testnet, Betanet, Localnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is empty")
	}
	if err := validateURL(cfg.Algod.URL, "algod.url"); err != nil {
		return err
	}
	if cfg.Algod.Timeout < 0 {
		return fmt.Errorf("algod.timeout must not be negative")
	}
	if cfg.Hardware.Enabled {
		if err := validateURL(cfg.Hardware.BridgeURL, "hardware.bridge"); err != nil {
			return err
		}
		if cfg.Hardware.PollInterval <= 0 {
			return fmt.Errorf("hardware.poll must be positive")
		}
	}
	switch cfg.Signing.FeeRetry {
	case "send", "all", "":
	default:
		return fmt.Errorf("signing.feeretry must be send or all")
	}
	return nil
}

func validateURL(raw, field string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	return nil
}
