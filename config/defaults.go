package config

import "time"

const (
	defaultAlgodTimeout  = 10 * time.Second
	defaultBridgeURL     = "http://127.0.0.1:9477"
	defaultPollInterval  = 250 * time.Millisecond
	defaultBridgeTimeout = 5 * time.Second
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Algod: AlgodConfig{
			URL:     "https://mainnet-api.algonode.cloud",
			Timeout: defaultAlgodTimeout,
		},
		Hardware: HardwareConfig{
			Enabled:      false,
			BridgeURL:    defaultBridgeURL,
			PollInterval: defaultPollInterval,
			Timeout:      defaultBridgeTimeout,
		},
		Signing: SigningConfig{
			FeeRetry: "send",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Algod.URL = "https://testnet-api.algonode.cloud"
	return cfg
}

// DefaultBetanet returns the default configuration for betanet.
func DefaultBetanet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Betanet
	cfg.Algod.URL = "https://betanet-api.algonode.cloud"
	return cfg
}

// DefaultLocalnet returns the default configuration for a local sandbox node.
func DefaultLocalnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Localnet
	cfg.Algod.URL = "http://localhost:4001"
	cfg.Algod.Token = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	case Betanet:
		return DefaultBetanet()
	case Localnet:
		return DefaultLocalnet()
	default:
		return DefaultMainnet()
	}
}
