package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Flags holds parsed global command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Node
	AlgodURL     string
	AlgodToken   string
	AlgodTimeout time.Duration

	// Hardware bridge
	Hardware  bool
	BridgeURL string

	// Signing
	FeeRetry string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Subcommand and its arguments
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetHardware bool
	SetLogJSON  bool
}

// ParseFlags parses the global flags that precede the subcommand. Parsing
// stops at the first positional argument, which is returned in Args.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("pera-signer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network: mainnet, testnet, betanet or localnet")
	testnet := fs.Bool("testnet", false, "Shorthand for --network=testnet")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Node
	fs.StringVar(&f.AlgodURL, "algod", "", "Algod endpoint URL")
	fs.StringVar(&f.AlgodToken, "algod-token", "", "Algod API token")
	fs.DurationVar(&f.AlgodTimeout, "algod-timeout", 0, "Algod request timeout")

	// Hardware
	fs.BoolVar(&f.Hardware, "hardware", false, "Enable the hardware signing bridge")
	fs.StringVar(&f.BridgeURL, "bridge", "", "Hardware bridge daemon URL")

	// Signing
	fs.StringVar(&f.FeeRetry, "fee-retry", "", "Fee mismatch rebuild policy: send or all")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			f.Help = true
			return f, nil
		}
		return nil, err
	}

	if *testnet {
		f.Network = string(Testnet)
	}
	f.SetHardware = isFlagSet(fs, "hardware")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Node
	if f.AlgodURL != "" {
		cfg.Algod.URL = f.AlgodURL
	}
	if f.AlgodToken != "" {
		cfg.Algod.Token = f.AlgodToken
	}
	if f.AlgodTimeout != 0 {
		cfg.Algod.Timeout = f.AlgodTimeout
	}

	// Hardware
	if f.SetHardware {
		cfg.Hardware.Enabled = f.Hardware
	}
	if f.BridgeURL != "" {
		cfg.Hardware.BridgeURL = f.BridgeURL
	}

	// Signing
	if f.FeeRetry != "" {
		cfg.Signing.FeeRetry = strings.ToLower(f.FeeRetry)
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// GlobalUsage describes the global flags.
const GlobalUsage = `Global flags:
  --network <net>       mainnet (default), testnet, betanet or localnet
  --testnet             Shorthand for --network=testnet
  --datadir <path>      Data directory (default: ~/.pera-signer)
  --config, -c <path>   Config file (default: <datadir>/pera-signer.conf)
  --algod <url>         Algod endpoint (default per network)
  --algod-token <tok>   Algod API token
  --algod-timeout <d>   Algod request timeout (default: 10s)
  --hardware            Enable the hardware signing bridge
  --bridge <url>        Hardware bridge daemon (default: http://127.0.0.1:9477)
  --fee-retry <policy>  Rebuild on device fee mismatch: send (default) or all
  --log-level <lvl>     debug, info, warn, error or off (default: info)
  --log-file <path>     Also write JSON logs to this file
  --log-json            Output logs as JSON
`

// Load loads configuration with the following precedence:
// 1. Default values for the selected network
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help || flags.Version {
		return nil, flags, nil
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if flags.Network != "" {
		network = NetworkType(strings.ToLower(flags.Network))
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	// A file that names another network swaps the network defaults before
	// the rest of the file applies.
	if v, ok := fileValues["network"]; ok && flags.Network == "" {
		if n := NetworkType(strings.ToLower(v)); n != cfg.Network {
			dataDir := cfg.DataDir
			cfg = Default(n)
			cfg.DataDir = dataDir
		}
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := os.Stat(cfg.NetworkDataDir()); err != nil {
		if err := EnsureDataDirs(cfg); err != nil {
			return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
		}
	}
	return cfg, flags, nil
}
