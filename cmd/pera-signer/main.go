// pera-signer builds, signs and submits Algorand transactions for the
// accounts in a local wallet, with keys from an encrypted keystore or a
// hardware device behind a bridge daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/perawallet/pera-wallet-sub002/config"
	"github.com/perawallet/pera-wallet-sub002/internal/directory"
	"github.com/perawallet/pera-wallet-sub002/internal/hardware"
	"github.com/perawallet/pera-wallet-sub002/internal/keystore"
	klog "github.com/perawallet/pera-wallet-sub002/internal/log"
	"github.com/perawallet/pera-wallet-sub002/internal/network"
	"github.com/perawallet/pera-wallet-sub002/internal/rpcclient"
	"github.com/perawallet/pera-wallet-sub002/internal/storage"
)

const version = "0.1.0"

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		usage()
		os.Exit(1)
	}
	if flags.Version {
		fmt.Printf("pera-signer version %s\n", version)
		return
	}
	if flags.Help || len(flags.Args) == 0 {
		usage()
		if flags.Help {
			return
		}
		os.Exit(1)
	}

	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]

	switch cmd {
	case "send":
		cmdSend(ctx, cfg, cmdArgs)
	case "optin":
		cmdOptIn(ctx, cfg, cmdArgs)
	case "optout":
		cmdOptOut(ctx, cfg, cmdArgs)
	case "rekey":
		cmdRekey(ctx, cfg, cmdArgs)
	case "batch":
		cmdBatch(ctx, cfg, cmdArgs)
	case "account":
		cmdAccount(ctx, cfg, cmdArgs)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: pera-signer [global flags] <command> [flags]

%s
Commands:
  send --from <addr> --to <addr> (--amount <amt> | --max)
       [--asset <id> --decimals <n>] [--note <text>] [--sign-only]
                                  Send Algo or an asset
  optin --from <addr> --asset <id>
                                  Opt an account into an asset
  optout --from <addr> --asset <id> --close-to <creator>
       [--amount <amt> --decimals <n>]
                                  Opt out of an asset, optionally sending
                                  part of the holding first
  rekey --from <addr> --to <addr> [--standard]
                                  Delegate signing to another account
  batch --file <intents.json> [--sign-only]
                                  Sign several intents as one atomic group

  account add --name <n>          Create a new standard account
  account add --name <n> --ledger --address <addr> --device <mac> [--label <l>]
                                  Register a hardware account
  account add --name <n> --watch --address <addr>
                                  Register a watch-only account
  account import --name <n>       Import an account from its 25-word mnemonic
  account list [--refresh]        List accounts and cached balances
  account remove --address <addr> Forget an account (keys stay in the keystore)
`, config.GlobalUsage)
}

// app holds the collaborators a command works with.
type app struct {
	cfg    *config.Config
	db     storage.DB
	store  *directory.Store
	keys   *keystore.Keystore
	client *network.Client
	bridge hardware.Bridge
}

func openApp(cfg *config.Config) *app {
	db, err := storage.NewBadger(cfg.DirectoryDir())
	if err != nil {
		fatal("open directory: %v", err)
	}
	store, err := directory.Open(db, directory.StaticKeys{})
	if err != nil {
		db.Close()
		fatal("load directory: %v", err)
	}
	ks, err := keystore.New(cfg.KeystoreDir(), keystore.DefaultParams())
	if err != nil {
		db.Close()
		fatal("open keystore: %v", err)
	}

	opts := []network.Option{network.WithTimeout(cfg.Algod.Timeout)}
	if p, ok := config.NetworkProfile(cfg.Network); ok {
		hash, err := p.HashBytes()
		if err != nil {
			db.Close()
			fatal("network profile: %v", err)
		}
		opts = append(opts, network.WithGenesis(network.Genesis{ID: p.GenesisID, Hash: hash}))
	}
	client, err := network.New(cfg.Algod.URL, cfg.Algod.Token, opts...)
	if err != nil {
		db.Close()
		fatal("algod: %v", err)
	}

	a := &app{cfg: cfg, db: db, store: store, keys: ks, client: client}
	if cfg.Hardware.Enabled {
		rc := rpcclient.NewWithTimeout(cfg.Hardware.BridgeURL, cfg.Hardware.Timeout)
		a.bridge = hardware.NewRPCBridge(rc, cfg.Hardware.PollInterval)
	}
	return a
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		klog.Storage.Warn().Err(err).Msg("Close directory")
	}
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
