package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/perawallet/pera-wallet-sub002/config"
	"github.com/perawallet/pera-wallet-sub002/internal/amount"
	"github.com/perawallet/pera-wallet-sub002/internal/directory"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

func cmdAccount(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal("Usage: pera-signer account <add|import|list|remove> [flags]")
	}
	switch args[0] {
	case "add":
		cmdAccountAdd(cfg, args[1:])
	case "import":
		cmdAccountImport(cfg, args[1:])
	case "list":
		cmdAccountList(ctx, cfg, args[1:])
	case "remove":
		cmdAccountRemove(cfg, args[1:])
	default:
		fatal("unknown account command: %s", args[0])
	}
}

func cmdAccountAdd(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("account add", flag.ExitOnError)
	name := fs.String("name", "", "Account name")
	ledger := fs.Bool("ledger", false, "Register a hardware account")
	watch := fs.Bool("watch", false, "Register a watch-only account")
	address := fs.String("address", "", "Account address (ledger and watch accounts)")
	device := fs.String("device", "", "Bluetooth address of the hardware device")
	label := fs.String("label", "", "Device name shown while waiting for approval")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: pera-signer account add --name <n> [--ledger|--watch --address <addr>]")
	}
	if *ledger && *watch {
		fatal("--ledger and --watch are mutually exclusive")
	}

	a := openApp(cfg)
	defer a.Close()

	if *ledger || *watch {
		mustAddress("address", *address)
		acct := directory.Account{Address: *address, Name: *name, Kind: directory.KindWatch}
		if *ledger {
			if *device == "" {
				fatal("--device is required for ledger accounts")
			}
			acct.Kind = directory.KindLedger
			acct.Device = *device
			acct.DeviceLabel = *label
			if acct.DeviceLabel == "" {
				acct.DeviceLabel = *name
			}
		}
		if err := a.store.PutAccount(acct); err != nil {
			fatal("add account: %v", err)
		}
		fmt.Printf("Added %s account %s (%s)\n", acct.Kind, acct.Address, acct.Name)
		return
	}

	password := newPassword()
	addr, phrase, err := a.keys.Generate(*name, password)
	if err != nil {
		fatal("generate account: %v", err)
	}
	if err := a.store.PutAccount(directory.Account{Address: addr, Name: *name, Kind: directory.KindStandard}); err != nil {
		fatal("add account: %v", err)
	}

	fmt.Printf("Address: %s\n\n", addr)
	fmt.Println("Write down your recovery phrase and keep it safe.")
	fmt.Println("It is the ONLY way to recover this account:")
	fmt.Println()
	fmt.Printf("  %s\n", phrase)
}

func cmdAccountImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("account import", flag.ExitOnError)
	name := fs.String("name", "", "Account name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: pera-signer account import --name <n>")
	}

	fmt.Fprint(os.Stderr, "Enter 25-word mnemonic: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fatal("read mnemonic: %v", err)
	}
	phrase := strings.TrimSpace(line)

	a := openApp(cfg)
	defer a.Close()

	password := newPassword()
	addr, err := a.keys.ImportMnemonic(*name, phrase, password)
	if err != nil {
		fatal("import: %v", err)
	}
	if err := a.store.PutAccount(directory.Account{Address: addr, Name: *name, Kind: directory.KindStandard}); err != nil {
		fatal("add account: %v", err)
	}
	fmt.Printf("Imported %s (%s)\n", addr, *name)
}

func cmdAccountList(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("account list", flag.ExitOnError)
	refresh := fs.Bool("refresh", false, "Fetch balances from the node first")
	fs.Parse(args)

	a := openApp(cfg)
	defer a.Close()

	accounts := a.store.Accounts()
	if len(accounts) == 0 {
		fmt.Println("No accounts found.")
		return
	}

	if *refresh {
		for _, acct := range accounts {
			if _, err := a.refresh(ctx, acct.Address); err != nil {
				fatal("%s", txerr.UserMessage(err))
			}
		}
		accounts = a.store.Accounts()
	}

	for _, acct := range accounts {
		fmt.Printf("%s  %-8s  %s\n", acct.Address, acct.Kind, acct.Name)
		if acct.AuthAddr != "" {
			fmt.Printf("    rekeyed to %s\n", acct.AuthAddr)
		}
		if acct.Kind == directory.KindLedger {
			fmt.Printf("    device %s (%s)\n", acct.Device, acct.DeviceLabel)
		}
		h, ok := a.store.Holdings(acct.Address)
		if !ok {
			continue
		}
		fmt.Printf("    balance %s ALGO (min %s)\n",
			amount.Format(h.Balance, types.NativeDecimals),
			amount.Format(h.MinBalance, types.NativeDecimals))
		ids := make([]uint64, 0, len(h.Assets))
		for id := range h.Assets {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Printf("    asset %d: %s units\n", id, h.Assets[id].String())
		}
	}
}

func cmdAccountRemove(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("account remove", flag.ExitOnError)
	address := fs.String("address", "", "Account address")
	fs.Parse(args)

	if *address == "" {
		fatal("Usage: pera-signer account remove --address <addr>")
	}
	a := openApp(cfg)
	defer a.Close()

	if _, ok := a.store.Account(*address); !ok {
		fatal("account %s is not in the wallet", *address)
	}
	if err := a.store.RemoveAccount(*address); err != nil {
		fatal("remove account: %v", err)
	}
	fmt.Printf("Removed %s\n", *address)
}

// newPassword prompts for a new keystore password twice.
func newPassword() []byte {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if len(password) == 0 {
		fatal("password must not be empty")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	return password
}
