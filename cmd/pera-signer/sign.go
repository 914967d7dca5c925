package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	algotypes "github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/perawallet/pera-wallet-sub002/config"
	"github.com/perawallet/pera-wallet-sub002/internal/amount"
	"github.com/perawallet/pera-wallet-sub002/internal/keystore"
	"github.com/perawallet/pera-wallet-sub002/internal/manager"
	"github.com/perawallet/pera-wallet-sub002/internal/signing"
	"github.com/perawallet/pera-wallet-sub002/pkg/tx"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// ── send ────────────────────────────────────────────────────────────────

func cmdSend(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	from := fs.String("from", "", "Sender address")
	to := fs.String("to", "", "Receiver address")
	amountStr := fs.String("amount", "", "Amount in display units (e.g. 1.5)")
	isMax := fs.Bool("max", false, "Send the whole balance")
	assetID := fs.Uint64("asset", 0, "Asset id (0 for Algo)")
	decimals := fs.Uint("decimals", 0, "Asset decimals")
	note := fs.String("note", "", "Transaction note")
	signOnly := fs.Bool("sign-only", false, "Print the signed group instead of submitting it")
	fs.Parse(args)

	if *from == "" || *to == "" || (*amountStr == "" && !*isMax) {
		fatal("Usage: pera-signer send --from <addr> --to <addr> (--amount <amt> | --max)")
	}
	intent, err := sendIntent(*from, *to, *amountStr, *isMax, asset(*assetID, *decimals), *note)
	if err != nil {
		fatal("%v", err)
	}
	signAndSubmit(ctx, cfg, []types.Intent{intent}, *signOnly)
}

// ── optin / optout ──────────────────────────────────────────────────────

func cmdOptIn(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("optin", flag.ExitOnError)
	from := fs.String("from", "", "Account address")
	assetID := fs.Uint64("asset", 0, "Asset id")
	signOnly := fs.Bool("sign-only", false, "Print the signed transaction instead of submitting it")
	fs.Parse(args)

	if *from == "" || *assetID == 0 {
		fatal("Usage: pera-signer optin --from <addr> --asset <id>")
	}
	mustAddress("from", *from)
	intent := types.AddAsset{Header: types.Header{Sender: *from, Asset: types.Asset{ID: *assetID}}}
	signAndSubmit(ctx, cfg, []types.Intent{intent}, *signOnly)
}

func cmdOptOut(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("optout", flag.ExitOnError)
	from := fs.String("from", "", "Account address")
	assetID := fs.Uint64("asset", 0, "Asset id")
	closeTo := fs.String("close-to", "", "Address receiving the remaining holding (usually the creator)")
	amountStr := fs.String("amount", "", "Send this amount to --close-to before closing")
	decimals := fs.Uint("decimals", 0, "Asset decimals")
	signOnly := fs.Bool("sign-only", false, "Print the signed transaction instead of submitting it")
	fs.Parse(args)

	if *from == "" || *assetID == 0 || *closeTo == "" {
		fatal("Usage: pera-signer optout --from <addr> --asset <id> --close-to <addr>")
	}
	mustAddress("from", *from)
	mustAddress("close-to", *closeTo)

	h := types.Header{Sender: *from, Target: *closeTo, Asset: asset(*assetID, *decimals)}
	var intent types.Intent = types.RemoveAsset{Header: h}
	if *amountStr != "" {
		amt, err := amount.Parse(*amountStr, h.Asset.Decimals)
		if err != nil {
			fatal("invalid amount: %v", err)
		}
		intent = types.SendAndRemoveAsset{Header: h, Amount: amt}
	}
	signAndSubmit(ctx, cfg, []types.Intent{intent}, *signOnly)
}

// ── rekey ───────────────────────────────────────────────────────────────

func cmdRekey(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("rekey", flag.ExitOnError)
	from := fs.String("from", "", "Account to rekey")
	to := fs.String("to", "", "New authorized address")
	standard := fs.Bool("standard", false, "The new authority is a standard account")
	signOnly := fs.Bool("sign-only", false, "Print the signed transaction instead of submitting it")
	fs.Parse(args)

	if *from == "" || *to == "" {
		fatal("Usage: pera-signer rekey --from <addr> --to <addr> [--standard]")
	}
	intent, err := rekeyIntent(*from, *to, *standard)
	if err != nil {
		fatal("%v", err)
	}
	signAndSubmit(ctx, cfg, []types.Intent{intent}, *signOnly)
}

// ── batch ───────────────────────────────────────────────────────────────

// batchEntry is one intent in a batch file.
type batchEntry struct {
	Kind     string `json:"kind"` // send, optin, optout, rekey
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Max      bool   `json:"max"`
	Asset    uint64 `json:"asset"`
	Decimals uint   `json:"decimals"`
	Note     string `json:"note"`
	Standard bool   `json:"standard"`
}

func cmdBatch(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	file := fs.String("file", "", "Path to a JSON array of intents")
	signOnly := fs.Bool("sign-only", false, "Print the signed group instead of submitting it")
	fs.Parse(args)

	if *file == "" {
		fatal("Usage: pera-signer batch --file <intents.json>")
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		fatal("read batch file: %v", err)
	}
	var entries []batchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		fatal("parse batch file: %v", err)
	}
	if len(entries) > tx.MaxGroupSize {
		fatal("batch has %d intents, max is %d", len(entries), tx.MaxGroupSize)
	}

	intents := make([]types.Intent, 0, len(entries))
	for i, e := range entries {
		in, err := e.intent()
		if err != nil {
			fatal("intent %d: %v", i, err)
		}
		intents = append(intents, in)
	}
	signAndSubmit(ctx, cfg, intents, *signOnly)
}

func (e batchEntry) intent() (types.Intent, error) {
	switch strings.ToLower(e.Kind) {
	case "send":
		return sendIntent(e.From, e.To, e.Amount, e.Max, asset(e.Asset, e.Decimals), e.Note)
	case "optin":
		if err := checkAddress("from", e.From); err != nil {
			return nil, err
		}
		return types.AddAsset{Header: types.Header{Sender: e.From, Asset: types.Asset{ID: e.Asset}}}, nil
	case "optout":
		if err := checkAddress("from", e.From); err != nil {
			return nil, err
		}
		if err := checkAddress("to", e.To); err != nil {
			return nil, err
		}
		h := types.Header{Sender: e.From, Target: e.To, Asset: asset(e.Asset, e.Decimals)}
		if e.Amount == "" {
			return types.RemoveAsset{Header: h}, nil
		}
		amt, err := amount.Parse(e.Amount, h.Asset.Decimals)
		if err != nil {
			return nil, err
		}
		return types.SendAndRemoveAsset{Header: h, Amount: amt}, nil
	case "rekey":
		return rekeyIntent(e.From, e.To, e.Standard)
	default:
		return nil, fmt.Errorf("unknown kind %q", e.Kind)
	}
}

// ── intent helpers ──────────────────────────────────────────────────────

func asset(id uint64, decimals uint) types.Asset {
	if id == 0 {
		return types.NativeAsset()
	}
	return types.Asset{ID: id, Decimals: uint32(decimals)}
}

func sendIntent(from, to, amountStr string, isMax bool, a types.Asset, note string) (types.Intent, error) {
	if err := checkAddress("from", from); err != nil {
		return nil, err
	}
	if err := checkAddress("to", to); err != nil {
		return nil, err
	}
	in := types.Send{
		Header: types.Header{Sender: from, Target: to, Asset: a},
		IsMax:  isMax,
	}
	if note != "" {
		in.Note = []byte(note)
	}
	if amountStr != "" {
		amt, err := amount.Parse(amountStr, a.Decimals)
		if err != nil {
			return nil, fmt.Errorf("invalid amount: %w", err)
		}
		in.Amount = amt
	} else {
		in.Amount = new(big.Int)
	}
	return in, nil
}

func rekeyIntent(from, to string, standard bool) (types.Intent, error) {
	if err := checkAddress("from", from); err != nil {
		return nil, err
	}
	if err := checkAddress("to", to); err != nil {
		return nil, err
	}
	h := types.Header{Sender: from, Target: to, Asset: types.NativeAsset()}
	if standard {
		return types.RekeyToStandardAccount{Header: h}, nil
	}
	return types.Rekey{Header: h}, nil
}

func checkAddress(field, addr string) error {
	if _, err := algotypes.DecodeAddress(addr); err != nil {
		return fmt.Errorf("invalid %s address %q: %w", field, addr, err)
	}
	return nil
}

func mustAddress(field, addr string) {
	if err := checkAddress(field, addr); err != nil {
		fatal("%v", err)
	}
}

// ── signing pipeline ────────────────────────────────────────────────────

func signAndSubmit(ctx context.Context, cfg *config.Config, intents []types.Intent, signOnly bool) {
	a := openApp(cfg)
	defer a.Close()

	if err := a.prepare(ctx, intents); err != nil {
		fatal("%s", txerr.UserMessage(err))
	}
	unlocked, err := a.unlockFor(intents)
	if err != nil {
		fatal("unlock keystore: %v", err)
	}
	if unlocked != nil {
		defer unlocked.Wipe()
	}

	policy, err := signing.ParseRequeuePolicy(cfg.Signing.FeeRetry)
	if err != nil {
		fatal("%v", err)
	}
	m := manager.New(manager.WithPolicy(policy), manager.WithSubmitter(a.client))
	caps := manager.Capabilities{Directory: a.store, Params: a.client, SDK: tx.NewAlgorand(), Bridge: a.bridge}

	outcomes, err := m.Submit(ctx, caps, intents)
	if err != nil {
		fatal("%v", err)
	}

	var result *manager.SignedOutcome
	for o := range outcomes {
		switch o.Status {
		case manager.StatusLoading:
			fmt.Fprintln(os.Stderr, "Building transactions...")
		case manager.StatusAwaitingHardware:
			fmt.Fprintf(os.Stderr, "Approve transaction %d on %s\n", o.Index+1, o.DeviceLabel)
		case manager.StatusSuccess:
			result = o.Result
		case manager.StatusError:
			if errors.Is(o.Err, context.Canceled) {
				fatal("cancelled")
			}
			fatal("%s", txerr.UserMessage(o.Err))
		}
	}
	if result == nil {
		fatal("signing ended without a result")
	}

	for _, i := range result.Skipped {
		fmt.Printf("Intent %d: nothing to do\n", i+1)
	}
	if len(result.Transactions) == 0 {
		return
	}
	for _, t := range result.Transactions {
		line := fmt.Sprintf("Intent %d: %s %s fee %s", t.Index+1, t.Kind, t.TxID, amount.Format(new(big.Int).SetUint64(t.Fee), types.NativeDecimals))
		if t.Amount != "" {
			line += " amount " + t.Amount
		}
		fmt.Println(line)
	}

	if signOnly {
		fmt.Println(base64.StdEncoding.EncodeToString(result.Payload()))
		return
	}
	txid, err := m.Broadcast(ctx, result)
	if err != nil {
		fatal("%s", txerr.UserMessage(err))
	}
	fmt.Printf("Submitted: %s\n", txid)
}

// prepare refreshes the cached holdings and rekey state of every sender,
// and of the wallet accounts they are rekeyed to.
func (a *app) prepare(ctx context.Context, intents []types.Intent) error {
	seen := make(map[string]bool)
	for _, in := range intents {
		sender := in.Common().Sender
		if seen[sender] {
			continue
		}
		seen[sender] = true
		if _, ok := a.store.Account(sender); !ok {
			return fmt.Errorf("%w: %s is not in the wallet", txerr.ErrMissingAuthorization, sender)
		}
		delegate, err := a.refresh(ctx, sender)
		if err != nil {
			return err
		}
		if _, ok := a.store.Account(delegate); ok && !seen[delegate] {
			seen[delegate] = true
			if _, err := a.refresh(ctx, delegate); err != nil {
				return err
			}
		}
	}
	return nil
}

// refresh stores the node's view of addr and returns its auth address.
func (a *app) refresh(ctx context.Context, addr string) (string, error) {
	info, err := a.client.AccountInformation(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("account %s: %w", addr, err)
	}
	if err := a.store.PutHoldings(addr, info.Holdings, info.AuthAddr); err != nil {
		return "", err
	}
	return info.AuthAddr, nil
}

// unlockFor asks for the keystore password when any signer of intents has
// a local key, and installs the decrypted keys in the directory.
func (a *app) unlockFor(intents []types.Intent) (*keystore.Unlocked, error) {
	entries, err := a.keys.List()
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(entries))
	for _, e := range entries {
		stored[e.Address] = true
	}

	var need []string
	added := make(map[string]bool)
	for _, in := range intents {
		for _, addr := range a.signers(in.Common().Sender) {
			if stored[addr] && !added[addr] {
				added[addr] = true
				need = append(need, addr)
			}
		}
	}
	if len(need) == 0 {
		return nil, nil
	}

	password, err := readPassword("Enter keystore password: ")
	if err != nil {
		return nil, err
	}
	unlocked, err := a.keys.Unlock(password, need...)
	if err != nil {
		return nil, err
	}
	a.store.SetKeys(unlocked)
	return unlocked, nil
}

// signers returns addr and the account it is rekeyed to, if any.
func (a *app) signers(addr string) []string {
	out := []string{addr}
	if acct, ok := a.store.Account(addr); ok && acct.AuthAddr != "" {
		out = append(out, acct.AuthAddr)
	}
	return out
}
