// Package builder turns intents into unsigned chain payloads.
package builder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/perawallet/pera-wallet-sub002/internal/amount"
	klog "github.com/perawallet/pera-wallet-sub002/internal/log"
	"github.com/perawallet/pera-wallet-sub002/pkg/tx"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// AuthorizationLookup reports how an account's transactions are authorized.
type AuthorizationLookup interface {
	Authorization(addr string) (types.Authorization, bool)
}

// Builder constructs payloads for records.
type Builder struct {
	sdk      tx.SDK
	holdings amount.HoldingsLookup
	auth     AuthorizationLookup
	policy   *amount.Policy
	logger   zerolog.Logger
}

// New creates a builder reading balances from holdings. When holdings also
// implements AuthorizationLookup, rekeyed senders are detected from it
// regardless of the intent's Delegated flag.
func New(sdk tx.SDK, holdings amount.HoldingsLookup) *Builder {
	b := &Builder{
		sdk:      sdk,
		holdings: holdings,
		policy:   amount.NewPolicy(holdings),
		logger:   klog.Builder,
	}
	if a, ok := holdings.(AuthorizationLookup); ok {
		b.auth = a
	}
	return b
}

// delegate returns the account addr is rekeyed to, or "".
func (b *Builder) delegate(addr string) string {
	if b.auth == nil {
		return ""
	}
	a, ok := b.auth.Authorization(addr)
	if !ok {
		return ""
	}
	if d, ok := a.(types.DelegatedTo); ok {
		return d.Delegate
	}
	return ""
}

// WithLogger replaces the builder's logger.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// Build constructs rec's payload with params. A fee measured by a hardware
// device on an earlier attempt takes precedence over the estimate. The
// returned record carries the payload, fee and amount; rec itself is not
// modified.
func (b *Builder) Build(ctx context.Context, rec types.Record, params types.Params) (types.Record, error) {
	if err := ctx.Err(); err != nil {
		return rec, err
	}
	out := rec
	out.Payload = nil
	out.Signed = nil
	out.Skipped = false
	out.Amount = nil

	var err error
	switch in := rec.Intent.(type) {
	case types.Send:
		out, err = b.buildSend(out, in, params)
	case types.AddAsset:
		f := tx.NewBuilder(in.Sender).Asset(in.Asset.ID).Note(in.Note).Build()
		out, err = b.finish(out, params, f, true)
	case types.RemoveAsset:
		out, err = b.buildRemove(out, in, params)
	case types.SendAndRemoveAsset:
		out, err = b.buildSendAndRemove(out, in, params)
	case types.Rekey:
		f := tx.NewBuilder(in.Sender).RekeyTo(in.Target).Note(in.Note).Build()
		out, err = b.finish(out, params, f, true)
	case types.RekeyToStandardAccount:
		f := tx.NewBuilder(in.Sender).RekeyTo(in.Target).Note(in.Note).Build()
		out, err = b.finish(out, params, f, true)
	default:
		err = fmt.Errorf("%w: %T", txerr.ErrInvalidIntent, rec.Intent)
	}
	if err != nil {
		b.logger.Debug().Err(err).Int("index", rec.Index).Msg("Build failed")
		return rec, err
	}

	if out.Skipped {
		b.logger.Debug().Int("index", rec.Index).Msg("Nothing to build")
	} else {
		b.logger.Debug().
			Int("index", out.Index).
			Str("kind", out.Intent.Kind().String()).
			Uint64("fee", out.ProjectedFee).
			Int("size", len(out.Payload)).
			Msg("Built payload")
	}
	return out, nil
}

func (b *Builder) buildSend(rec types.Record, in types.Send, params types.Params) (types.Record, error) {
	h, ok := b.holdings.Holdings(in.Sender)
	if !ok {
		return rec, fmt.Errorf("%w: %s", txerr.ErrUnknownAccount, in.Sender)
	}

	in.IsMax = in.IsMax || b.policy.IsSendMaxAmount(in.Amount, in.Sender, in.Asset)
	if amount.IsCloseToSelf(in) {
		return rec, txerr.ErrCloseToSelf
	}
	native := in.Asset.Native
	in.Delegated = in.Delegated || b.delegate(in.Sender) != ""
	if in.IsMax && !native {
		held, ok := h.AssetBalance(in.Asset.ID)
		if !ok {
			return rec, fmt.Errorf("%w: %d", txerr.ErrAssetNotHeld, in.Asset.ID)
		}
		in.Amount = held
	}

	bld := tx.NewBuilder(in.Sender).Asset(in.Asset.ID).Note(in.Note)
	// Size the fee with the largest amount the transaction can carry.
	sizing := in.Amount
	if in.IsMax && native {
		sizing = h.Balance
		if !in.Delegated {
			bld.CloseTo(in.Target)
		}
	}
	upper, ok := amount.Uint64(sizing)
	if !ok && sizing.Sign() > 0 {
		return rec, txerr.ErrAmountTooLarge
	}
	fee, err := b.fee(rec, params, bld.Pay(in.Target, upper).Build())
	if err != nil {
		return rec, err
	}

	reserve := in.Reserve
	if reserve == nil {
		reserve = h.MinBalance
	}
	amt, err := amount.SendableAmount(amount.SendInput{
		Requested: in.Amount,
		Balance:   h.Balance,
		IsMax:     in.IsMax,
		Delegated: in.Delegated,
		Reserve:   reserve,
		Fee:       fee,
		Native:    native,
	})
	if err != nil {
		return rec, err
	}

	if !native {
		held, ok := h.AssetBalance(in.Asset.ID)
		if !ok {
			return rec, fmt.Errorf("%w: %d", txerr.ErrAssetNotHeld, in.Asset.ID)
		}
		if amt.Cmp(held) > 0 {
			return rec, &txerr.NegativeAmountError{Cause: txerr.CauseUnderflow}
		}
	}
	if amount.ViolatesMinimumBalance(in, amt, h.Balance, fee, reserve) {
		return rec, fmt.Errorf("%w: %s", txerr.ErrMinBalance, in.Sender)
	}

	v, ok := amount.Uint64(amt)
	if !ok {
		return rec, txerr.ErrAmountTooLarge
	}
	rec.Amount = amt
	return b.encode(rec, params, bld.Pay(in.Target, v).Fee(fee).Build(), fee)
}

func (b *Builder) buildRemove(rec types.Record, in types.RemoveAsset, params types.Params) (types.Record, error) {
	h, ok := b.holdings.Holdings(in.Sender)
	if ok && !h.OptedIn(in.Asset.ID) {
		rec.Skipped = true
		return rec, nil
	}
	if in.Target == "" {
		return rec, fmt.Errorf("%w: asset removal needs a close-to address", txerr.ErrInvalidIntent)
	}
	f := tx.NewBuilder(in.Sender).
		Asset(in.Asset.ID).
		Pay(in.Target, 0).
		CloseTo(in.Target).
		Note(in.Note).
		Build()
	return b.finish(rec, params, f, ok)
}

func (b *Builder) buildSendAndRemove(rec types.Record, in types.SendAndRemoveAsset, params types.Params) (types.Record, error) {
	h, ok := b.holdings.Holdings(in.Sender)
	if !ok {
		return rec, fmt.Errorf("%w: %s", txerr.ErrUnknownAccount, in.Sender)
	}
	held, ok := h.AssetBalance(in.Asset.ID)
	if !ok || in.Asset.Native {
		return rec, fmt.Errorf("%w: %d", txerr.ErrAssetNotHeld, in.Asset.ID)
	}
	amt := in.Amount
	if amt == nil {
		amt = held
	}
	if amt.Sign() < 0 || amt.Cmp(held) > 0 {
		return rec, &txerr.NegativeAmountError{Cause: txerr.CauseUnderflow}
	}
	v, ok := amount.Uint64(amt)
	if !ok {
		return rec, txerr.ErrAmountTooLarge
	}
	rec.Amount = new(big.Int).Set(amt)

	f := tx.NewBuilder(in.Sender).
		Asset(in.Asset.ID).
		Pay(in.Target, v).
		CloseTo(in.Target).
		Note(in.Note).
		Build()
	return b.finish(rec, params, f, true)
}

// finish prices f, optionally checks the sender's reserve, and encodes.
func (b *Builder) finish(rec types.Record, params types.Params, f tx.Fields, checkReserve bool) (types.Record, error) {
	fee, err := b.fee(rec, params, f)
	if err != nil {
		return rec, err
	}
	if checkReserve {
		if h, ok := b.holdings.Holdings(f.Sender); ok {
			if amount.ViolatesMinimumBalance(rec.Intent, nil, h.Balance, fee, h.MinBalance) {
				return rec, fmt.Errorf("%w: %s", txerr.ErrMinBalance, f.Sender)
			}
		}
	}
	f.Fee = fee
	return b.encode(rec, params, f, fee)
}

func (b *Builder) fee(rec types.Record, params types.Params, f tx.Fields) (uint64, error) {
	if rec.MeasuredFee > 0 {
		return rec.MeasuredFee, nil
	}
	if f.AuthAddr == "" {
		f.AuthAddr = b.delegate(f.Sender)
	}
	fee, err := b.sdk.EstimateFee(rec.Intent.Kind(), params, f)
	if err != nil {
		return 0, fmt.Errorf("estimate fee: %w", err)
	}
	return fee, nil
}

func (b *Builder) encode(rec types.Record, params types.Params, f tx.Fields, fee uint64) (types.Record, error) {
	payload, err := b.sdk.BuildPayload(rec.Intent.Kind(), params, f)
	if err != nil {
		return rec, err
	}
	rec.ProjectedFee = fee
	rec.Payload = payload
	return rec, nil
}
