package builder

import (
	"context"
	"math/big"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perawallet/pera-wallet-sub002/pkg/tx"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

type holdingsMap map[string]types.Holdings

func (m holdingsMap) Holdings(addr string) (types.Holdings, bool) {
	h, ok := m[addr]
	return h, ok
}

func testParams() types.Params {
	return types.Params{
		MinFee:      1_000,
		FirstRound:  1_000,
		LastRound:   2_000,
		GenesisID:   "testnet-v1.0",
		GenesisHash: make([]byte, 32),
	}
}

func newAddr(t *testing.T) string {
	t.Helper()
	return crypto.GenerateAccount().Address.String()
}

func send(from, to string, amt int64, isMax bool) types.Send {
	return types.Send{
		Header:  types.Header{Sender: from, Target: to, Asset: types.NativeAsset()},
		Amount:  big.NewInt(amt),
		IsMax:   isMax,
		Reserve: big.NewInt(100_000),
	}
}

func build(t *testing.T, b *Builder, in types.Intent) (types.Record, error) {
	t.Helper()
	return b.Build(context.Background(), types.Record{Intent: in}, testParams())
}

func TestBuild_SendFixedAmount(t *testing.T) {
	from, to := newAddr(t), newAddr(t)
	b := New(tx.NewAlgorand(), holdingsMap{from: {Balance: big.NewInt(1_101_000), MinBalance: big.NewInt(100_000)}})

	rec, err := build(t, b, send(from, to, 1_000_000, false))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), rec.ProjectedFee)
	assert.Equal(t, int64(1_000_000), rec.Amount.Int64())

	txn, err := tx.Decode(rec.Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000, txn.Amount)
	assert.EqualValues(t, 1_000, txn.Fee)
	assert.Equal(t, to, txn.Receiver.String())
}

func TestBuild_SendMax(t *testing.T) {
	from, to := newAddr(t), newAddr(t)
	dir := holdingsMap{from: {Balance: big.NewInt(500_000), MinBalance: big.NewInt(100_000)}}
	b := New(tx.NewAlgorand(), dir)

	rec, err := build(t, b, send(from, to, 0, true))
	require.NoError(t, err)
	assert.Equal(t, int64(499_000), rec.Amount.Int64())

	txn, err := tx.Decode(rec.Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 499_000, txn.Amount)
	assert.Equal(t, to, txn.CloseRemainderTo.String(), "non-delegated max send closes the account")

	delegated := send(from, to, 0, true)
	delegated.Delegated = true
	rec, err = build(t, b, delegated)
	require.NoError(t, err)
	assert.Equal(t, int64(399_000), rec.Amount.Int64())

	txn, err = tx.Decode(rec.Payload)
	require.NoError(t, err)
	assert.Equal(t, algotypes.Address{}, txn.CloseRemainderTo)
}

func TestBuild_RequestedBalanceIsMax(t *testing.T) {
	from, to := newAddr(t), newAddr(t)
	b := New(tx.NewAlgorand(), holdingsMap{from: {Balance: big.NewInt(500_000)}})

	rec, err := build(t, b, send(from, to, 500_000, false))
	require.NoError(t, err)
	assert.Equal(t, int64(499_000), rec.Amount.Int64())
}

func TestBuild_MeasuredFeeWins(t *testing.T) {
	from, to := newAddr(t), newAddr(t)
	b := New(tx.NewAlgorand(), holdingsMap{from: {Balance: big.NewInt(500_000)}})

	rec, err := b.Build(context.Background(), types.Record{Intent: send(from, to, 0, true), MeasuredFee: 1_200}, testParams())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_200), rec.ProjectedFee)
	assert.Equal(t, int64(498_800), rec.Amount.Int64())
}

func TestBuild_SendErrors(t *testing.T) {
	from, to := newAddr(t), newAddr(t)
	b := New(tx.NewAlgorand(), holdingsMap{
		from: {Balance: big.NewInt(1_100_999), MinBalance: big.NewInt(100_000), Assets: map[uint64]*big.Int{31566704: big.NewInt(50)}},
	})

	_, err := build(t, b, send(from, from, 0, true))
	assert.ErrorIs(t, err, txerr.ErrCloseToSelf)

	_, err = build(t, b, send(from, to, 1_000_000, false))
	assert.ErrorIs(t, err, txerr.ErrMinBalance)

	_, err = build(t, b, send(to, from, 1, false))
	assert.ErrorIs(t, err, txerr.ErrUnknownAccount)

	asset := send(from, to, 51, false)
	asset.Asset = types.Asset{ID: 31566704, Decimals: 6}
	_, err = build(t, b, asset)
	assert.ErrorIs(t, err, txerr.ErrNegativeAmount)

	asset.Asset.ID = 9
	_, err = build(t, b, asset)
	assert.ErrorIs(t, err, txerr.ErrAssetNotHeld)

	poor := New(tx.NewAlgorand(), holdingsMap{from: {Balance: big.NewInt(500)}})
	_, err = build(t, poor, send(from, to, 0, true))
	assert.ErrorIs(t, err, txerr.ErrNegativeAmount)
}

func TestBuild_AssetKinds(t *testing.T) {
	from, creator := newAddr(t), newAddr(t)
	const id = 31566704
	b := New(tx.NewAlgorand(), holdingsMap{
		from: {Balance: big.NewInt(1_000_000), MinBalance: big.NewInt(200_000), Assets: map[uint64]*big.Int{id: big.NewInt(75)}},
	})
	hdr := types.Header{Sender: from, Target: creator, Asset: types.Asset{ID: id, Decimals: 6}}

	rec, err := build(t, b, types.AddAsset{Header: hdr})
	require.NoError(t, err)
	txn, err := tx.Decode(rec.Payload)
	require.NoError(t, err)
	assert.EqualValues(t, id, txn.XferAsset)
	assert.Equal(t, from, txn.AssetReceiver.String())

	rec, err = build(t, b, types.RemoveAsset{Header: hdr})
	require.NoError(t, err)
	txn, err = tx.Decode(rec.Payload)
	require.NoError(t, err)
	assert.Equal(t, creator, txn.AssetCloseTo.String())

	rec, err = build(t, b, types.SendAndRemoveAsset{Header: hdr})
	require.NoError(t, err)
	assert.Equal(t, int64(75), rec.Amount.Int64())
	txn, err = tx.Decode(rec.Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 75, txn.AssetAmount)
	assert.Equal(t, creator, txn.AssetCloseTo.String())
}

func TestBuild_RemoveAssetAlreadyClosed(t *testing.T) {
	from, creator := newAddr(t), newAddr(t)
	b := New(tx.NewAlgorand(), holdingsMap{from: {Balance: big.NewInt(1_000_000)}})

	rec, err := build(t, b, types.RemoveAsset{Header: types.Header{Sender: from, Target: creator, Asset: types.Asset{ID: 5}}})
	require.NoError(t, err)
	assert.True(t, rec.Skipped)
	assert.Empty(t, rec.Payload)
	assert.True(t, rec.Built())
}

func TestBuild_AddAssetBelowReserve(t *testing.T) {
	from := newAddr(t)
	b := New(tx.NewAlgorand(), holdingsMap{from: {Balance: big.NewInt(150_000), MinBalance: big.NewInt(100_000)}})

	_, err := build(t, b, types.AddAsset{Header: types.Header{Sender: from, Asset: types.Asset{ID: 5}}})
	assert.ErrorIs(t, err, txerr.ErrMinBalance)
}

func TestBuild_Rekey(t *testing.T) {
	from, to := newAddr(t), newAddr(t)
	b := New(tx.NewAlgorand(), holdingsMap{from: {Balance: big.NewInt(1_000_000), MinBalance: big.NewInt(100_000)}})

	for _, in := range []types.Intent{
		types.Rekey{Header: types.Header{Sender: from, Target: to}},
		types.RekeyToStandardAccount{Header: types.Header{Sender: from, Target: to}},
	} {
		rec, err := build(t, b, in)
		require.NoError(t, err, in.Kind().String())
		txn, err := tx.Decode(rec.Payload)
		require.NoError(t, err)
		assert.Equal(t, to, txn.RekeyTo.String())
		assert.Equal(t, from, txn.Receiver.String())
	}
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := New(tx.NewAlgorand(), holdingsMap{})
	_, err := b.Build(ctx, types.Record{Intent: types.Rekey{}}, testParams())
	assert.ErrorIs(t, err, context.Canceled)
}

// directoryStub serves holdings and authorizations like the account directory.
type directoryStub struct {
	holdingsMap
	auth map[string]types.Authorization
}

func (d directoryStub) Authorization(addr string) (types.Authorization, bool) {
	a, ok := d.auth[addr]
	return a, ok
}

func TestBuild_SendMaxRekeyedSenderKeepsReserve(t *testing.T) {
	from, to, delegate := newAddr(t), newAddr(t), newAddr(t)
	dir := directoryStub{
		holdingsMap: holdingsMap{from: {Balance: big.NewInt(500_000), MinBalance: big.NewInt(100_000)}},
		auth: map[string]types.Authorization{
			from: types.DelegatedTo{Delegate: delegate, Authorization: types.LocalKey{Secret: make([]byte, 64)}},
		},
	}
	b := New(tx.NewAlgorand(), dir)

	// Delegated left unset, as a caller without directory access builds it.
	in := types.Send{
		Header: types.Header{Sender: from, Target: to, Asset: types.NativeAsset()},
		Amount: new(big.Int),
		IsMax:  true,
	}
	rec, err := build(t, b, in)
	require.NoError(t, err)
	assert.Equal(t, int64(399_000), rec.Amount.Int64())

	txn, err := tx.Decode(rec.Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 399_000, txn.Amount)
	assert.Equal(t, algotypes.Address{}, txn.CloseRemainderTo)
}

func TestBuild_SendMaxAsset(t *testing.T) {
	from, to := newAddr(t), newAddr(t)
	const id = 31566704
	b := New(tx.NewAlgorand(), holdingsMap{
		from: {Balance: big.NewInt(1_000_000), MinBalance: big.NewInt(200_000), Assets: map[uint64]*big.Int{id: big.NewInt(5_000_000)}},
	})
	in := types.Send{
		Header: types.Header{Sender: from, Target: to, Asset: types.Asset{ID: id, Decimals: 6}},
		Amount: new(big.Int),
		IsMax:  true,
	}

	rec, err := build(t, b, in)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), rec.Amount.Int64())
	txn, err := tx.Decode(rec.Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 5_000_000, txn.AssetAmount)
	assert.EqualValues(t, id, txn.XferAsset)

	in.Asset.ID = 99
	_, err = build(t, b, in)
	assert.ErrorIs(t, err, txerr.ErrAssetNotHeld)
}

func TestBuild_RekeyedFeeCountsAuthAddress(t *testing.T) {
	from, to, delegate := newAddr(t), newAddr(t), newAddr(t)
	balances := holdingsMap{from: {Balance: big.NewInt(10_000_000), MinBalance: big.NewInt(100_000)}}
	params := testParams()
	params.FeePerByte = 10

	plain, err := New(tx.NewAlgorand(), balances).Build(context.Background(), types.Record{Intent: send(from, to, 1_000_000, false)}, params)
	require.NoError(t, err)

	dir := directoryStub{
		holdingsMap: balances,
		auth:        map[string]types.Authorization{from: types.DelegatedTo{Delegate: delegate}},
	}
	rekeyed, err := New(tx.NewAlgorand(), dir).Build(context.Background(), types.Record{Intent: send(from, to, 1_000_000, false)}, params)
	require.NoError(t, err)
	assert.Greater(t, rekeyed.ProjectedFee, plain.ProjectedFee)
}
