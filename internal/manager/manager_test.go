package manager

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perawallet/pera-wallet-sub002/internal/directory"
	"github.com/perawallet/pera-wallet-sub002/internal/hardware"
	"github.com/perawallet/pera-wallet-sub002/internal/signing"
	"github.com/perawallet/pera-wallet-sub002/internal/storage"
	"github.com/perawallet/pera-wallet-sub002/pkg/tx"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// ── fixtures ────────────────────────────────────────────────────────────

type staticParams struct {
	err   error
	calls int
}

func (p *staticParams) FetchTransactionParams(ctx context.Context) (types.Params, error) {
	p.calls++
	if p.err != nil {
		return types.Params{}, p.err
	}
	return types.Params{
		MinFee:      1_000,
		FirstRound:  1_000,
		LastRound:   2_000,
		GenesisID:   "testnet-v1.0",
		GenesisHash: make([]byte, 32),
	}, nil
}

// countingSDK records local signatures made through the real SDK.
type countingSDK struct {
	*tx.Algorand
	mu    sync.Mutex
	signs int
}

func (s *countingSDK) SignWithLocalKey(payload, secret []byte) ([]byte, error) {
	s.mu.Lock()
	s.signs++
	s.mu.Unlock()
	return s.Algorand.SignWithLocalKey(payload, secret)
}

func (s *countingSDK) signCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signs
}

// scriptedBridge answers each Start with the next scripted event list.
// With no script left it stays silent until stopped.
type scriptedBridge struct {
	mu      sync.Mutex
	events  chan hardware.Event
	script  [][]hardware.Event
	starts  []hardware.Request
	started chan struct{}
	stopped int

	stopDelay time.Duration // Simulates a slow transport on Stop.
}

func newScriptedBridge(script ...[]hardware.Event) *scriptedBridge {
	return &scriptedBridge{
		events:  make(chan hardware.Event, 16),
		script:  script,
		started: make(chan struct{}, 16),
	}
}

func (b *scriptedBridge) Start(_ context.Context, req hardware.Request) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts = append(b.starts, req)
	b.started <- struct{}{}
	if len(b.script) == 0 {
		return nil
	}
	next := b.script[0]
	b.script = b.script[1:]
	for _, ev := range next {
		ev.OperationID = req.OperationID
		b.events <- ev
	}
	return nil
}

func (b *scriptedBridge) Events() <-chan hardware.Event { return b.events }

func (b *scriptedBridge) Stop() {
	time.Sleep(b.stopDelay)
	b.mu.Lock()
	b.stopped++
	b.mu.Unlock()
}

func (b *scriptedBridge) counts() (starts, stops int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.starts), b.stopped
}

type recordingSubmitter struct {
	got []byte
}

func (s *recordingSubmitter) SubmitSignedTransaction(_ context.Context, signed []byte) (string, error) {
	s.got = signed
	return "TXID", nil
}

type account struct {
	addr string
	key  []byte
}

func newAccount() account {
	a := crypto.GenerateAccount()
	return account{addr: a.Address.String(), key: a.PrivateKey}
}

type testEnv struct {
	t     *testing.T
	store *directory.Store
	keys  directory.StaticKeys
	sdk   *countingSDK
	p     *staticParams
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	keys := directory.StaticKeys{}
	store, err := directory.Open(storage.NewMemory(), keys)
	require.NoError(t, err)
	return &testEnv{t: t, store: store, keys: keys, sdk: &countingSDK{Algorand: tx.NewAlgorand()}, p: &staticParams{}}
}

func (e *testEnv) standard(balance int64) account {
	e.t.Helper()
	a := newAccount()
	e.keys[a.addr] = a.key
	require.NoError(e.t, e.store.PutAccount(directory.Account{Address: a.addr, Kind: directory.KindStandard}))
	e.fund(a.addr, balance, "")
	return a
}

func (e *testEnv) ledger(balance int64) account {
	e.t.Helper()
	a := newAccount()
	require.NoError(e.t, e.store.PutAccount(directory.Account{
		Address: a.addr, Kind: directory.KindLedger, Device: "AA:BB", DeviceLabel: "Nano X",
	}))
	e.fund(a.addr, balance, "")
	return a
}

func (e *testEnv) fund(addr string, balance int64, authAddr string) {
	e.t.Helper()
	require.NoError(e.t, e.store.PutHoldings(addr, types.Holdings{
		Balance:    big.NewInt(balance),
		MinBalance: big.NewInt(100_000),
		Assets:     map[uint64]*big.Int{},
	}, authAddr))
}

func (e *testEnv) caps(bridge hardware.Bridge) Capabilities {
	return Capabilities{Directory: e.store, Params: e.p, SDK: e.sdk, Bridge: bridge}
}

func sendIntent(from, to string, amt int64, isMax bool) types.Send {
	return types.Send{
		Header:  types.Header{Sender: from, Target: to, Asset: types.NativeAsset()},
		Amount:  big.NewInt(amt),
		IsMax:   isMax,
		Reserve: big.NewInt(100_000),
	}
}

// drain collects outcomes until the stream closes.
func drain(t *testing.T, ch <-chan Outcome) []Outcome {
	t.Helper()
	var out []Outcome
	timeout := time.After(5 * time.Second)
	for {
		select {
		case o, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, o)
		case <-timeout:
			t.Fatalf("outcome stream did not close, got %d outcomes", len(out))
		}
	}
}

func statuses(outs []Outcome) []Status {
	s := make([]Status, len(outs))
	for i, o := range outs {
		s[i] = o.Status
	}
	return s
}

func last(t *testing.T, outs []Outcome) Outcome {
	t.Helper()
	require.NotEmpty(t, outs)
	return outs[len(outs)-1]
}

// ── scenarios ───────────────────────────────────────────────────────────

func TestSubmit_SendFixedAmount(t *testing.T) {
	env := newEnv(t)
	from := env.standard(1_101_000)
	to := newAccount()

	m := New()
	ch, err := m.Submit(context.Background(), env.caps(nil), []types.Intent{sendIntent(from.addr, to.addr, 1_000_000, false)})
	require.NoError(t, err)

	outs := drain(t, ch)
	assert.Equal(t, []Status{StatusLoading, StatusSuccess}, statuses(outs))
	res := last(t, outs).Result
	require.NotNil(t, res)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "1.000000", res.Transactions[0].Amount)
	assert.Equal(t, uint64(1_000), res.Transactions[0].Fee)
	assert.Nil(t, res.GroupID)

	stx, err := tx.DecodeSigned(res.Transactions[0].Signed)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000, stx.Txn.Amount)
	assert.Equal(t, to.addr, stx.Txn.Receiver.String())

	id, err := tx.TxID(res.Transactions[0].Signed)
	require.NoError(t, err)
	assert.Equal(t, res.Transactions[0].TxID, id)
	assert.False(t, m.InFlight())
}

func TestSubmit_SendMax(t *testing.T) {
	env := newEnv(t)
	from := env.standard(500_000)
	to := newAccount()

	ch, err := New().Submit(context.Background(), env.caps(nil), []types.Intent{sendIntent(from.addr, to.addr, 0, true)})
	require.NoError(t, err)

	res := last(t, drain(t, ch)).Result
	require.NotNil(t, res)
	assert.Equal(t, "0.499000", res.Transactions[0].Amount)

	stx, err := tx.DecodeSigned(res.Transactions[0].Signed)
	require.NoError(t, err)
	assert.EqualValues(t, 499_000, stx.Txn.Amount)
	assert.Equal(t, to.addr, stx.Txn.CloseRemainderTo.String())
}

func TestSubmit_DelegatedSendMax(t *testing.T) {
	env := newEnv(t)
	delegate := env.standard(1_000_000)
	rekeyed := newAccount()
	require.NoError(t, env.store.PutAccount(directory.Account{Address: rekeyed.addr, Kind: directory.KindStandard}))
	env.fund(rekeyed.addr, 500_000, delegate.addr)
	to := newAccount()

	in := sendIntent(rekeyed.addr, to.addr, 0, true)
	in.Delegated = true
	ch, err := New().Submit(context.Background(), env.caps(nil), []types.Intent{in})
	require.NoError(t, err)

	outs := drain(t, ch)
	res := last(t, outs).Result
	require.NotNil(t, res, "outcome: %+v", last(t, outs))
	assert.Equal(t, "0.399000", res.Transactions[0].Amount)

	stx, err := tx.DecodeSigned(res.Transactions[0].Signed)
	require.NoError(t, err)
	assert.EqualValues(t, 399_000, stx.Txn.Amount)
	assert.Equal(t, delegate.addr, stx.AuthAddr.String())
}

func TestSubmit_RekeyedSendMaxWithoutDelegatedFlag(t *testing.T) {
	env := newEnv(t)
	delegate := env.standard(1_000_000)
	rekeyed := newAccount()
	require.NoError(t, env.store.PutAccount(directory.Account{Address: rekeyed.addr, Kind: directory.KindStandard}))
	env.fund(rekeyed.addr, 500_000, delegate.addr)
	to := newAccount()

	in := sendIntent(rekeyed.addr, to.addr, 0, true)
	in.Reserve = nil
	ch, err := New().Submit(context.Background(), env.caps(nil), []types.Intent{in})
	require.NoError(t, err)

	outs := drain(t, ch)
	res := last(t, outs).Result
	require.NotNil(t, res, "outcome: %+v", last(t, outs))
	assert.Equal(t, "0.399000", res.Transactions[0].Amount)

	stx, err := tx.DecodeSigned(res.Transactions[0].Signed)
	require.NoError(t, err)
	assert.EqualValues(t, 399_000, stx.Txn.Amount)
	assert.Equal(t, algotypes.Address{}, stx.Txn.CloseRemainderTo, "a rekeyed account is never closed")
	assert.Equal(t, delegate.addr, stx.AuthAddr.String())
}

func TestSubmit_AddAssetFeeMismatchRebuildsOnce(t *testing.T) {
	env := newEnv(t)
	dev := env.ledger(1_000_000)

	bridge := newScriptedBridge(
		[]hardware.Event{
			{Kind: hardware.EventWaitingForApproval, Label: "Nano X"},
			{Kind: hardware.EventSigned, Payload: []byte("first"), Fee: 1_200},
		},
		[]hardware.Event{
			{Kind: hardware.EventWaitingForApproval},
			{Kind: hardware.EventSigned, Payload: []byte("second"), Fee: 1_200},
		},
	)
	m := New(WithPolicy(signing.RequeueAllKinds))
	in := types.AddAsset{Header: types.Header{Sender: dev.addr, Asset: types.Asset{ID: 31566704, Decimals: 6}}}
	ch, err := m.Submit(context.Background(), env.caps(bridge), []types.Intent{in})
	require.NoError(t, err)

	outs := drain(t, ch)
	assert.Equal(t, []Status{StatusLoading, StatusAwaitingHardware, StatusAwaitingHardware, StatusSuccess}, statuses(outs))
	assert.Equal(t, "Nano X", outs[1].DeviceLabel)
	assert.Equal(t, "Nano X", outs[2].DeviceLabel)

	res := last(t, outs).Result
	require.NotNil(t, res)
	assert.Equal(t, uint64(1_200), res.Transactions[0].Fee)
	assert.Equal(t, []byte("second"), res.Transactions[0].Signed)

	starts, _ := bridge.counts()
	assert.Equal(t, 2, starts)
	first, err := tx.Decode(bridge.starts[0].Payload)
	require.NoError(t, err)
	second, err := tx.Decode(bridge.starts[1].Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000, first.Fee)
	assert.EqualValues(t, 1_200, second.Fee)
}

func TestSubmit_AddAssetFeeMismatchSendOnlyPolicy(t *testing.T) {
	env := newEnv(t)
	dev := env.ledger(1_000_000)
	bridge := newScriptedBridge([]hardware.Event{
		{Kind: hardware.EventSigned, Payload: []byte("signed"), Fee: 1_200},
	})

	in := types.AddAsset{Header: types.Header{Sender: dev.addr, Asset: types.Asset{ID: 7}}}
	ch, err := New().Submit(context.Background(), env.caps(bridge), []types.Intent{in})
	require.NoError(t, err)

	res := last(t, drain(t, ch)).Result
	require.NotNil(t, res)
	assert.Equal(t, []byte("signed"), res.Transactions[0].Signed)
	starts, _ := bridge.counts()
	assert.Equal(t, 1, starts)
}

func TestSubmit_RepeatedFeeMismatch(t *testing.T) {
	env := newEnv(t)
	dev := env.ledger(5_000_000)
	to := newAccount()
	bridge := newScriptedBridge(
		[]hardware.Event{{Kind: hardware.EventSigned, Payload: []byte("a"), Fee: 1_200}},
		[]hardware.Event{{Kind: hardware.EventSigned, Payload: []byte("b"), Fee: 1_400}},
	)

	ch, err := New().Submit(context.Background(), env.caps(bridge), []types.Intent{sendIntent(dev.addr, to.addr, 10_000, false)})
	require.NoError(t, err)

	o := last(t, drain(t, ch))
	assert.Equal(t, StatusError, o.Status)
	assert.ErrorIs(t, o.Err, txerr.ErrRepeatedFeeMismatch)
	assert.Nil(t, o.Result)
}

func TestSubmit_GroupSignsSharedID(t *testing.T) {
	env := newEnv(t)
	a := env.standard(2_000_000)
	b := env.standard(2_000_000)
	to := newAccount()

	ch, err := New().Submit(context.Background(), env.caps(nil), []types.Intent{
		sendIntent(a.addr, to.addr, 100_000, false),
		sendIntent(b.addr, to.addr, 200_000, false),
	})
	require.NoError(t, err)

	res := last(t, drain(t, ch)).Result
	require.NotNil(t, res)
	require.Len(t, res.Transactions, 2)
	require.Len(t, res.GroupID, 32)

	for i, st := range res.Transactions {
		assert.Equal(t, i, st.Index)
		stx, err := tx.DecodeSigned(st.Signed)
		require.NoError(t, err)
		assert.Equal(t, res.GroupID, stx.Txn.Group[:])
	}
	assert.Equal(t, append(append([]byte{}, res.Transactions[0].Signed...), res.Transactions[1].Signed...), res.Payload())
}

func TestSubmit_GroupMemberBuildFailureSignsNothing(t *testing.T) {
	env := newEnv(t)
	a := env.standard(2_000_000)
	unknown := newAccount()
	to := newAccount()

	ch, err := New().Submit(context.Background(), env.caps(nil), []types.Intent{
		sendIntent(a.addr, to.addr, 100_000, false),
		sendIntent(unknown.addr, to.addr, 100_000, false),
	})
	require.NoError(t, err)

	outs := drain(t, ch)
	assert.Equal(t, []Status{StatusLoading, StatusError}, statuses(outs))
	err = last(t, outs).Err
	assert.ErrorIs(t, err, txerr.ErrIncompleteGroup)
	assert.ErrorIs(t, err, txerr.ErrUnknownAccount)
	assert.Equal(t, 0, env.sdk.signCount())
}

func TestSubmit_SkippedRemoveAsset(t *testing.T) {
	env := newEnv(t)
	a := env.standard(2_000_000)
	creator := newAccount()

	in := types.RemoveAsset{Header: types.Header{Sender: a.addr, Target: creator.addr, Asset: types.Asset{ID: 99}}}
	ch, err := New().Submit(context.Background(), env.caps(nil), []types.Intent{in})
	require.NoError(t, err)

	res := last(t, drain(t, ch)).Result
	require.NotNil(t, res)
	assert.Empty(t, res.Transactions)
	assert.Equal(t, []int{0}, res.Skipped)
}

func TestSubmit_SynchronousErrors(t *testing.T) {
	env := newEnv(t)
	m := New()

	_, err := m.Submit(context.Background(), env.caps(nil), nil)
	assert.ErrorIs(t, err, txerr.ErrEmptyBatch)

	_, err = m.Submit(context.Background(), Capabilities{}, []types.Intent{types.AddAsset{}})
	assert.ErrorIs(t, err, ErrMissingCapabilities)
	assert.False(t, m.InFlight())
}

func TestSubmit_ParamsFailure(t *testing.T) {
	env := newEnv(t)
	a := env.standard(2_000_000)
	env.p.err = &txerr.NetworkError{Offline: true, Err: errors.New("dial tcp: connection refused")}

	ch, err := New().Submit(context.Background(), env.caps(nil), []types.Intent{sendIntent(a.addr, a.addr, 1, false)})
	require.NoError(t, err)

	o := last(t, drain(t, ch))
	assert.Equal(t, StatusError, o.Status)
	assert.ErrorIs(t, o.Err, txerr.ErrOffline)
}

func TestSubmit_RejectsSecondBatchWhileInFlight(t *testing.T) {
	env := newEnv(t)
	dev := env.ledger(1_000_000)
	bridge := newScriptedBridge()
	in := []types.Intent{types.AddAsset{Header: types.Header{Sender: dev.addr, Asset: types.Asset{ID: 7}}}}

	m := New()
	ch, err := m.Submit(context.Background(), env.caps(bridge), in)
	require.NoError(t, err)
	assert.Equal(t, StatusLoading, (<-ch).Status)

	select {
	case <-bridge.started:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge was never started")
	}
	_, err = m.Submit(context.Background(), env.caps(bridge), in)
	assert.ErrorIs(t, err, txerr.ErrBatchInFlight)

	m.Cancel()
	assert.Empty(t, drain(t, ch), "no outcome after cancel")
	_, stops := bridge.counts()
	assert.GreaterOrEqual(t, stops, 1)
	assert.False(t, m.InFlight())

	// The manager accepts a new batch once the old one is gone.
	ch, err = m.Submit(context.Background(), env.caps(newScriptedBridge([]hardware.Event{
		{Kind: hardware.EventSigned, Payload: []byte("ok"), Fee: 1_000},
	})), in)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, last(t, drain(t, ch)).Status)
}

func TestCancel_ConcurrentReaderSeesNoError(t *testing.T) {
	env := newEnv(t)
	dev := env.ledger(1_000_000)
	bridge := newScriptedBridge()
	bridge.stopDelay = 100 * time.Millisecond
	in := []types.Intent{types.AddAsset{Header: types.Header{Sender: dev.addr, Asset: types.Asset{ID: 7}}}}

	m := New()
	ch, err := m.Submit(context.Background(), env.caps(bridge), in)
	require.NoError(t, err)
	assert.Equal(t, StatusLoading, (<-ch).Status)
	select {
	case <-bridge.started:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge was never started")
	}

	got := make(chan []Outcome, 1)
	go func() {
		var outs []Outcome
		for o := range ch {
			outs = append(outs, o)
		}
		got <- outs
	}()

	m.Cancel()
	select {
	case outs := <-got:
		assert.Empty(t, outs, "outcomes after cancel: %v", statuses(outs))
	case <-time.After(5 * time.Second):
		t.Fatal("outcome stream did not close")
	}
	assert.False(t, m.InFlight())
}

func TestSubmit_CallerContextCancelled(t *testing.T) {
	env := newEnv(t)
	dev := env.ledger(1_000_000)
	bridge := newScriptedBridge()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := New().Submit(ctx, env.caps(bridge), []types.Intent{
		types.AddAsset{Header: types.Header{Sender: dev.addr, Asset: types.Asset{ID: 7}}},
	})
	require.NoError(t, err)
	<-bridge.started
	cancel()

	outs := drain(t, ch)
	o := last(t, outs)
	assert.Equal(t, StatusError, o.Status)
	assert.ErrorIs(t, o.Err, context.Canceled)
	_, stops := bridge.counts()
	assert.Equal(t, 1, stops)
}

func TestSubmit_HardwareError(t *testing.T) {
	env := newEnv(t)
	dev := env.ledger(1_000_000)
	bridge := newScriptedBridge([]hardware.Event{
		{Kind: hardware.EventWaitingForApproval},
		{Kind: hardware.EventOperationCancelled},
	})

	ch, err := New().Submit(context.Background(), env.caps(bridge), []types.Intent{
		types.AddAsset{Header: types.Header{Sender: dev.addr, Asset: types.Asset{ID: 7}}},
	})
	require.NoError(t, err)

	outs := drain(t, ch)
	assert.Equal(t, []Status{StatusLoading, StatusAwaitingHardware, StatusError}, statuses(outs))
	assert.ErrorIs(t, last(t, outs).Err, txerr.ErrOperationCancelled)
}

func TestCancel_Idle(t *testing.T) {
	m := New()
	m.Cancel()
	assert.False(t, m.InFlight())
}

func TestBroadcast(t *testing.T) {
	sub := &recordingSubmitter{}
	m := New(WithSubmitter(sub))
	res := &SignedOutcome{Transactions: []SignedTransaction{
		{Index: 0, Signed: []byte{1, 2}},
		{Index: 1, Signed: []byte{3}},
	}}

	id, err := m.Broadcast(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, "TXID", id)
	assert.True(t, bytes.Equal([]byte{1, 2, 3}, sub.got))

	_, err = m.Broadcast(context.Background(), &SignedOutcome{})
	assert.ErrorIs(t, err, txerr.ErrEmptyBatch)
	_, err = New().Broadcast(context.Background(), res)
	assert.ErrorIs(t, err, ErrNoSubmitter)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "awaiting_hardware", StatusAwaitingHardware.String())
	assert.True(t, Outcome{Status: StatusError}.Terminal())
	assert.False(t, Outcome{Status: StatusLoading}.Terminal())
}
