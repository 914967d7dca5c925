// Package manager is the orchestrator façade: it takes a batch of intents,
// builds, groups and signs them, and reports progress as a stream of
// outcomes.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/perawallet/pera-wallet-sub002/internal/amount"
	"github.com/perawallet/pera-wallet-sub002/internal/auth"
	"github.com/perawallet/pera-wallet-sub002/internal/builder"
	"github.com/perawallet/pera-wallet-sub002/internal/directory"
	"github.com/perawallet/pera-wallet-sub002/internal/group"
	"github.com/perawallet/pera-wallet-sub002/internal/hardware"
	klog "github.com/perawallet/pera-wallet-sub002/internal/log"
	"github.com/perawallet/pera-wallet-sub002/internal/signing"
	"github.com/perawallet/pera-wallet-sub002/pkg/tx"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// Manager errors.
var (
	ErrNoSubmitter         = errors.New("no network client configured")
	ErrMissingCapabilities = errors.New("submission is missing a capability")
)

// ParamsSource fetches fresh transaction parameters.
type ParamsSource interface {
	FetchTransactionParams(ctx context.Context) (types.Params, error)
}

// Submitter sends signed bytes to the network.
type Submitter interface {
	SubmitSignedTransaction(ctx context.Context, signed []byte) (string, error)
}

// Capabilities are the collaborators a single submission works with.
// Bridge may be nil when no account in the batch signs on a device.
type Capabilities struct {
	Directory directory.Directory
	Params    ParamsSource
	SDK       tx.SDK
	Bridge    hardware.Bridge
}

func (c Capabilities) validate() error {
	switch {
	case c.Directory == nil:
		return fmt.Errorf("%w: directory", ErrMissingCapabilities)
	case c.Params == nil:
		return fmt.Errorf("%w: params source", ErrMissingCapabilities)
	case c.SDK == nil:
		return fmt.Errorf("%w: chain sdk", ErrMissingCapabilities)
	}
	return nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy sets which intent kinds are rebuilt after a device fee mismatch.
func WithPolicy(p signing.RequeuePolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithSubmitter sets the network client used by Broadcast.
func WithSubmitter(s Submitter) Option {
	return func(m *Manager) { m.submitter = s }
}

// WithLogger replaces the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager runs at most one submission at a time.
type Manager struct {
	policy    signing.RequeuePolicy
	submitter Submitter
	logger    zerolog.Logger

	mu     sync.Mutex
	active *run
}

// New creates a manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		policy: signing.RequeueSendOnly,
		logger: klog.Manager,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// run is the state of one in-flight submission.
type run struct {
	id     uuid.UUID
	cancel context.CancelFunc
	bridge hardware.Bridge
	out    chan Outcome
	stop   chan struct{}
	done   chan struct{}
	logger zerolog.Logger

	stopOnce  sync.Once
	emitMu    sync.Mutex
	cancelled bool
}

// emit delivers o unless the run was cancelled. The stream is unbuffered so
// a delivered outcome has been received before Cancel can return.
func (r *run) emit(o Outcome) bool {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	if r.cancelled {
		return false
	}
	select {
	case <-r.stop:
		return false
	default:
	}
	select {
	case r.out <- o:
		return true
	case <-r.stop:
		return false
	}
}

// Submit starts signing batch and returns the outcome stream. The stream
// yields Loading, zero or more AwaitingHardware and then exactly one
// Success or Error, after which it is closed. Cancel closes it without a
// terminal outcome.
func (m *Manager) Submit(ctx context.Context, caps Capabilities, batch []types.Intent) (<-chan Outcome, error) {
	if len(batch) == 0 {
		return nil, txerr.ErrEmptyBatch
	}
	if err := caps.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, txerr.ErrBatchInFlight
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:     uuid.New(),
		cancel: cancel,
		bridge: caps.Bridge,
		out:    make(chan Outcome),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	r.logger = klog.WithBatch(m.logger, r.id.String())
	m.active = r
	m.mu.Unlock()

	r.logger.Info().Int("intents", len(batch)).Msg("Batch submitted")
	go m.process(runCtx, r, caps, batch)
	return r.out, nil
}

// Cancel aborts the in-flight submission, if any. Once Cancel returns no
// further outcome is delivered for it.
func (m *Manager) Cancel() {
	m.mu.Lock()
	r := m.active
	m.mu.Unlock()
	if r == nil {
		return
	}

	// Close the stream gate before anything can observe the cancellation,
	// so the error it provokes in the run is never delivered.
	r.stopOnce.Do(func() { close(r.stop) })
	r.emitMu.Lock()
	r.cancelled = true
	r.emitMu.Unlock()

	r.cancel()
	if r.bridge != nil {
		r.bridge.Stop()
	}
	<-r.done
	r.logger.Info().Msg("Batch cancelled")
}

// InFlight reports whether a submission is running.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

func (m *Manager) process(ctx context.Context, r *run, caps Capabilities, batch []types.Intent) {
	defer func() {
		r.cancel()
		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
		close(r.out)
		close(r.done)
	}()

	if !r.emit(Outcome{Status: StatusLoading}) {
		return
	}

	res, err := m.sign(ctx, r, caps, batch)
	if err != nil {
		ev := r.logger.Warn()
		if errors.Is(err, context.Canceled) {
			ev = r.logger.Debug()
		}
		ev.Err(err).Str("category", txerr.CategoryOf(err).String()).Msg("Batch failed")
		r.emit(Outcome{Status: StatusError, Err: err})
		return
	}
	r.logger.Info().Int("transactions", len(res.Transactions)).Msg("Batch signed")
	r.emit(Outcome{Status: StatusSuccess, Result: res})
}

// sign runs the build, group and signing stages.
func (m *Manager) sign(ctx context.Context, r *run, caps Capabilities, batch []types.Intent) (*SignedOutcome, error) {
	params, err := caps.Params.FetchTransactionParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction params: %w", err)
	}

	b := builder.New(caps.SDK, caps.Directory).WithLogger(r.logger)
	asm := group.New(caps.SDK)
	grouped := len(batch) > 1

	records := types.NewRecords(batch)
	for i := range records {
		rec, err := b.Build(ctx, records[i], params)
		if err != nil {
			if grouped {
				return nil, fmt.Errorf("%w: member %d: %w", txerr.ErrIncompleteGroup, i, err)
			}
			return nil, err
		}
		records[i] = rec
	}

	var gc group.Context
	if grouped {
		records, gc, err = asm.Stamp(records)
		if err != nil {
			return nil, err
		}
	}

	rb := &rebuilder{builder: b, assembler: asm, params: params, grouped: grouped}
	q := signing.New(auth.NewResolver(caps.Directory), caps.SDK, caps.Bridge, rb,
		signing.WithPolicy(m.policy),
		signing.WithParams(params),
		signing.WithLogger(r.logger),
		signing.WithNotify(func(i int, label string) {
			r.emit(Outcome{Status: StatusAwaitingHardware, Index: i, DeviceLabel: label})
		}),
	)
	signed, err := q.Run(ctx, records)
	if err != nil {
		return nil, err
	}
	if rb.gid != nil {
		gc.GroupID = rb.gid
	}
	return collect(r.id, gc.GroupID, signed)
}

func collect(id uuid.UUID, gid []byte, records []types.Record) (*SignedOutcome, error) {
	out := &SignedOutcome{BatchID: id, GroupID: gid}
	for _, rec := range records {
		if rec.Skipped {
			out.Skipped = append(out.Skipped, rec.Index)
			continue
		}
		txid, err := tx.TxID(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", rec.Index, err)
		}
		st := SignedTransaction{
			Index:  rec.Index,
			Kind:   rec.Intent.Kind(),
			TxID:   txid,
			Fee:    rec.ProjectedFee,
			Signed: rec.Signed,
		}
		if rec.Amount != nil {
			st.Amount = amount.Format(rec.Amount, rec.Intent.Common().Asset.Decimals)
		}
		out.Transactions = append(out.Transactions, st)
	}
	return out, nil
}

// Broadcast submits a signed outcome as one transaction group and returns
// the id of its first transaction.
func (m *Manager) Broadcast(ctx context.Context, res *SignedOutcome) (string, error) {
	if m.submitter == nil {
		return "", ErrNoSubmitter
	}
	if res == nil || len(res.Transactions) == 0 {
		return "", txerr.ErrEmptyBatch
	}
	txid, err := m.submitter.SubmitSignedTransaction(ctx, res.Payload())
	if err != nil {
		m.logger.Warn().Err(err).Str("batch", res.BatchID.String()).Msg("Broadcast failed")
		return "", err
	}
	m.logger.Info().Str("batch", res.BatchID.String()).Str("txid", txid).Msg("Broadcast accepted")
	return txid, nil
}
