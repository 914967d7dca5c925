// Package signing drives a batch of built records through signing one at a
// time, with local keys or an external hardware device.
package signing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/perawallet/pera-wallet-sub002/internal/auth"
	"github.com/perawallet/pera-wallet-sub002/internal/hardware"
	klog "github.com/perawallet/pera-wallet-sub002/internal/log"
	"github.com/perawallet/pera-wallet-sub002/pkg/tx"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// ErrNoBridge is returned when a record needs a hardware device but the
// queue has no bridge.
var ErrNoBridge = fmt.Errorf("%w: no hardware bridge configured", txerr.ErrDeviceError)

// Resolver finds the signer of an account.
type Resolver interface {
	Resolve(addr string) (auth.Resolution, error)
}

// LocalSigner signs payloads with a secret key.
type LocalSigner interface {
	SignWithLocalKey(payload, secret []byte) ([]byte, error)
}

// Rebuilder rebuilds records[index] after a fee mismatch. The record carries
// the measured fee. When the batch is a group, every member is re-stamped
// and all signatures are cleared.
type Rebuilder interface {
	Rebuild(ctx context.Context, records []types.Record, index int) ([]types.Record, error)
}

// Notify is called when a record waits for approval on a device.
type Notify func(index int, deviceLabel string)

// Option configures a Queue.
type Option func(*Queue)

// WithPolicy sets the fee-mismatch requeue policy.
func WithPolicy(p RequeuePolicy) Option {
	return func(q *Queue) { q.policy = p }
}

// WithParams sets the parameters used to measure the fee of device-signed
// bytes when the device does not report one.
func WithParams(p types.Params) Option {
	return func(q *Queue) { q.params = p }
}

// WithNotify sets the awaiting-hardware callback.
func WithNotify(n Notify) Option {
	return func(q *Queue) { q.notify = n }
}

// WithLogger replaces the queue's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue signs records strictly in index order with at most one in flight.
// A Queue serves a single batch.
type Queue struct {
	resolver  Resolver
	signer    LocalSigner
	bridge    hardware.Bridge
	rebuilder Rebuilder
	policy    RequeuePolicy
	params    types.Params
	notify    Notify
	logger    zerolog.Logger

	state   atomic.Uint32
	records []types.Record
	pending []int
}

// New creates a queue. bridge may be nil when no hardware accounts are used.
func New(resolver Resolver, signer LocalSigner, bridge hardware.Bridge, rebuilder Rebuilder, opts ...Option) *Queue {
	q := &Queue{
		resolver:  resolver,
		signer:    signer,
		bridge:    bridge,
		rebuilder: rebuilder,
		notify:    func(int, string) {},
		logger:    klog.Queue,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// State returns the current state. Safe to call from any goroutine.
func (q *Queue) State() State {
	return State(q.state.Load())
}

func (q *Queue) transition(s State, index int) {
	q.state.Store(uint32(s))
	q.logger.Debug().Str("state", s.String()).Int("index", index).Msg("Queue transition")
}

// Run signs every built record and returns them with signed payloads, in
// index order. Skipped records pass through unsigned. On any failure all
// signatures are discarded and only the error is returned.
func (q *Queue) Run(ctx context.Context, records []types.Record) ([]types.Record, error) {
	q.records = make([]types.Record, len(records))
	copy(q.records, records)
	q.requeue()

	for {
		q.transition(StateDequeuing, -1)
		if err := ctx.Err(); err != nil {
			return nil, q.fail(-1, err)
		}
		if len(q.pending) == 0 {
			q.transition(StateDrained, -1)
			out := q.records
			q.records, q.pending = nil, nil
			return out, nil
		}

		i := q.pending[0]
		q.pending = q.pending[1:]
		if err := q.sign(ctx, i); err != nil {
			return nil, q.fail(i, err)
		}
	}
}

// sign moves record i from AwaitingSignature to Signed, or requeues it.
func (q *Queue) sign(ctx context.Context, i int) error {
	q.transition(StateAwaitingSignature, i)
	rec := q.records[i]
	if len(rec.Payload) == 0 {
		return fmt.Errorf("record %d has no payload", i)
	}

	res, err := q.resolver.Resolve(rec.Intent.Common().Sender)
	if err != nil {
		return err
	}

	switch res.Method {
	case auth.MethodLocal:
		signed, err := q.signer.SignWithLocalKey(rec.Payload, res.Secret)
		if err != nil {
			return fmt.Errorf("sign record %d: %w", i, err)
		}
		q.records[i].Signed = signed
		q.transition(StateSigned, i)
		return nil
	case auth.MethodHardware:
		return q.signOnDevice(ctx, i, res)
	default:
		return fmt.Errorf("%w: unknown signing method %s", txerr.ErrMissingAuthorization, res.Method)
	}
}

func (q *Queue) signOnDevice(ctx context.Context, i int, res auth.Resolution) error {
	if q.bridge == nil {
		return ErrNoBridge
	}
	q.transition(StateAwaitingHardware, i)
	rec := q.records[i]

	req := hardware.NewRequest(i, res.Device, res.DeviceLabel, res.Signer, rec.Payload)
	if err := q.bridge.Start(ctx, req); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			q.bridge.Stop()
			return ctx.Err()
		case ev := <-q.bridge.Events():
			if ev.OperationID != req.OperationID {
				continue
			}
			if ev.Kind == hardware.EventWaitingForApproval {
				label := ev.Label
				if label == "" {
					label = res.DeviceLabel
				}
				q.notify(i, label)
				continue
			}
			if err := ev.Err(); err != nil {
				return err
			}
			return q.deviceSigned(ctx, i, ev)
		}
	}
}

// deviceSigned compares the device fee with the projected fee and either
// caches the signed bytes or requeues the record.
func (q *Queue) deviceSigned(ctx context.Context, i int, ev hardware.Event) error {
	rec := q.records[i]
	fee := ev.Fee
	if fee == 0 {
		fee = tx.SignedFee(q.params, ev.Payload)
	}

	if fee == rec.ProjectedFee || !q.retries(rec.Intent.Kind()) {
		q.records[i].Signed = ev.Payload
		q.transition(StateSigned, i)
		return nil
	}

	if rec.Requeued {
		return fmt.Errorf("%w: record %d projected %d, device %d",
			txerr.ErrRepeatedFeeMismatch, i, rec.ProjectedFee, fee)
	}

	q.logger.Info().
		Err(txerr.ErrFeeMismatch).
		Int("index", i).
		Uint64("projected", rec.ProjectedFee).
		Uint64("measured", fee).
		Msg("Fee mismatch, rebuilding")

	rec.MeasuredFee = fee
	rec.Requeued = true
	q.records[i] = rec

	rebuilt, err := q.rebuilder.Rebuild(ctx, q.records, i)
	if err != nil {
		return fmt.Errorf("rebuild record %d: %w", i, err)
	}
	q.records = rebuilt
	q.requeue()
	return nil
}

func (q *Queue) retries(k types.Kind) bool {
	return q.policy == RequeueAllKinds || k == types.KindSend
}

// requeue rebuilds the cursor from every unsigned record, in index order.
// A record sent back for rebuilding is therefore served before any later
// one.
func (q *Queue) requeue() {
	q.pending = q.pending[:0]
	for i, r := range q.records {
		if r.Skipped || len(r.Signed) > 0 {
			continue
		}
		q.pending = append(q.pending, i)
	}
}

// fail discards every signature of the batch.
func (q *Queue) fail(i int, err error) error {
	q.transition(StateFailed, i)
	q.records, q.pending = nil, nil

	ev := q.logger.Warn()
	if errors.Is(err, context.Canceled) {
		ev = q.logger.Debug()
	}
	ev.Err(err).Int("index", i).Msg("Batch signing failed")
	return err
}
