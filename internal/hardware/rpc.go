package hardware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/perawallet/pera-wallet-sub002/internal/log"
	"github.com/perawallet/pera-wallet-sub002/internal/rpcclient"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
)

// Error codes returned by the bridge daemon.
const (
	CodeScanFailed  = -32010
	CodeDeviceError = -32011
	CodeBusy        = -32012
	CodeTimeout     = -32013
)

// DefaultPollInterval is how often the daemon is polled for events.
const DefaultPollInterval = 250 * time.Millisecond

// ErrBusy is returned by Start while another operation is running.
var ErrBusy = fmt.Errorf("%w: bridge is busy", txerr.ErrDeviceError)

// RPCBridge talks to a hardware bridge daemon over JSON-RPC. The daemon owns
// Bluetooth scanning and the device protocol; this side starts operations,
// polls their events and cancels them.
type RPCBridge struct {
	client *rpcclient.Client
	poll   time.Duration
	events chan Event
	logger zerolog.Logger

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRPCBridge creates a bridge using client. A non-positive poll uses
// DefaultPollInterval.
func NewRPCBridge(client *rpcclient.Client, poll time.Duration) *RPCBridge {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &RPCBridge{
		client: client,
		poll:   poll,
		events: make(chan Event, 16),
		logger: klog.Hardware,
	}
}

// Events implements Bridge.
func (b *RPCBridge) Events() <-chan Event {
	return b.events
}

// Start implements Bridge.
func (b *RPCBridge) Start(ctx context.Context, req Request) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return ErrBusy
	}

	err := b.client.SignTransaction(ctx, rpcclient.SignRequest{
		OperationID: req.OperationID,
		Device:      req.Device,
		Signer:      req.Signer,
		Payload:     req.Payload,
	})
	if err != nil {
		return mapError(err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	b.current = req.OperationID
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.pollLoop(pollCtx, req.OperationID, b.done)

	b.logger.Debug().
		Str("operation", req.OperationID).
		Str("device", req.Device).
		Int("index", req.Index).
		Msg("Hardware operation started")
	return nil
}

// Stop implements Bridge. It tells the daemon to abort the operation and
// waits for the poll loop to exit.
func (b *RPCBridge) Stop() {
	b.mu.Lock()
	op, cancel, done := b.current, b.cancel, b.done
	b.current, b.cancel, b.done = "", nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	if err := b.client.CancelOperation(ctx, op); err != nil {
		b.logger.Warn().Err(err).Str("operation", op).Msg("Hardware cancel failed")
	}
}

func (b *RPCBridge) pollLoop(ctx context.Context, op string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		batch, err := b.client.PollEvents(ctx, op)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			release := b.finish(op)
			b.emit(ctx, Event{Kind: EventDeviceError, OperationID: op, Message: err.Error()})
			release()
			return
		}
		for _, w := range batch {
			ev, ok := decodeEvent(op, w)
			if !ok {
				b.logger.Warn().Str("type", w.Type).Msg("Unknown hardware event")
				continue
			}
			if ev.Terminal() {
				release := b.finish(op)
				b.emit(ctx, ev)
				release()
				return
			}
			if !b.emit(ctx, ev) {
				return
			}
		}
	}
}

func (b *RPCBridge) emit(ctx context.Context, ev Event) bool {
	select {
	case b.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish marks op as no longer running so a new operation may start. The
// returned func releases the poll context once the last event is out.
func (b *RPCBridge) finish(op string) context.CancelFunc {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != op || b.cancel == nil {
		return func() {}
	}
	cancel := b.cancel
	b.current, b.cancel, b.done = "", nil, nil
	return cancel
}

func decodeEvent(op string, w rpcclient.BridgeEvent) (Event, bool) {
	kind, ok := ParseEventKind(w.Type)
	if !ok {
		return Event{}, false
	}
	return Event{
		Kind:        kind,
		OperationID: op,
		Label:       w.Label,
		Payload:     w.Payload,
		Fee:         w.Fee,
		Message:     w.Message,
	}, true
}

func mapError(err error) error {
	var rpcErr *rpcclient.RPCError
	if !errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %v", txerr.ErrDeviceError, err)
	}
	switch rpcErr.Code {
	case CodeScanFailed:
		return fmt.Errorf("%w: %s", txerr.ErrScanFailed, rpcErr.Message)
	case CodeTimeout:
		return txerr.ErrHardwareTimeout
	case CodeBusy:
		return ErrBusy
	default:
		return fmt.Errorf("%w: %s", txerr.ErrDeviceError, rpcErr.Message)
	}
}
