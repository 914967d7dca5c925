// Package hardware defines the contract with the external hardware signing
// bridge and a JSON-RPC adapter for a bridge daemon.
package hardware

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
)

// EventKind identifies a bridge event.
type EventKind uint8

const (
	EventWaitingForApproval EventKind = iota + 1
	EventSigned
	EventDeviceError
	EventOperationCancelled
	EventMissingBytes
	EventScanFailed
	EventTimeout
)

var eventNames = map[EventKind]string{
	EventWaitingForApproval: "waiting",
	EventSigned:             "signed",
	EventDeviceError:        "device_error",
	EventOperationCancelled: "cancelled",
	EventMissingBytes:       "missing_bytes",
	EventScanFailed:         "scan_failed",
	EventTimeout:            "timeout",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, bool) {
	for k, name := range eventNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Event is one report from the bridge about an operation.
type Event struct {
	Kind        EventKind
	OperationID string
	Label       string // WaitingForApproval: device name shown to the user.
	Payload     []byte // Signed: the signed transaction.
	Fee         uint64 // Signed: fee measured by the device, zero if unknown.
	Message     string // DeviceError, ScanFailed.
}

// Terminal reports whether the operation is over after this event.
func (e Event) Terminal() bool {
	return e.Kind != EventWaitingForApproval
}

// Err returns the error a failed operation maps to, or nil.
func (e Event) Err() error {
	switch e.Kind {
	case EventWaitingForApproval:
		return nil
	case EventSigned:
		if len(e.Payload) == 0 {
			return txerr.ErrMissingBytes
		}
		return nil
	case EventDeviceError:
		return fmt.Errorf("%w: %s", txerr.ErrDeviceError, e.Message)
	case EventOperationCancelled:
		return txerr.ErrOperationCancelled
	case EventMissingBytes:
		return txerr.ErrMissingBytes
	case EventScanFailed:
		return fmt.Errorf("%w: %s", txerr.ErrScanFailed, e.Message)
	case EventTimeout:
		return txerr.ErrHardwareTimeout
	default:
		return fmt.Errorf("%w: unknown event %s", txerr.ErrDeviceError, e.Kind)
	}
}

// OperationID derives the id of a signing operation from its payload.
func OperationID(payload []byte) string {
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}
