package manager

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// Status is the kind of an Outcome.
type Status uint8

const (
	StatusLoading Status = iota + 1
	StatusAwaitingHardware
	StatusSuccess
	StatusError
)

// String returns the status name used in logs.
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAwaitingHardware:
		return "awaiting_hardware"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Outcome is one step of a submission as seen by the caller.
type Outcome struct {
	Status Status
	// Index and DeviceLabel are set for StatusAwaitingHardware.
	Index       int
	DeviceLabel string
	// Result is set for StatusSuccess.
	Result *SignedOutcome
	// Err is set for StatusError.
	Err error
}

// Terminal reports whether no outcome follows this one.
func (o Outcome) Terminal() bool {
	return o.Status == StatusSuccess || o.Status == StatusError
}

// SignedTransaction is one signed member of a batch.
type SignedTransaction struct {
	Index  int
	Kind   types.Kind
	TxID   string
	Fee    uint64
	Amount string // Display units, empty when the intent moves no value.
	Signed []byte
}

// SignedOutcome is the result of a successful submission. Skipped intents
// carry no transaction and are listed in Skipped.
type SignedOutcome struct {
	BatchID      uuid.UUID
	GroupID      []byte
	Transactions []SignedTransaction
	Skipped      []int
}

// Payload returns the signed transactions concatenated in index order, the
// form the network accepts for a group.
func (o SignedOutcome) Payload() []byte {
	var n int
	for _, t := range o.Transactions {
		n += len(t.Signed)
	}
	out := make([]byte, 0, n)
	for _, t := range o.Transactions {
		out = append(out, t.Signed...)
	}
	return out
}

// TxIDs returns the transaction ids in index order.
func (o SignedOutcome) TxIDs() []string {
	ids := make([]string, len(o.Transactions))
	for i, t := range o.Transactions {
		ids[i] = t.TxID
	}
	return ids
}
