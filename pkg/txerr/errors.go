// Package txerr defines the error taxonomy shared by the transaction
// builder, signing queue and orchestrator.
package txerr

import (
	"errors"
	"fmt"
)

// Validation errors. Terminal, shown to the user, never retried.
var (
	ErrNegativeAmount = errors.New("computed amount is negative")
	ErrMinBalance     = errors.New("transaction would leave the account below its minimum balance")
	ErrCloseToSelf    = errors.New("cannot close an account to itself")
	ErrEmptyBatch     = errors.New("batch has no transactions")
	ErrUnknownAccount = errors.New("no cached holdings for account")
	ErrAssetNotHeld   = errors.New("account does not hold the asset")
	ErrAmountTooLarge = errors.New("amount does not fit a chain amount")
	ErrInvalidIntent  = errors.New("unsupported intent")
)

// Build errors. Raised before anything is signed.
var (
	ErrIncompleteGroup = errors.New("group member has not been built")
	ErrGroupTooLarge   = errors.New("group exceeds the maximum group size")
)

// Authorization errors. Terminal.
var (
	ErrMissingAuthorization        = errors.New("no signing authority for account")
	ErrMissingLocalKey             = errors.New("local signing key is not available")
	ErrBrokenDelegation            = errors.New("delegate account cannot sign")
	ErrUnsupportedDoubleDelegation = errors.New("delegate account is itself delegated")
)

// Hardware errors. Terminal for the batch; the user may resubmit.
var (
	ErrScanFailed         = errors.New("hardware device scan failed")
	ErrDeviceError        = errors.New("hardware device error")
	ErrOperationCancelled = errors.New("hardware operation cancelled")
	ErrMissingBytes       = errors.New("hardware device returned no signed bytes")
	ErrHardwareTimeout    = errors.New("hardware device timed out")
)

// Network errors.
var (
	ErrOffline      = errors.New("network is unreachable")
	ErrAPI          = errors.New("node rejected the request")
	ErrWrongNetwork = errors.New("node is on a different network")
)

// Fee errors.
var (
	ErrFeeMismatch         = errors.New("device fee differs from projected fee")
	ErrRepeatedFeeMismatch = errors.New("device fee differs from projected fee after rebuild")
)

// Orchestrator errors.
var (
	ErrBatchInFlight = errors.New("another batch is being signed")
)

// NegativeCause tells why a computed amount went negative.
type NegativeCause uint8

const (
	CauseUnderflow NegativeCause = iota + 1
	CauseReserve
)

// NegativeAmountError is returned when a send-max (or any) amount would be
// negative. It matches ErrNegativeAmount with errors.Is.
type NegativeAmountError struct {
	Cause NegativeCause
}

func (e *NegativeAmountError) Error() string {
	if e.Cause == CauseReserve {
		return ErrNegativeAmount.Error() + ": balance does not cover the reserved minimum"
	}
	return ErrNegativeAmount.Error() + ": balance does not cover the fee"
}

// Is reports whether target is ErrNegativeAmount.
func (e *NegativeAmountError) Is(target error) bool {
	return target == ErrNegativeAmount
}

// NetworkError wraps a failed call to the node.
type NetworkError struct {
	Offline bool
	Message string // Server-provided message for API failures.
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Offline {
		return fmt.Sprintf("%v: %v", ErrOffline, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", ErrAPI, e.Message)
	}
	return fmt.Sprintf("%v: %v", ErrAPI, e.Err)
}

// Is matches ErrOffline or ErrAPI according to the classification.
func (e *NetworkError) Is(target error) bool {
	if e.Offline {
		return target == ErrOffline
	}
	return target == ErrAPI
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
