package txerr

import (
	"context"
	"errors"
)

// Category groups errors by how the caller should react to them.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryValidation
	CategoryAuthorization
	CategoryHardware
	CategoryNetwork
	CategoryFeeMismatch
	CategoryCancelled
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryAuthorization:
		return "authorization"
	case CategoryHardware:
		return "hardware"
	case CategoryNetwork:
		return "network"
	case CategoryFeeMismatch:
		return "fee_mismatch"
	case CategoryCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var categories = []struct {
	category Category
	errs     []error
}{
	{CategoryValidation, []error{
		ErrNegativeAmount, ErrMinBalance, ErrCloseToSelf, ErrEmptyBatch,
		ErrUnknownAccount, ErrAssetNotHeld, ErrAmountTooLarge, ErrInvalidIntent,
		ErrIncompleteGroup, ErrGroupTooLarge, ErrBatchInFlight,
	}},
	{CategoryAuthorization, []error{
		ErrMissingAuthorization, ErrMissingLocalKey, ErrBrokenDelegation,
		ErrUnsupportedDoubleDelegation,
	}},
	{CategoryHardware, []error{
		ErrScanFailed, ErrDeviceError, ErrOperationCancelled, ErrMissingBytes,
		ErrHardwareTimeout,
	}},
	{CategoryNetwork, []error{ErrOffline, ErrAPI, ErrWrongNetwork}},
	{CategoryFeeMismatch, []error{ErrFeeMismatch, ErrRepeatedFeeMismatch}},
	{CategoryCancelled, []error{context.Canceled}},
}

// CategoryOf classifies err. Errors wrapping several sentinels take the
// first matching category in the order above.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	for _, c := range categories {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.category
			}
		}
	}
	return CategoryUnknown
}

// OfflineMessage is shown for connectivity failures.
const OfflineMessage = "You appear to be offline. Check your connection and try again."

// UserMessage returns the text to show for a terminal error: a fixed
// message when offline, the server's message for API failures, and the
// error text otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		if netErr.Offline {
			return OfflineMessage
		}
		if netErr.Message != "" {
			return netErr.Message
		}
	}
	return err.Error()
}
