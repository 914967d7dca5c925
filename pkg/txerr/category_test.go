package txerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		err  error
		want Category
	}{
		{nil, CategoryUnknown},
		{errors.New("boom"), CategoryUnknown},
		{fmt.Errorf("build: %w", ErrMinBalance), CategoryValidation},
		{&NegativeAmountError{Cause: CauseReserve}, CategoryValidation},
		{fmt.Errorf("%w: member 1: %w", ErrIncompleteGroup, ErrUnknownAccount), CategoryValidation},
		{ErrBrokenDelegation, CategoryAuthorization},
		{fmt.Errorf("sign: %w", ErrHardwareTimeout), CategoryHardware},
		{&NetworkError{Offline: true, Err: errors.New("dial")}, CategoryNetwork},
		{&NetworkError{Message: "overspend"}, CategoryNetwork},
		{ErrRepeatedFeeMismatch, CategoryFeeMismatch},
		{context.Canceled, CategoryCancelled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryOf(tt.err), "%v", tt.err)
	}
}

func TestNegativeAmountError(t *testing.T) {
	err := fmt.Errorf("send: %w", &NegativeAmountError{Cause: CauseReserve})
	assert.ErrorIs(t, err, ErrNegativeAmount)

	var neg *NegativeAmountError
	assert.True(t, errors.As(err, &neg))
	assert.Equal(t, CauseReserve, neg.Cause)
	assert.Contains(t, err.Error(), "reserved minimum")
	assert.Contains(t, (&NegativeAmountError{Cause: CauseUnderflow}).Error(), "fee")
}

func TestNetworkError(t *testing.T) {
	inner := errors.New("connection refused")
	offline := &NetworkError{Offline: true, Err: inner}
	assert.ErrorIs(t, offline, ErrOffline)
	assert.NotErrorIs(t, offline, ErrAPI)
	assert.ErrorIs(t, offline, inner)

	api := &NetworkError{Message: "TransactionPool.Remember: overspend"}
	assert.ErrorIs(t, api, ErrAPI)
	assert.NotErrorIs(t, api, ErrOffline)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, OfflineMessage, UserMessage(fmt.Errorf("params: %w", &NetworkError{Offline: true, Err: errors.New("x")})))
	assert.Equal(t, "overspend", UserMessage(&NetworkError{Message: "overspend"}))
	assert.Equal(t, ErrCloseToSelf.Error(), UserMessage(ErrCloseToSelf))
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "fee_mismatch", CategoryFeeMismatch.String())
	assert.Equal(t, "unknown", Category(99).String())
}
