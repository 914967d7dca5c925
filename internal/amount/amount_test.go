package amount

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

func nativeSend(amount int64, isMax bool) types.Send {
	return types.Send{
		Header: types.Header{Sender: "A", Target: "B", Asset: types.NativeAsset()},
		Amount: big.NewInt(amount),
		IsMax:  isMax,
	}
}

func TestSendableAmount_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		in   SendInput
		want int64
	}{
		{
			name: "fixed amount passes through",
			in:   SendInput{Requested: big.NewInt(1_000_000), Balance: big.NewInt(1_101_000), Reserve: big.NewInt(100_000), Fee: 1_000, Native: true},
			want: 1_000_000,
		},
		{
			name: "max nets out fee",
			in:   SendInput{Requested: big.NewInt(0), Balance: big.NewInt(500_000), IsMax: true, Fee: 1_000, Native: true},
			want: 499_000,
		},
		{
			name: "delegated max nets out reserve",
			in:   SendInput{Requested: big.NewInt(0), Balance: big.NewInt(500_000), IsMax: true, Delegated: true, Reserve: big.NewInt(100_000), Fee: 1_000, Native: true},
			want: 399_000,
		},
		{
			name: "max on an asset keeps the requested amount",
			in:   SendInput{Requested: big.NewInt(42), Balance: big.NewInt(500_000), IsMax: true, Fee: 1_000},
			want: 42,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SendableAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestSendableAmount_MaxBalanceIdentity(t *testing.T) {
	for _, bal := range []int64{1_000, 1_001, 250_000, 1_000_000_000} {
		balance := big.NewInt(bal)
		fee := uint64(1_000)

		amt, err := SendableAmount(SendInput{Balance: balance, IsMax: true, Fee: fee, Native: true})
		require.NoError(t, err)
		sum := new(big.Int).Add(amt, new(big.Int).SetUint64(fee))
		assert.Zero(t, sum.Cmp(balance), "amount + fee == balance for %d", bal)
	}

	reserve := big.NewInt(100_000)
	for _, bal := range []int64{101_000, 500_000, 9_999_999} {
		balance := big.NewInt(bal)
		amt, err := SendableAmount(SendInput{Balance: balance, IsMax: true, Delegated: true, Reserve: reserve, Fee: 1_000, Native: true})
		require.NoError(t, err)
		sum := new(big.Int).Add(amt, big.NewInt(1_000))
		sum.Add(sum, reserve)
		assert.Zero(t, sum.Cmp(balance), "amount + fee + reserve == balance for %d", bal)
	}
}

func TestSendableAmount_Negative(t *testing.T) {
	_, err := SendableAmount(SendInput{Balance: big.NewInt(500), IsMax: true, Fee: 1_000, Native: true})
	require.ErrorIs(t, err, txerr.ErrNegativeAmount)
	var neg *txerr.NegativeAmountError
	require.True(t, errors.As(err, &neg))
	assert.Equal(t, txerr.CauseUnderflow, neg.Cause)

	_, err = SendableAmount(SendInput{Balance: big.NewInt(50_000), IsMax: true, Delegated: true, Reserve: big.NewInt(100_000), Fee: 1_000, Native: true})
	require.True(t, errors.As(err, &neg))
	assert.Equal(t, txerr.CauseReserve, neg.Cause)

	_, err = SendableAmount(SendInput{Requested: big.NewInt(-1), Native: true})
	assert.ErrorIs(t, err, txerr.ErrNegativeAmount)
}

func TestViolatesMinimumBalance(t *testing.T) {
	balance := big.NewInt(1_101_000)
	minBal := big.NewInt(100_000)

	assert.False(t, ViolatesMinimumBalance(nativeSend(1_000_000, false), big.NewInt(1_000_000), balance, 1_000, minBal))
	assert.True(t, ViolatesMinimumBalance(nativeSend(1_000_001, false), big.NewInt(1_000_001), balance, 1_000, minBal))
	assert.False(t, ViolatesMinimumBalance(nativeSend(0, true), big.NewInt(1_100_000), balance, 1_000, minBal), "max sends are exempt")

	opt := types.AddAsset{Header: types.Header{Sender: "A", Asset: types.Asset{ID: 7}}}
	assert.False(t, ViolatesMinimumBalance(opt, nil, big.NewInt(201_000), 1_000, minBal))
	assert.True(t, ViolatesMinimumBalance(opt, nil, big.NewInt(200_999), 1_000, minBal))

	out := types.RemoveAsset{Header: types.Header{Sender: "A", Asset: types.Asset{ID: 7}}}
	assert.False(t, ViolatesMinimumBalance(out, nil, big.NewInt(101_000), 1_000, big.NewInt(200_000)))
}

func TestViolatesMinimumBalance_Monotonic(t *testing.T) {
	balance := big.NewInt(300_000)
	minBal := big.NewInt(100_000)

	seenTrue := false
	for amt := int64(0); amt <= 300_000; amt += 997 {
		v := ViolatesMinimumBalance(nativeSend(amt, false), big.NewInt(amt), balance, 1_000, minBal)
		if seenTrue {
			require.True(t, v, "result flipped back at amount %d", amt)
		}
		seenTrue = seenTrue || v
	}
	assert.True(t, seenTrue)
}

func TestIsCloseToSelf(t *testing.T) {
	s := nativeSend(0, true)
	assert.False(t, IsCloseToSelf(s))

	s.Target = s.Sender
	assert.True(t, IsCloseToSelf(s))

	s.IsMax = false
	assert.False(t, IsCloseToSelf(s))

	assert.False(t, IsCloseToSelf(types.Rekey{Header: types.Header{Sender: "A", Target: "A"}}))
}
