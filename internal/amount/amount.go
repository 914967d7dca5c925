// Package amount implements the arithmetic behind sendable amounts and
// minimum-balance checks. All values are arbitrary-precision integers in base
// units; nothing here clamps a negative result to zero.
package amount

import (
	"math/big"

	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// AssetReserveIncrement is how much the minimum balance grows per held asset.
const AssetReserveIncrement = 100_000

// SendInput holds everything SendableAmount needs.
type SendInput struct {
	Requested *big.Int
	Balance   *big.Int // Current native balance.
	IsMax     bool
	Delegated bool
	Reserve   *big.Int
	Fee       uint64
	Native    bool
}

// SendableAmount returns the amount a send will carry. For a native max-send
// it is balance - fee, and additionally - reserve when the sender is
// delegated. Any other send carries the requested amount unchanged.
func SendableAmount(in SendInput) (*big.Int, error) {
	if !in.IsMax || !in.Native {
		if in.Requested == nil {
			return new(big.Int), nil
		}
		if in.Requested.Sign() < 0 {
			return nil, &txerr.NegativeAmountError{Cause: txerr.CauseUnderflow}
		}
		return new(big.Int).Set(in.Requested), nil
	}

	amt := new(big.Int).Sub(orZero(in.Balance), new(big.Int).SetUint64(in.Fee))
	if amt.Sign() < 0 {
		return nil, &txerr.NegativeAmountError{Cause: txerr.CauseUnderflow}
	}
	if in.Delegated {
		amt.Sub(amt, orZero(in.Reserve))
		if amt.Sign() < 0 {
			return nil, &txerr.NegativeAmountError{Cause: txerr.CauseReserve}
		}
	}
	return amt, nil
}

// ReserveAfter returns the minimum balance once intent is applied.
func ReserveAfter(intent types.Intent, minBalance *big.Int) *big.Int {
	r := new(big.Int).Set(orZero(minBalance))
	inc := big.NewInt(AssetReserveIncrement)
	switch intent.(type) {
	case types.AddAsset:
		r.Add(r, inc)
	case types.RemoveAsset, types.SendAndRemoveAsset:
		r.Sub(r, inc)
		if r.Sign() < 0 {
			r.SetInt64(0)
		}
	}
	return r
}

// ViolatesMinimumBalance reports whether applying intent would leave the
// account below its recomputed reserve. amount is the native amount the
// intent moves and is ignored for native max-sends, which are exempt.
func ViolatesMinimumBalance(intent types.Intent, amount, balance *big.Int, fee uint64, minBalance *big.Int) bool {
	left := new(big.Int).Sub(orZero(balance), new(big.Int).SetUint64(fee))
	if s, ok := intent.(types.Send); ok && s.Asset.Native {
		if s.IsMax {
			return false
		}
		left.Sub(left, orZero(amount))
	}
	return left.Cmp(ReserveAfter(intent, minBalance)) < 0
}

// IsCloseToSelf reports whether intent is a max-send back to its own sender.
func IsCloseToSelf(intent types.Intent) bool {
	s, ok := intent.(types.Send)
	return ok && s.IsMax && s.Sender == s.Target
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
