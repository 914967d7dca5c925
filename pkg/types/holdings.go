package types

import "math/big"

// Holdings is a cached snapshot of an account's balances.
type Holdings struct {
	Balance    *big.Int            // Native balance.
	MinBalance *big.Int            // Current reserve.
	Assets     map[uint64]*big.Int // Opted-in asset balances.
}

// AssetBalance returns the holding for asset id. The native asset (id 0)
// resolves to Balance.
func (h Holdings) AssetBalance(id uint64) (*big.Int, bool) {
	if id == 0 {
		return h.Balance, h.Balance != nil
	}
	v, ok := h.Assets[id]
	return v, ok
}

// OptedIn reports whether the account holds asset id.
func (h Holdings) OptedIn(id uint64) bool {
	_, ok := h.Assets[id]
	return ok
}
