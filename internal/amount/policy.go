package amount

import (
	"math/big"

	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// HoldingsLookup returns cached holdings for an address.
type HoldingsLookup interface {
	Holdings(addr string) (types.Holdings, bool)
}

// Policy answers balance questions against the account directory.
type Policy struct {
	holdings HoldingsLookup
}

// NewPolicy creates a policy reading from h.
func NewPolicy(h HoldingsLookup) *Policy {
	return &Policy{holdings: h}
}

// IsSendMaxAmount reports whether amount is the sender's whole native
// balance. It is always false for other assets.
func (p *Policy) IsSendMaxAmount(amount *big.Int, sender string, asset types.Asset) bool {
	if !asset.Native || amount == nil {
		return false
	}
	h, ok := p.holdings.Holdings(sender)
	if !ok || h.Balance == nil {
		return false
	}
	return amount.Cmp(h.Balance) == 0
}
