// Package auth resolves the effective signer of an account.
package auth

import (
	"fmt"

	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// Method is how a resolved signer produces a signature.
type Method uint8

const (
	MethodLocal Method = iota + 1
	MethodHardware
)

func (m Method) String() string {
	switch m {
	case MethodLocal:
		return "local"
	case MethodHardware:
		return "hardware"
	default:
		return "unknown"
	}
}

// Lookup returns the cached authorization of an account.
type Lookup interface {
	Authorization(addr string) (types.Authorization, bool)
}

// Resolution is the signer that will authorize an account's transactions.
type Resolution struct {
	Method Method
	// Signer is the address whose key signs: the account itself, or its
	// delegate.
	Signer      string
	Secret      []byte
	Device      string
	DeviceLabel string
	Delegated   bool
}

// Resolver maps addresses to signers, following at most one delegation.
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a resolver reading from l.
func NewResolver(l Lookup) *Resolver {
	return &Resolver{lookup: l}
}

// Resolve returns how addr's transactions get signed.
func (r *Resolver) Resolve(addr string) (Resolution, error) {
	a, ok := r.lookup.Authorization(addr)
	if !ok || a == nil {
		return Resolution{}, fmt.Errorf("%w: %s", txerr.ErrMissingAuthorization, addr)
	}

	if d, ok := a.(types.DelegatedTo); ok {
		if d.Authorization == nil {
			return Resolution{}, fmt.Errorf("%w: %s -> %s", txerr.ErrBrokenDelegation, addr, d.Delegate)
		}
		if _, again := d.Authorization.(types.DelegatedTo); again {
			return Resolution{}, fmt.Errorf("%w: %s -> %s", txerr.ErrUnsupportedDoubleDelegation, addr, d.Delegate)
		}
		res, err := direct(d.Delegate, d.Authorization)
		if err != nil {
			return Resolution{}, err
		}
		res.Delegated = true
		return res, nil
	}
	return direct(addr, a)
}

func direct(signer string, a types.Authorization) (Resolution, error) {
	switch a := a.(type) {
	case types.LocalKey:
		if len(a.Secret) == 0 {
			return Resolution{}, fmt.Errorf("%w: %s", txerr.ErrMissingLocalKey, signer)
		}
		return Resolution{Method: MethodLocal, Signer: signer, Secret: a.Secret}, nil
	case types.HardwareDevice:
		return Resolution{Method: MethodHardware, Signer: signer, Device: a.Device, DeviceLabel: a.Label}, nil
	default:
		return Resolution{}, fmt.Errorf("%w: %s has authorization %T", txerr.ErrMissingAuthorization, signer, a)
	}
}
