package types

// Authorization describes how an account's transactions are authorized.
// Implementations: LocalKey, HardwareDevice, DelegatedTo.
type Authorization interface {
	isAuthorization()
}

// LocalKey signs with a secret key held by the wallet.
type LocalKey struct {
	Secret []byte
}

// HardwareDevice signs on an external device reachable over Bluetooth.
type HardwareDevice struct {
	Device string // Bluetooth address.
	Label  string // Human-readable device name.
}

// DelegatedTo means the account is rekeyed to Delegate. Authorization is the
// delegate's own authorization; nil means the delegate cannot sign here.
type DelegatedTo struct {
	Delegate      string
	Authorization Authorization
}

func (LocalKey) isAuthorization()       {}
func (HardwareDevice) isAuthorization() {}
func (DelegatedTo) isAuthorization()    {}
