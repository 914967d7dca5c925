// Package types defines the intents, account authorizations and per-intent
// build records that flow through the signing orchestrator.
package types

import (
	"fmt"
	"math/big"
)

// Kind identifies the user action an intent represents.
type Kind uint8

const (
	KindSend Kind = iota + 1
	KindAddAsset
	KindRemoveAsset
	KindSendAndRemoveAsset
	KindRekey
	KindRekeyToStandardAccount
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindSend:
		return "send"
	case KindAddAsset:
		return "add_asset"
	case KindRemoveAsset:
		return "remove_asset"
	case KindSendAndRemoveAsset:
		return "send_and_remove_asset"
	case KindRekey:
		return "rekey"
	case KindRekeyToStandardAccount:
		return "rekey_to_standard"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// AccountKind is the sender's account type as declared by the caller.
type AccountKind uint8

const (
	AccountStandard AccountKind = iota + 1
	AccountLedger
	AccountRekeyed
	AccountWatch
)

// NativeDecimals is the number of decimals of the chain's native unit.
const NativeDecimals = 6

// Asset references the asset an intent moves or opts in/out of.
// ID 0 with Native set is the chain's native unit.
type Asset struct {
	ID       uint64
	Decimals uint32
	Native   bool
}

// NativeAsset returns the reference for the native unit.
func NativeAsset() Asset {
	return Asset{ID: 0, Decimals: NativeDecimals, Native: true}
}

// Header holds the fields every intent carries.
type Header struct {
	Sender     string
	SenderKind AccountKind
	Asset      Asset
	Note       []byte
	// Target is the receiver for sends, the creator for asset removal and
	// the new authorized address for rekeys.
	Target string
}

// Common returns the shared header.
func (h Header) Common() Header { return h }

func (Header) isIntent() {}

// Intent is a user-level request to produce one transaction.
// The set of implementations is closed: Send, AddAsset, RemoveAsset,
// SendAndRemoveAsset, Rekey and RekeyToStandardAccount.
type Intent interface {
	Kind() Kind
	Common() Header
	isIntent()
}

// Send transfers Amount of Asset from Sender to Target.
type Send struct {
	Header
	Amount *big.Int
	IsMax  bool
	// Reserve is the sender's minimum balance. Nil means "use the
	// directory's current value".
	Reserve *big.Int
	// Delegated is set when the sender is rekeyed to another account.
	Delegated bool
}

func (Send) Kind() Kind { return KindSend }

// AddAsset opts the sender into Asset.
type AddAsset struct{ Header }

func (AddAsset) Kind() Kind { return KindAddAsset }

// RemoveAsset opts the sender out of Asset, closing the holding to Target.
type RemoveAsset struct{ Header }

func (RemoveAsset) Kind() Kind { return KindRemoveAsset }

// SendAndRemoveAsset sends Amount of Asset to Target and closes the rest of
// the holding to Target in the same transaction.
type SendAndRemoveAsset struct {
	Header
	// Amount nil means the sender's whole holding.
	Amount *big.Int
}

func (SendAndRemoveAsset) Kind() Kind { return KindSendAndRemoveAsset }

// Rekey delegates the sender's signing authority to Target (usually a
// hardware-backed account).
type Rekey struct{ Header }

func (Rekey) Kind() Kind { return KindRekey }

// RekeyToStandardAccount delegates the sender's signing authority to a
// standard account at Target.
type RekeyToStandardAccount struct{ Header }

func (RekeyToStandardAccount) Kind() Kind { return KindRekeyToStandardAccount }
