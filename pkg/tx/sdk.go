package tx

import (
	"crypto/ed25519"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// SDK is the chain capability the orchestrator depends on.
type SDK interface {
	// BuildPayload serializes an unsigned transaction of the given kind.
	BuildPayload(kind types.Kind, params types.Params, f Fields) ([]byte, error)
	// EstimateFee returns the fee the transaction will need once signed.
	EstimateFee(kind types.Kind, params types.Params, f Fields) (uint64, error)
	// SignWithLocalKey signs an unsigned payload and returns the signed bytes.
	SignWithLocalKey(payload, secret []byte) ([]byte, error)
	// AssignGroupID stamps one group id into every payload. It returns
	// either all rewritten payloads and the id, or an error.
	AssignGroupID(payloads [][]byte) ([][]byte, []byte, error)
}

// Algorand implements SDK with go-algorand-sdk.
type Algorand struct{}

// NewAlgorand returns the go-algorand-sdk backed SDK.
func NewAlgorand() *Algorand {
	return &Algorand{}
}

func suggestedParams(p types.Params, fee uint64) algotypes.SuggestedParams {
	return algotypes.SuggestedParams{
		Fee:             algotypes.MicroAlgos(fee),
		GenesisID:       p.GenesisID,
		GenesisHash:     p.GenesisHash,
		FirstRoundValid: algotypes.Round(p.FirstRound),
		LastRoundValid:  algotypes.Round(p.LastRound),
		FlatFee:         true,
		MinFee:          p.MinFee,
	}
}

func (a *Algorand) makeTxn(kind types.Kind, params types.Params, f Fields) (algotypes.Transaction, error) {
	sp := suggestedParams(params, f.Fee)

	var (
		txn algotypes.Transaction
		err error
	)
	switch kind {
	case types.KindSend:
		if f.AssetID == 0 {
			txn, err = transaction.MakePaymentTxn(f.Sender, f.Receiver, f.Amount, f.Note, f.CloseTo, sp)
		} else {
			txn, err = transaction.MakeAssetTransferTxn(f.Sender, f.Receiver, f.Amount, f.Note, sp, "", f.AssetID)
		}
	case types.KindAddAsset:
		txn, err = transaction.MakeAssetAcceptanceTxn(f.Sender, f.Note, sp, f.AssetID)
	case types.KindRemoveAsset, types.KindSendAndRemoveAsset:
		txn, err = transaction.MakeAssetTransferTxn(f.Sender, f.Receiver, f.Amount, f.Note, sp, f.CloseTo, f.AssetID)
	case types.KindRekey, types.KindRekeyToStandardAccount:
		txn, err = transaction.MakePaymentTxn(f.Sender, f.Sender, 0, f.Note, "", sp)
		if err == nil {
			txn.RekeyTo, err = algotypes.DecodeAddress(f.RekeyTo)
		}
	default:
		return txn, fmt.Errorf("unsupported transaction kind %s", kind)
	}
	if err != nil {
		return txn, fmt.Errorf("make %s transaction: %w", kind, err)
	}
	return txn, nil
}

// BuildPayload implements SDK.
func (a *Algorand) BuildPayload(kind types.Kind, params types.Params, f Fields) ([]byte, error) {
	txn, err := a.makeTxn(kind, params, f)
	if err != nil {
		return nil, err
	}
	return Encode(txn), nil
}

// EstimateFee implements SDK.
func (a *Algorand) EstimateFee(kind types.Kind, params types.Params, f Fields) (uint64, error) {
	f.Fee = 0
	txn, err := a.makeTxn(kind, params, f)
	if err != nil {
		return 0, err
	}
	var auth algotypes.Address
	if f.AuthAddr != "" && f.AuthAddr != f.Sender {
		if auth, err = algotypes.DecodeAddress(f.AuthAddr); err != nil {
			return 0, fmt.Errorf("auth address: %w", err)
		}
	}
	// The fee field itself takes space once set.
	txn.Fee = algotypes.MicroAlgos(RequiredFee(params, EstimateSize(txn, auth)))
	return RequiredFee(params, EstimateSize(txn, auth)), nil
}

// SignWithLocalKey implements SDK. The auth address is set by the SDK when
// the key does not belong to the sender.
func (a *Algorand) SignWithLocalKey(payload, secret []byte) ([]byte, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}
	txn, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	_, signed, err := crypto.SignTransaction(ed25519.PrivateKey(secret), txn)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// AssignGroupID implements SDK. Existing group ids are cleared first so a
// rebuilt group can be stamped again.
func (a *Algorand) AssignGroupID(payloads [][]byte) ([][]byte, []byte, error) {
	if len(payloads) > MaxGroupSize {
		return nil, nil, fmt.Errorf("group of %d exceeds %d", len(payloads), MaxGroupSize)
	}
	txns := make([]algotypes.Transaction, len(payloads))
	for i, p := range payloads {
		txn, err := Decode(p)
		if err != nil {
			return nil, nil, fmt.Errorf("member %d: %w", i, err)
		}
		txn.Group = algotypes.Digest{}
		txns[i] = txn
	}

	gid, err := crypto.ComputeGroupID(txns)
	if err != nil {
		return nil, nil, fmt.Errorf("compute group id: %w", err)
	}

	out := make([][]byte, len(txns))
	for i := range txns {
		txns[i].Group = gid
		out[i] = Encode(txns[i])
	}
	return out, gid[:], nil
}
