// Package tx wraps the chain SDK: it builds unsigned payloads, signs them
// with local keys and stamps group ids.
package tx

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"
)

// MaxGroupSize is the largest atomic group the chain accepts.
const MaxGroupSize = 16

// Decode parses an unsigned payload.
func Decode(payload []byte) (algotypes.Transaction, error) {
	var txn algotypes.Transaction
	if len(payload) == 0 {
		return txn, fmt.Errorf("empty payload")
	}
	if err := msgpack.Decode(payload, &txn); err != nil {
		return txn, fmt.Errorf("decode transaction: %w", err)
	}
	return txn, nil
}

// DecodeSigned parses a signed payload.
func DecodeSigned(payload []byte) (algotypes.SignedTxn, error) {
	var stx algotypes.SignedTxn
	if len(payload) == 0 {
		return stx, fmt.Errorf("empty signed payload")
	}
	if err := msgpack.Decode(payload, &stx); err != nil {
		return stx, fmt.Errorf("decode signed transaction: %w", err)
	}
	return stx, nil
}

// Encode serializes an unsigned transaction.
func Encode(txn algotypes.Transaction) []byte {
	return msgpack.Encode(txn)
}

// TxID returns the transaction id of an unsigned or signed payload.
func TxID(payload []byte) (string, error) {
	if stx, err := DecodeSigned(payload); err == nil && stx.Txn.Sender != (algotypes.Address{}) {
		return crypto.GetTxID(stx.Txn), nil
	}
	txn, err := Decode(payload)
	if err != nil {
		return "", err
	}
	return crypto.GetTxID(txn), nil
}
