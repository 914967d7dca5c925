package tx

import (
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// RequiredFee returns the fee for a signed transaction of size bytes:
// size * FeePerByte, but never less than MinFee.
func RequiredFee(params types.Params, size int) uint64 {
	fee := params.FeePerByte * uint64(size)
	if fee < params.MinFee {
		return params.MinFee
	}
	return fee
}

// EstimateSize returns the encoded size of txn once it carries a single
// signature, and the auth address when authAddr is not zero. The signature
// is filled with non-zero bytes so it is not omitted by the encoder.
func EstimateSize(txn algotypes.Transaction, authAddr algotypes.Address) int {
	stx := algotypes.SignedTxn{Txn: txn, AuthAddr: authAddr}
	for i := range stx.Sig {
		stx.Sig[i] = 0xff
	}
	return len(msgpack.Encode(stx))
}

// SignedFee returns the fee a signed payload of the given length requires.
// Hardware bridges that cannot report a fee are measured this way.
func SignedFee(params types.Params, signed []byte) uint64 {
	return RequiredFee(params, len(signed))
}
