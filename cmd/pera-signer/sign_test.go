package main

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

func TestBatchEntry_Intent(t *testing.T) {
	from := crypto.GenerateAccount().Address.String()
	to := crypto.GenerateAccount().Address.String()

	tests := []struct {
		name  string
		entry batchEntry
		kind  types.Kind
	}{
		{"send algo", batchEntry{Kind: "send", From: from, To: to, Amount: "1.5"}, types.KindSend},
		{"send max", batchEntry{Kind: "send", From: from, To: to, Max: true}, types.KindSend},
		{"optin", batchEntry{Kind: "optin", From: from, Asset: 7}, types.KindAddAsset},
		{"optout", batchEntry{Kind: "optout", From: from, To: to, Asset: 7}, types.KindRemoveAsset},
		{"optout with send", batchEntry{Kind: "OPTOUT", From: from, To: to, Asset: 7, Amount: "3", Decimals: 2}, types.KindSendAndRemoveAsset},
		{"rekey", batchEntry{Kind: "rekey", From: from, To: to}, types.KindRekey},
		{"rekey standard", batchEntry{Kind: "rekey", From: from, To: to, Standard: true}, types.KindRekeyToStandardAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := tt.entry.intent()
			require.NoError(t, err)
			assert.Equal(t, tt.kind, in.Kind())
			assert.Equal(t, from, in.Common().Sender)
		})
	}
}

func TestBatchEntry_IntentErrors(t *testing.T) {
	from := crypto.GenerateAccount().Address.String()

	_, err := batchEntry{Kind: "burn", From: from}.intent()
	assert.Error(t, err)
	_, err = batchEntry{Kind: "send", From: "nope", To: from, Amount: "1"}.intent()
	assert.Error(t, err)
	_, err = batchEntry{Kind: "send", From: from, To: from, Amount: "0.0000001"}.intent()
	assert.Error(t, err)
}

func TestSendIntent_Amounts(t *testing.T) {
	from := crypto.GenerateAccount().Address.String()
	to := crypto.GenerateAccount().Address.String()

	in, err := sendIntent(from, to, "1.5", false, types.NativeAsset(), "hi")
	require.NoError(t, err)
	send := in.(types.Send)
	assert.Equal(t, int64(1_500_000), send.Amount.Int64())
	assert.Equal(t, []byte("hi"), send.Note)
	assert.Nil(t, send.Reserve)

	in, err = sendIntent(from, to, "", true, asset(9, 2), "")
	require.NoError(t, err)
	send = in.(types.Send)
	assert.True(t, send.IsMax)
	assert.Equal(t, 0, send.Amount.Sign())
	assert.Equal(t, types.Asset{ID: 9, Decimals: 2}, send.Asset)
	assert.Nil(t, send.Note)
}
