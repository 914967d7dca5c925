package types

import (
	"math/big"
	"testing"
)

func TestHoldings_AssetBalance(t *testing.T) {
	h := Holdings{
		Balance: big.NewInt(500),
		Assets:  map[uint64]*big.Int{7: big.NewInt(3)},
	}

	if v, ok := h.AssetBalance(0); !ok || v.Int64() != 500 {
		t.Errorf("native balance = %v, %v", v, ok)
	}
	if v, ok := h.AssetBalance(7); !ok || v.Int64() != 3 {
		t.Errorf("asset 7 = %v, %v", v, ok)
	}
	if _, ok := h.AssetBalance(8); ok {
		t.Error("asset 8 should not be held")
	}
	if !h.OptedIn(7) || h.OptedIn(8) {
		t.Error("OptedIn mismatch")
	}

	var empty Holdings
	if _, ok := empty.AssetBalance(0); ok {
		t.Error("empty holdings should have no native balance")
	}
}

func TestNewRecords(t *testing.T) {
	batch := []Intent{
		Send{Header: Header{Sender: "A"}},
		AddAsset{Header: Header{Sender: "B"}},
	}
	records := NewRecords(batch)
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	for i, r := range records {
		if r.Index != i {
			t.Errorf("record %d has index %d", i, r.Index)
		}
		if r.Built() {
			t.Errorf("record %d should not be built", i)
		}
	}
	if records[1].Intent.Kind() != KindAddAsset {
		t.Errorf("kind = %s", records[1].Intent.Kind())
	}
}

func TestRecord_BuiltAndReset(t *testing.T) {
	r := Record{Index: 3, Intent: Rekey{}, Payload: []byte{1}, Signed: []byte{2}, ProjectedFee: 1000, Requeued: true}
	if !r.Built() {
		t.Error("record with payload should be built")
	}
	if !(Record{Skipped: true}).Built() {
		t.Error("skipped record counts as built")
	}

	reset := r.Reset()
	if reset.Index != 3 || reset.Intent == nil {
		t.Error("reset should keep index and intent")
	}
	if reset.Payload != nil || reset.Signed != nil || reset.ProjectedFee != 0 || reset.Requeued {
		t.Error("reset should clear derived state")
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindSend:                   "send",
		KindSendAndRemoveAsset:     "send_and_remove_asset",
		KindRekeyToStandardAccount: "rekey_to_standard",
		Kind(42):                   "kind(42)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestNativeAsset(t *testing.T) {
	a := NativeAsset()
	if !a.Native || a.ID != 0 || a.Decimals != NativeDecimals {
		t.Errorf("NativeAsset() = %+v", a)
	}
	if (Send{Header: Header{Asset: a}}).Common().Asset != a {
		t.Error("Common should expose the header")
	}
}
