package types

import "math/big"

// Record carries one intent and everything derived from it while the batch
// is processed. Records are passed and returned by value; each stage hands
// back an updated copy instead of mutating shared state.
type Record struct {
	Index  int
	Intent Intent

	ProjectedFee uint64
	// MeasuredFee is the fee reported by a hardware device on a previous
	// attempt. Zero means none.
	MeasuredFee uint64
	// Amount is the final amount for value-moving intents.
	Amount *big.Int

	Payload []byte // Unsigned, possibly group-stamped.
	Signed  []byte

	// Skipped marks an intent that needs no transaction (already removed asset).
	Skipped bool
	// Requeued is set once the single fee-mismatch retry has been spent.
	Requeued bool
}

// NewRecords wraps a batch of intents in records, in index order.
func NewRecords(batch []Intent) []Record {
	records := make([]Record, len(batch))
	for i, in := range batch {
		records[i] = Record{Index: i, Intent: in}
	}
	return records
}

// Built reports whether the record has a payload or needs none.
func (r Record) Built() bool {
	return r.Skipped || len(r.Payload) > 0
}

// Reset drops all derived state, keeping the intent and position.
func (r Record) Reset() Record {
	return Record{Index: r.Index, Intent: r.Intent}
}
