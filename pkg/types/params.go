package types

// Params is a snapshot of network-wide transaction parameters. It is fetched
// once per submission and shared read-only by every intent in the batch.
type Params struct {
	MinFee      uint64
	FeePerByte  uint64
	FirstRound  uint64
	LastRound   uint64
	GenesisID   string
	GenesisHash []byte
}
