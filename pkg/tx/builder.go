package tx

// Fields are the chain-level values of one transaction.
type Fields struct {
	Sender   string
	Receiver string
	Amount   uint64
	AssetID  uint64
	CloseTo  string
	RekeyTo  string
	Note     []byte
	Fee      uint64

	// AuthAddr is the signer when it is not Sender. It only affects fee
	// sizing; the unsigned payload never carries it.
	AuthAddr string
}

// Builder assembles Fields incrementally.
type Builder struct {
	f Fields
}

// NewBuilder creates a builder for a transaction sent by sender.
func NewBuilder(sender string) *Builder {
	return &Builder{f: Fields{Sender: sender}}
}

// Pay sets the receiver and amount.
func (b *Builder) Pay(receiver string, amount uint64) *Builder {
	b.f.Receiver = receiver
	b.f.Amount = amount
	return b
}

// Asset sets the asset being transferred. Zero is the native unit.
func (b *Builder) Asset(id uint64) *Builder {
	b.f.AssetID = id
	return b
}

// CloseTo closes the remaining balance (or asset holding) to addr.
func (b *Builder) CloseTo(addr string) *Builder {
	b.f.CloseTo = addr
	return b
}

// RekeyTo delegates the sender's authority to addr.
func (b *Builder) RekeyTo(addr string) *Builder {
	b.f.RekeyTo = addr
	return b
}

// Note attaches an arbitrary note.
func (b *Builder) Note(note []byte) *Builder {
	b.f.Note = note
	return b
}

// SignedBy records that addr, not the sender, will sign.
func (b *Builder) SignedBy(addr string) *Builder {
	b.f.AuthAddr = addr
	return b
}

// Fee sets the flat fee.
func (b *Builder) Fee(fee uint64) *Builder {
	b.f.Fee = fee
	return b
}

// Build returns the assembled fields.
func (b *Builder) Build() Fields {
	return b.f
}
