package config

import (
	"encoding/base64"
	"fmt"
)

// Profile identifies a network by its genesis block.
type Profile struct {
	GenesisID   string
	GenesisHash string // base64, as reported by algod
}

var profiles = map[NetworkType]Profile{
	Mainnet: {GenesisID: "mainnet-v1.0", GenesisHash: "wGHE2Pwdvd7S12BL5FaOP20EGYesN73ktiC1qzkkit8="},
	Testnet: {GenesisID: "testnet-v1.0", GenesisHash: "SGO1GKSzyE7IEPItTxCByw9x8FmnrCDexi9/cOUJOiI="},
	Betanet: {GenesisID: "betanet-v1.0", GenesisHash: "mFgazF+2uRS1tMiL9dsj01hJGySEmPN28B/TjjvpVW0="},
}

// NetworkProfile returns the genesis profile for a network. Localnet has
// no fixed genesis and returns false.
func NetworkProfile(network NetworkType) (Profile, bool) {
	p, ok := profiles[network]
	return p, ok
}

// HashBytes decodes the genesis hash.
func (p Profile) HashBytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(p.GenesisHash)
	if err != nil {
		return nil, fmt.Errorf("genesis hash: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("genesis hash: want 32 bytes, got %d", len(b))
	}
	return b, nil
}
