// Package group stamps a shared group id into every member of an atomic
// transaction group.
package group

import (
	"fmt"

	"github.com/perawallet/pera-wallet-sub002/pkg/tx"
	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// Context is the result of one assembly: the stamped payloads in order and
// the id they share.
type Context struct {
	Payloads [][]byte
	GroupID  []byte
	// Members maps each payload back to its record index.
	Members []int
}

// Assembler assigns group ids through the chain SDK.
type Assembler struct {
	sdk tx.SDK
}

// New creates an assembler.
func New(sdk tx.SDK) *Assembler {
	return &Assembler{sdk: sdk}
}

// Assemble stamps one group id over payloads. Every payload must already be
// built; otherwise it fails before the SDK is called. The result holds all
// rewritten payloads or the call fails.
func (a *Assembler) Assemble(payloads [][]byte) (Context, error) {
	for i, p := range payloads {
		if len(p) == 0 {
			return Context{}, fmt.Errorf("%w: member %d", txerr.ErrIncompleteGroup, i)
		}
	}
	if len(payloads) > tx.MaxGroupSize {
		return Context{}, fmt.Errorf("%w: %d members", txerr.ErrGroupTooLarge, len(payloads))
	}

	stamped, gid, err := a.sdk.AssignGroupID(payloads)
	if err != nil {
		return Context{}, fmt.Errorf("assign group id: %w", err)
	}
	if len(stamped) != len(payloads) {
		return Context{}, fmt.Errorf("assign group id: got %d payloads for %d members", len(stamped), len(payloads))
	}
	return Context{Payloads: stamped, GroupID: gid}, nil
}

// Stamp groups the records that carry a transaction. Skipped records are
// left out. With fewer than two members no group is needed and the records
// are returned as they are.
func (a *Assembler) Stamp(records []types.Record) ([]types.Record, Context, error) {
	var (
		payloads [][]byte
		members  []int
	)
	for i, r := range records {
		if r.Skipped {
			continue
		}
		if !r.Built() {
			return records, Context{}, fmt.Errorf("%w: member %d", txerr.ErrIncompleteGroup, i)
		}
		payloads = append(payloads, r.Payload)
		members = append(members, i)
	}
	if len(members) < 2 {
		return records, Context{Members: members, Payloads: payloads}, nil
	}

	gc, err := a.Assemble(payloads)
	if err != nil {
		return records, Context{}, err
	}
	gc.Members = members

	out := make([]types.Record, len(records))
	copy(out, records)
	for j, i := range members {
		out[i].Payload = gc.Payloads[j]
		out[i].Signed = nil
	}
	return out, gc, nil
}
