package manager

import (
	"context"

	"github.com/perawallet/pera-wallet-sub002/internal/builder"
	"github.com/perawallet/pera-wallet-sub002/internal/group"
	"github.com/perawallet/pera-wallet-sub002/pkg/types"
)

// rebuilder rebuilds one record after a device fee mismatch and, for
// grouped batches, re-stamps the whole group.
type rebuilder struct {
	builder   *builder.Builder
	assembler *group.Assembler
	params    types.Params
	grouped   bool

	gid []byte // Latest group id after a re-stamp.
}

func (r *rebuilder) Rebuild(ctx context.Context, records []types.Record, index int) ([]types.Record, error) {
	out := make([]types.Record, len(records))
	copy(out, records)

	rec, err := r.builder.Build(ctx, out[index], r.params)
	if err != nil {
		return nil, err
	}
	out[index] = rec
	if !r.grouped {
		return out, nil
	}

	stamped, gc, err := r.assembler.Stamp(out)
	if err != nil {
		return nil, err
	}
	r.gid = gc.GroupID
	return stamped, nil
}
