package mdr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scigolib/mdr/internal/bitplane"
	"github.com/scigolib/mdr/internal/erasure"
	"github.com/scigolib/mdr/internal/fragstore"
	"github.com/scigolib/mdr/internal/grid"
	"github.com/scigolib/mdr/internal/kvstore"
	"github.com/scigolib/mdr/internal/utils"
)

// Reconstructor rebuilds fields from the tiers written by a Writer.
type Reconstructor struct {
	store  kvstore.Store
	sink   fragstore.Sink
	logger *slog.Logger
}

// NewReconstructor creates a Reconstructor. A nil logger discards output.
func NewReconstructor(store kvstore.Store, sink fragstore.Sink, logger *slog.Logger) *Reconstructor {
	if logger == nil {
		logger = discardLogger()
	}
	return &Reconstructor{store: store, sink: sink, logger: logger}
}

// Reconstruct rebuilds variable from its first tiers tiers; tiers <= 0
// uses every tier. Up to m fragments per tier may be missing.
func (r *Reconstructor) Reconstruct(ctx context.Context, variable string, tiers int) (*Field, error) {
	meta, err := LoadMetadata(r.store, variable)
	if err != nil {
		return nil, err
	}
	if tiers <= 0 || tiers > meta.Tiers {
		tiers = meta.Tiers
	}
	comp, err := meta.Strategy.build()
	if err != nil {
		return nil, utils.WrapError(variable, err)
	}
	g, err := grid.New(meta.Shape, meta.Levels-1)
	if err != nil {
		return nil, utils.WrapError(variable, err)
	}

	planes := make(map[[2]int][]byte)
	for t := 0; t < tiers; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blob, err := r.readTier(variable, t)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("%s tier %d", variable, t), err)
		}
		parts, err := meta.Table.Split(t, blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %s tier %d: %w", utils.ErrPersistence, variable, t, err)
		}
		for key, p := range parts {
			planes[key] = p
		}
	}

	numPlanes := meta.Strategy.Planes
	full := make([]float64, grid.RegionSize(meta.Shape))
	for i := 0; i < meta.Levels; i++ {
		level := make([][]byte, 0, numPlanes)
		for p := 0; p < numPlanes; p++ {
			b, ok := planes[[2]int{i, p}]
			if !ok {
				break
			}
			level = append(level, append([]byte(nil), b...))
		}
		k := len(level)
		sizes := make([]uint32, k)
		for p, b := range level {
			sizes[p] = uint32(len(b)) //nolint:gosec // G115: planes are far below 4 GiB
		}
		stop := min(int(meta.StopIndices[i]), k)
		if err := comp.compressor.DecompressLevel(level, sizes, uint8(stop)); err != nil { //nolint:gosec // G115: stop <= 255
			return nil, utils.WrapError(fmt.Sprintf("%s level %d", variable, i), err)
		}

		count := g.LevelCount(i)
		exp := bitplane.Exponent(meta.ErrorBounds[i])
		coeffs, err := comp.encoder.Decode(level, count, exp, numPlanes, k)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("%s level %d", variable, i), err)
		}
		if err := comp.interleaver.Reposition(coeffs, g.Shape, g.LevelShape(i), g.PrevShape(i), full); err != nil {
			return nil, utils.WrapError(fmt.Sprintf("%s level %d", variable, i), err)
		}
		r.logger.Debug("level decoded", slog.String("variable", variable), slog.Int("level", i), slog.Int("planes", k))
	}

	if err := comp.decomposer.Recompose(full, meta.Shape, meta.Levels-1); err != nil {
		return nil, utils.WrapError(variable, err)
	}
	return &Field{Name: variable, Shape: meta.Shape, Type: meta.Type, Data: full}, nil
}

// readTier gathers the fragments of one tier and decodes its blob.
// Unreadable fragments are treated as lost.
func (r *Reconstructor) readTier(variable string, tier int) ([]byte, error) {
	tm, err := LoadTierMetadata(r.store, variable, tier)
	if err != nil {
		return nil, err
	}
	coder, err := erasure.New(tm.Params)
	if err != nil {
		return nil, err
	}

	locations := append(append([]string{}, tm.Data...), tm.Parity...)
	frags := make([][]byte, len(locations))
	for idx, loc := range locations {
		frag, err := r.sink.Read(loc)
		if err != nil {
			r.logger.Warn("fragment unavailable", slog.String("location", loc), slog.Any("error", err))
			continue
		}
		if uint64(len(frag)) != tm.FragmentLength {
			r.logger.Warn("fragment length mismatch", slog.String("location", loc),
				slog.Int("bytes", len(frag)), slog.Uint64("expected", tm.FragmentLength))
			continue
		}
		frags[idx] = frag
	}
	return coder.Decode(frags)
}
