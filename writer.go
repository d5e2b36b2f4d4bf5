package mdr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scigolib/mdr/internal/erasure"
	"github.com/scigolib/mdr/internal/fragstore"
	"github.com/scigolib/mdr/internal/kvstore"
	"github.com/scigolib/mdr/internal/utils"
)

// Writer persists refactored fields: metadata to a key-value store and
// erasure-coded tier blobs to a fragment sink.
type Writer struct {
	store  kvstore.Store
	sink   fragstore.Sink
	logger *slog.Logger
}

// NewWriter creates a Writer. A nil logger discards output.
func NewWriter(store kvstore.Store, sink fragstore.Sink, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = discardLogger()
	}
	return &Writer{store: store, sink: sink, logger: logger}
}

// Write stores rf's metadata and layout, then fragments every tier blob
// and records where each fragment went.
func (w *Writer) Write(ctx context.Context, rf *Refactored, layout *Layout, cfg *TierConfig) error {
	if len(layout.Tiers) != len(cfg.Tiers) {
		return utils.ConfigErrorf("tiers", "layout has %d tiers, configuration %d", len(layout.Tiers), len(cfg.Tiers))
	}
	if err := PutMetadata(w.store, rf, layout); err != nil {
		return err
	}
	for i := range cfg.Tiers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writeTier(rf.Name, i, cfg, layout.Tiers[i].Blob); err != nil {
			return utils.WrapError(fmt.Sprintf("%s tier %d", rf.Name, i), err)
		}
	}
	return nil
}

func (w *Writer) writeTier(variable string, tier int, cfg *TierConfig, blob []byte) error {
	coder, err := erasure.New(cfg.Params(tier))
	if err != nil {
		return err
	}
	data, parity, fragLen, err := coder.Encode(blob)
	if err != nil {
		return err
	}

	tm := &TierMetadata{Params: coder.Params(), FragmentLength: fragLen}
	k := len(data)
	for j, frag := range data {
		loc, err := w.writeFragment(coder, variable, cfg.Tiers[tier].Path, tier, fragstore.KindData, j, j, frag)
		if err != nil {
			return err
		}
		tm.Data = append(tm.Data, loc)
	}
	for j, frag := range parity {
		loc, err := w.writeFragment(coder, variable, cfg.Tiers[tier].Path, tier, fragstore.KindParity, j, k+j, frag)
		if err != nil {
			return err
		}
		tm.Parity = append(tm.Parity, loc)
	}
	if err := putTier(w.store, variable, tier, tm); err != nil {
		return err
	}

	w.logger.Info("tier written",
		slog.String("variable", variable),
		slog.Int("tier", tier),
		slog.Int("blob_bytes", len(blob)),
		slog.Int("k", tm.Params.K),
		slog.Int("m", tm.Params.M),
		slog.Uint64("fragment_bytes", fragLen),
		slog.String("sink", w.sink.Name()))
	return nil
}

// writeFragment validates one fragment against its global index and writes it.
func (w *Writer) writeFragment(coder *erasure.Coder, variable, dir string, tier int, kind string, j, idx int, frag []byte) (string, error) {
	if _, err := coder.Validate(frag, idx); err != nil {
		return "", err
	}
	ref := fragstore.Ref{Dir: dir, Tier: tier, Kind: kind, Index: j, Variable: variable}
	loc, err := w.sink.Write(ref, frag)
	if err != nil {
		return "", err
	}
	w.logger.Debug("fragment written", slog.String("location", loc), slog.Int("index", idx))
	return loc, nil
}
