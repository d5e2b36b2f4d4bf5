package mdr

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/scigolib/mdr/internal/bitplane"
	"github.com/scigolib/mdr/internal/errest"
	"github.com/scigolib/mdr/internal/grid"
	"github.com/scigolib/mdr/internal/source"
	"github.com/scigolib/mdr/internal/utils"
)

// Field is one named N-dimensional variable, stored row-major.
type Field = source.Field

// Level is the encoded form of one decomposition level.
type Level struct {
	Count    int     // coefficients introduced at this level
	Max      float64 // largest coefficient magnitude
	Exponent int     // Max < 2^Exponent

	// Planes and Sizes hold the (possibly compressed) plane bytes.
	Planes [][]byte
	Sizes  []uint32

	// SquaredErrors is the encoder's measured error after 0..P planes.
	SquaredErrors []float64

	// Errors is the collector's error after 0..P planes, used for
	// scheduling.
	Errors []float64

	// Stop is the number of leading planes the compressor processed.
	Stop uint8
}

// Refactored is a field after decomposition and encoding.
type Refactored struct {
	Name     string
	Type     string
	Shape    []uint32
	Geometry *grid.Geometry
	Strategy Strategy
	Levels   []Level
}

// Refactorer runs the decomposition and encoding stages.
type Refactorer struct {
	logger   *slog.Logger
	workers  int
	levels   int
	strategy Strategy
	comp     *components
}

// NewRefactorer creates a Refactorer with the default strategy, modified by
// opts.
func NewRefactorer(opts ...Option) (*Refactorer, error) {
	r := &Refactorer{
		logger:   discardLogger(),
		workers:  runtime.NumCPU(),
		strategy: DefaultStrategy(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	comp, err := r.strategy.build()
	if err != nil {
		return nil, err
	}
	r.comp = comp
	return r, nil
}

// Strategy returns the component choices in effect.
func (r *Refactorer) Strategy() Strategy { return r.strategy }

// Refactor decomposes a copy of field and encodes every level. Levels are
// encoded concurrently, bounded by the worker limit.
func (r *Refactorer) Refactor(ctx context.Context, field Field) (*Refactored, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	target := r.levels - 1
	if r.levels == 0 {
		target = grid.MaxTargetLevel(field.Shape)
	}
	g, err := grid.New(field.Shape, target)
	if err != nil {
		return nil, utils.WrapError(field.Name, err)
	}

	coeffs := append([]float64(nil), field.Data...)
	if err := r.comp.decomposer.Decompose(coeffs, field.Shape, target); err != nil {
		return nil, utils.WrapError(field.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Refactored{
		Name:     field.Name,
		Type:     field.Type,
		Shape:    append([]uint32(nil), field.Shape...),
		Geometry: g,
		Strategy: r.strategy,
		Levels:   make([]Level, g.NumLevels()),
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.workers)
	for i := range out.Levels {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			level, err := r.encodeLevel(coeffs, g, i)
			if err != nil {
				return utils.WrapError(fmt.Sprintf("%s level %d", field.Name, i), err)
			}
			out.Levels[i] = *level
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeLevel runs interleave, encode, collect and compress for level i.
// coeffs is only read.
func (r *Refactorer) encodeLevel(coeffs []float64, g *grid.Geometry, i int) (*Level, error) {
	count := g.LevelCount(i)
	buf := utils.GetCoefficients(count)
	defer utils.ReleaseCoefficients(buf)

	if err := r.comp.interleaver.Interleave(coeffs, g.Shape, g.LevelShape(i), g.PrevShape(i), buf); err != nil {
		return nil, err
	}

	planes := r.strategy.Planes
	levelMax := bitplane.LevelMax(buf)
	exp := bitplane.Exponent(levelMax)
	res, err := r.comp.encoder.Encode(buf, exp, planes)
	if err != nil {
		return nil, err
	}

	errs := r.comp.collector.CollectLevelError(buf, count, planes, levelMax)
	if err := errest.ValidateMonotone(errs); err != nil {
		return nil, err
	}

	raw := 0
	for _, s := range res.Sizes {
		raw += int(s)
	}
	stop, err := r.comp.compressor.CompressLevel(res.Planes, res.Sizes)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}

	packed := 0
	for _, s := range res.Sizes {
		packed += int(s)
	}
	r.logger.Debug("level encoded",
		slog.Int("level", i),
		slog.Int("count", count),
		slog.Float64("max", levelMax),
		slog.Int("exponent", exp),
		slog.Int("raw_bytes", raw),
		slog.Int("bytes", packed),
		slog.Int("stop", int(stop)))

	return &Level{
		Count:         count,
		Max:           levelMax,
		Exponent:      exp,
		Planes:        res.Planes,
		Sizes:         res.Sizes,
		SquaredErrors: res.SquaredErrors,
		Errors:        errs,
		Stop:          stop,
	}, nil
}

// Sizes returns the per-level plane sizes.
func (rf *Refactored) Sizes() [][]uint32 {
	sizes := make([][]uint32, len(rf.Levels))
	for i, l := range rf.Levels {
		sizes[i] = l.Sizes
	}
	return sizes
}

// Errors returns the per-level collector errors.
func (rf *Refactored) Errors() [][]float64 {
	errs := make([][]float64, len(rf.Levels))
	for i, l := range rf.Levels {
		errs[i] = l.Errors
	}
	return errs
}

// Planes returns the per-level plane bytes.
func (rf *Refactored) Planes() [][][]byte {
	planes := make([][][]byte, len(rf.Levels))
	for i, l := range rf.Levels {
		planes[i] = l.Planes
	}
	return planes
}
