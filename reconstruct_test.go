package mdr

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/mdr/internal/fragstore"
	"github.com/scigolib/mdr/internal/kvstore"
)

func maxAbsDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}

type pipeline struct {
	refactorer *Refactorer
	store      kvstore.Store
	sink       fragstore.Sink
	cfg        *TierConfig
}

func newPipeline(t *testing.T, store kvstore.Store, sink fragstore.Sink, cfg string, opts ...Option) *pipeline {
	t.Helper()
	r, err := NewRefactorer(opts...)
	require.NoError(t, err)
	tiers, err := ParseTierConfig([]byte(cfg))
	require.NoError(t, err)
	return &pipeline{refactorer: r, store: store, sink: sink, cfg: tiers}
}

func (p *pipeline) run(t *testing.T, field Field) *Layout {
	t.Helper()
	ctx := context.Background()
	rf, err := p.refactorer.Refactor(ctx, field)
	require.NoError(t, err)
	layout, err := p.refactorer.Plan(rf, p.cfg)
	require.NoError(t, err)
	require.NoError(t, NewWriter(p.store, p.sink, nil).Write(ctx, rf, layout, p.cfg))
	return layout
}

const threeTiers = `
backend: jerasure_rs_vand
tiers:
  - {path: tier0, tolerance: 0.1, k: 3, m: 1}
  - {path: tier1, tolerance: 0.001, k: 4, m: 2}
  - {path: tier2, tolerance: 0.000001, k: 2, m: 1}
`

// The hierarchical basis in one dimension interpolates with convex
// weights, so the sum of level maxima bounds the pointwise error.
func TestReconstruct_MeetsToleranceHierarchical1D(t *testing.T) {
	p := newPipeline(t, kvstore.NewMemStore(), fragstore.NewMemSink(), threeTiers,
		WithDecomposer("hierarchical"), WithErrorModel("max", "max-hb"))
	field := smoothField("/line", []uint32{129})
	p.run(t, field)

	rec := NewReconstructor(p.store, p.sink, nil)
	for tiers, spec := range p.cfg.Tiers {
		out, err := rec.Reconstruct(context.Background(), "/line", tiers+1)
		require.NoError(t, err)
		require.Equal(t, field.Shape, out.Shape)
		require.Equal(t, "double", out.Type)

		diff := maxAbsDiff(field.Data, out.Data)
		require.Less(t, diff, spec.Tolerance, "tiers 0..%d", tiers)
	}
}

func gaussianField(name string, shape []uint32, seed int64) Field {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n)
	for i := range data {
		data[i] = 10 * rng.NormFloat64()
	}
	return Field{Name: name, Shape: shape, Type: "double", Data: data}
}

const randomTiers = `
tiers:
  - {path: tier0, tolerance: 1, k: 2, m: 1}
  - {path: tier1, tolerance: 0.01, k: 2, m: 1}
  - {path: tier2, tolerance: 0.00001, k: 2, m: 1}
`

// Rough fields in two and three dimensions exercise nodes that are fine
// along several axes, where detail errors add up during recomposition.
func TestReconstruct_MeetsToleranceHierarchicalND(t *testing.T) {
	shapes := [][]uint32{{40, 31}, {17, 9, 12}}
	for _, shape := range shapes {
		for seed := int64(0); seed < 3; seed++ {
			t.Run(fmt.Sprintf("%v/seed%d", shape, seed), func(t *testing.T) {
				p := newPipeline(t, kvstore.NewMemStore(), fragstore.NewMemSink(), randomTiers,
					WithDecomposer("hierarchical"), WithErrorModel("max", "max-hb"))
				field := gaussianField("noise", shape, seed)
				layout := p.run(t, field)

				rec := NewReconstructor(p.store, p.sink, nil)
				for i, tier := range layout.Tiers {
					require.True(t, tier.Plan.ToleranceMet, "tier %d", i)

					out, err := rec.Reconstruct(context.Background(), "noise", i+1)
					require.NoError(t, err)
					diff := maxAbsDiff(field.Data, out.Data)
					require.LessOrEqual(t, diff, tier.Plan.Error, "tier %d estimate", i)
					require.Less(t, diff, tier.Tolerance, "tier %d", i)
				}
			})
		}
	}
}

func TestReconstruct_Orthogonal2D(t *testing.T) {
	for _, enc := range []string{"grouped", "perbit", "negabinary"} {
		t.Run(enc, func(t *testing.T) {
			p := newPipeline(t, kvstore.NewMemStore(), fragstore.NewMemSink(),
				"tiers: [{path: t0, tolerance: 0.05, k: 2, m: 1}, {path: t1, tolerance: 0, k: 2, m: 1}]",
				WithEncoder(enc), WithInterleaver("sfc"), WithCompressor("default", "shuffle:4,lz4"))
			field := smoothField("rho", []uint32{33, 17})
			p.run(t, field)

			rec := NewReconstructor(p.store, p.sink, nil)
			coarse, err := rec.Reconstruct(context.Background(), "rho", 1)
			require.NoError(t, err)
			full, err := rec.Reconstruct(context.Background(), "rho", 0)
			require.NoError(t, err)

			require.Less(t, maxAbsDiff(field.Data, full.Data), 1e-6)
			require.Equal(t, full.Shape, coarse.Shape)
			require.Len(t, coarse.Data, len(field.Data))
			// Nega-binary prefixes can overshoot the max-error model, so
			// only sign-magnitude encoders are held to the coarse tier.
			if enc != "negabinary" {
				require.Less(t, maxAbsDiff(field.Data, coarse.Data), 0.05)
			}
		})
	}
}

func TestReconstruct_LostFragments(t *testing.T) {
	sink := fragstore.NewMemSink()
	store := kvstore.NewMemStore()
	p := newPipeline(t, store, sink,
		"backend: rs_cauchy\ntiers: [{path: t0, tolerance: 0.01, k: 4, m: 2}]",
		WithInterleaver("blocked"))
	field := smoothField("u", []uint32{17, 17})
	p.run(t, field)

	rec := NewReconstructor(store, sink, nil)
	want, err := rec.Reconstruct(context.Background(), "u", 1)
	require.NoError(t, err)

	drop := func(kind string, j int) {
		loc, err := store.Get(kvstore.LocationKey("u", 0, kind, j))
		require.NoError(t, err)
		sink.Drop(string(loc))
	}
	drop(kvstore.KindData, 1)
	drop(kvstore.KindParity, 0)

	got, err := rec.Reconstruct(context.Background(), "u", 1)
	require.NoError(t, err)
	require.Equal(t, want.Data, got.Data)

	drop(kvstore.KindData, 3)
	_, err = rec.Reconstruct(context.Background(), "u", 1)
	require.ErrorIs(t, err, ErrFragmenting)
}

func TestReconstruct_PersistentStores(t *testing.T) {
	dir := t.TempDir()
	store, err := kvstore.OpenBolt(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)

	cfg := "tiers: [{path: " + filepath.Join(dir, "fast") + ", tolerance: 0.01, k: 2, m: 1}," +
		" {path: " + filepath.Join(dir, "slow") + ", tolerance: 0.0001, k: 3, m: 1}]"
	p := newPipeline(t, store, &fragstore.HDF5Sink{Prefix: "run"}, cfg, WithPlanes(24))
	field := smoothField("/pressure", []uint32{33})
	layout := p.run(t, field)
	require.NoError(t, store.Close())

	store, err = kvstore.OpenBolt(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	defer store.Close()

	meta, err := LoadMetadata(store, "/pressure")
	require.NoError(t, err)
	require.Equal(t, []uint32{33}, meta.Shape)
	require.Equal(t, 2, meta.Tiers)
	require.Equal(t, layout.Table.Rows, meta.Table.Rows)
	require.Equal(t, 24, meta.Strategy.Planes)

	tm, err := LoadTierMetadata(store, "/pressure", 1)
	require.NoError(t, err)
	require.Equal(t, 3, tm.Params.K)
	require.Len(t, tm.Data, 3)
	require.Len(t, tm.Parity, 1)
	require.Equal(t, filepath.Join(dir, "slow", "run.refactored.tier.1.data.0.pressure.h5"), tm.Data[0])

	out, err := NewReconstructor(store, &fragstore.HDF5Sink{}, nil).Reconstruct(context.Background(), "/pressure", 0)
	require.NoError(t, err)
	require.Less(t, maxAbsDiff(field.Data, out.Data), 1e-3)
}

func TestReconstruct_UnknownVariable(t *testing.T) {
	rec := NewReconstructor(kvstore.NewMemStore(), fragstore.NewMemSink(), nil)
	_, err := rec.Reconstruct(context.Background(), "missing", 0)
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestWriter_TierMismatch(t *testing.T) {
	r, err := NewRefactorer()
	require.NoError(t, err)
	rf, err := r.Refactor(context.Background(), smoothField("v", []uint32{17}))
	require.NoError(t, err)
	layout, err := r.PlanTolerances(rf, []float64{0.1, 0.01})
	require.NoError(t, err)

	cfg, err := ParseTierConfig([]byte("tiers: [{path: a, tolerance: 0.1, k: 2, m: 1}]"))
	require.NoError(t, err)
	err = NewWriter(kvstore.NewMemStore(), fragstore.NewMemSink(), nil).Write(context.Background(), rf, layout, cfg)
	require.ErrorIs(t, err, ErrConfiguration)
}
