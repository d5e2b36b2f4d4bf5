package mdr

import (
	"fmt"

	"github.com/scigolib/mdr/internal/erasure"
	"github.com/scigolib/mdr/internal/kvstore"
	"github.com/scigolib/mdr/internal/manifest"
	"github.com/scigolib/mdr/internal/utils"
)

// Metadata is everything persisted about one variable except its tiers.
type Metadata struct {
	Name          string
	Type          string
	Shape         []uint32
	Levels        int
	ErrorBounds   []float64
	StopIndices   []uint8
	SquaredErrors [][]float64
	Table         *manifest.Table
	Tiers         int
	Strategy      Strategy
}

// TierMetadata is the persisted erasure configuration and fragment
// locations of one tier.
type TierMetadata struct {
	Params         erasure.Params
	FragmentLength uint64
	Data           []string
	Parity         []string
}

// recorder writes records under one variable and keeps the first error.
type recorder struct {
	store    kvstore.Store
	variable string
	err      error
}

func (r *recorder) put(key string, value []byte) {
	if r.err != nil {
		return
	}
	if err := r.store.Put(key, value); err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (r *recorder) field(name string, value []byte) {
	r.put(kvstore.Key(r.variable, name), value)
}

func (r *recorder) tier(tier int, name string, value []byte) {
	r.put(kvstore.TierKey(r.variable, tier, name), value)
}

// PutMetadata writes the variable-level records of rf and its layout.
func PutMetadata(store kvstore.Store, rf *Refactored, layout *Layout) error {
	bounds := make([]float64, len(rf.Levels))
	stops := make([]byte, len(rf.Levels))
	squared := make([][]float64, len(rf.Levels))
	for i, l := range rf.Levels {
		bounds[i] = l.Max
		stops[i] = l.Stop
		squared[i] = l.SquaredErrors
	}
	sqShape, sqFlat, err := kvstore.EncodeMatrix(squared)
	if err != nil {
		return utils.WrapError(rf.Name, err)
	}
	strategy, err := MarshalStrategy(rf.Strategy)
	if err != nil {
		return utils.WrapError(rf.Name, err)
	}

	rec := &recorder{store: store, variable: rf.Name}
	rec.field(kvstore.Dimensions, kvstore.EncodeUint32s(rf.Shape))
	rec.field(kvstore.Type, []byte(rf.Type))
	rec.field(kvstore.Levels, kvstore.EncodeUint32(uint32(len(rf.Levels)))) //nolint:gosec // G115: level counts are small
	rec.field(kvstore.ErrorBounds, kvstore.EncodeFloat64s(bounds))
	rec.field(kvstore.StopIndices, stops)
	rec.field(kvstore.SquaredErrorsShape, sqShape)
	rec.field(kvstore.SquaredErrors, sqFlat)
	rec.field(kvstore.QueryTableShape, layout.Table.EncodeShape())
	rec.field(kvstore.QueryTable, layout.Table.EncodeRows())
	rec.field(kvstore.Tiers, kvstore.EncodeUint32(uint32(len(layout.Tiers)))) //nolint:gosec // G115: tier counts are small
	rec.field(kvstore.Strategy, strategy)
	return rec.err
}

// putTier writes the erasure records of one tier.
func putTier(store kvstore.Store, variable string, tier int, tm *TierMetadata) error {
	p := tm.Params
	rec := &recorder{store: store, variable: variable}
	rec.tier(tier, kvstore.TierK, kvstore.EncodeInt32(int32(p.K)))     //nolint:gosec // G115: bounded by erasure.MaxFragments
	rec.tier(tier, kvstore.TierM, kvstore.EncodeInt32(int32(p.M)))     //nolint:gosec // G115: bounded by erasure.MaxFragments
	rec.tier(tier, kvstore.TierW, kvstore.EncodeInt32(int32(p.W)))     //nolint:gosec // G115: validated word size
	rec.tier(tier, kvstore.TierHD, kvstore.EncodeInt32(int32(p.HD()))) //nolint:gosec // G115: bounded by erasure.MaxFragments
	rec.tier(tier, kvstore.TierBackend, []byte(p.Backend))
	rec.tier(tier, kvstore.TierEncodedFragmentLength, kvstore.EncodeUint64(tm.FragmentLength))
	for j, loc := range tm.Data {
		rec.put(kvstore.LocationKey(variable, tier, kvstore.KindData, j), []byte(loc))
	}
	for j, loc := range tm.Parity {
		rec.put(kvstore.LocationKey(variable, tier, kvstore.KindParity, j), []byte(loc))
	}
	return rec.err
}

// loader reads records and keeps the first error.
type loader struct {
	store kvstore.Store
	err   error
}

func (l *loader) get(key string) []byte {
	if l.err != nil {
		return nil
	}
	v, err := l.store.Get(key)
	if err != nil {
		l.err = fmt.Errorf("%w: %w", utils.ErrPersistence, err)
		return nil
	}
	return v
}

func (l *loader) decode(key string, fn func([]byte) error) {
	v := l.get(key)
	if l.err != nil {
		return
	}
	if err := fn(v); err != nil {
		l.err = fmt.Errorf("%w: %s: %w", utils.ErrPersistence, key, err)
	}
}

func (l *loader) int32At(key string) int {
	var n int32
	l.decode(key, func(b []byte) (err error) {
		n, err = kvstore.DecodeInt32(b)
		return err
	})
	return int(n)
}

// LoadMetadata reads the variable-level records written by PutMetadata.
func LoadMetadata(store kvstore.Store, variable string) (*Metadata, error) {
	l := &loader{store: store}
	m := &Metadata{Name: variable}
	key := func(name string) string { return kvstore.Key(variable, name) }

	l.decode(key(kvstore.Dimensions), func(b []byte) (err error) {
		m.Shape, err = kvstore.DecodeUint32s(b)
		return err
	})
	m.Type = string(l.get(key(kvstore.Type)))
	l.decode(key(kvstore.Levels), func(b []byte) error {
		n, err := kvstore.DecodeUint32(b)
		m.Levels = int(n)
		return err
	})
	l.decode(key(kvstore.ErrorBounds), func(b []byte) (err error) {
		m.ErrorBounds, err = kvstore.DecodeFloat64s(b)
		return err
	})
	m.StopIndices = l.get(key(kvstore.StopIndices))
	sqShape := l.get(key(kvstore.SquaredErrorsShape))
	l.decode(key(kvstore.SquaredErrors), func(b []byte) (err error) {
		m.SquaredErrors, err = kvstore.DecodeMatrix(sqShape, b)
		return err
	})
	qtShape := l.get(key(kvstore.QueryTableShape))
	l.decode(key(kvstore.QueryTable), func(b []byte) (err error) {
		m.Table, err = manifest.Decode(qtShape, b)
		return err
	})
	l.decode(key(kvstore.Tiers), func(b []byte) error {
		n, err := kvstore.DecodeUint32(b)
		m.Tiers = int(n)
		return err
	})
	l.decode(key(kvstore.Strategy), func(b []byte) (err error) {
		m.Strategy, err = UnmarshalStrategy(b)
		return err
	})
	if l.err != nil {
		return nil, utils.WrapError(variable, l.err)
	}

	if len(m.ErrorBounds) != m.Levels || len(m.StopIndices) != m.Levels || len(m.SquaredErrors) != m.Levels {
		return nil, fmt.Errorf("%w: %s: records disagree on %d levels", utils.ErrPersistence, variable, m.Levels)
	}
	return m, nil
}

// LoadTierMetadata reads the erasure records of one tier.
func LoadTierMetadata(store kvstore.Store, variable string, tier int) (*TierMetadata, error) {
	l := &loader{store: store}
	key := func(name string) string { return kvstore.TierKey(variable, tier, name) }

	tm := &TierMetadata{}
	tm.Params.K = l.int32At(key(kvstore.TierK))
	tm.Params.M = l.int32At(key(kvstore.TierM))
	tm.Params.W = l.int32At(key(kvstore.TierW))
	tm.Params.Backend = string(l.get(key(kvstore.TierBackend)))
	l.decode(key(kvstore.TierEncodedFragmentLength), func(b []byte) (err error) {
		tm.FragmentLength, err = kvstore.DecodeUint64(b)
		return err
	})
	if l.err != nil {
		return nil, utils.WrapError(fmt.Sprintf("%s tier %d", variable, tier), l.err)
	}

	for j := 0; j < tm.Params.K; j++ {
		tm.Data = append(tm.Data, string(l.get(kvstore.LocationKey(variable, tier, kvstore.KindData, j))))
	}
	for j := 0; j < tm.Params.M; j++ {
		tm.Parity = append(tm.Parity, string(l.get(kvstore.LocationKey(variable, tier, kvstore.KindParity, j))))
	}
	if l.err != nil {
		return nil, utils.WrapError(fmt.Sprintf("%s tier %d", variable, tier), l.err)
	}
	return tm, nil
}
