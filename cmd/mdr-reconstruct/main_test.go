package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/mdr"
	"github.com/scigolib/mdr/internal/source"
)

func TestWriteOutput_Raw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.f64")
	field := &mdr.Field{Name: "x", Shape: []uint32{3}, Data: []float64{1, 2, 3}}
	require.NoError(t, writeOutput(path, []*mdr.Field{field}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	back, err := source.DecodeRaw("x", raw, false, nil)
	require.NoError(t, err)
	require.Equal(t, field.Data, back.Data)

	require.Error(t, writeOutput(path, []*mdr.Field{field, field}))
	require.Error(t, writeOutput(filepath.Join(t.TempDir(), "out.csv"), []*mdr.Field{field}))
}

func TestWriteOutput_HDF5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.h5")
	fields := []*mdr.Field{
		{Name: "/a", Shape: []uint32{4}, Data: []float64{1, 2, 3, 4}},
		{Name: "/b", Shape: []uint32{2}, Data: []float64{-1, 5}},
	}
	require.NoError(t, writeOutput(path, fields))

	read, err := (&source.HDF5Source{Path: path}).Fields(context.Background())
	require.NoError(t, err)
	require.Len(t, read, 2)
	require.Equal(t, fields[0].Data, read[0].Data)
	require.Equal(t, fields[1].Data, read[1].Data)
}
