// Copyright (c) 2025 SciGo HDF5 Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package fragstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scigolib/hdf5"

	"github.com/scigolib/mdr/internal/utils"
)

// FragmentDataset is the dataset holding the fragment inside each file.
const FragmentDataset = "/fragment"

// HDF5Sink writes one HDF5 file per fragment.
//
// The reader converts every numeric dataset to float64 and has no 8-bit
// path, so fragments are stored as an int32 dataset: word 0 is the byte
// length, the remaining words hold the bytes little-endian, zero padded.
type HDF5Sink struct {
	Prefix string
}

// Name implements Sink.
func (s *HDF5Sink) Name() string { return "hdf5" }

// Write implements Sink.
func (s *HDF5Sink) Write(ref Ref, frag []byte) (string, error) {
	path := Path(s.Prefix, ref, "h5")
	words := packWords(frag)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrPersistence, err)
	}

	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %w", utils.ErrPersistence, path, err)
	}
	dw, err := fw.CreateDataset(FragmentDataset, hdf5.Int32, []uint64{uint64(len(words))})
	if err != nil {
		_ = fw.Close()
		return "", fmt.Errorf("%w: dataset in %s: %w", utils.ErrPersistence, path, err)
	}
	if err := dw.Write(words); err != nil {
		_ = dw.Close()
		_ = fw.Close()
		return "", fmt.Errorf("%w: write %s: %w", utils.ErrPersistence, path, err)
	}
	if err := dw.Close(); err != nil {
		_ = fw.Close()
		return "", fmt.Errorf("%w: close dataset in %s: %w", utils.ErrPersistence, path, err)
	}
	if err := fw.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %w", utils.ErrPersistence, path, err)
	}
	return path, nil
}

// Read implements Sink.
func (s *HDF5Sink) Read(location string) ([]byte, error) {
	f, err := hdf5.Open(location)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", utils.ErrPersistence, location, err)
	}
	defer func() { _ = f.Close() }()

	var ds *hdf5.Dataset
	f.Walk(func(path string, obj hdf5.Object) {
		if d, ok := obj.(*hdf5.Dataset); ok && path == FragmentDataset {
			ds = d
		}
	})
	if ds == nil {
		return nil, fmt.Errorf("%w: %s has no %s dataset", utils.ErrPersistence, location, FragmentDataset)
	}

	values, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", utils.ErrPersistence, location, err)
	}
	frag, err := unpackWords(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", utils.ErrPersistence, location, err)
	}
	return frag, nil
}

func packWords(b []byte) []int32 {
	words := make([]int32, 1+(len(b)+3)/4)
	words[0] = int32(len(b)) //nolint:gosec // G115: fragments stay below 2 GiB
	var tmp [4]byte
	for i := 0; i < len(b); i += 4 {
		clear(tmp[:])
		copy(tmp[:], b[i:])
		words[1+i/4] = int32(binary.LittleEndian.Uint32(tmp[:])) //nolint:gosec // G115: bit reinterpretation
	}
	return words
}

func unpackWords(values []float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("empty fragment dataset")
	}
	n := int(values[0])
	if n < 0 || (n+3)/4 != len(values)-1 {
		return nil, fmt.Errorf("fragment length %d does not match %d words", n, len(values)-1)
	}
	buf := make([]byte, 4*(len(values)-1))
	for i, v := range values[1:] {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(int32(v))) //nolint:gosec // G115: bit reinterpretation
	}
	return buf[:n], nil
}
