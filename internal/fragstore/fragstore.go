// Package fragstore writes erasure-coded fragments to tier storage and
// reads them back by location.
package fragstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/scigolib/mdr/internal/utils"
)

// Fragment kinds.
const (
	KindData   = "data"
	KindParity = "parity"
)

// Ref names one fragment of one variable.
type Ref struct {
	Dir      string // tier storage directory
	Tier     int
	Kind     string
	Index    int
	Variable string
}

// Sink stores fragments and returns the location to record in the
// metadata store.
type Sink interface {
	Name() string
	Write(ref Ref, frag []byte) (string, error)
	Read(location string) ([]byte, error)
}

// New returns the sink registered under name: "hdf5" (default), "dir" or
// "memory". prefix is the input file's base name.
func New(name, prefix string) (Sink, error) {
	switch name {
	case "", "hdf5":
		return &HDF5Sink{Prefix: prefix}, nil
	case "dir":
		return &DirSink{Prefix: prefix}, nil
	case "memory":
		return NewMemSink(), nil
	default:
		return nil, utils.ConfigErrorf("fragment sink", "%q not supported", name)
	}
}

// Path builds "<dir>/<prefix>.refactored.tier.<i>.<kind>.<j>.<variable>.<ext>".
func Path(prefix string, ref Ref, ext string) string {
	name := fmt.Sprintf("%s.refactored.tier.%d.%s.%d.%s.%s",
		prefix, ref.Tier, ref.Kind, ref.Index, SafeName(ref.Variable), ext)
	return filepath.Join(ref.Dir, name)
}

// SafeName flattens an HDF5 object path into a file-name component.
func SafeName(variable string) string {
	name := strings.Trim(variable, "/")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		return "root"
	}
	return name
}

// DirSink writes each fragment to a plain file.
type DirSink struct {
	Prefix string
}

// Name implements Sink.
func (s *DirSink) Name() string { return "dir" }

// Write implements Sink.
func (s *DirSink) Write(ref Ref, frag []byte) (string, error) {
	path := Path(s.Prefix, ref, "frag")
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrPersistence, err)
	}
	if err := os.WriteFile(path, frag, 0o600); err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrPersistence, err)
	}
	return path, nil
}

// Read implements Sink.
func (s *DirSink) Read(location string) ([]byte, error) {
	data, err := os.ReadFile(location) //nolint:gosec // G304: location comes from the metadata store
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrPersistence, err)
	}
	return data, nil
}

// MemSink keeps fragments in memory; Drop simulates a lost fragment.
type MemSink struct {
	mu    sync.RWMutex
	frags map[string][]byte
}

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{frags: make(map[string][]byte)}
}

// Name implements Sink.
func (s *MemSink) Name() string { return "memory" }

// Write implements Sink.
func (s *MemSink) Write(ref Ref, frag []byte) (string, error) {
	loc := Path("mem", ref, "frag")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frags[loc] = append([]byte{}, frag...)
	return loc, nil
}

// Read implements Sink.
func (s *MemSink) Read(location string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	frag, ok := s.frags[location]
	if !ok {
		return nil, fmt.Errorf("%w: no fragment at %s", utils.ErrPersistence, location)
	}
	return append([]byte{}, frag...), nil
}

// Drop removes a stored fragment.
func (s *MemSink) Drop(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.frags, location)
}

// Len returns the number of stored fragments.
func (s *MemSink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frags)
}
