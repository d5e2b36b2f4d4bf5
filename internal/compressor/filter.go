// Package compressor provides lossless secondary compression of bitplanes.
//
// Byte codecs are Filters chained in a Pipeline. A LevelCompressor decides
// which planes of a level go through the pipeline and reports the stop
// index, the number of leading planes that were compressed.
package compressor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scigolib/mdr/internal/utils"
)

// FilterID identifies a codec. Values follow the HDF5 filter registry.
type FilterID uint16

// Registered filter identifiers.
const (
	FilterDeflate    FilterID = 1
	FilterShuffle    FilterID = 2
	FilterFletcher32 FilterID = 3
	FilterLZ4        FilterID = 32004
	FilterZstd       FilterID = 32015
)

// Filter is one reversible byte transformation.
// Filters are applied in sequence on compression (e.g., Shuffle → Zstd → Fletcher32)
// and reversed on decompression (Fletcher32 → Zstd → Shuffle).
type Filter interface {
	// ID returns the registry identifier.
	ID() FilterID

	// Name returns the filter name used in pipeline specs.
	Name() string

	// Apply transforms data on the compression path.
	Apply(data []byte) ([]byte, error)

	// Remove reverses Apply.
	Remove(data []byte) ([]byte, error)

	// Params returns the numeric parameter of the filter, if any, as it
	// appears in a pipeline spec.
	Params() []uint32
}

// Pipeline manages a chain of filters applied to plane data.
//
// On compress: data → Shuffle → Zstd → Fletcher32 → stored.
// On decompress: stored → Fletcher32 → Zstd → Shuffle → data.
type Pipeline struct {
	filters []Filter
}

// NewPipeline creates a pipeline from filters in application order.
func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{filters: append([]Filter(nil), filters...)}
}

// AddFilter adds a filter to the end of the pipeline.
func (p *Pipeline) AddFilter(f Filter) {
	p.filters = append(p.filters, f)
}

// Apply applies all filters in sequence.
//
// If any filter fails, the operation stops and returns an error.
func (p *Pipeline) Apply(data []byte) ([]byte, error) {
	result := data
	for _, filter := range p.filters {
		var err error
		result, err = filter.Apply(result)
		if err != nil {
			return nil, fmt.Errorf("filter %s failed: %w", filter.Name(), err)
		}
	}
	return result, nil
}

// Remove reverses all filters in reverse order.
func (p *Pipeline) Remove(data []byte) ([]byte, error) {
	result := data
	for i := len(p.filters) - 1; i >= 0; i-- {
		filter := p.filters[i]
		var err error
		result, err = filter.Remove(result)
		if err != nil {
			return nil, fmt.Errorf("filter %s remove failed: %w", filter.Name(), err)
		}
	}
	return result, nil
}

// IsEmpty returns true if the pipeline has no filters.
func (p *Pipeline) IsEmpty() bool {
	return len(p.filters) == 0
}

// Count returns the number of filters in the pipeline.
func (p *Pipeline) Count() int {
	return len(p.filters)
}

// String returns the pipeline spec, accepted back by ParsePipeline.
func (p *Pipeline) String() string {
	parts := make([]string, len(p.filters))
	for i, f := range p.filters {
		parts[i] = f.Name()
		for _, v := range f.Params() {
			parts[i] += ":" + strconv.FormatUint(uint64(v), 10)
		}
	}
	return strings.Join(parts, ",")
}

// ParsePipeline builds a pipeline from a comma separated spec such as
// "shuffle:4,zstd:3,fletcher32". Each entry is a filter name optionally
// followed by its parameter.
func ParsePipeline(spec string) (*Pipeline, error) {
	p := NewPipeline()
	if strings.TrimSpace(spec) == "" {
		return p, nil
	}
	for _, entry := range strings.Split(spec, ",") {
		name, arg, hasArg := strings.Cut(strings.TrimSpace(entry), ":")
		param := -1
		if hasArg {
			v, err := strconv.Atoi(arg)
			if err != nil || v < 0 {
				return nil, utils.ConfigErrorf("compression pipeline", "bad parameter %q for %s", arg, name)
			}
			param = v
		}

		var f Filter
		var err error
		switch name {
		case "zstd":
			f, err = NewZstdFilter(param)
		case "lz4":
			f = NewLZ4Filter()
		case "deflate", "gzip":
			f = NewDeflateFilter(param)
		case "shuffle":
			size := 4
			if param > 0 {
				size = param
			}
			f = NewShuffleFilter(uint32(size)) //nolint:gosec // G115: parsed from a small positive integer
		case "fletcher32":
			f = NewFletcher32Filter()
		default:
			return nil, utils.ConfigErrorf("compression pipeline", "unknown filter %q", name)
		}
		if err != nil {
			return nil, err
		}
		p.AddFilter(f)
	}
	return p, nil
}
