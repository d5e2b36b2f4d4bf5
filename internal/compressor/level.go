package compressor

import (
	"fmt"

	"github.com/scigolib/mdr/internal/utils"
)

// LevelCompressor compresses the leading planes of one level in place.
type LevelCompressor interface {
	// Name returns the registry name of the strategy.
	Name() string

	// Pipeline returns the byte codec chain, nil for the null strategy.
	Pipeline() *Pipeline

	// CompressLevel compresses planes[0:stop] in place, updates sizes and
	// returns stop.
	CompressLevel(planes [][]byte, sizes []uint32) (uint8, error)

	// DecompressLevel reverses CompressLevel for the given stop index.
	// Planes at or after stop are left untouched.
	DecompressLevel(planes [][]byte, sizes []uint32, stop uint8) error
}

// Strategy names.
const (
	Null     = "null"
	Default  = "default"
	Adaptive = "adaptive"
)

// Adaptive defaults.
const (
	DefaultMaxPlanes = 32
	DefaultMinRatio  = 1.0
)

// DefaultPipelineSpec is the codec chain used when none is configured.
const DefaultPipelineSpec = "shuffle:4,zstd:3"

// New returns the level compressor registered under name, compressing with
// the pipeline described by spec (see ParsePipeline). An empty spec selects
// DefaultPipelineSpec.
func New(name, spec string) (LevelCompressor, error) {
	if name == Null {
		return NewNull(), nil
	}
	if spec == "" {
		spec = DefaultPipelineSpec
	}
	p, err := ParsePipeline(spec)
	if err != nil {
		return nil, err
	}
	switch name {
	case Default:
		return NewDefault(p), nil
	case Adaptive, "":
		return NewAdaptive(p, DefaultMaxPlanes, DefaultMinRatio), nil
	default:
		return nil, utils.ConfigErrorf("level compressor", "unknown strategy %q", name)
	}
}

type nullCompressor struct{}

// NewNull returns the no-op strategy, whose stop index is always 0.
func NewNull() LevelCompressor {
	return nullCompressor{}
}

func (nullCompressor) Name() string        { return Null }
func (nullCompressor) Pipeline() *Pipeline { return nil }

func (nullCompressor) CompressLevel(_ [][]byte, _ []uint32) (uint8, error) {
	return 0, nil
}

func (nullCompressor) DecompressLevel(_ [][]byte, _ []uint32, stop uint8) error {
	if stop != 0 {
		return fmt.Errorf("null compressor cannot expand %d planes", stop)
	}
	return nil
}

// pipelineCompressor runs planes through a pipeline, stopping at maxPlanes
// or at the first plane whose compression ratio is below minRatio.
type pipelineCompressor struct {
	name      string
	pipeline  *Pipeline
	maxPlanes int
	minRatio  float64
}

// NewDefault returns a strategy that compresses every plane.
func NewDefault(p *Pipeline) LevelCompressor {
	return &pipelineCompressor{name: Default, pipeline: p, maxPlanes: 255}
}

// NewAdaptive returns a strategy that compresses at most maxPlanes leading
// planes and stops at the first plane that shrinks by less than minRatio.
func NewAdaptive(p *Pipeline, maxPlanes int, minRatio float64) LevelCompressor {
	if maxPlanes < 0 || maxPlanes > 255 {
		maxPlanes = DefaultMaxPlanes
	}
	return &pipelineCompressor{name: Adaptive, pipeline: p, maxPlanes: maxPlanes, minRatio: minRatio}
}

func (c *pipelineCompressor) Name() string        { return c.name }
func (c *pipelineCompressor) Pipeline() *Pipeline { return c.pipeline }

func (c *pipelineCompressor) CompressLevel(planes [][]byte, sizes []uint32) (uint8, error) {
	if len(planes) != len(sizes) {
		return 0, utils.ConfigErrorf("plane sizes", "%d sizes for %d planes", len(sizes), len(planes))
	}
	stop := 0
	for stop < len(planes) && stop < c.maxPlanes {
		plane := planes[stop]
		if len(plane) == 0 {
			stop++
			continue
		}
		compressed, err := c.pipeline.Apply(plane)
		if err != nil {
			return 0, fmt.Errorf("plane %d: %w", stop, err)
		}
		if c.minRatio > 0 && float64(len(plane)) < c.minRatio*float64(len(compressed)) {
			break
		}
		planes[stop] = compressed
		sizes[stop] = uint32(len(compressed)) //nolint:gosec // G115: planes are far below 4 GiB
		stop++
	}
	return uint8(stop), nil //nolint:gosec // G115: bounded by maxPlanes <= 255
}

func (c *pipelineCompressor) DecompressLevel(planes [][]byte, sizes []uint32, stop uint8) error {
	if int(stop) > len(planes) || len(planes) != len(sizes) {
		return utils.ConfigErrorf("stop index", "%d for %d planes", stop, len(planes))
	}
	for i := 0; i < int(stop); i++ {
		if len(planes[i]) == 0 {
			continue
		}
		raw, err := c.pipeline.Remove(planes[i])
		if err != nil {
			return fmt.Errorf("plane %d: %w", i, err)
		}
		planes[i] = raw
		sizes[i] = uint32(len(raw)) //nolint:gosec // G115: planes are far below 4 GiB
	}
	return nil
}
