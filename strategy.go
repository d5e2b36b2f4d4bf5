package mdr

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/scigolib/mdr/internal/bitplane"
	"github.com/scigolib/mdr/internal/compressor"
	"github.com/scigolib/mdr/internal/decompose"
	"github.com/scigolib/mdr/internal/errest"
	"github.com/scigolib/mdr/internal/interleave"
	"github.com/scigolib/mdr/internal/utils"
)

// DefaultPlanes is the number of bitplanes per level.
const DefaultPlanes = 32

// Strategy names the interchangeable components of a refactoring. It is
// persisted with every variable so reconstruction can rebuild the same
// components.
type Strategy struct {
	Decomposer  string `yaml:"decomposer"`
	Interleaver string `yaml:"interleaver"`
	Encoder     string `yaml:"encoder"`
	Collector   string `yaml:"collector"`
	Estimator   string `yaml:"estimator"`
	Compressor  string `yaml:"compressor"`
	Pipeline    string `yaml:"pipeline,omitempty"`
	Planes      int    `yaml:"planes"`
}

// DefaultStrategy returns the orthogonal decomposition with direct
// interleaving, grouped bitplanes, the max-error model and adaptive
// zstd compression.
func DefaultStrategy() Strategy {
	return Strategy{
		Decomposer:  decompose.Orthogonal,
		Interleaver: interleave.Direct,
		Encoder:     bitplane.Grouped,
		Collector:   errest.MaxError,
		Estimator:   errest.MaxErrorOB,
		Compressor:  compressor.Adaptive,
		Pipeline:    compressor.DefaultPipelineSpec,
		Planes:      DefaultPlanes,
	}
}

// components are the instantiated strategies.
type components struct {
	decomposer  decompose.Decomposer
	interleaver interleave.Interleaver
	encoder     bitplane.Encoder
	collector   errest.Collector
	compressor  compressor.LevelCompressor
}

func (s Strategy) build() (*components, error) {
	if s.Planes < 1 || s.Planes > bitplane.MaxPlanes {
		return nil, utils.ConfigErrorf("number of planes", "%d outside [1, %d]", s.Planes, bitplane.MaxPlanes)
	}
	c := &components{}
	var err error
	if c.decomposer, err = decompose.New(s.Decomposer); err != nil {
		return nil, err
	}
	if c.interleaver, err = interleave.New(s.Interleaver); err != nil {
		return nil, err
	}
	if c.encoder, err = bitplane.New(s.Encoder); err != nil {
		return nil, err
	}
	if c.collector, err = errest.NewCollector(s.Collector); err != nil {
		return nil, err
	}
	if c.compressor, err = compressor.New(s.Compressor, s.Pipeline); err != nil {
		return nil, err
	}
	if _, err = errest.NewEstimator(s.Estimator, 1); err != nil {
		return nil, err
	}
	return c, nil
}

// MarshalStrategy encodes s as YAML.
func MarshalStrategy(s Strategy) ([]byte, error) {
	return yaml.Marshal(s)
}

// UnmarshalStrategy decodes a persisted strategy. Missing fields keep their
// defaults.
func UnmarshalStrategy(data []byte) (Strategy, error) {
	s := DefaultStrategy()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Strategy{}, fmt.Errorf("strategy: %w", err)
	}
	return s, nil
}
