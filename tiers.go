package mdr

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scigolib/mdr/internal/erasure"
	"github.com/scigolib/mdr/internal/utils"
)

// TierSpec configures one storage tier: where its fragments go, the error
// tolerance it must reach and its erasure code.
type TierSpec struct {
	Path      string  `yaml:"path"`
	Tolerance float64 `yaml:"tolerance"`
	K         int     `yaml:"k"`
	M         int     `yaml:"m"`
	W         int     `yaml:"w"`
}

// TierConfig is the tier list plus the erasure backend shared by all tiers.
//
// Example file:
//
//	backend: jerasure_rs_vand
//	tiers:
//	  - {path: /mnt/nvme, tolerance: 0.1, k: 4, m: 1, w: 8}
//	  - {path: /mnt/hdd, tolerance: 0.001, k: 8, m: 2, w: 8}
type TierConfig struct {
	Backend string     `yaml:"backend"`
	Tiers   []TierSpec `yaml:"tiers"`
}

// Params returns the erasure parameters of tier i.
func (c *TierConfig) Params(i int) erasure.Params {
	t := c.Tiers[i]
	return erasure.Params{K: t.K, M: t.M, W: t.W, Backend: c.Backend}
}

// Tolerances returns the tier tolerances in processing order.
func (c *TierConfig) Tolerances() []float64 {
	tol := make([]float64, len(c.Tiers))
	for i, t := range c.Tiers {
		tol[i] = t.Tolerance
	}
	return tol
}

// Validate checks every tier. An empty backend selects
// erasure.DefaultBackend and a zero w selects erasure.WordSize.
func (c *TierConfig) Validate() error {
	if len(c.Tiers) == 0 {
		return utils.ConfigErrorf("tiers", "none configured")
	}
	if c.Backend == "" {
		c.Backend = erasure.DefaultBackend
	}
	for i := range c.Tiers {
		t := &c.Tiers[i]
		if t.W == 0 {
			t.W = erasure.WordSize
		}
		if t.Path == "" {
			return utils.ConfigErrorf(fmt.Sprintf("tier %d path", i), "empty")
		}
		if t.Tolerance < 0 || math.IsNaN(t.Tolerance) {
			return utils.ConfigErrorf(fmt.Sprintf("tier %d tolerance", i), "%g", t.Tolerance)
		}
		if err := c.Params(i).Validate(); err != nil {
			return utils.WrapError(fmt.Sprintf("tier %d", i), err)
		}
	}
	return nil
}

// LoadTierConfig reads and validates a YAML tier configuration.
func LoadTierConfig(path string) (*TierConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: configuration path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("read tier config: %w", err)
	}
	return ParseTierConfig(data)
}

// ParseTierConfig decodes and validates a YAML tier configuration.
func ParseTierConfig(data []byte) (*TierConfig, error) {
	var cfg TierConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, utils.ConfigErrorf("tier config", "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
