// Package main refactors every variable of an input file into progressive,
// erasure-coded storage tiers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/scigolib/mdr"
	"github.com/scigolib/mdr/internal/fragstore"
	"github.com/scigolib/mdr/internal/kvstore"
	"github.com/scigolib/mdr/internal/source"
)

func main() {
	input := flag.String("i", "", "Input file (.h5, .f32, .f64)")
	config := flag.String("config", "", "YAML tier configuration")
	tiers := flag.String("tiers", "", "Tiers as path:tolerance:k:m[:w], comma separated (instead of -config)")
	backend := flag.String("backend", "", "Erasure backend (overrides the configuration)")
	levels := flag.Int("levels", 0, "Decomposition levels (0 = deepest possible)")
	planes := flag.Int("planes", mdr.DefaultPlanes, "Bitplanes per level")
	store := flag.String("kvstore", "mdr.db", "Metadata database path")
	sinkName := flag.String("sink", "hdf5", "Fragment sink: hdf5 or dir")
	shape := flag.String("shape", "", "Field shape, e.g. 512,512,512 (raw inputs and HDF5 without shape attribute)")
	decomposer := flag.String("decomposer", "orthogonal", "orthogonal or hierarchical")
	interleaver := flag.String("interleaver", "direct", "direct, sfc or blocked")
	encoder := flag.String("encoder", "grouped", "grouped, perbit or negabinary")
	collector := flag.String("collector", "max", "max or squared")
	estimator := flag.String("estimator", "max-ob", "max-ob, max-hb or squared")
	compressor := flag.String("compressor", "adaptive", "null, default or adaptive")
	pipeline := flag.String("pipeline", "shuffle:4,zstd:3", "Plane codec pipeline")
	workers := flag.Int("workers", 0, "Concurrent level encoders (0 = number of CPUs)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	if *input == "" || (*config == "" && *tiers == "") {
		fmt.Println("Usage: mdr-refactor -i <input> (-config tiers.yaml | -tiers path:tol:k:m,...) [flags]")
		fmt.Println("Flags:")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := []mdr.Option{
		mdr.WithLogger(logger),
		mdr.WithLevels(*levels),
		mdr.WithPlanes(*planes),
		mdr.WithDecomposer(*decomposer),
		mdr.WithInterleaver(*interleaver),
		mdr.WithEncoder(*encoder),
		mdr.WithErrorModel(*collector, *estimator),
		mdr.WithCompressor(*compressor, *pipeline),
	}
	if *workers > 0 {
		opts = append(opts, mdr.WithWorkers(*workers))
	}

	if err := run(ctx, logger, *input, *config, *tiers, *backend, *store, *sinkName, *shape, opts); err != nil {
		logger.Error("refactoring failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, input, config, tiers, backend, storePath, sinkName, shapeFlag string, opts []mdr.Option) error {
	cfg, err := tierConfig(config, tiers, backend)
	if err != nil {
		return err
	}
	dims, err := parseShape(shapeFlag)
	if err != nil {
		return err
	}
	src, err := source.Open(input, dims)
	if err != nil {
		return err
	}
	r, err := mdr.NewRefactorer(opts...)
	if err != nil {
		return err
	}
	sink, err := fragstore.New(sinkName, source.Prefix(input))
	if err != nil {
		return err
	}
	store, err := kvstore.OpenBolt(storePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing metadata store", slog.Any("error", err))
		}
	}()

	fields, err := src.Fields(ctx)
	if err != nil {
		return err
	}
	w := mdr.NewWriter(store, sink, logger)
	for _, field := range fields {
		logger.Info("refactoring", slog.String("variable", field.Name), slog.Any("shape", field.Shape))
		refactored, err := r.Refactor(ctx, field)
		if err != nil {
			return err
		}
		layout, err := r.Plan(refactored, cfg)
		if err != nil {
			return err
		}
		if err := w.Write(ctx, refactored, layout, cfg); err != nil {
			return err
		}
	}
	return nil
}

func tierConfig(path, list, backend string) (*mdr.TierConfig, error) {
	var cfg *mdr.TierConfig
	if path != "" {
		loaded, err := mdr.LoadTierConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		specs, err := parseTiers(list)
		if err != nil {
			return nil, err
		}
		cfg = &mdr.TierConfig{Tiers: specs}
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseTiers reads "path:tolerance:k:m[:w]" entries.
func parseTiers(list string) ([]mdr.TierSpec, error) {
	var specs []mdr.TierSpec
	for _, entry := range strings.Split(list, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 4 && len(parts) != 5 {
			return nil, fmt.Errorf("tier %q: want path:tolerance:k:m[:w]", entry)
		}
		spec := mdr.TierSpec{Path: parts[0]}
		var err error
		if spec.Tolerance, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return nil, fmt.Errorf("tier %q tolerance: %w", entry, err)
		}
		if spec.K, err = strconv.Atoi(parts[2]); err != nil {
			return nil, fmt.Errorf("tier %q k: %w", entry, err)
		}
		if spec.M, err = strconv.Atoi(parts[3]); err != nil {
			return nil, fmt.Errorf("tier %q m: %w", entry, err)
		}
		if len(parts) == 5 {
			if spec.W, err = strconv.Atoi(parts[4]); err != nil {
				return nil, fmt.Errorf("tier %q w: %w", entry, err)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseShape(s string) ([]uint32, error) {
	if s == "" {
		return nil, nil
	}
	var dims []uint32
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", s, err)
		}
		dims = append(dims, uint32(d))
	}
	return dims, nil
}
