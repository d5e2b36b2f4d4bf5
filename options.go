package mdr

import (
	"io"
	"log/slog"

	"github.com/scigolib/mdr/internal/utils"
)

// Option configures a Refactorer during creation.
//
// Example:
//
//	r, err := mdr.NewRefactorer(
//	    mdr.WithLevels(4),
//	    mdr.WithEncoder("perbit"),
//	    mdr.WithCompressor("default", "shuffle:4,lz4"),
//	)
type Option func(*Refactorer) error

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Refactorer) error {
		if logger == nil {
			logger = discardLogger()
		}
		r.logger = logger
		return nil
	}
}

// WithWorkers bounds the number of levels encoded concurrently.
// Default: runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(r *Refactorer) error {
		if n < 1 {
			return utils.ConfigErrorf("workers", "must be at least 1, got %d", n)
		}
		r.workers = n
		return nil
	}
}

// WithLevels sets the number of decomposition levels. 0 (the default)
// selects the deepest decomposition the shape allows.
func WithLevels(n int) Option {
	return func(r *Refactorer) error {
		if n < 0 {
			return utils.ConfigErrorf("levels", "%d is negative", n)
		}
		r.levels = n
		return nil
	}
}

// WithPlanes sets the number of bitplanes per level.
func WithPlanes(n int) Option {
	return func(r *Refactorer) error {
		r.strategy.Planes = n
		return nil
	}
}

// WithStrategy replaces every component choice at once.
func WithStrategy(s Strategy) Option {
	return func(r *Refactorer) error {
		r.strategy = s
		return nil
	}
}

// WithDecomposer selects "orthogonal" or "hierarchical".
func WithDecomposer(name string) Option {
	return func(r *Refactorer) error {
		r.strategy.Decomposer = name
		return nil
	}
}

// WithInterleaver selects "direct", "sfc" or "blocked".
func WithInterleaver(name string) Option {
	return func(r *Refactorer) error {
		r.strategy.Interleaver = name
		return nil
	}
}

// WithEncoder selects "grouped", "perbit" or "negabinary".
func WithEncoder(name string) Option {
	return func(r *Refactorer) error {
		r.strategy.Encoder = name
		return nil
	}
}

// WithErrorModel selects the collector ("max", "squared") and the
// estimator ("max-ob", "max-hb", "squared") used for scheduling.
func WithErrorModel(collector, estimator string) Option {
	return func(r *Refactorer) error {
		r.strategy.Collector = collector
		r.strategy.Estimator = estimator
		return nil
	}
}

// WithCompressor selects the level compressor ("null", "default",
// "adaptive") and its codec pipeline, e.g. "shuffle:4,zstd:3".
func WithCompressor(name, pipeline string) Option {
	return func(r *Refactorer) error {
		r.strategy.Compressor = name
		r.strategy.Pipeline = pipeline
		return nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
