// Package main rebuilds refactored variables from their storage tiers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/scigolib/hdf5"

	"github.com/scigolib/mdr"
	"github.com/scigolib/mdr/internal/fragstore"
	"github.com/scigolib/mdr/internal/kvstore"
	"github.com/scigolib/mdr/internal/source"
)

func main() {
	store := flag.String("kvstore", "mdr.db", "Metadata database path")
	variables := flag.String("var", "", "Comma separated variables to rebuild")
	tiers := flag.Int("tiers", 0, "Number of tiers to read (0 = all)")
	sinkName := flag.String("sink", "hdf5", "Fragment sink the tiers were written with: hdf5 or dir")
	output := flag.String("o", "", "Output file: .h5 holds every variable, .f32/.f64 a single one")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	if *variables == "" || *output == "" {
		fmt.Println("Usage: mdr-reconstruct -var <name>[,<name>...] -o <output> [flags]")
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

	if err := run(ctx, logger, *store, *sinkName, strings.Split(*variables, ","), *tiers, *output); err != nil {
		logger.Error("reconstruction failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, storePath, sinkName string, variables []string, tiers int, output string) error {
	sink, err := fragstore.New(sinkName, "")
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

	rec := mdr.NewReconstructor(store, sink, logger)
	fields := make([]*mdr.Field, 0, len(variables))
	for _, v := range variables {
		field, err := rec.Reconstruct(ctx, strings.TrimSpace(v), tiers)
		if err != nil {
			return err
		}
		logger.Info("reconstructed", slog.String("variable", field.Name), slog.Any("shape", field.Shape))
		fields = append(fields, field)
	}
	return writeOutput(output, fields)
}

func writeOutput(path string, fields []*mdr.Field) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h5", ".hdf5":
		return writeHDF5(path, fields)
	case ".f32", ".f64":
		if len(fields) != 1 {
			return fmt.Errorf("raw output holds one variable, got %d", len(fields))
		}
		single := strings.EqualFold(filepath.Ext(path), ".f32")
		return os.WriteFile(path, source.EncodeRaw(fields[0].Data, single), 0o600)
	default:
		return fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
}

func writeHDF5(path string, fields []*mdr.Field) error {
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	for _, field := range fields {
		dims := make([]uint64, len(field.Shape))
		for i, d := range field.Shape {
			dims[i] = uint64(d)
		}
		name := "/" + fragstore.SafeName(field.Name)
		dw, err := fw.CreateDataset(name, hdf5.Float64, dims)
		if err != nil {
			_ = fw.Close()
			return fmt.Errorf("dataset %s: %w", name, err)
		}
		if err := dw.Write(field.Data); err != nil {
			_ = dw.Close()
			_ = fw.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := dw.Close(); err != nil {
			_ = fw.Close()
			return fmt.Errorf("close %s: %w", name, err)
		}
	}
	return fw.Close()
}
