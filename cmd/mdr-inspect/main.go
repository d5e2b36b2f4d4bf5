// Package main prints the contents of refactored data for debugging.
// It shows the erasure header and a hex dump of a stored fragment, or the
// persisted metadata of a variable.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/scigolib/mdr"
	"github.com/scigolib/mdr/internal/erasure"
	"github.com/scigolib/mdr/internal/fragstore"
	"github.com/scigolib/mdr/internal/kvstore"
)

func main() {
	offset := flag.Int64("offset", 0, "Payload offset to start dumping from")
	length := flag.Int("length", 128, "Number of payload bytes to dump")
	store := flag.String("kvstore", "", "Metadata database; with -var prints the variable's records")
	variable := flag.String("var", "", "Variable to describe")
	flag.Parse()

	if *store != "" && *variable != "" {
		if err := describe(os.Stdout, *store, *variable); err != nil {
			log.Fatalf("Failed to describe %s: %v", *variable, err)
		}
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Println("Usage: mdr-inspect [flags] <fragment>")
		fmt.Println("       mdr-inspect -kvstore <db> -var <name>")
		fmt.Println("Flags:")
		flag.PrintDefaults()
		return
	}

	frag, err := readFragment(args[0])
	if err != nil {
		log.Fatalf("Failed to read fragment: %v", err)
	}
	if err := inspect(os.Stdout, frag, *offset, *length); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

// readFragment picks the sink from the file extension.
func readFragment(path string) ([]byte, error) {
	name := "dir"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".h5" || ext == ".hdf5" {
		name = "hdf5"
	}
	sink, err := fragstore.New(name, "")
	if err != nil {
		return nil, err
	}
	return sink.Read(path)
}

func inspect(w io.Writer, frag []byte, offset int64, length int) error {
	h, err := erasure.ParseHeader(frag)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "fragment %d: backend %d, version %d, %d payload bytes, original blob %d bytes\n",
		h.Index, h.BackendID, h.Version, h.Size, h.OrigDataSize)

	payload := frag[erasure.HeaderSize:]
	size := int64(len(payload))
	if offset < 0 || (size > 0 && offset >= size) {
		return fmt.Errorf("invalid offset: %d (payload size: %d)", offset, size)
	}
	if length < 1 {
		return fmt.Errorf("invalid length: %d", length)
	}
	if size == 0 {
		return nil
	}

	readLength := int64(length)
	if remaining := size - offset; readLength > remaining {
		readLength = remaining
	}
	hexDump(w, payload[offset:offset+readLength], offset)
	return nil
}

func hexDump(w io.Writer, buf []byte, base int64) {
	n := len(buf)
	for i := 0; i < n; i += 16 {
		end := min(i+16, n)
		chunk := buf[i:end]

		fmt.Fprintf(w, "%08x: ", base+int64(i))
		for j := 0; j < 16; j++ {
			if j < len(chunk) {
				fmt.Fprintf(w, "%02x ", chunk[j])
			} else {
				fmt.Fprint(w, "   ")
			}
			if j == 7 {
				fmt.Fprint(w, " ")
			}
		}
		fmt.Fprint(w, " |")

		for _, b := range chunk {
			if b >= 32 && b <= 126 {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprintln(w, "|")
	}
}

func describe(w io.Writer, path, variable string) error {
	store, err := kvstore.OpenBolt(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Failed to close metadata store: %v", err)
		}
	}()
	return describeStore(w, store, variable)
}

func describeStore(w io.Writer, store kvstore.Store, variable string) error {
	meta, err := mdr.LoadMetadata(store, variable)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s %v, %d levels, %d tiers\n", meta.Name, meta.Type, meta.Shape, meta.Levels, meta.Tiers)
	fmt.Fprintf(w, "strategy: %s/%s/%s, %s+%s, %s (%s), %d planes\n",
		meta.Strategy.Decomposer, meta.Strategy.Interleaver, meta.Strategy.Encoder,
		meta.Strategy.Collector, meta.Strategy.Estimator,
		meta.Strategy.Compressor, meta.Strategy.Pipeline, meta.Strategy.Planes)
	for l := range meta.ErrorBounds {
		fmt.Fprintf(w, "  level %d: max %g, stop %d\n", l, meta.ErrorBounds[l], meta.StopIndices[l])
	}
	for t := 0; t < meta.Tiers; t++ {
		tm, err := mdr.LoadTierMetadata(store, variable, t)
		if err != nil {
			return err
		}
		rows := meta.Table.TierRows(t)
		fmt.Fprintf(w, "  tier %d: %s k=%d m=%d, %d bytes per fragment, %d segments\n",
			t, tm.Params.Backend, tm.Params.K, tm.Params.M, tm.FragmentLength, len(rows))
		for _, loc := range tm.Data {
			fmt.Fprintf(w, "    data   %s\n", loc)
		}
		for _, loc := range tm.Parity {
			fmt.Fprintf(w, "    parity %s\n", loc)
		}
	}
	return nil
}
