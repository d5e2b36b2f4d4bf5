package compressor

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ZstdFilter compresses planes with Zstandard.
// Encoders and decoders are pooled per filter; both are safe to reuse for
// stateless EncodeAll / DecodeAll calls.
type ZstdFilter struct {
	level   zstd.EncoderLevel
	encPool sync.Pool
	decPool sync.Pool
}

// NewZstdFilter creates a zstd filter. level follows the zstd command line
// scale (1-22); values <= 0 select the default speed.
func NewZstdFilter(level int) (*ZstdFilter, error) {
	lvl := zstd.SpeedDefault
	if level > 0 {
		lvl = zstd.EncoderLevelFromZstd(level)
	}
	f := &ZstdFilter{level: lvl}

	// Probe once so a broken option set fails at construction time.
	enc, err := f.newEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	f.encPool.Put(enc)
	return f, nil
}

func (f *ZstdFilter) newEncoder() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(f.level),
		zstd.WithLowerEncoderMem(true),
	)
}

func (f *ZstdFilter) encoder() (*zstd.Encoder, error) {
	if enc, ok := f.encPool.Get().(*zstd.Encoder); ok {
		return enc, nil
	}
	return f.newEncoder()
}

func (f *ZstdFilter) decoder() (*zstd.Decoder, error) {
	if dec, ok := f.decPool.Get().(*zstd.Decoder); ok {
		return dec, nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// ID returns the registry identifier for zstd.
func (f *ZstdFilter) ID() FilterID {
	return FilterZstd
}

// Name returns the filter name.
func (f *ZstdFilter) Name() string {
	return "zstd"
}

// Apply compresses data.
func (f *ZstdFilter) Apply(data []byte) ([]byte, error) {
	enc, err := f.encoder()
	if err != nil {
		return nil, err
	}
	defer f.encPool.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2+16)), nil
}

// Remove decompresses data.
func (f *ZstdFilter) Remove(data []byte) ([]byte, error) {
	dec, err := f.decoder()
	if err != nil {
		return nil, err
	}
	defer f.decPool.Put(dec)
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// Params returns the zstd level.
func (f *ZstdFilter) Params() []uint32 {
	return []uint32{zstdLevelNumber(f.level)}
}

// zstdLevelNumber maps an encoder level back to the command line scale.
func zstdLevelNumber(l zstd.EncoderLevel) uint32 {
	switch l {
	case zstd.SpeedFastest:
		return 1
	case zstd.SpeedBetterCompression:
		return 7
	case zstd.SpeedBestCompression:
		return 11
	default:
		return 3
	}
}
