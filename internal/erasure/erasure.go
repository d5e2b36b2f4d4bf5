// Package erasure splits tier blobs into k data and m parity fragments and
// rebuilds them from any k survivors.
package erasure

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/klauspost/reedsolomon"

	"github.com/scigolib/mdr/internal/utils"
)

// Backend identifiers, numbered as in liberasurecode.
const (
	BackendNull             uint8 = 0
	BackendJerasureRSVand   uint8 = 1
	BackendJerasureRSCauchy uint8 = 2
	BackendISALRSVand       uint8 = 4
	BackendLiberasurecodeRS uint8 = 6
	BackendISALRSCauchy     uint8 = 7
	MaxFragments                  = 32
	WordSize                      = 8
	DefaultBackend                = "liberasurecode_rs_vand"
)

type backend struct {
	id     uint8
	matrix reedsolomon.Option
}

var backends = map[string]backend{
	"null":                   {id: BackendNull},
	"jerasure_rs_vand":       {id: BackendJerasureRSVand, matrix: reedsolomon.WithJerasureMatrix()},
	"jerasure_rs_cauchy":     {id: BackendJerasureRSCauchy, matrix: reedsolomon.WithCauchyMatrix()},
	"isa_l_rs_vand":          {id: BackendISALRSVand},
	"isa_l_rs_cauchy":        {id: BackendISALRSCauchy, matrix: reedsolomon.WithCauchyMatrix()},
	"liberasurecode_rs_vand": {id: BackendLiberasurecodeRS},
	"rs_vand":                {id: BackendLiberasurecodeRS},
	"rs_cauchy":              {id: BackendISALRSCauchy, matrix: reedsolomon.WithCauchyMatrix()},
}

// Backends lists the accepted backend names.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Params configures one tier's erasure code.
type Params struct {
	K       int
	M       int
	W       int
	Backend string
}

// HD is the Hamming distance of the code.
func (p Params) HD() int { return p.M + 1 }

// Validate checks the parameters against the backend's limits.
func (p Params) Validate() error {
	b, ok := backends[p.Backend]
	if !ok {
		return utils.ConfigErrorf("erasure backend", "%q not supported", p.Backend)
	}
	if p.K < 1 {
		return utils.ConfigErrorf("k", "must be at least 1, got %d", p.K)
	}
	if p.M < 0 || (p.M == 0 && b.id != BackendNull) {
		return utils.ConfigErrorf("m", "%d parity fragments not usable with %s", p.M, p.Backend)
	}
	if p.K+p.M > MaxFragments {
		return utils.ConfigErrorf("k+m", "%d exceeds %d fragments", p.K+p.M, MaxFragments)
	}
	if p.W != WordSize {
		return utils.ConfigErrorf("w", "word size must be %d, got %d", WordSize, p.W)
	}
	return nil
}

// Coder encodes and decodes fragments for one parameter set.
type Coder struct {
	params Params
	id     uint8
	enc    reedsolomon.Encoder
}

// New builds a Coder. The null backend writes zero parity and needs every
// data fragment to decode.
func New(p Params) (*Coder, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b := backends[p.Backend]
	c := &Coder{params: p, id: b.id}
	if b.id == BackendNull {
		return c, nil
	}

	var opts []reedsolomon.Option
	if b.matrix != nil {
		opts = append(opts, b.matrix)
	}
	enc, err := reedsolomon.New(p.K, p.M, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s k=%d m=%d: %w", utils.ErrFragmenting, p.Backend, p.K, p.M, err)
	}
	c.enc = enc
	return c, nil
}

// Params returns the coder's parameters.
func (c *Coder) Params() Params { return c.params }

// BackendID returns the numeric backend identifier written to headers.
func (c *Coder) BackendID() uint8 { return c.id }

// Encode splits blob into k data and m parity fragments, each prefixed by
// a header. All fragments share the returned length.
func (c *Coder) Encode(blob []byte) (data, parity [][]byte, fragLen uint64, err error) {
	shards, backing := c.split(blob)
	defer utils.ReleaseBuffer(backing)
	if c.enc != nil && len(blob) > 0 {
		if err := c.enc.Encode(shards); err != nil {
			return nil, nil, 0, fmt.Errorf("%w: encode: %w", utils.ErrFragmenting, err)
		}
	}

	frags := make([][]byte, len(shards))
	for i, shard := range shards {
		h := Header{
			Index:        uint32(i),          //nolint:gosec // G115: bounded by MaxFragments
			Size:         uint32(len(shard)), //nolint:gosec // G115: shard of a tier blob
			OrigDataSize: uint64(len(blob)),
			BackendID:    c.id,
			Version:      Version,
		}
		frag := make([]byte, HeaderSize+len(shard))
		h.put(frag)
		copy(frag[HeaderSize:], shard)
		frags[i] = frag
	}
	fragLen = uint64(HeaderSize + len(shards[0]))
	return frags[:c.params.K], frags[c.params.K:], fragLen, nil
}

// split lays blob out over k zero-padded data shards followed by m parity
// shards, all carved from one pooled buffer that the caller releases once
// the shards are copied into fragments.
func (c *Coder) split(blob []byte) (shards [][]byte, backing []byte) {
	k, m := c.params.K, c.params.M
	shardSize := (len(blob) + k - 1) / k
	backing = utils.GetBuffer((k + m) * shardSize)
	clear(backing)
	copy(backing, blob)

	shards = make([][]byte, k+m)
	for i := range shards {
		lo, hi := i*shardSize, (i+1)*shardSize
		shards[i] = backing[lo:hi:hi]
	}
	return shards, backing
}

// Validate checks a fragment's header against its expected index and the
// coder's backend.
func (c *Coder) Validate(frag []byte, idx int) (Header, error) {
	h, err := ParseHeader(frag)
	if err != nil {
		return h, err
	}
	switch {
	case int(h.Index) != idx:
		err = fmt.Errorf("fragment index %d, expected %d", h.Index, idx)
	case int(h.Size) != len(frag)-HeaderSize-int(h.BackendMetaSize):
		err = fmt.Errorf("fragment %d declares %d payload bytes, holds %d", idx, h.Size, len(frag)-HeaderSize)
	case h.BackendID != c.id:
		err = fmt.Errorf("fragment %d written by backend %d, expected %d", idx, h.BackendID, c.id)
	case h.ChecksumType != ChecksumNone || h.ChecksumMismatch != 0:
		err = fmt.Errorf("fragment %d carries checksum type %d mismatch %d", idx, h.ChecksumType, h.ChecksumMismatch)
	}
	if err != nil {
		return h, fmt.Errorf("%w: %w", utils.ErrFragmenting, err)
	}
	return h, nil
}

// Decode rebuilds the original blob. fragments is indexed by fragment
// index (data first, then parity); missing fragments are nil. Any k valid
// fragments suffice for Reed-Solomon backends.
func (c *Coder) Decode(fragments [][]byte) ([]byte, error) {
	k, m := c.params.K, c.params.M
	if len(fragments) != k+m {
		return nil, utils.ConfigErrorf("fragments", "got %d slots, want %d", len(fragments), k+m)
	}

	shards := make([][]byte, k+m)
	present := 0
	var orig uint64
	var shardSize uint32
	for i, frag := range fragments {
		if frag == nil {
			continue
		}
		h, err := c.Validate(frag, i)
		if err != nil {
			return nil, err
		}
		if present > 0 && (h.OrigDataSize != orig || h.Size != shardSize) {
			return nil, fmt.Errorf("%w: fragment %d disagrees on sizes", utils.ErrFragmenting, i)
		}
		orig, shardSize = h.OrigDataSize, h.Size
		shards[i] = frag[HeaderSize : HeaderSize+int(h.Size)]
		present++
	}
	if present < k {
		return nil, fmt.Errorf("%w: %d of %d fragments available, need %d", utils.ErrFragmenting, present, k+m, k)
	}
	if orig == 0 {
		return []byte{}, nil
	}

	if c.enc == nil {
		for i := 0; i < k; i++ {
			if shards[i] == nil {
				return nil, fmt.Errorf("%w: null backend cannot rebuild data fragment %d", utils.ErrFragmenting, i)
			}
		}
	} else if err := c.enc.ReconstructData(shards); err != nil {
		return nil, fmt.Errorf("%w: reconstruct: %w", utils.ErrFragmenting, err)
	}

	var out bytes.Buffer
	out.Grow(int(orig)) //nolint:gosec // G115: blob sizes fit in memory
	for i := 0; i < k; i++ {
		out.Write(shards[i])
	}
	out.Truncate(int(orig)) //nolint:gosec // G115: blob sizes fit in memory
	return out.Bytes(), nil
}
