package erasure

import (
	"encoding/binary"
	"fmt"

	"github.com/scigolib/mdr/internal/utils"
)

// Fragment header layout (little-endian):
//
//	0   magic             u32
//	4   index             u32
//	8   size              u32  payload bytes
//	12  backendMetaSize   u32
//	16  origDataSize      u64
//	24  checksumType      u8
//	25  checksumMismatch  u8
//	26  backendID         u8
//	27  version           u8
//	28  reserved          [4]u8
const (
	HeaderSize   = 32
	Magic        = 0xb0c5ecc
	Version      = 1
	ChecksumNone = 0
)

// Header describes one fragment.
type Header struct {
	Index            uint32
	Size             uint32
	BackendMetaSize  uint32
	OrigDataSize     uint64
	ChecksumType     uint8
	ChecksumMismatch uint8
	BackendID        uint8
	Version          uint8
}

func (h Header) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], Magic)
	binary.LittleEndian.PutUint32(b[4:], h.Index)
	binary.LittleEndian.PutUint32(b[8:], h.Size)
	binary.LittleEndian.PutUint32(b[12:], h.BackendMetaSize)
	binary.LittleEndian.PutUint64(b[16:], h.OrigDataSize)
	b[24] = h.ChecksumType
	b[25] = h.ChecksumMismatch
	b[26] = h.BackendID
	b[27] = h.Version
	clear(b[28:HeaderSize])
}

// ParseHeader reads a fragment header.
func ParseHeader(frag []byte) (Header, error) {
	if len(frag) < HeaderSize {
		return Header{}, fmt.Errorf("%w: fragment of %d bytes has no header", utils.ErrFragmenting, len(frag))
	}
	if magic := binary.LittleEndian.Uint32(frag); magic != Magic {
		return Header{}, fmt.Errorf("%w: bad fragment magic 0x%x", utils.ErrFragmenting, magic)
	}
	return Header{
		Index:            binary.LittleEndian.Uint32(frag[4:]),
		Size:             binary.LittleEndian.Uint32(frag[8:]),
		BackendMetaSize:  binary.LittleEndian.Uint32(frag[12:]),
		OrigDataSize:     binary.LittleEndian.Uint64(frag[16:]),
		ChecksumType:     frag[24],
		ChecksumMismatch: frag[25],
		BackendID:        frag[26],
		Version:          frag[27],
	}, nil
}
