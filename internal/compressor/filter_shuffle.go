package compressor

import "fmt"

// ShuffleFilter implements byte shuffle.
//
// Plane words are 32-bit, so the default element size is 4: all first bytes
// are grouped, then all second bytes, and so on, which puts the sparse high
// bytes of a plane next to each other before entropy coding.
//
//	Original: [A1 A2 A3 A4 B1 B2 B3 B4 C1 C2 C3 C4]
//	Shuffled: [A1 B1 C1 A2 B2 C2 A3 B3 C3 A4 B4 C4]
//
// Trailing bytes that do not fill an element are copied unchanged, because
// per-bit planes have arbitrary lengths.
type ShuffleFilter struct {
	elementSize uint32
}

// NewShuffleFilter creates a shuffle filter with the specified element size.
func NewShuffleFilter(elementSize uint32) *ShuffleFilter {
	if elementSize == 0 {
		elementSize = 1
	}
	return &ShuffleFilter{elementSize: elementSize}
}

// ID returns the registry identifier for shuffle.
func (f *ShuffleFilter) ID() FilterID {
	return FilterShuffle
}

// Name returns the filter name.
func (f *ShuffleFilter) Name() string {
	return "shuffle"
}

// Apply performs byte shuffle on the data.
func (f *ShuffleFilter) Apply(data []byte) ([]byte, error) {
	return f.transpose(data, false)
}

// Remove reverses the byte shuffle.
func (f *ShuffleFilter) Remove(data []byte) ([]byte, error) {
	return f.transpose(data, true)
}

func (f *ShuffleFilter) transpose(data []byte, inverse bool) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("data length %d too large for shuffle", len(data))
	}

	size := f.elementSize
	numElements := uint32(len(data)) / size //nolint:gosec // G115: checked above
	out := make([]byte, len(data))
	body := numElements * size

	for byteIndex := uint32(0); byteIndex < size; byteIndex++ {
		for elemIndex := uint32(0); elemIndex < numElements; elemIndex++ {
			element := elemIndex*size + byteIndex
			grouped := byteIndex*numElements + elemIndex
			if inverse {
				out[element] = data[grouped]
			} else {
				out[grouped] = data[element]
			}
		}
	}
	copy(out[body:], data[body:])

	return out, nil
}

// Params returns the element size.
func (f *ShuffleFilter) Params() []uint32 {
	return []uint32{f.elementSize}
}
