// Package manifest builds tier blobs and the query table that locates every
// fetched plane inside them.
//
// Persisted layout (all little-endian uint64):
//
//	shape record: [rows, 5]
//	rows:         rows*5 values {level, plane, tier, offset, length}
//
// Rows keep fetch order within a tier; tiers are concatenated in processing
// order, and offsets are contiguous within each tier blob.
package manifest

import (
	"encoding/binary"
	"fmt"

	"github.com/scigolib/mdr/internal/schedule"
	"github.com/scigolib/mdr/internal/utils"
)

// Columns is the fixed width of a query table row.
const Columns = 5

// Row locates one plane in a tier blob.
type Row struct {
	Level  uint64
	Plane  uint64
	Tier   uint64
	Offset uint64
	Length uint64
}

// Table is a variable's query table.
type Table struct {
	Rows []Row
}

// AppendTier concatenates the planes named by fetches into the tier's blob
// and records one row per fetch. planes[level][plane] holds the (possibly
// compressed) plane bytes.
func (t *Table) AppendTier(tier int, fetches []schedule.Fetch, planes [][][]byte) ([]byte, error) {
	total := 0
	for _, f := range fetches {
		if f.Level >= len(planes) || f.Plane >= len(planes[f.Level]) {
			return nil, utils.ConfigErrorf("fetch", "level %d plane %d not encoded", f.Level, f.Plane)
		}
		total += len(planes[f.Level][f.Plane])
	}

	blob := make([]byte, 0, total)
	for _, f := range fetches {
		plane := planes[f.Level][f.Plane]
		t.Rows = append(t.Rows, Row{
			Level:  uint64(f.Level),
			Plane:  uint64(f.Plane),
			Tier:   uint64(tier),
			Offset: uint64(len(blob)),
			Length: uint64(len(plane)),
		})
		blob = append(blob, plane...)
	}
	return blob, nil
}

// TierRows returns the rows of one tier in fetch order.
func (t *Table) TierRows(tier int) []Row {
	var rows []Row
	for _, r := range t.Rows {
		if r.Tier == uint64(tier) {
			rows = append(rows, r)
		}
	}
	return rows
}

// Tiers returns the number of distinct tiers, assuming tier indices are
// dense from zero.
func (t *Table) Tiers() int {
	n := 0
	for _, r := range t.Rows {
		if int(r.Tier)+1 > n { //nolint:gosec // G115: tier counts are small
			n = int(r.Tier) + 1 //nolint:gosec // G115: tier counts are small
		}
	}
	return n
}

// Split cuts a tier blob back into planes using the tier's rows.
func (t *Table) Split(tier int, blob []byte) (map[[2]int][]byte, error) {
	out := make(map[[2]int][]byte)
	for _, r := range t.TierRows(tier) {
		end := r.Offset + r.Length
		if end < r.Offset || end > uint64(len(blob)) {
			return nil, fmt.Errorf("row level %d plane %d spans [%d, %d) beyond %d byte blob",
				r.Level, r.Plane, r.Offset, end, len(blob))
		}
		out[[2]int{int(r.Level), int(r.Plane)}] = blob[r.Offset:end] //nolint:gosec // G115: bounded by blob length
	}
	return out, nil
}

// Validate checks that offsets are contiguous and non-overlapping within
// each tier and that no (level, plane) appears twice.
func (t *Table) Validate() error {
	next := make(map[uint64]uint64)
	seen := make(map[[2]uint64]bool)
	for i, r := range t.Rows {
		if r.Offset != next[r.Tier] {
			return fmt.Errorf("row %d: offset %d, expected %d in tier %d", i, r.Offset, next[r.Tier], r.Tier)
		}
		next[r.Tier] = r.Offset + r.Length
		key := [2]uint64{r.Level, r.Plane}
		if seen[key] {
			return fmt.Errorf("row %d: level %d plane %d listed twice", i, r.Level, r.Plane)
		}
		seen[key] = true
	}
	return nil
}

// EncodeShape returns the shape record {rows, 5}.
func (t *Table) EncodeShape() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, uint64(len(t.Rows)))
	binary.LittleEndian.PutUint64(buf[8:], Columns)
	return buf
}

// EncodeRows returns the flat row-major uint64 matrix.
func (t *Table) EncodeRows() []byte {
	buf := make([]byte, len(t.Rows)*Columns*8)
	for i, r := range t.Rows {
		off := i * Columns * 8
		for j, v := range [Columns]uint64{r.Level, r.Plane, r.Tier, r.Offset, r.Length} {
			binary.LittleEndian.PutUint64(buf[off+j*8:], v)
		}
	}
	return buf
}

// MarshalBinary returns the shape record followed by the rows.
func (t *Table) MarshalBinary() ([]byte, error) {
	return append(t.EncodeShape(), t.EncodeRows()...), nil
}

// UnmarshalBinary parses the output of MarshalBinary.
func (t *Table) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("manifest too short: %d bytes", len(data))
	}
	decoded, err := Decode(data[:16], data[16:])
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}

// Decode rebuilds a table from its shape record and rows.
func Decode(shape, rows []byte) (*Table, error) {
	if len(shape) != 16 {
		return nil, fmt.Errorf("manifest shape record is %d bytes, want 16", len(shape))
	}
	n := binary.LittleEndian.Uint64(shape)
	cols := binary.LittleEndian.Uint64(shape[8:])
	if cols != Columns {
		return nil, fmt.Errorf("manifest has %d columns, want %d", cols, Columns)
	}
	size, err := utils.SafeMultiply(n, Columns*8)
	if err != nil || size != uint64(len(rows)) {
		return nil, fmt.Errorf("manifest declares %d rows but holds %d bytes", n, len(rows))
	}

	t := &Table{Rows: make([]Row, n)}
	for i := range t.Rows {
		off := i * Columns * 8
		var v [Columns]uint64
		for j := range v {
			v[j] = binary.LittleEndian.Uint64(rows[off+j*8:])
		}
		t.Rows[i] = Row{Level: v[0], Plane: v[1], Tier: v[2], Offset: v[3], Length: v[4]}
	}
	return t, nil
}
