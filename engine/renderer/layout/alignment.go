package layout

const (
	// RowSize is the size in bytes of one layout row.
	RowSize = 16
	// SlotSize is the size in bytes of one slot inside a row.
	SlotSize = 4
)

// Position addresses a byte inside the struct as a row index plus a byte offset within that row.
type Position struct {
	Row  int
	Byte int
}

// PositionAt converts an absolute byte offset into row/byte form.
func PositionAt(offset int) Position {
	return Position{Row: offset / RowSize, Byte: offset % RowSize}
}

// Offset returns the absolute byte offset of the position.
func (p Position) Offset() int {
	return p.Row*RowSize + p.Byte
}

// normalize folds byte positions of 16 and above into additional rows.
func (p Position) normalize() Position {
	p.Row += p.Byte / RowSize
	p.Byte %= RowSize
	return p
}

// Alignment is the placement of one field: Start is the first byte, End is one past the last byte.
type Alignment struct {
	Start Position
	End   Position
}

// ByteCount returns the number of bytes between Start and End.
func (a Alignment) ByteCount() int {
	return a.End.Offset() - a.Start.Offset()
}

// PaddedByteCount returns the byte count once End is rounded up to the next row boundary.
func (a Alignment) PaddedByteCount() int {
	return roundUp(a.End.Offset(), RowSize) - a.Start.Offset()
}

// place positions a value of the given alignment and size at the first aligned byte at or after next.
func place(align, size int, next Position) Alignment {
	start := next.normalize()
	if start.Byte%align != 0 {
		start.Byte = roundUp(start.Byte, align)
		start = start.normalize()
	}
	end := Position{Row: start.Row, Byte: start.Byte + size}.normalize()
	return Alignment{Start: start, End: end}
}

// Place positions a field of type t at the first correctly aligned byte at or after next.
//
// Parameters:
//   - t: the WGSL type being placed
//   - next: the first free position in the struct
//
// Returns:
//   - Alignment: the start and end positions of the field
func Place(t WGSLType, next Position) Alignment {
	info := t.info()
	return place(info.align, info.size, next)
}

// measureStride lays out a second hypothetical instance of t right after first and returns the distance
// between the two starts, which is the array stride the shading language uses for t.
func measureStride(align, size int, first Alignment) int {
	second := place(align, size, first.End)
	return second.Start.Offset() - first.Start.Offset()
}

func roundUp(v, multiple int) int {
	if multiple <= 0 {
		return v
	}
	return (v + multiple - 1) / multiple * multiple
}
