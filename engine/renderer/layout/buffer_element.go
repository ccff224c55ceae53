package layout

import "fmt"

// Element is the computed placement of one struct field together with the typed view used to write it
// into an Arena.
type Element interface {
	// Name returns the field name as it appears in the WGSL struct.
	//
	// Returns:
	//   - string: the field name
	Name() string

	// TypeText returns the WGSL type of the field as written in the struct declaration.
	//
	// Returns:
	//   - string: the WGSL type, e.g. "mat4x4f" or "array<vec3f, 4>"
	TypeText() string

	// Alignment returns the start and end positions of the field.
	//
	// Returns:
	//   - Alignment: the (row, byte) placement
	Alignment() Alignment

	// ByteOffset returns the absolute offset of the field's first byte.
	//
	// Returns:
	//   - int: the byte offset from the start of the struct
	ByteOffset() int

	// ByteCount returns the number of bytes the field occupies.
	//
	// Returns:
	//   - int: the field size in bytes
	ByteCount() int

	// PaddedByteCount returns the field size with its end rounded up to the next row.
	//
	// Returns:
	//   - int: the padded field size in bytes
	PaddedByteCount() int

	// Write encodes v into the field's bytes of the arena.
	//
	// Parameters:
	//   - a: the arena backing the struct
	//   - v: the value to write
	//
	// Returns:
	//   - error: ErrValueOutOfRange if v has more components than the field holds
	Write(a *Arena, v Value) error

	// Read decodes the field's bytes back into a Value without padding slots.
	//
	// Parameters:
	//   - a: the arena backing the struct
	//
	// Returns:
	//   - Value: the decoded value
	//   - error: an error if the field lies outside the arena
	Read(a *Arena) (Value, error)
}

// ArrayElement is an Element holding a fixed number of entries at a measured stride.
type ArrayElement interface {
	Element

	// NumElements returns the number of array entries.
	//
	// Returns:
	//   - int: the entry count
	NumElements() int

	// ArrayLength returns the number of scalar components across all entries, padding excluded.
	//
	// Returns:
	//   - int: the component count
	ArrayLength() int

	// ElementStride returns the byte distance between two consecutive entries.
	//
	// Returns:
	//   - int: the stride in bytes
	ElementStride() int
}

// bufferElement is a scalar, vector or matrix field.
type bufferElement struct {
	name      string
	typ       WGSLType
	alignment Alignment
}

var _ Element = &bufferElement{}

// newBufferElement places a non-array field at the first aligned position at or after next.
func newBufferElement(name string, t WGSLType, next Position) *bufferElement {
	return &bufferElement{
		name:      name,
		typ:       t,
		alignment: Place(t, next),
	}
}

func (e *bufferElement) Name() string {
	return e.name
}

func (e *bufferElement) TypeText() string {
	return e.typ.String()
}

func (e *bufferElement) Alignment() Alignment {
	return e.alignment
}

func (e *bufferElement) ByteOffset() int {
	return e.alignment.Start.Offset()
}

func (e *bufferElement) ByteCount() int {
	return e.alignment.ByteCount()
}

func (e *bufferElement) PaddedByteCount() int {
	return e.alignment.PaddedByteCount()
}

func (e *bufferElement) Write(a *Arena, v Value) error {
	if err := writeOne(a.Cursor(e.ByteOffset()), e.typ, v.wordsAs(e.typ.Kind())); err != nil {
		return fmt.Errorf("field %s: %w", e.name, err)
	}
	return nil
}

func (e *bufferElement) Read(a *Arena) (Value, error) {
	words, err := readOne(a.Cursor(e.ByteOffset()), e.typ)
	if err != nil {
		return Value{}, fmt.Errorf("field %s: %w", e.name, err)
	}
	return valueFromWords(e.typ.Kind(), words), nil
}

// writeOne writes a single scalar, vector or matrix at the cursor position.
// Vectors copy the provided x,y,z,w subset and zero the missing components. A matrix given with exactly
// columns*rows components is written column by column so padding slots stay untouched by data;
// any other length is copied slot for slot.
func writeOne(c *Cursor, t WGSLType, words []uint32) error {
	info := t.info()
	slots := info.size / SlotSize
	if len(words) > slots {
		return fmt.Errorf("%w: %d components for %s", ErrValueOutOfRange, len(words), info.name)
	}

	base := c.Offset()
	tight := info.columns * info.rows
	if info.columns > 1 && len(words) == tight && info.columnStride != info.rows*SlotSize {
		for col := 0; col < info.columns; col++ {
			c.Seek(base + col*info.columnStride)
			if err := c.PutWords(words[col*info.rows : (col+1)*info.rows]); err != nil {
				return err
			}
		}
		return nil
	}

	for i := 0; i < slots; i++ {
		var w uint32
		if i < len(words) {
			w = words[i]
		}
		if err := c.PutWord(w); err != nil {
			return err
		}
	}
	return nil
}

// readOne reads a single scalar, vector or matrix at the cursor position, skipping column padding.
func readOne(c *Cursor, t WGSLType) ([]uint32, error) {
	info := t.info()
	base := c.Offset()
	out := make([]uint32, 0, info.columns*info.rows)
	for col := 0; col < info.columns; col++ {
		c.Seek(base + col*info.columnStride)
		words, err := c.Words(info.rows)
		if err != nil {
			return nil, err
		}
		out = append(out, words...)
	}
	return out, nil
}
