package layout

import (
	"fmt"
	"strings"
)

// InterleavedElement merges several equal-length arrays into one array of structs. Entry i of every
// member array lives in row i of the merged array at a fixed sub-offset.
type InterleavedElement interface {
	ArrayElement

	// Members returns one strided view per merged array, in declaration order.
	//
	// Returns:
	//   - []ArrayElement: the member views
	Members() []ArrayElement

	// EntryStructText returns the WGSL declaration of the struct describing one interleaved entry.
	//
	// Parameters:
	//   - typeName: the name given to the entry struct
	//
	// Returns:
	//   - string: the struct declaration
	EntryStructText(typeName string) string

	// SetEntryTypeName sets the WGSL name of the entry struct used by TypeText.
	//
	// Parameters:
	//   - typeName: the name of the entry struct
	SetEntryTypeName(typeName string)
}

// bufferInterleavedArrayElement is the merged storage of several equal-length arrays.
type bufferInterleavedArrayElement struct {
	name          string
	entryTypeName string
	numElements   int
	stride        int
	alignment     Alignment
	members       []*interleavedMember
}

// interleavedMember is a strided view of one array inside an interleaved element.
type interleavedMember struct {
	parent    *bufferInterleavedArrayElement
	name      string
	elem      WGSLType
	subOffset int
}

var (
	_ InterleavedElement = &bufferInterleavedArrayElement{}
	_ ArrayElement       = &interleavedMember{}
)

// newBufferInterleavedArrayElement lays out one entry of every array as a struct, measures the entry
// stride the same way plain arrays do, then places the merged array at next.
func newBufferInterleavedArrayElement(name string, fields []Field, next Position) *bufferInterleavedArrayElement {
	e := &bufferInterleavedArrayElement{
		name:          name,
		entryTypeName: name + "Entry",
		numElements:   fields[0].Type.Length,
	}

	cursor := Position{}
	structAlign := 0
	for _, f := range fields {
		info := f.Type.Elem.info()
		placed := place(info.align, info.size, cursor)
		e.members = append(e.members, &interleavedMember{
			parent:    e,
			name:      f.Name,
			elem:      f.Type.Elem,
			subOffset: placed.Start.Offset(),
		})
		cursor = placed.End
		structAlign = max(structAlign, info.align)
	}

	entrySize := cursor.Offset()
	first := place(structAlign, entrySize, Position{})
	second := place(structAlign, entrySize, first.End)
	e.stride = second.Start.Offset() - first.Start.Offset()

	start := place(structAlign, e.stride*e.numElements, next)
	e.alignment = start
	return e
}

func (e *bufferInterleavedArrayElement) Name() string {
	return e.name
}

func (e *bufferInterleavedArrayElement) TypeText() string {
	return fmt.Sprintf("array<%s, %d>", e.entryTypeName, e.numElements)
}

func (e *bufferInterleavedArrayElement) SetEntryTypeName(typeName string) {
	e.entryTypeName = typeName
}

func (e *bufferInterleavedArrayElement) Alignment() Alignment {
	return e.alignment
}

func (e *bufferInterleavedArrayElement) ByteOffset() int {
	return e.alignment.Start.Offset()
}

func (e *bufferInterleavedArrayElement) ByteCount() int {
	return e.alignment.ByteCount()
}

func (e *bufferInterleavedArrayElement) PaddedByteCount() int {
	return e.alignment.PaddedByteCount()
}

func (e *bufferInterleavedArrayElement) NumElements() int {
	return e.numElements
}

func (e *bufferInterleavedArrayElement) ArrayLength() int {
	total := 0
	for _, m := range e.members {
		total += m.ArrayLength()
	}
	return total
}

func (e *bufferInterleavedArrayElement) ElementStride() int {
	return e.stride
}

func (e *bufferInterleavedArrayElement) Members() []ArrayElement {
	out := make([]ArrayElement, len(e.members))
	for i, m := range e.members {
		out[i] = m
	}
	return out
}

func (e *bufferInterleavedArrayElement) EntryStructText(typeName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", typeName)
	for _, m := range e.members {
		fmt.Fprintf(&sb, "\t%s: %s,\n", m.name, m.elem)
	}
	sb.WriteString("}")
	return sb.String()
}

func (e *bufferInterleavedArrayElement) Write(_ *Arena, _ Value) error {
	return fmt.Errorf("field %s: %w", e.name, ErrInterleavedWrite)
}

func (e *bufferInterleavedArrayElement) Read(a *Arena) (Value, error) {
	return Value{}, fmt.Errorf("field %s: %w", e.name, ErrInterleavedWrite)
}

func (m *interleavedMember) Name() string {
	return m.name
}

func (m *interleavedMember) TypeText() string {
	return ArrayOf(m.elem, m.parent.numElements).String()
}

// Alignment returns the placement of the member's first entry.
func (m *interleavedMember) Alignment() Alignment {
	return Place(m.elem, PositionAt(m.ByteOffset()))
}

func (m *interleavedMember) ByteOffset() int {
	return m.parent.ByteOffset() + m.subOffset
}

// ByteCount returns the span from the member's first entry to the end of its last entry.
func (m *interleavedMember) ByteCount() int {
	return m.parent.stride*(m.parent.numElements-1) + m.elem.Size()
}

func (m *interleavedMember) PaddedByteCount() int {
	end := m.ByteOffset() + m.ByteCount()
	return roundUp(end, RowSize) - m.ByteOffset()
}

func (m *interleavedMember) NumElements() int {
	return m.parent.numElements
}

func (m *interleavedMember) ArrayLength() int {
	return m.parent.numElements * m.elem.Components()
}

func (m *interleavedMember) ElementStride() int {
	return m.parent.stride
}

// SubOffset returns the byte offset of the member inside one interleaved entry.
func (m *interleavedMember) SubOffset() int {
	return m.subOffset
}

func (m *interleavedMember) Write(a *Arena, v Value) error {
	err := writeStrided(a, m.ByteOffset(), m.parent.stride, m.parent.numElements, m.elem, v.wordsAs(m.elem.Kind()), false)
	if err != nil {
		return fmt.Errorf("field %s: %w", m.name, err)
	}
	return nil
}

func (m *interleavedMember) Read(a *Arena) (Value, error) {
	words, err := readStrided(a, m.ByteOffset(), m.parent.stride, m.parent.numElements, m.elem)
	if err != nil {
		return Value{}, fmt.Errorf("field %s: %w", m.name, err)
	}
	return valueFromWords(m.elem.Kind(), words), nil
}
