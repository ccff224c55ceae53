package layout

import "fmt"

// bufferArrayElement is an array<T, N> field whose entries sit at a measured stride.
type bufferArrayElement struct {
	name        string
	elem        WGSLType
	numElements int
	stride      int
	alignment   Alignment
}

var _ ArrayElement = &bufferArrayElement{}

// newBufferArrayElement places an array field. The stride is measured by laying out a second entry right
// after the first instead of being looked up per type.
func newBufferArrayElement(name string, elem WGSLType, numElements int, next Position) *bufferArrayElement {
	info := elem.info()
	first := place(info.align, info.size, next)
	stride := measureStride(info.align, info.size, first)
	end := PositionAt(first.Start.Offset() + stride*numElements)
	return &bufferArrayElement{
		name:        name,
		elem:        elem,
		numElements: numElements,
		stride:      stride,
		alignment:   Alignment{Start: first.Start, End: end},
	}
}

func (e *bufferArrayElement) Name() string {
	return e.name
}

func (e *bufferArrayElement) TypeText() string {
	return ArrayOf(e.elem, e.numElements).String()
}

func (e *bufferArrayElement) Alignment() Alignment {
	return e.alignment
}

func (e *bufferArrayElement) ByteOffset() int {
	return e.alignment.Start.Offset()
}

func (e *bufferArrayElement) ByteCount() int {
	return e.alignment.ByteCount()
}

func (e *bufferArrayElement) PaddedByteCount() int {
	return e.alignment.PaddedByteCount()
}

func (e *bufferArrayElement) NumElements() int {
	return e.numElements
}

func (e *bufferArrayElement) ArrayLength() int {
	return e.numElements * e.elem.Components()
}

func (e *bufferArrayElement) ElementStride() int {
	return e.stride
}

func (e *bufferArrayElement) Write(a *Arena, v Value) error {
	if err := writeStrided(a, e.ByteOffset(), e.stride, e.numElements, e.elem, v.wordsAs(e.elem.Kind()), true); err != nil {
		return fmt.Errorf("field %s: %w", e.name, err)
	}
	return nil
}

func (e *bufferArrayElement) Read(a *Arena) (Value, error) {
	words, err := readStrided(a, e.ByteOffset(), e.stride, e.numElements, e.elem)
	if err != nil {
		return Value{}, fmt.Errorf("field %s: %w", e.name, err)
	}
	return valueFromWords(e.elem.Kind(), words), nil
}

// writeStrided writes up to count entries of type t starting at offset, stride bytes apart.
// Values made of whole unpadded entries are written entry by entry. When allowBulk is set, a value
// already laid out at the stride (len a multiple of stride/4) is copied verbatim.
func writeStrided(a *Arena, offset, stride, count int, t WGSLType, words []uint32, allowBulk bool) error {
	tight := t.Components()
	strideSlots := stride / SlotSize

	if len(words)%tight == 0 && len(words)/tight <= count {
		c := a.Cursor(offset)
		for i := 0; i < len(words)/tight; i++ {
			c.Seek(offset + i*stride)
			if err := writeOne(c, t, words[i*tight:(i+1)*tight]); err != nil {
				return err
			}
		}
		return nil
	}

	if allowBulk && len(words) <= count*strideSlots {
		return a.Cursor(offset).PutWords(words)
	}

	return fmt.Errorf("%w: %d components for %d entries of %s", ErrValueOutOfRange, len(words), count, t)
}

// readStrided reads count entries of type t starting at offset, stride bytes apart.
func readStrided(a *Arena, offset, stride, count int, t WGSLType) ([]uint32, error) {
	out := make([]uint32, 0, count*t.Components())
	c := a.Cursor(offset)
	for i := 0; i < count; i++ {
		c.Seek(offset + i*stride)
		words, err := readOne(c, t)
		if err != nil {
			return nil, err
		}
		out = append(out, words...)
	}
	return out, nil
}
