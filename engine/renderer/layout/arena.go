package layout

import (
	"encoding/binary"
	"fmt"
)

// Arena is the backing memory block of one struct layout. All field writes go through a Cursor.
type Arena struct {
	buf []byte
}

// NewArena allocates a zeroed arena of the given size in bytes.
func NewArena(size int) *Arena {
	return &Arena{buf: make([]byte, size)}
}

// Bytes returns the live backing memory. Callers must not retain it across writes they do not own.
func (a *Arena) Bytes() []byte { return a.buf }

// Len returns the arena size in bytes.
func (a *Arena) Len() int { return len(a.buf) }

// Slice returns the bytes in [offset, offset+count).
func (a *Arena) Slice(offset, count int) ([]byte, error) {
	if offset < 0 || count < 0 || offset+count > len(a.buf) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfBounds, offset, offset+count, len(a.buf))
	}
	return a.buf[offset : offset+count], nil
}

// Cursor returns a cursor positioned at offset.
func (a *Arena) Cursor(offset int) *Cursor {
	return &Cursor{arena: a, offset: offset}
}

// Cursor reads and writes little-endian 32-bit slots at an explicit byte position inside an Arena.
type Cursor struct {
	arena  *Arena
	offset int
}

// Offset returns the current byte position.
func (c *Cursor) Offset() int { return c.offset }

// Seek moves the cursor to an absolute byte position.
func (c *Cursor) Seek(offset int) *Cursor {
	c.offset = offset
	return c
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) *Cursor {
	c.offset += n
	return c
}

// PutWord writes one 32-bit slot and advances by 4 bytes.
func (c *Cursor) PutWord(w uint32) error {
	if c.offset < 0 || c.offset+SlotSize > len(c.arena.buf) {
		return fmt.Errorf("%w: write at %d of %d", ErrOutOfBounds, c.offset, len(c.arena.buf))
	}
	binary.LittleEndian.PutUint32(c.arena.buf[c.offset:], w)
	c.offset += SlotSize
	return nil
}

// PutWords writes consecutive 32-bit slots.
func (c *Cursor) PutWords(words []uint32) error {
	for _, w := range words {
		if err := c.PutWord(w); err != nil {
			return err
		}
	}
	return nil
}

// Word reads one 32-bit slot and advances by 4 bytes.
func (c *Cursor) Word() (uint32, error) {
	if c.offset < 0 || c.offset+SlotSize > len(c.arena.buf) {
		return 0, fmt.Errorf("%w: read at %d of %d", ErrOutOfBounds, c.offset, len(c.arena.buf))
	}
	w := binary.LittleEndian.Uint32(c.arena.buf[c.offset:])
	c.offset += SlotSize
	return w, nil
}

// Words reads n consecutive 32-bit slots.
func (c *Cursor) Words(n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		w, err := c.Word()
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}
