package layout

import "math"

// Value is the payload of one field: a flat list of 32-bit components tagged with their scalar kind.
// Scalars carry one component, vectors two to four, matrices their columns back to back and
// arrays every entry back to back.
type Value struct {
	kind  ScalarKind
	words []uint32
}

// Float returns a float Value holding the given components.
func Float(components ...float32) Value {
	words := make([]uint32, len(components))
	for i, c := range components {
		words[i] = math.Float32bits(c)
	}
	return Value{kind: ScalarFloat, words: words}
}

// Sint returns a signed integer Value holding the given components.
func Sint(components ...int32) Value {
	words := make([]uint32, len(components))
	for i, c := range components {
		words[i] = uint32(c)
	}
	return Value{kind: ScalarSint, words: words}
}

// Uint returns an unsigned integer Value holding the given components.
func Uint(components ...uint32) Value {
	words := make([]uint32, len(components))
	copy(words, components)
	return Value{kind: ScalarUint, words: words}
}

// Bool returns a u32 Value of 1 or 0, the host-shareable encoding of a boolean flag.
func Bool(b bool) Value {
	if b {
		return Uint(1)
	}
	return Uint(0)
}

// Vec2 returns a two component float Value.
func Vec2(x, y float32) Value { return Float(x, y) }

// Vec3 returns a three component float Value.
func Vec3(x, y, z float32) Value { return Float(x, y, z) }

// Vec4 returns a four component float Value.
func Vec4(x, y, z, w float32) Value { return Float(x, y, z, w) }

// Mat4 returns a column-major 4x4 matrix Value.
func Mat4(m [16]float32) Value { return Float(m[:]...) }

// Kind returns the scalar kind the Value was built with.
func (v Value) Kind() ScalarKind { return v.kind }

// Len returns the number of components.
func (v Value) Len() int { return len(v.words) }

// IsZero reports whether the Value carries no components.
func (v Value) IsZero() bool { return len(v.words) == 0 }

// Floats returns the components converted to float32.
func (v Value) Floats() []float32 {
	out := make([]float32, len(v.words))
	for i, w := range v.words {
		switch v.kind {
		case ScalarFloat:
			out[i] = math.Float32frombits(w)
		case ScalarSint:
			out[i] = float32(int32(w))
		default:
			out[i] = float32(w)
		}
	}
	return out
}

// Sints returns the components converted to int32.
func (v Value) Sints() []int32 {
	out := make([]int32, len(v.words))
	for i, w := range v.words {
		switch v.kind {
		case ScalarFloat:
			out[i] = int32(math.Float32frombits(w))
		default:
			out[i] = int32(w)
		}
	}
	return out
}

// Uints returns the components converted to uint32.
func (v Value) Uints() []uint32 {
	out := make([]uint32, len(v.words))
	for i, w := range v.words {
		switch v.kind {
		case ScalarFloat:
			out[i] = uint32(math.Float32frombits(w))
		default:
			out[i] = w
		}
	}
	return out
}

// Words returns the raw component bits encoded for the target scalar kind, as they are laid out in
// GPU memory.
func (v Value) Words(kind ScalarKind) []uint32 {
	return v.wordsAs(kind)
}

// wordsAs returns the raw component bits encoded for the target scalar kind.
func (v Value) wordsAs(kind ScalarKind) []uint32 {
	if v.kind == kind {
		return v.words
	}
	out := make([]uint32, len(v.words))
	switch kind {
	case ScalarFloat:
		for i, f := range v.Floats() {
			out[i] = math.Float32bits(f)
		}
	case ScalarSint:
		for i, s := range v.Sints() {
			out[i] = uint32(s)
		}
	default:
		copy(out, v.Uints())
	}
	return out
}

// Equal reports whether two Values carry the same kind and component bits.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || len(v.words) != len(o.words) {
		return false
	}
	for i := range v.words {
		if v.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

func valueFromWords(kind ScalarKind, words []uint32) Value {
	return Value{kind: kind, words: words}
}
