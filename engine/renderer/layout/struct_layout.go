package layout

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gpu/common"
)

// Field declares one named struct field before layout.
type Field struct {
	Name string
	Type FieldType
}

// TypeDecl is a WGSL struct type declaration produced for a layout.
type TypeDecl struct {
	// Name is the declared WGSL type name.
	Name string
	// Text is the full declaration.
	Text string
}

// StructLayout is the immutable placement of every field of one uniform or storage struct.
type StructLayout struct {
	elements []Element
	fields   map[string]Element
	order    []string
	size     int
}

// StructLayoutOption configures NewStructLayout.
type StructLayoutOption func(*structLayoutConfig)

type structLayoutConfig struct {
	interleavedName string
}

// WithInterleavedName sets the struct member name used for merged equal-length arrays.
// Defaults to "elements".
//
// Parameters:
//   - name: the WGSL member name of the interleaved array
//
// Returns:
//   - StructLayoutOption: option function to apply
func WithInterleavedName(name string) StructLayoutOption {
	return func(c *structLayoutConfig) {
		c.interleavedName = name
	}
}

// NewStructLayout places fields according to the WGSL host-shareable layout rules.
// Non-array fields keep their declaration order; array fields are moved to the end. A single array
// stays a plain array, two or more arrays of equal length are interleaved into one array of structs,
// and arrays of unequal length are rejected. A field named "position" is forced to vec3f.
//
// Parameters:
//   - fields: the fields in declaration order
//   - opts: optional layout settings
//
// Returns:
//   - *StructLayout: the computed layout
//   - error: ErrEmptyStruct, ErrDuplicateField or ErrUnequalArrayLengths on invalid input
func NewStructLayout(fields []Field, opts ...StructLayoutOption) (*StructLayout, error) {
	cfg := structLayoutConfig{interleavedName: "elements"}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(fields) == 0 {
		return nil, ErrEmptyStruct
	}

	seen := make(map[string]struct{}, len(fields))
	var scalars, arrays []Field
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
		if !f.Type.Elem.Valid() {
			return nil, fmt.Errorf("%w: field %s", ErrUnknownType, f.Name)
		}
		f = normalizePosition(f)
		if f.Type.IsArray() {
			arrays = append(arrays, f)
		} else {
			scalars = append(scalars, f)
		}
	}

	for _, a := range arrays[min(1, len(arrays)):] {
		if a.Type.Length != arrays[0].Type.Length {
			return nil, fmt.Errorf("%w: %s has %d entries, %s has %d",
				ErrUnequalArrayLengths, arrays[0].Name, arrays[0].Type.Length, a.Name, a.Type.Length)
		}
	}

	l := &StructLayout{fields: make(map[string]Element, len(fields))}
	next := Position{}
	for _, f := range scalars {
		e := newBufferElement(f.Name, f.Type.Elem, next)
		l.add(e)
		next = e.Alignment().End
	}

	switch {
	case len(arrays) == 1:
		e := newBufferArrayElement(arrays[0].Name, arrays[0].Type.Elem, arrays[0].Type.Length, next)
		l.add(e)
		next = e.Alignment().End
	case len(arrays) > 1:
		e := newBufferInterleavedArrayElement(cfg.interleavedName, arrays, next)
		l.elements = append(l.elements, e)
		for _, m := range e.members {
			l.fields[m.name] = m
			l.order = append(l.order, m.name)
		}
		next = e.Alignment().End
	}

	l.size = max(roundUp(next.Offset(), RowSize), RowSize)
	return l, nil
}

// normalizePosition forces a position field to vec3f and logs the correction.
func normalizePosition(f Field) Field {
	if f.Name != "position" || f.Type.Elem == TypeVec3f {
		return f
	}
	common.Logger().Warn("position field must be vec3f, correcting declared type",
		"declared", f.Type.String())
	f.Type.Elem = TypeVec3f
	return f
}

func (l *StructLayout) add(e Element) {
	l.elements = append(l.elements, e)
	l.fields[e.Name()] = e
	l.order = append(l.order, e.Name())
}

// Elements returns the top-level struct members in layout order. Interleaved arrays appear once.
func (l *StructLayout) Elements() []Element {
	return l.elements
}

// Field returns the element that writes the named field. For interleaved arrays this is the member view.
func (l *StructLayout) Field(name string) (Element, bool) {
	e, ok := l.fields[name]
	return e, ok
}

// FieldNames returns every writable field name in layout order.
func (l *StructLayout) FieldNames() []string {
	return l.order
}

// Size returns the size of the backing memory: the end of the last field rounded up to a whole row.
func (l *StructLayout) Size() int {
	return l.size
}

// Interleaved returns the interleaved element of the layout, if any.
func (l *StructLayout) Interleaved() (InterleavedElement, bool) {
	for _, e := range l.elements {
		if ie, ok := e.(InterleavedElement); ok {
			return ie, true
		}
	}
	return nil, false
}

// NewArena allocates backing memory sized for the layout.
func (l *StructLayout) NewArena() *Arena {
	return NewArena(l.size)
}

// TypeDecls returns the WGSL struct declarations for the layout: the interleaved entry struct first when
// present, then the struct itself.
//
// Parameters:
//   - structName: the WGSL name of the struct
//
// Returns:
//   - []TypeDecl: the declarations in dependency order
func (l *StructLayout) TypeDecls(structName string) []TypeDecl {
	var decls []TypeDecl
	if ie, ok := l.Interleaved(); ok {
		entryName := structName + "Entry"
		ie.SetEntryTypeName(entryName)
		decls = append(decls, TypeDecl{Name: entryName, Text: ie.EntryStructText(entryName)})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", structName)
	for _, e := range l.elements {
		fmt.Fprintf(&sb, "\t%s: %s,\n", e.Name(), e.TypeText())
	}
	sb.WriteString("}")
	decls = append(decls, TypeDecl{Name: structName, Text: sb.String()})
	return decls
}
