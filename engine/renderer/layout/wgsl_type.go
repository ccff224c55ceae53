// Package layout computes byte-exact WGSL host-shareable memory layouts for uniform and storage structs
// and writes typed values into the matching backing memory.
package layout

import (
	"fmt"
	"strings"
)

// ScalarKind identifies the component type of a WGSL scalar, vector or matrix.
type ScalarKind uint8

const (
	// ScalarFloat is a 32-bit IEEE float component (f32).
	ScalarFloat ScalarKind = iota
	// ScalarSint is a 32-bit signed integer component (i32).
	ScalarSint
	// ScalarUint is a 32-bit unsigned integer component (u32).
	ScalarUint
)

// WGSLType is one of the fixed set of host-shareable WGSL types a buffer field may hold.
type WGSLType uint8

const (
	TypeInvalid WGSLType = iota
	TypeF32
	TypeI32
	TypeU32
	TypeVec2f
	TypeVec3f
	TypeVec4f
	TypeVec2i
	TypeVec3i
	TypeVec4i
	TypeVec2u
	TypeVec3u
	TypeVec4u
	TypeMat2x2f
	TypeMat2x3f
	TypeMat2x4f
	TypeMat3x2f
	TypeMat3x3f
	TypeMat3x4f
	TypeMat4x2f
	TypeMat4x3f
	TypeMat4x4f

	typeCount
)

// typeInfo is the host-shareable layout of one WGSL type.
type typeInfo struct {
	name    string
	kind    ScalarKind
	align   int
	size    int
	columns int
	rows    int
	// columnStride is the byte distance between matrix columns; equal to size for scalars and vectors.
	columnStride int
}

// typeTable mirrors the WGSL alignment and size rules. Matrices store each column as a vecR,
// so 3-row matrices carry one padding slot per column.
var typeTable = [typeCount]typeInfo{
	TypeF32:     {name: "f32", kind: ScalarFloat, align: 4, size: 4, columns: 1, rows: 1, columnStride: 4},
	TypeI32:     {name: "i32", kind: ScalarSint, align: 4, size: 4, columns: 1, rows: 1, columnStride: 4},
	TypeU32:     {name: "u32", kind: ScalarUint, align: 4, size: 4, columns: 1, rows: 1, columnStride: 4},
	TypeVec2f:   {name: "vec2f", kind: ScalarFloat, align: 8, size: 8, columns: 1, rows: 2, columnStride: 8},
	TypeVec3f:   {name: "vec3f", kind: ScalarFloat, align: 16, size: 12, columns: 1, rows: 3, columnStride: 12},
	TypeVec4f:   {name: "vec4f", kind: ScalarFloat, align: 16, size: 16, columns: 1, rows: 4, columnStride: 16},
	TypeVec2i:   {name: "vec2i", kind: ScalarSint, align: 8, size: 8, columns: 1, rows: 2, columnStride: 8},
	TypeVec3i:   {name: "vec3i", kind: ScalarSint, align: 16, size: 12, columns: 1, rows: 3, columnStride: 12},
	TypeVec4i:   {name: "vec4i", kind: ScalarSint, align: 16, size: 16, columns: 1, rows: 4, columnStride: 16},
	TypeVec2u:   {name: "vec2u", kind: ScalarUint, align: 8, size: 8, columns: 1, rows: 2, columnStride: 8},
	TypeVec3u:   {name: "vec3u", kind: ScalarUint, align: 16, size: 12, columns: 1, rows: 3, columnStride: 12},
	TypeVec4u:   {name: "vec4u", kind: ScalarUint, align: 16, size: 16, columns: 1, rows: 4, columnStride: 16},
	TypeMat2x2f: {name: "mat2x2f", kind: ScalarFloat, align: 8, size: 16, columns: 2, rows: 2, columnStride: 8},
	TypeMat2x3f: {name: "mat2x3f", kind: ScalarFloat, align: 16, size: 32, columns: 2, rows: 3, columnStride: 16},
	TypeMat2x4f: {name: "mat2x4f", kind: ScalarFloat, align: 16, size: 32, columns: 2, rows: 4, columnStride: 16},
	TypeMat3x2f: {name: "mat3x2f", kind: ScalarFloat, align: 8, size: 24, columns: 3, rows: 2, columnStride: 8},
	TypeMat3x3f: {name: "mat3x3f", kind: ScalarFloat, align: 16, size: 48, columns: 3, rows: 3, columnStride: 16},
	TypeMat3x4f: {name: "mat3x4f", kind: ScalarFloat, align: 16, size: 48, columns: 3, rows: 4, columnStride: 16},
	TypeMat4x2f: {name: "mat4x2f", kind: ScalarFloat, align: 8, size: 32, columns: 4, rows: 2, columnStride: 8},
	TypeMat4x3f: {name: "mat4x3f", kind: ScalarFloat, align: 16, size: 64, columns: 4, rows: 3, columnStride: 16},
	TypeMat4x4f: {name: "mat4x4f", kind: ScalarFloat, align: 16, size: 64, columns: 4, rows: 4, columnStride: 16},
}

// typeAliases maps the long-form WGSL spellings onto the short aliases used in typeTable.
var typeAliases = map[string]string{
	"vec2<f32>": "vec2f", "vec3<f32>": "vec3f", "vec4<f32>": "vec4f",
	"vec2<i32>": "vec2i", "vec3<i32>": "vec3i", "vec4<i32>": "vec4i",
	"vec2<u32>": "vec2u", "vec3<u32>": "vec3u", "vec4<u32>": "vec4u",
	"mat2x2<f32>": "mat2x2f", "mat2x3<f32>": "mat2x3f", "mat2x4<f32>": "mat2x4f",
	"mat3x2<f32>": "mat3x2f", "mat3x3<f32>": "mat3x3f", "mat3x4<f32>": "mat3x4f",
	"mat4x2<f32>": "mat4x2f", "mat4x3<f32>": "mat4x3f", "mat4x4<f32>": "mat4x4f",
}

func (t WGSLType) info() typeInfo {
	if t == TypeInvalid || t >= typeCount {
		panic(fmt.Sprintf("layout: invalid WGSL type %d", t))
	}
	return typeTable[t]
}

// Valid reports whether t is one of the supported WGSL types.
func (t WGSLType) Valid() bool {
	return t != TypeInvalid && t < typeCount
}

// String returns the WGSL spelling of the type, e.g. "vec3f".
func (t WGSLType) String() string {
	if !t.Valid() {
		return "invalid"
	}
	return typeTable[t].name
}

// Align returns the WGSL AlignOf value of the type in bytes.
func (t WGSLType) Align() int { return t.info().align }

// Size returns the WGSL SizeOf value of the type in bytes.
func (t WGSLType) Size() int { return t.info().size }

// Kind returns the scalar component kind of the type.
func (t WGSLType) Kind() ScalarKind { return t.info().kind }

// Components returns the number of scalar components without padding (e.g. 9 for mat3x3f).
func (t WGSLType) Components() int {
	info := t.info()
	return info.columns * info.rows
}

// IsMatrix reports whether the type has more than one column.
func (t WGSLType) IsMatrix() bool { return t.Valid() && typeTable[t].columns > 1 }

// ParseType resolves a WGSL type name in either its short ("vec3f") or long ("vec3<f32>") spelling.
//
// Parameters:
//   - name: the WGSL type name
//
// Returns:
//   - WGSLType: the matching type
//   - error: ErrUnknownType if the name is not a supported host-shareable type
func ParseType(name string) (WGSLType, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "")
	if alias, ok := typeAliases[name]; ok {
		name = alias
	}
	for t := TypeF32; t < typeCount; t++ {
		if typeTable[t].name == name {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// FieldType is the declared type of one struct field: a WGSL type, or a fixed-size array of it.
type FieldType struct {
	// Elem is the scalar, vector or matrix type of the field, or of each array entry.
	Elem WGSLType
	// Length is the number of array entries; zero for non-array fields.
	Length int
}

// Of returns a non-array field type.
func Of(t WGSLType) FieldType { return FieldType{Elem: t} }

// ArrayOf returns an array<t, n> field type.
func ArrayOf(t WGSLType, n int) FieldType { return FieldType{Elem: t, Length: n} }

// IsArray reports whether the field type is an array.
func (f FieldType) IsArray() bool { return f.Length > 0 }

// String returns the WGSL spelling of the field type.
func (f FieldType) String() string {
	if f.IsArray() {
		return fmt.Sprintf("array<%s, %d>", f.Elem, f.Length)
	}
	return f.Elem.String()
}
