package layout

import "errors"

var (
	// ErrUnknownType is returned when a type name does not match any host-shareable WGSL type.
	ErrUnknownType = errors.New("unknown WGSL type")
	// ErrUnequalArrayLengths is returned when two or more array fields of different lengths share one struct.
	ErrUnequalArrayLengths = errors.New("array fields must have equal lengths to be interleaved")
	// ErrEmptyStruct is returned when a struct layout is requested with no fields.
	ErrEmptyStruct = errors.New("struct layout requires at least one field")
	// ErrDuplicateField is returned when two fields share one name.
	ErrDuplicateField = errors.New("duplicate field name")
	// ErrValueOutOfRange is returned when a value carries more components than its field can hold.
	ErrValueOutOfRange = errors.New("value does not fit its field")
	// ErrOutOfBounds is returned when a cursor read or write would leave the arena.
	ErrOutOfBounds = errors.New("cursor access out of arena bounds")
	// ErrInterleavedWrite is returned when a value is written to an interleaved array as a whole
	// instead of to one of its members.
	ErrInterleavedWrite = errors.New("interleaved arrays are written per member")
)
