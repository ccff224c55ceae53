package binding

import "github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"

// Input is one named value of a buffer binding. Setting the value marks it for the next Serialize.
type Input struct {
	name         string
	typ          layout.FieldType
	value        layout.Value
	shouldUpdate bool
}

func newInput(name string, typ layout.FieldType, initial layout.Value) *Input {
	return &Input{
		name:         name,
		typ:          typ,
		value:        initial,
		shouldUpdate: !initial.IsZero(),
	}
}

// Name returns the input's field name.
func (i *Input) Name() string { return i.name }

// Type returns the declared field type.
func (i *Input) Type() layout.FieldType { return i.typ }

// Value returns the current value.
func (i *Input) Value() layout.Value { return i.value }

// ShouldUpdate reports whether the value changed since the last Serialize.
func (i *Input) ShouldUpdate() bool { return i.shouldUpdate }

// Set replaces the value and marks the input dirty.
func (i *Input) Set(v layout.Value) {
	i.value = v
	i.shouldUpdate = true
}

// SerializeHook runs for every dirty input just before its value is written. It may call Set to
// adjust the value being written.
type SerializeHook func(in *Input)
