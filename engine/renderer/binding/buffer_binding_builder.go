package binding

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// BufferBindingBuilderOption is a functional option for configuring a BufferBinding.
type BufferBindingBuilderOption func(*bufferBinding)

// WithField adds a field to the binding's struct.
//
// Parameters:
//   - name: the field name
//   - typ: the field's WGSL type
//   - initial: the initial value, or the zero Value to leave the memory zeroed
//
// Returns:
//   - BufferBindingBuilderOption: option function to apply
func WithField(name string, typ layout.FieldType, initial layout.Value) BufferBindingBuilderOption {
	return func(b *bufferBinding) {
		b.fields = append(b.fields, layout.Field{Name: name, Type: typ})
		b.initial[name] = initial
	}
}

// WithStorage makes the binding a storage buffer with the given access mode.
//
// Parameters:
//   - access: AccessRead or AccessReadWrite
//
// Returns:
//   - BufferBindingBuilderOption: option function to apply
func WithStorage(access Access) BufferBindingBuilderOption {
	return func(b *bufferBinding) {
		b.kind = KindStorage
		b.access = access
	}
}

// WithVisibility sets the shader stages the binding is declared in. Uniforms default to vertex and
// fragment, storage buffers to compute.
//
// Parameters:
//   - stages: the stage mask
//
// Returns:
//   - BufferBindingBuilderOption: option function to apply
func WithVisibility(stages wgpu.ShaderStage) BufferBindingBuilderOption {
	return func(b *bufferBinding) {
		b.visibility = stages
	}
}

// WithStructName overrides the WGSL struct type name. Defaults to the binding name with its first
// letter upper-cased.
func WithStructName(name string) BufferBindingBuilderOption {
	return func(b *bufferBinding) {
		b.structName = name
	}
}

// WithCopyBack allocates a readback buffer next to a storage buffer so ReadBack can copy GPU results
// into the binding's inputs.
func WithCopyBack() BufferBindingBuilderOption {
	return func(b *bufferBinding) {
		b.copyBack = true
	}
}

// WithPartialUploads uploads only the dirty byte ranges on Update instead of the whole backing memory.
func WithPartialUploads() BufferBindingBuilderOption {
	return func(b *bufferBinding) {
		b.partialUploads = true
	}
}

// WithSerializeHook sets a hook run for each dirty input before it is written.
//
// Parameters:
//   - hook: the hook
//
// Returns:
//   - BufferBindingBuilderOption: option function to apply
func WithSerializeHook(hook SerializeHook) BufferBindingBuilderOption {
	return func(b *bufferBinding) {
		b.hook = hook
	}
}

// WithInterleavedName sets the struct member name of merged equal-length arrays.
func WithInterleavedName(name string) BufferBindingBuilderOption {
	return func(b *bufferBinding) {
		b.layoutOpts = append(b.layoutOpts, layout.WithInterleavedName(name))
	}
}
