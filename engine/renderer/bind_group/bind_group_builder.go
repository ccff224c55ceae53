package bind_group

import "github.com/Carmen-Shannon/oxy-gpu/engine/renderer/binding"

// BindGroupBuilderOption is a functional option used to configure a BindGroup during construction.
type BindGroupBuilderOption func(*bindGroup)

// WithLabel sets the debug label of the bind group.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - BindGroupBuilderOption: a function that sets the label
func WithLabel(label string) BindGroupBuilderOption {
	return func(g *bindGroup) {
		g.label = label
	}
}

// WithBindings appends bindings to the group in slot order.
//
// Parameters:
//   - bindings: the bindings to append
//
// Returns:
//   - BindGroupBuilderOption: a function that appends the bindings
func WithBindings(bindings ...binding.Binding) BindGroupBuilderOption {
	return func(g *bindGroup) {
		g.bindings = append(g.bindings, bindings...)
	}
}
