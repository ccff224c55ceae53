package material

import "github.com/Carmen-Shannon/oxy-gpu/engine/renderer/bind_group"

// ComputePassBuilderOption is a function that configures a compute pass during construction.
type ComputePassBuilderOption func(*computePass)

// WithComputeName sets the name of the compute pass, also used as the pipeline label.
//
// Parameters:
//   - name: the name
//
// Returns:
//   - ComputePassBuilderOption: a function that applies the name
func WithComputeName(name string) ComputePassBuilderOption {
	return func(c *computePass) {
		c.name = name
	}
}

// WithComputeEntryPoint names the compute entry point instead of detecting it.
//
// Parameters:
//   - entryPoint: the entry point
//
// Returns:
//   - ComputePassBuilderOption: a function that applies the entry point
func WithComputeEntryPoint(entryPoint string) ComputePassBuilderOption {
	return func(c *computePass) {
		c.entryPoint = entryPoint
	}
}

// WithComputeBindGroups sets the bind groups of the compute pass, indexed in the order given.
//
// Parameters:
//   - groups: the bind groups
//
// Returns:
//   - ComputePassBuilderOption: a function that applies the bind groups
func WithComputeBindGroups(groups ...bind_group.BindGroup) ComputePassBuilderOption {
	return func(c *computePass) {
		c.groups = append(c.groups, groups...)
	}
}
