// Package binding holds the resources a bind group is made of: buffer bindings backed by a computed
// struct layout, texture bindings and sampler bindings. Every binding contributes one or more WGSL
// declaration fragments and the matching bind group layout entries.
package binding

import (
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-gpu/engine/renderer/layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// Kind is the resource kind of a binding.
type Kind int

const (
	KindUniform Kind = iota
	KindStorage
	KindTexture
	KindSampler
)

func (k Kind) String() string {
	switch k {
	case KindUniform:
		return "uniform"
	case KindStorage:
		return "storage"
	case KindTexture:
		return "texture"
	case KindSampler:
		return "sampler"
	}
	return "unknown"
}

// Access is the shader access mode of a storage binding.
type Access int

const (
	AccessRead Access = iota
	AccessReadWrite
)

func (a Access) String() string {
	if a == AccessReadWrite {
		return "read_write"
	}
	return "read"
}

// Change reports what an Update did to a binding's GPU resources.
type Change int

const (
	// ChangeNone means only contents were uploaded.
	ChangeNone Change = iota
	// ChangeResource means a GPU object was swapped for one of the same kind. The bind group must be
	// rebuilt against the existing layout.
	ChangeResource
	// ChangeLayout means the resource kind changed. The bind group layout must be rebuilt and every
	// pipeline using it flushed.
	ChangeLayout
)

// Fragment is one WGSL declaration a binding contributes, with the layout entry that backs it.
type Fragment struct {
	// Name is the declared variable name.
	Name string
	// TypeDecls are struct declarations the variable depends on, in dependency order.
	TypeDecls []layout.TypeDecl
	// VarDecl is the variable declaration without its @group/@binding attributes.
	VarDecl string
	// Visibility is the set of shader stages the declaration is emitted into.
	Visibility wgpu.ShaderStage
	// Layout is the bind group layout entry. Its Binding slot is assigned by the bind group.
	Layout wgpu.BindGroupLayoutEntry
}

// Binding is the capability set shared by buffer, texture and sampler bindings.
type Binding interface {
	// Name returns the binding's WGSL variable name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Kind returns the resource kind.
	//
	// Returns:
	//   - Kind: the kind
	Kind() Kind

	// Visibility returns the shader stages the binding is visible to.
	//
	// Returns:
	//   - wgpu.ShaderStage: the stage mask
	Visibility() wgpu.ShaderStage

	// Fragments returns the declarations the binding contributes, one per bind group slot it occupies.
	//
	// Returns:
	//   - []Fragment: the fragments in slot order
	Fragments() []Fragment

	// Ready reports whether everything needed to create the GPU objects is available. A texture
	// binding waiting on an image load is not ready.
	//
	// Returns:
	//   - bool: true if Create can succeed
	Ready() bool

	// Created reports whether the binding's GPU objects exist.
	//
	// Returns:
	//   - bool: true after a successful Create and before Release or LoseContext
	Created() bool

	// Create allocates the GPU objects the binding lacks. Existing objects are kept.
	//
	// Parameters:
	//   - b: the backend to allocate with
	//
	// Returns:
	//   - error: an error if allocation fails
	Create(b backend.Backend) error

	// Resources returns one bind group entry per fragment, in the same order. Binding slots are unset.
	//
	// Returns:
	//   - []backend.BindGroupEntry: the entries
	Resources() []backend.BindGroupEntry

	// Update uploads pending changes and applies pending resource swaps.
	//
	// Parameters:
	//   - b: the backend to upload with
	//
	// Returns:
	//   - Change: what happened to the binding's GPU objects
	//   - error: an error if an upload or allocation fails
	Update(b backend.Backend) (Change, error)

	// Release frees the binding's GPU objects. Staged CPU data is kept so Create can run again.
	Release()

	// LoseContext drops the binding's GPU handles without releasing them, after the device was lost.
	LoseContext()
}
