// Package pipeline compiles render and compute pipelines from bind groups, geometry and
// material shader bodies, and caches them by shader text and render state.
package pipeline

import "errors"

// Status is the compile state of a pipeline entry.
type Status int

const (
	// StatusUninitialized means no pipeline object exists and no compile is running.
	StatusUninitialized Status = iota

	// StatusCompiling means a compile has been started and has not reported back.
	StatusCompiling

	// StatusCompiled means the pipeline object is ready to bind.
	StatusCompiled

	// StatusErrored means the backend rejected the pipeline. The entry is not recompiled until it
	// is flushed.
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusCompiling:
		return "compiling"
	case StatusCompiled:
		return "compiled"
	case StatusErrored:
		return "errored"
	}
	return "unknown"
}

var (
	// ErrCompileInProgress is returned when a compile is requested while one is outstanding.
	ErrCompileInProgress = errors.New("pipeline compile already in progress")
	// ErrPipelineErrored is returned when a compile is requested on an errored entry.
	ErrPipelineErrored = errors.New("pipeline entry errored; flush to retry")
	// ErrStaleCompile is reported by a compile that was overtaken by a flush, release or
	// context loss. Its pipeline object is released.
	ErrStaleCompile = errors.New("pipeline compile overtaken by a newer generation")
	// ErrNoEntryPoint is returned when a stage body has no entry point and none was given.
	ErrNoEntryPoint = errors.New("shader stage has no entry point")
	// ErrNoGeometry is returned for a render pipeline request without geometry.
	ErrNoGeometry = errors.New("render pipeline has no geometry")
	// ErrBindGroupsNotReady is returned when a compile needs a bind group layout that does not exist.
	ErrBindGroupsNotReady = errors.New("bind group layouts not created")
	// ErrBindGroupGap is returned when bind group indices do not run contiguously from zero.
	ErrBindGroupGap = errors.New("bind group indices must be contiguous from zero")
)
