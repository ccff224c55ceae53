package backend

import "errors"

var (
	// ErrReleasedHandle is returned when a released or nil handle is passed to the backend.
	ErrReleasedHandle = errors.New("handle is released or nil")
	// ErrForeignHandle is returned when a handle created by a different backend is passed in.
	ErrForeignHandle = errors.New("handle does not belong to this backend")
	// ErrNoFrame is returned when a pass is requested outside of BeginFrame/EndFrame.
	ErrNoFrame = errors.New("no frame in progress")
)
