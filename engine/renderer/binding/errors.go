package binding

import "errors"

var (
	// ErrUnknownInput is returned when a named input does not exist in a buffer binding.
	ErrUnknownInput = errors.New("unknown binding input")
	// ErrNotCreated is returned when a GPU operation needs a buffer that has not been created.
	ErrNotCreated = errors.New("binding has no GPU resources")
	// ErrNoCopyBack is returned by ReadBack on a binding built without copy-back.
	ErrNoCopyBack = errors.New("binding has no readback buffer")
	// ErrNoTexture is returned when a texture binding is created before any image was staged.
	ErrNoTexture = errors.New("texture binding has no staged image")
	// ErrTextureSize is returned when staged pixels do not cover width*height RGBA texels.
	ErrTextureSize = errors.New("texture pixel data does not match its dimensions")
)
