package engine

import "errors"

var (
	ErrInvalidRate      = errors.New("engine: invalid sample rate")
	ErrInvalidCapacity  = errors.New("engine: invalid buffer capacity")
	ErrAlreadyStreaming = errors.New("engine: already streaming")
	ErrNotStreaming     = errors.New("engine: not streaming")
	ErrBadBlock         = errors.New("engine: malformed sample block")
	ErrBlockTooLarge    = errors.New("engine: block can never fit in the buffer")
	ErrStopped          = errors.New("engine: stopped while waiting for buffer space")
)
