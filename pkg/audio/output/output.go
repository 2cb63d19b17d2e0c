// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for pull-callback playback backends
package output

import (
	"fmt"
	"strings"
)

// DefaultPeriodFrames is the device transfer chunk requested from backends
const DefaultPeriodFrames = 1024

// PullFunc fills out with the next bytes of interleaved S16LE audio and returns
// how many of them were real audio (the rest is silence). It must not block.
type PullFunc func(out []byte) int

// Device represents an audio output device driven by its own clock
type Device interface {
	// Open initializes the device and registers the pull callback
	Open(sampleRate, channels int, pull PullFunc) error

	// Start begins calling the pull callback
	Start() error

	// Stop halts playback; the device can be started again
	Stop() error

	// Close releases device resources
	Close() error

	// Name returns the backend name
	Name() string

	// PeriodBytes returns the size of one transfer chunk once opened
	PeriodBytes() int
}

// Backends lists the names accepted by New
var Backends = []string{"oto", "malgo", "portaudio", "null"}

// New creates a device by backend name
func New(name string, periodFrames int) (Device, error) {
	if periodFrames <= 0 {
		periodFrames = DefaultPeriodFrames
	}

	switch strings.ToLower(name) {
	case "oto":
		return NewOto(periodFrames), nil
	case "malgo":
		return NewMalgo(periodFrames), nil
	case "portaudio":
		return NewPortAudio(periodFrames), nil
	case "null", "none":
		return NewNull(periodFrames), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q (supported: %s)", name, strings.Join(Backends, ", "))
	}
}

// periodBytes returns the byte size of periodFrames S16 frames
func periodBytes(periodFrames, channels int) int {
	return periodFrames * channels * 2
}
