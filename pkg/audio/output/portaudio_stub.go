//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
)

// ErrPortAudioDisabled is returned by every PortAudio method in builds without the tag
var ErrPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct {
	periodFrames int
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(periodFrames int) *PortAudio {
	return &PortAudio{periodFrames: periodFrames}
}

// Open initializes PortAudio
func (p *PortAudio) Open(sampleRate, channels int, pull PullFunc) error {
	return ErrPortAudioDisabled
}

// Start begins playback
func (p *PortAudio) Start() error {
	return ErrPortAudioDisabled
}

// Stop halts playback
func (p *PortAudio) Stop() error {
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}

// Name returns the backend name
func (p *PortAudio) Name() string { return "portaudio" }

// PeriodBytes returns the transfer chunk size
func (p *PortAudio) PeriodBytes() int { return 0 }
