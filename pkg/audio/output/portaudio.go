//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using PortAudio's callback stream
package output

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/retroaudio/retroaudio/pkg/audio"
)

// PortAudio output implementation
type PortAudio struct {
	stream       *portaudio.Stream
	pull         PullFunc
	scratch      []byte
	periodFrames int
	periodBytes  int
	started      bool
	mu           sync.Mutex
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(periodFrames int) *PortAudio {
	return &PortAudio{periodFrames: periodFrames}
}

// Open initializes PortAudio and opens the default output stream
func (p *PortAudio) Open(sampleRate, channels int, pull PullFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("output already opened")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.pull = pull
	p.periodBytes = periodBytes(p.periodFrames, channels)
	// The callback must not allocate; size for a few periods in case the host grows the buffer
	p.scratch = make([]byte, p.periodBytes*4)

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), p.periodFrames, p.callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	log.Printf("Audio output initialized: %dHz, %d channels (portaudio, %d byte period)",
		sampleRate, channels, p.periodBytes)
	return nil
}

func (p *PortAudio) callback(out []int16) {
	n := len(out) * audio.BytesPerSample
	if n > len(p.scratch) {
		clear(out)
		return
	}
	buf := p.scratch[:n]
	p.pull(buf)
	audio.Int16FromLE(out, buf)
}

// Start begins the stream callback
func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fmt.Errorf("output not opened")
	}
	if p.started {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.started = true
	return nil
}

// Stop halts the stream callback
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil || !p.started {
		return nil
	}
	p.started = false
	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop stream: %w", err)
	}
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	var errs []error
	if p.started {
		errs = append(errs, p.stream.Stop())
		p.started = false
	}
	errs = append(errs, p.stream.Close(), portaudio.Terminate())
	p.stream = nil
	return errors.Join(errs...)
}

// Name returns the backend name
func (p *PortAudio) Name() string { return "portaudio" }

// PeriodBytes returns the transfer chunk size
func (p *PortAudio) PeriodBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.periodBytes
}
