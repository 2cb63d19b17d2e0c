// ABOUTME: Malgo-based audio output implementation
// ABOUTME: miniaudio's data callback pulls each period straight from the engine
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	malgoCtx     *malgo.AllocatedContext
	device       *malgo.Device
	pull         PullFunc
	periodFrames int
	periodBytes  int
	sampleRate   int
	channels     int
	mu           sync.Mutex
}

// NewMalgo creates a new Malgo output
func NewMalgo(periodFrames int) *Malgo {
	return &Malgo{periodFrames: periodFrames}
}

// Open initializes the output device with specified format
func (m *Malgo) Open(sampleRate, channels int, pull PullFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If already initialized with same format, reuse
	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		log.Printf("Audio output already initialized with same format, reusing device")
		m.pull = pull
		return nil
	}

	// If format changed, reinitialize
	if m.device != nil {
		log.Printf("Format change detected (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.periodFrames)
	deviceConfig.Alsa.NoMMap = 1

	m.pull = pull
	frameSize := channels * 2

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		n := int(frameCount) * frameSize
		if n > len(pOutputSample) {
			n = len(pOutputSample)
		}
		m.pull(pOutputSample[:n])
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate
	m.channels = channels
	m.periodBytes = periodBytes(m.periodFrames, channels)

	log.Printf("Audio output initialized: %dHz, %d channels (malgo/S16, %d byte period)",
		sampleRate, channels, m.periodBytes)

	return nil
}

// Start starts the device callback
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return fmt.Errorf("output not initialized")
	}
	if m.device.IsStarted() {
		return nil
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// Stop stops the device callback
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil || !m.device.IsStarted() {
		return nil
	}
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if m.device.IsStarted() {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
	}
	m.device.Uninit()
	m.device = nil
}

// Name returns the backend name
func (m *Malgo) Name() string { return "malgo" }

// PeriodBytes returns the transfer chunk size
func (m *Malgo) PeriodBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.periodBytes
}
