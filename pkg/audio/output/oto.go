// ABOUTME: Oto-based audio output implementation
// ABOUTME: oto's player pulls from an io.Reader that forwards to the pull callback
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process
var (
	otoCtx        *oto.Context
	otoSampleRate int
	otoChannels   int
	otoMu         sync.Mutex
)

// Oto output implementation using oto library
type Oto struct {
	player       *oto.Player
	reader       *pullReader
	periodFrames int
	periodBytes  int
	sampleRate   int
	channels     int
	playing      bool
	mu           sync.Mutex
}

// pullReader adapts a PullFunc to the io.Reader oto consumes
type pullReader struct {
	pull      PullFunc
	frameSize int
}

func (r *pullReader) Read(p []byte) (int, error) {
	n := len(p) - len(p)%r.frameSize
	if n == 0 {
		// oto always asks for whole frames; keep the stream alive regardless
		clear(p)
		return len(p), nil
	}
	r.pull(p[:n])
	return n, nil
}

// NewOto creates a new Oto output
func NewOto(periodFrames int) *Oto {
	return &Oto{periodFrames: periodFrames}
}

// ensureOtoContext creates the process-wide oto context on first use
func ensureOtoContext(sampleRate, channels, periodFrames int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoSampleRate != sampleRate || otoChannels != channels {
			// oto cannot be reinitialized within a process
			log.Printf("Warning: format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
				otoSampleRate, otoChannels, sampleRate, channels)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(periodFrames) * time.Second / time.Duration(sampleRate),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoSampleRate = sampleRate
	otoChannels = channels
	return ctx, nil
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int, pull PullFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		if o.sampleRate == sampleRate && o.channels == channels {
			log.Printf("Audio output already initialized with same format, reusing player")
			o.reader.pull = pull
			return nil
		}
		o.closePlayer()
	}

	ctx, err := ensureOtoContext(sampleRate, channels, o.periodFrames)
	if err != nil {
		return err
	}
	if err := ctx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}

	o.reader = &pullReader{pull: pull, frameSize: channels * 2}
	o.player = ctx.NewPlayer(o.reader)
	o.periodBytes = periodBytes(o.periodFrames, channels)
	// Keep oto's own buffer to one period so latency stays in the ring buffer
	o.player.SetBufferSize(o.periodBytes)
	o.sampleRate = sampleRate
	o.channels = channels

	log.Printf("Audio output initialized: %dHz, %d channels (oto, %d byte period)",
		sampleRate, channels, o.periodBytes)

	return nil
}

// Start begins playback
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return fmt.Errorf("output not initialized")
	}
	if !o.playing {
		o.player.Play()
		o.playing = true
	}
	return nil
}

// Stop pauses playback
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil && o.playing {
		o.player.Pause()
		o.playing = false
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	err := o.closePlayer()

	otoMu.Lock()
	if otoCtx != nil {
		if suspendErr := otoCtx.Suspend(); suspendErr != nil {
			log.Printf("Warning: oto context suspend error: %v", suspendErr)
		}
	}
	otoMu.Unlock()

	return err
}

// closePlayer closes the current player (must hold o.mu)
func (o *Oto) closePlayer() error {
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	o.reader = nil
	o.playing = false
	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}

// Name returns the backend name
func (o *Oto) Name() string { return "oto" }

// PeriodBytes returns the transfer chunk size
func (o *Oto) PeriodBytes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.periodBytes
}
