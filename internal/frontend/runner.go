// ABOUTME: Frame runner driving an emulation core into the audio engine
// ABOUTME: Runs the core until it yields audio, flushes the block and follows rate changes
package frontend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"
)

const (
	// DefaultDisplayHz is the refresh rate frames are paced to
	DefaultDisplayHz = 60.0

	// DefaultMaxEmptyRuns bounds how many core frames RunFrame runs looking for audio
	DefaultMaxEmptyRuns = 8
)

// ErrNoAudio is returned by RunFrame when the core produced no audio within
// the allowed number of runs
var ErrNoAudio = errors.New("frontend: core produced no audio")

// ErrFrameTooLarge is returned when a core frame's audio could not fit the collector
var ErrFrameTooLarge = errors.New("frontend: core frame exceeds collector capacity")

// AVInfo describes a core's native timing
type AVInfo struct {
	SampleRate float64
	FPS        float64
}

// Core is an emulation core as seen by the audio path
type Core interface {
	// AVInfo returns the current timing; it may change between frames
	AVInfo() AVInfo
	// RunFrame emulates one frame, delivering its audio to sink
	RunFrame(sink AudioSink) error
}

// Engine is the audio engine the runner feeds
type Engine interface {
	SubmitContext(ctx context.Context, samples []int16, frames int) error
	SetRate(rate float64) error
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	DisplayHz        float64
	MaxEmptyRuns     int
	CollectorSamples int
}

// Runner runs a core one frame at a time and submits each frame's audio
type Runner struct {
	core      Core
	engine    Engine
	config    RunnerConfig
	collector *Collector
	info      AVInfo
	rate      atomic.Uint64 // float64 bits

	frames      atomic.Uint64
	emptyFrames atomic.Uint64
	rateChanges atomic.Uint64
}

// NewRunner creates a runner. The engine must already be streaming at Rate().
func NewRunner(core Core, engine Engine, config RunnerConfig) *Runner {
	if config.DisplayHz <= 0 {
		config.DisplayHz = DefaultDisplayHz
	}
	if config.MaxEmptyRuns <= 0 {
		config.MaxEmptyRuns = DefaultMaxEmptyRuns
	}
	r := &Runner{
		core:      core,
		engine:    engine,
		config:    config,
		collector: NewCollector(config.CollectorSamples),
		info:      core.AVInfo(),
	}
	r.rate.Store(math.Float64bits(r.syncedRate()))
	return r
}

// Rate returns the display-synced rate of the core's audio
func (r *Runner) Rate() float64 {
	return math.Float64frombits(r.rate.Load())
}

func (r *Runner) syncedRate() float64 {
	return DisplaySyncedRate(r.info.SampleRate, r.info.FPS, r.config.DisplayHz)
}

// RunFrame runs the core until it produces audio, then submits that audio.
// Submit may block to pace the core to the device.
func (r *Runner) RunFrame(ctx context.Context) error {
	r.collector.Reset()

	for runs := 0; r.collector.Frames() == 0; runs++ {
		if runs == r.config.MaxEmptyRuns {
			r.emptyFrames.Add(1)
			return ErrNoAudio
		}
		dropped := r.collector.Dropped()
		if err := r.core.RunFrame(r.collector); err != nil {
			return fmt.Errorf("core frame failed: %w", err)
		}
		if r.collector.Frames() == 0 && r.collector.Dropped() > dropped {
			return fmt.Errorf("%w: %d frames dropped", ErrFrameTooLarge, r.collector.Dropped()-dropped)
		}
	}

	if err := r.syncRate(); err != nil {
		return err
	}

	r.frames.Add(1)
	return r.engine.SubmitContext(ctx, r.collector.Samples(), r.collector.Frames())
}

// syncRate reconfigures the engine when the core's timing changed
func (r *Runner) syncRate() error {
	info := r.core.AVInfo()
	if info == r.info {
		return nil
	}

	old := r.Rate()
	r.info = info
	rate := r.syncedRate()
	if err := r.engine.SetRate(rate); err != nil {
		return fmt.Errorf("failed to follow core rate change: %w", err)
	}
	r.rate.Store(math.Float64bits(rate))
	r.rateChanges.Add(1)

	log.Printf("Core timing changed: %.2f fps @ %.1fHz, audio rate %.1fHz -> %.1fHz",
		info.FPS, info.SampleRate, old, rate)
	return nil
}

// Run runs frames until ctx is cancelled or a frame fails
func (r *Runner) Run(ctx context.Context) error {
	idle := time.NewTimer(0)
	defer idle.Stop()
	<-idle.C

	warned := false
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := r.RunFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoAudio):
			if !warned {
				log.Printf("Core produced no audio in %d runs, pacing to the display", r.config.MaxEmptyRuns)
				warned = true
			}
			// Nothing to pace against; wait out one display frame
			idle.Reset(time.Duration(float64(time.Second) / r.config.DisplayHz))
			select {
			case <-ctx.Done():
				return nil
			case <-idle.C:
			}
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

// Frames returns how many frames were submitted
func (r *Runner) Frames() uint64 { return r.frames.Load() }

// EmptyFrames returns how many frames ended without audio
func (r *Runner) EmptyFrames() uint64 { return r.emptyFrames.Load() }

// RateChanges returns how many times the runner reconfigured the engine
func (r *Runner) RateChanges() uint64 { return r.rateChanges.Load() }

// Dropped returns frames the collector dropped
func (r *Runner) Dropped() uint64 { return r.collector.Dropped() }
