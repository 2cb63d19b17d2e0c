// ABOUTME: Audio engine connecting the producer, rate converter, ring and device
// ABOUTME: Implements submit backpressure, pull underrun fill, mute and rate changes
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/retroaudio/retroaudio/pkg/audio"
	"github.com/retroaudio/retroaudio/pkg/audio/output"
	"github.com/retroaudio/retroaudio/pkg/audio/resample"
	"github.com/retroaudio/retroaudio/pkg/audio/ring"
)

const (
	// DefaultCapacityPeriods is the ring size in device periods when Start gets capacity 0
	DefaultCapacityPeriods = 2

	// backpressurePoll bounds a Submit wait when no drain signal arrives
	backpressurePoll = time.Millisecond
)

// State is the engine lifecycle state
type State int32

const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds engine configuration
type Config struct {
	// Device is opened on Start with Pull as its callback. When nil the caller
	// drives Pull itself.
	Device output.Device

	// MaxBlockFrames bounds the frames accepted by a single Submit
	MaxBlockFrames int
}

// Stats is a snapshot of engine counters
type Stats struct {
	SessionID     string
	State         State
	Reconfiguring bool
	Muted         bool

	SourceRate float64
	TargetRate int
	Bypassed   bool

	Capacity int
	Occupied int

	SubmittedBlocks uint64
	SubmittedBytes  uint64
	PulledBytes     uint64
	Underruns       uint64
	SilenceBytes    uint64
	Stalls          uint64
	StallTime       time.Duration
}

// rateInfo mirrors the converter configuration for lock-free Stats
type rateInfo struct {
	source   float64
	target   int
	bypassed bool
}

// session is the state of one Start..Stop run
type session struct {
	id   string
	ring *ring.Buffer
	done chan struct{}
}

// Engine manages audio delivery for one producer and one device
type Engine struct {
	config Config

	// Start/Stop
	mu sync.Mutex
	// Serializes producers; held across the backpressure wait
	submitMu sync.Mutex
	// Guards the converter; SetRate holds it while reconfiguring
	convMu        sync.Mutex
	conv          *resample.Converter
	reconfiguring atomic.Bool
	rates         atomic.Pointer[rateInfo]

	sess atomic.Pointer[session]
	// Kept across sessions so a restart with the same capacity reuses storage
	ring *ring.Buffer

	muted   atomic.Bool
	drained chan struct{}

	submittedBlocks atomic.Uint64
	submittedBytes  atomic.Uint64
	pulledBytes     atomic.Uint64
	underruns       atomic.Uint64
	silenceBytes    atomic.Uint64
	stalls          atomic.Uint64
	stallNanos      atomic.Int64
}

// New creates an idle engine
func New(config Config) *Engine {
	if config.MaxBlockFrames <= 0 {
		config.MaxBlockFrames = resample.DefaultMaxBlockFrames
	}
	return &Engine{
		config:  config,
		drained: make(chan struct{}, 1),
	}
}

func validRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate >= 1
}

// Start begins a streaming session. capacityBytes of 0 selects
// DefaultCapacityPeriods device periods; other values are aligned down to
// whole frames.
func (e *Engine) Start(sourceRate float64, targetRate, capacityBytes int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Load() != nil {
		return ErrAlreadyStreaming
	}
	if targetRate <= 0 {
		return fmt.Errorf("%w: target %d", ErrInvalidRate, targetRate)
	}
	if !validRate(sourceRate) {
		return fmt.Errorf("%w: source %v", ErrInvalidRate, sourceRate)
	}
	if capacityBytes < 0 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidCapacity, capacityBytes)
	}

	e.convMu.Lock()
	if e.conv == nil || e.conv.TargetRate() != targetRate {
		e.conv = resample.NewConverter(targetRate, e.config.MaxBlockFrames)
	}
	err := e.conv.Configure(sourceRate)
	e.publishRates()
	e.convMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRate, err)
	}

	dev := e.config.Device
	if dev != nil {
		if err := dev.Open(targetRate, audio.Channels, e.Pull); err != nil {
			return fmt.Errorf("failed to open %s output: %w", dev.Name(), err)
		}
	}

	if capacityBytes == 0 {
		period := 0
		if dev != nil {
			period = dev.PeriodBytes()
		}
		if period <= 0 {
			period = audio.FramesToBytes(output.DefaultPeriodFrames)
		}
		capacityBytes = DefaultCapacityPeriods * period
	}
	capacityBytes = audio.AlignToFrame(capacityBytes)
	if capacityBytes < audio.FrameBytes {
		if dev != nil {
			dev.Close()
		}
		return fmt.Errorf("%w: less than one frame", ErrInvalidCapacity)
	}

	if e.ring != nil && e.ring.Cap() == capacityBytes {
		e.ring.Reset()
	} else {
		e.ring = ring.New(capacityBytes)
	}

	s := &session{
		id:   uuid.New().String(),
		ring: e.ring,
		done: make(chan struct{}),
	}
	e.muted.Store(false)
	// Drop a stale drain signal from the previous session
	select {
	case <-e.drained:
	default:
	}
	e.sess.Store(s)

	if dev != nil {
		if err := dev.Start(); err != nil {
			e.sess.Store(nil)
			close(s.done)
			dev.Close()
			return fmt.Errorf("failed to start %s output: %w", dev.Name(), err)
		}
	}

	log.Printf("Audio engine started: session %s, %.2fHz -> %dHz, %d byte buffer",
		s.id, sourceRate, targetRate, capacityBytes)
	return nil
}

// Submit converts one producer block and writes it to the ring, waiting for
// space when the ring is full.
func (e *Engine) Submit(samples []int16, frames int) error {
	return e.SubmitContext(context.Background(), samples, frames)
}

// SubmitContext is Submit with a context that can cancel the backpressure wait
func (e *Engine) SubmitContext(ctx context.Context, samples []int16, frames int) error {
	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	s := e.sess.Load()
	if s == nil {
		return ErrNotStreaming
	}
	if frames < 0 || len(samples)%audio.Channels != 0 || len(samples) < frames*audio.Channels {
		return fmt.Errorf("%w: %d samples for %d frames", ErrBadBlock, len(samples), frames)
	}
	if frames == 0 {
		return nil
	}

	e.convMu.Lock()
	data, err := e.conv.Convert(samples[:frames*audio.Channels], frames)
	e.convMu.Unlock()
	if err != nil {
		if errors.Is(err, resample.ErrBlockTooLarge) {
			return fmt.Errorf("%w: %w", ErrBlockTooLarge, err)
		}
		return fmt.Errorf("failed to convert block: %w", err)
	}

	n := len(data)
	if n > s.ring.Cap() {
		return fmt.Errorf("%w: %d bytes > %d byte buffer", ErrBlockTooLarge, n, s.ring.Cap())
	}

	if err := e.waitForSpace(ctx, s, n); err != nil {
		return err
	}

	// Stop resets the ring only after taking submitMu, so this write cannot
	// leak into the next session
	select {
	case <-s.done:
		return ErrStopped
	default:
	}

	s.ring.Write(data)
	e.submittedBlocks.Add(1)
	e.submittedBytes.Add(uint64(n))
	return nil
}

// waitForSpace blocks until the ring has n free bytes
func (e *Engine) waitForSpace(ctx context.Context, s *session, n int) error {
	if s.ring.Free() >= n {
		return nil
	}

	e.stalls.Add(1)
	start := time.Now()
	defer func() {
		e.stallNanos.Add(int64(time.Since(start)))
	}()

	timer := time.NewTimer(backpressurePoll)
	defer timer.Stop()

	for s.ring.Free() < n {
		select {
		case <-e.drained:
		case <-timer.C:
		case <-s.done:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
		timer.Reset(backpressurePoll)
	}
	return nil
}

// Pull fills out with the next buffered bytes and zero-fills any shortfall.
// It returns the number of bytes of real audio written. Pull never blocks on
// the producer and is safe to call from a device callback.
func (e *Engine) Pull(out []byte) int {
	s := e.sess.Load()
	if s == nil {
		clear(out)
		return 0
	}
	if len(out) == 0 {
		return 0
	}

	n := min(s.ring.Occupied(), len(out))
	if n > 0 {
		s.ring.Read(out[:n])
		select {
		case e.drained <- struct{}{}:
		default:
		}
	}
	if n < len(out) {
		clear(out[n:])
		e.underruns.Add(1)
		e.silenceBytes.Add(uint64(len(out) - n))
	}
	e.pulledBytes.Add(uint64(len(out)))

	if e.muted.Load() {
		clear(out[:n])
		return 0
	}
	return n
}

// SetRate reconfigures the converter for a new producer rate. The ring and its
// buffered audio are left untouched.
func (e *Engine) SetRate(rate float64) error {
	if e.sess.Load() == nil {
		return ErrNotStreaming
	}
	if !validRate(rate) {
		return fmt.Errorf("%w: source %v", ErrInvalidRate, rate)
	}

	e.convMu.Lock()
	e.reconfiguring.Store(true)
	prev := e.conv.SourceRate()
	err := e.conv.Configure(rate)
	e.publishRates()
	e.reconfiguring.Store(false)
	e.convMu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRate, err)
	}
	if prev != resample.NormalizeRate(rate) {
		log.Printf("Audio engine rate changed: %.0fHz -> %.0fHz", prev, resample.NormalizeRate(rate))
	}
	return nil
}

// Stop ends the session: it cancels a waiting Submit, stops the device and
// empties the ring. Stopping an idle engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sess.Swap(nil)
	if s == nil {
		return nil
	}
	close(s.done)

	var errs []error
	if dev := e.config.Device; dev != nil {
		if err := dev.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s output: %w", dev.Name(), err))
		}
		if err := dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s output: %w", dev.Name(), err))
		}
	}

	// Wait out an in-flight Submit before clearing its ring
	e.submitMu.Lock()
	s.ring.Reset()
	e.submitMu.Unlock()

	log.Printf("Audio engine stopped: session %s", s.id)
	return errors.Join(errs...)
}

// SetMuted silences output without changing producer-side accounting
func (e *Engine) SetMuted(muted bool) {
	if e.muted.Swap(muted) != muted {
		log.Printf("Audio muted: %v", muted)
	}
}

// IsMuted reports whether output is muted
func (e *Engine) IsMuted() bool {
	return e.muted.Load()
}

// State returns the lifecycle state
func (e *Engine) State() State {
	if e.sess.Load() == nil {
		return StateIdle
	}
	return StateStreaming
}

// Stats returns a snapshot of engine counters
func (e *Engine) Stats() Stats {
	st := Stats{
		State:           StateIdle,
		Reconfiguring:   e.reconfiguring.Load(),
		Muted:           e.muted.Load(),
		SubmittedBlocks: e.submittedBlocks.Load(),
		SubmittedBytes:  e.submittedBytes.Load(),
		PulledBytes:     e.pulledBytes.Load(),
		Underruns:       e.underruns.Load(),
		SilenceBytes:    e.silenceBytes.Load(),
		Stalls:          e.stalls.Load(),
		StallTime:       time.Duration(e.stallNanos.Load()),
	}

	if s := e.sess.Load(); s != nil {
		st.SessionID = s.id
		st.State = StateStreaming
		st.Capacity = s.ring.Cap()
		st.Occupied = s.ring.Occupied()
	}

	if r := e.rates.Load(); r != nil {
		st.SourceRate = r.source
		st.TargetRate = r.target
		st.Bypassed = r.bypassed
	}
	return st
}

// publishRates snapshots the converter configuration (must hold e.convMu)
func (e *Engine) publishRates() {
	e.rates.Store(&rateInfo{
		source:   e.conv.SourceRate(),
		target:   e.conv.TargetRate(),
		bypassed: e.conv.Bypassed(),
	})
}
