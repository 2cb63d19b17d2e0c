// ABOUTME: Rate converter adapter used by the audio engine
// ABOUTME: Bypasses or resamples producer blocks into device-rate bytes
package resample

import (
	"fmt"
	"math"

	"github.com/retroaudio/retroaudio/pkg/audio"
)

const (
	// DefaultMaxBlockFrames matches the frontend's per-frame sample buffer (8192 samples)
	DefaultMaxBlockFrames = 4096

	// MaxUpsampleRatio bounds targetRate/sourceRate so the scratch size stays bounded
	MaxUpsampleRatio = 16.0
)

// Converter converts stereo int16 blocks from a producer's native rate to the
// device rate. It is not safe for concurrent use; the engine serializes
// Configure against Convert.
type Converter struct {
	targetRate int
	sourceRate float64
	maxFrames  int
	configured bool

	resampler *Resampler // nil in bypass mode

	// Fixed scratch, sized on Configure for maxFrames at the current ratio
	scratch []int16
	out     []byte
}

// NewConverter creates a converter for the given device rate. maxBlockFrames
// bounds the largest block Convert accepts.
func NewConverter(targetRate, maxBlockFrames int) *Converter {
	if maxBlockFrames <= 0 {
		maxBlockFrames = DefaultMaxBlockFrames
	}
	return &Converter{
		targetRate: targetRate,
		maxFrames:  maxBlockFrames,
	}
}

// NormalizeRate rounds a producer rate to whole Hz
func NormalizeRate(rate float64) float64 {
	return math.Floor(rate + 0.5)
}

// Configure sets the producer's native rate. A rate equal to the target
// (after rounding) switches to bypass mode; any other rate replaces the
// resampler with a fresh one.
func (c *Converter) Configure(sourceRate float64) error {
	if c.targetRate <= 0 {
		return fmt.Errorf("%w: target %d", ErrInvalidRate, c.targetRate)
	}
	if math.IsNaN(sourceRate) || math.IsInf(sourceRate, 0) || sourceRate < 1 {
		return fmt.Errorf("%w: source %v", ErrInvalidRate, sourceRate)
	}

	rate := NormalizeRate(sourceRate)
	if float64(c.targetRate)/rate > MaxUpsampleRatio {
		return fmt.Errorf("%w: %v -> %d exceeds %.0fx upsampling", ErrInvalidRate, rate, c.targetRate, MaxUpsampleRatio)
	}

	c.sourceRate = rate
	c.resampler = nil
	if int(rate) != c.targetRate {
		c.resampler = New(int(rate), c.targetRate, audio.Channels)
	}

	bound := c.maxFrames
	if c.resampler != nil {
		bound = OutputFramesBound(c.maxFrames, rate, c.targetRate)
	}
	if cap(c.scratch) < bound*audio.Channels {
		c.scratch = make([]int16, bound*audio.Channels)
	}
	if cap(c.out) < audio.FramesToBytes(bound) {
		c.out = make([]byte, audio.FramesToBytes(bound))
	}

	c.configured = true
	return nil
}

// Convert converts frames stereo frames from samples and returns the device-rate
// bytes. The returned slice is reused by the next call.
func (c *Converter) Convert(samples []int16, frames int) ([]byte, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	if frames > c.maxFrames {
		return nil, fmt.Errorf("%w: %d > %d", ErrBlockTooLarge, frames, c.maxFrames)
	}
	if frames < 0 || len(samples) < frames*audio.Channels {
		return nil, fmt.Errorf("%w: %d samples for %d frames", ErrShortBlock, len(samples), frames)
	}
	if frames == 0 {
		return c.out[:0], nil
	}

	in := samples[:frames*audio.Channels]

	if c.resampler == nil {
		n := audio.PutInt16LE(c.out, in)
		return c.out[:n], nil
	}

	bound := OutputFramesBound(frames, c.sourceRate, c.targetRate) * audio.Channels
	produced := c.resampler.Resample(in, c.scratch[:bound])
	n := audio.PutInt16LE(c.out, c.scratch[:produced])
	return c.out[:n], nil
}

// MaxOutputBytes returns the largest byte count a single Convert can return
func (c *Converter) MaxOutputBytes() int {
	if c.resampler == nil {
		return audio.FramesToBytes(c.maxFrames)
	}
	return audio.FramesToBytes(OutputFramesBound(c.maxFrames, c.sourceRate, c.targetRate))
}

// Bypassed reports whether source and target rates match
func (c *Converter) Bypassed() bool {
	return c.resampler == nil
}

// SourceRate returns the normalized producer rate
func (c *Converter) SourceRate() float64 {
	return c.sourceRate
}

// TargetRate returns the device rate
func (c *Converter) TargetRate() int {
	return c.targetRate
}
