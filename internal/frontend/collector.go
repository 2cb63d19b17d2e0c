// ABOUTME: Per-frame audio sample collector for emulation cores
// ABOUTME: Accumulates single-sample and batch callbacks into one stereo block
package frontend

import "sync/atomic"

// DefaultCollectorSamples is the per-frame sample capacity (4096 stereo frames)
const DefaultCollectorSamples = 8192

// MaxFrameFrames is the largest frame of audio the default collector holds
const MaxFrameFrames = DefaultCollectorSamples / 2

// AudioSink receives audio from a core while it runs a frame
type AudioSink interface {
	// Sample delivers one stereo frame
	Sample(left, right int16)
	// SampleBatch delivers frames interleaved stereo frames and returns how
	// many the sink consumed
	SampleBatch(data []int16, frames int) int
}

// Collector gathers the audio a core produces during one frame. It is used by
// a single goroutine.
type Collector struct {
	samples []int16
	n       int
	dropped atomic.Uint64
}

// NewCollector creates a collector holding up to capacity samples
func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = DefaultCollectorSamples
	}
	capacity -= capacity % 2
	return &Collector{samples: make([]int16, capacity)}
}

// Sample appends one frame; it is dropped when the collector is full
func (c *Collector) Sample(left, right int16) {
	if c.n+2 > len(c.samples) {
		c.dropped.Add(1)
		return
	}
	c.samples[c.n] = left
	c.samples[c.n+1] = right
	c.n += 2
}

// SampleBatch appends a batch. A batch that would overflow is dropped whole.
// The core is always told every frame was consumed.
func (c *Collector) SampleBatch(data []int16, frames int) int {
	if frames <= 0 {
		return 0
	}
	if frames*2 > len(data) {
		frames = len(data) / 2
	}
	if c.n+frames*2 > len(c.samples) {
		c.dropped.Add(uint64(frames))
		return frames
	}
	c.n += copy(c.samples[c.n:], data[:frames*2])
	return frames
}

// Samples returns the collected interleaved samples, valid until Reset
func (c *Collector) Samples() []int16 {
	return c.samples[:c.n]
}

// Frames returns the number of collected stereo frames
func (c *Collector) Frames() int {
	return c.n / 2
}

// Reset empties the collector for the next frame
func (c *Collector) Reset() {
	c.n = 0
}

// Dropped returns the total frames dropped because the collector was full
func (c *Collector) Dropped() uint64 {
	return c.dropped.Load()
}
