// ABOUTME: Synthetic tone core standing in for an emulation core
// ABOUTME: Generates a sine per emulated frame with switchable NTSC/PAL timing
package source

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/retroaudio/retroaudio/internal/frontend"
)

// Region selects a console's video timing
type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

func (r Region) String() string {
	if r == RegionPAL {
		return "PAL"
	}
	return "NTSC"
}

// ParseRegion parses "ntsc" or "pal"
func ParseRegion(s string) (Region, error) {
	switch strings.ToLower(s) {
	case "ntsc", "":
		return RegionNTSC, nil
	case "pal":
		return RegionPAL, nil
	default:
		return RegionNTSC, fmt.Errorf("unknown region %q (supported: ntsc, pal)", s)
	}
}

// Region timing of a 16-bit console with a 32040.5 Hz DSP
var regionTiming = map[Region]frontend.AVInfo{
	RegionNTSC: {SampleRate: 32040.5, FPS: 60.0988},
	RegionPAL:  {SampleRate: 32040.5, FPS: 50.007},
}

// ToneConfig holds tone core configuration
type ToneConfig struct {
	Frequency float64 // Hz, default 440
	Volume    float64 // 0..1, default 0.5
	Region    Region
	// SampleRate overrides the region's audio rate when non-zero
	SampleRate float64
	// SingleSample delivers audio one frame per callback instead of in a batch
	SingleSample bool
}

// Tone is a core that emits a continuous sine wave
type Tone struct {
	config ToneConfig
	info   frontend.AVInfo

	phase    float64 // radians
	leftover float64 // fractional frames carried between emulated frames
	buf      []int16
	mu       sync.Mutex
}

// NewTone creates a tone core. The sample rate must keep every region's
// frame within frontend.MaxFrameFrames.
func NewTone(config ToneConfig) (*Tone, error) {
	if config.Frequency <= 0 {
		config.Frequency = 440.0 // A4 note
	}
	if config.Volume <= 0 || config.Volume > 1 {
		config.Volume = 0.5
	}
	if config.SampleRate < 0 {
		return nil, fmt.Errorf("invalid tone sample rate %v", config.SampleRate)
	}
	t := &Tone{config: config}
	for _, region := range []Region{RegionNTSC, RegionPAL} {
		if err := checkFrameSize(t.timing(region)); err != nil {
			return nil, err
		}
	}
	t.info = t.timing(config.Region)
	return t, nil
}

// checkFrameSize rejects timings whose frames would not fit the collector
func checkFrameSize(info frontend.AVInfo) error {
	if frames := math.Ceil(info.SampleRate / info.FPS); frames > frontend.MaxFrameFrames {
		return fmt.Errorf("%w: %.1fHz at %.2f fps gives %.0f frames per frame, limit %d",
			frontend.ErrFrameTooLarge, info.SampleRate, info.FPS, frames, frontend.MaxFrameFrames)
	}
	return nil
}

func (t *Tone) timing(region Region) frontend.AVInfo {
	info := regionTiming[region]
	if t.config.SampleRate > 0 {
		info.SampleRate = t.config.SampleRate
	}
	return info
}

// AVInfo returns the current timing
func (t *Tone) AVInfo() frontend.AVInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

// Region returns the current region
func (t *Tone) Region() Region {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.config.Region
}

// SetRegion switches timing; the change is seen by the next frame
func (t *Tone) SetRegion(region Region) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config.Region = region
	t.info = t.timing(region)
}

// RunFrame emits one emulated frame of audio
func (t *Tone) RunFrame(sink frontend.AudioSink) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	exact := t.info.SampleRate/t.info.FPS + t.leftover
	frames := int(exact)
	t.leftover = exact - float64(frames)

	if cap(t.buf) < frames*2 {
		t.buf = make([]int16, frames*2)
	}
	samples := t.buf[:frames*2]

	step := 2 * math.Pi * t.config.Frequency / t.info.SampleRate
	amp := 32767.0 * t.config.Volume
	for i := 0; i < frames; i++ {
		v := int16(math.Sin(t.phase) * amp)
		samples[i*2] = v
		samples[i*2+1] = v
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}

	if t.config.SingleSample {
		for i := 0; i < frames; i++ {
			sink.Sample(samples[i*2], samples[i*2+1])
		}
		return nil
	}
	sink.SampleBatch(samples, frames)
	return nil
}
