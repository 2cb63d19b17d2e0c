// ABOUTME: Streaming linear resampler for converting audio sample rates
// ABOUTME: Keeps phase and the previous frame across blocks so chunks join cleanly
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64 // input frames advanced per output frame
	position   float64 // read position, 0 = lastFrame
	lastFrame  []int16 // one sample per channel
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int16, channels),
	}
}

// Resample converts input samples to output sample rate using linear interpolation.
// input: interleaved samples at inputRate
// output: interleaved samples at outputRate
// Returns the number of samples (not frames) written. Output must be sized with
// OutputSamplesNeeded; input that does not fit is dropped.
func (r *Resampler) Resample(input []int16, output []int16) int {
	ch := r.channels
	inputFrames := len(input) / ch
	if inputFrames == 0 {
		return 0
	}

	// The first block ever seen interpolates from its own first frame
	if !r.primed {
		copy(r.lastFrame, input[:ch])
		r.primed = true
	}

	// Virtual input: frame 0 is lastFrame, frames 1..inputFrames are input
	frameAt := func(idx, c int) int16 {
		if idx == 0 {
			return r.lastFrame[c]
		}
		return input[(idx-1)*ch+c]
	}

	outputFrames := len(output) / ch
	outIdx := 0

	for outIdx < outputFrames {
		idx := int(r.position)
		if idx >= inputFrames {
			break
		}

		frac := r.position - float64(idx)

		for c := 0; c < ch; c++ {
			s1 := float64(frameAt(idx, c))
			s2 := float64(frameAt(idx+1, c))
			output[outIdx*ch+c] = int16(math.Round(s1 + (s2-s1)*frac))
		}

		outIdx++
		r.position += r.ratio
	}

	// Carry the fractional phase into the next block
	r.position -= float64(inputFrames)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.lastFrame, input[(inputFrames-1)*ch:inputFrames*ch])

	return outIdx * ch
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// OutputSamplesNeeded returns an upper bound on the samples produced from inputSamples,
// including one guard frame
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	return OutputFramesBound(inputFrames, float64(r.inputRate), r.outputRate) * r.channels
}

// OutputFramesBound is ceil(frames * targetRate / sourceRate) plus one guard frame
func OutputFramesBound(frames int, sourceRate float64, targetRate int) int {
	return int(math.Ceil(float64(frames)*float64(targetRate)/sourceRate)) + 1
}
