// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts interleaved int16 audio between sample rates
// Package resample provides sample rate conversion for the delivery path.
//
// Resampler is a streaming linear interpolator that keeps its phase and the
// last input frame between calls, so consecutive blocks join seamlessly.
// Converter wraps it with the bypass/reconfigure logic the engine needs and
// a fixed scratch buffer sized for the worst case of the configured rates.
//
// Example:
//
//	c := resample.NewConverter(44100, resample.DefaultMaxBlockFrames)
//	if err := c.Configure(32040.5); err != nil {
//	    return err
//	}
//	out, err := c.Convert(samples, frames)
package resample
