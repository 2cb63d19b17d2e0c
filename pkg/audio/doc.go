// ABOUTME: Audio fundamentals package providing core sample-format types
// ABOUTME: Defines Format, Block and int16 <-> little-endian byte helpers
// Package audio provides the sample-format primitives shared by the engine,
// the rate converter and the output devices.
//
// Everything on the delivery path is signed 16-bit, little-endian,
// channel-interleaved stereo:
//   - Format: describes a PCM stream (sample rate, channels, bit depth)
//   - Block: a read-only view of one producer block of interleaved samples
//
// Example:
//
//	block := audio.Block{Samples: samples}
//	buf := make([]byte, block.ByteLen())
//	audio.PutInt16LE(buf, block.Samples)
package audio
