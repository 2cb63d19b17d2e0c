// ABOUTME: Audio type definitions
// ABOUTME: Defines the stereo int16 format, sample blocks and byte conversion
package audio

import "encoding/binary"

const (
	// Stereo 16-bit layout used on the whole delivery path
	Channels       = 2
	BitDepth       = 16
	BytesPerSample = BitDepth / 8
	FrameBytes     = Channels * BytesPerSample // one left+right pair

	// DefaultDeviceRate is the fixed playback rate the frontend opens devices at
	DefaultDeviceRate = 44100
)

// Format describes audio stream format
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DeviceFormat returns the stereo 16-bit format at the given rate
func DeviceFormat(sampleRate int) Format {
	return Format{
		SampleRate: sampleRate,
		Channels:   Channels,
		BitDepth:   BitDepth,
	}
}

// BytesPerFrame returns the size of one frame (all channels) in bytes
func (f Format) BytesPerFrame() int {
	return f.Channels * (f.BitDepth / 8)
}

// Block is a read-only view of interleaved stereo samples handed over by the
// producer. It is only valid for the duration of the call it was passed to.
type Block struct {
	Samples []int16 // L, R, L, R, ...
}

// Frames returns the number of left/right pairs in the block
func (b Block) Frames() int {
	return len(b.Samples) / Channels
}

// ByteLen returns the size of the block once packed as little-endian bytes
func (b Block) ByteLen() int {
	return len(b.Samples) * BytesPerSample
}

// PutInt16LE packs samples into dst as little-endian int16 and returns the
// number of bytes written. dst must hold at least 2*len(samples) bytes.
func PutInt16LE(dst []byte, samples []int16) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return len(samples) * BytesPerSample
}

// Int16FromLE unpacks little-endian int16 samples from src into dst and
// returns the number of samples decoded.
func Int16FromLE(dst []int16, src []byte) int {
	n := len(src) / BytesPerSample
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return n
}

// FramesToBytes converts a frame count to a byte count for the stereo 16-bit layout
func FramesToBytes(frames int) int {
	return frames * FrameBytes
}

// BytesToFrames converts a byte count to whole stereo 16-bit frames
func BytesToFrames(n int) int {
	return n / FrameBytes
}

// AlignToFrame rounds n down to a whole number of frames
func AlignToFrame(n int) int {
	return n - n%FrameBytes
}
