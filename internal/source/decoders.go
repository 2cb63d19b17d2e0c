// ABOUTME: PCM stream decoders for MP3, FLAC, WAV and Ogg Vorbis files
// ABOUTME: Each yields interleaved stereo int16 at the file's native rate
package source

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// pcmStream yields interleaved stereo int16 samples
type pcmStream interface {
	// Read fills dst with whole stereo frames and returns the samples written.
	// It returns io.EOF once the stream is exhausted.
	Read(dst []int16) (int, error)
	SampleRate() int
}

// stereoFrom writes frames of a channels-wide stream as stereo. Mono is
// duplicated; channels past the second are dropped.
func stereoFrom(dst []int16, frames, channels int, at func(i, c int) int16) {
	for i := 0; i < frames; i++ {
		l := at(i, 0)
		r := l
		if channels > 1 {
			r = at(i, 1)
		}
		dst[i*2] = l
		dst[i*2+1] = r
	}
}

// scaleTo16 converts a bitDepth-bit integer sample to 16 bits
func scaleTo16(v int32, bitDepth int) int16 {
	shift := bitDepth - 16
	if shift > 0 {
		return int16(v >> shift)
	}
	return int16(v << -shift)
}

// floatTo16 converts a [-1, 1] float sample to int16, clamping overshoot
func floatTo16(v float32) int16 {
	f := math.Round(float64(v) * 32767.0)
	return int16(max(-32768, min(32767, f)))
}

// mp3Reader is an interface for mp3.Decoder to allow testing
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

// mp3Stream decodes MP3; go-mp3 always outputs 16-bit stereo
type mp3Stream struct {
	dec mp3Reader
	buf []byte
}

func newMP3Stream(r io.Reader) (*mp3Stream, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &mp3Stream{dec: dec}, nil
}

func (s *mp3Stream) SampleRate() int { return s.dec.SampleRate() }

func (s *mp3Stream) Read(dst []int16) (int, error) {
	need := (len(dst) / 2) * 4
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.dec, buf)
	n -= n % 4
	for i := 0; i < n/2; i++ {
		dst[i] = int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8)
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || (errors.Is(err, io.EOF) && n == 0) {
		err = io.EOF
	}
	if err == io.EOF && n > 0 {
		// Hand back the tail now; the next call reports EOF
		err = nil
	}
	return n / 2, err
}

// flacStream decodes FLAC frame by frame
type flacStream struct {
	stream   *flac.Stream
	rate     int
	channels int
	bitDepth int
	pending  []int16
}

func newFLACStream(r io.Reader) (*flacStream, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	return &flacStream{
		stream:   stream,
		rate:     int(stream.Info.SampleRate),
		channels: int(stream.Info.NChannels),
		bitDepth: int(stream.Info.BitsPerSample),
	}, nil
}

func (s *flacStream) SampleRate() int { return s.rate }

func (s *flacStream) Read(dst []int16) (int, error) {
	dst = dst[:len(dst)-len(dst)%2]
	written := 0

	for written < len(dst) {
		if len(s.pending) == 0 {
			frame, err := s.stream.ParseNext()
			if err != nil {
				if err == io.EOF && written > 0 {
					return written, nil
				}
				return written, err
			}

			blockSize := int(frame.BlockSize)
			if cap(s.pending) < blockSize*2 {
				s.pending = make([]int16, blockSize*2)
			}
			s.pending = s.pending[:blockSize*2]
			stereoFrom(s.pending, blockSize, s.channels, func(i, c int) int16 {
				return scaleTo16(frame.Subframes[c].Samples[i], s.bitDepth)
			})
		}

		n := copy(dst[written:], s.pending)
		s.pending = s.pending[n:]
		written += n
	}
	return written, nil
}

// wavStream decodes PCM WAV through go-audio
type wavStream struct {
	dec      *wav.Decoder
	rate     int
	channels int
	bitDepth int
	intBuf   *goaudio.IntBuffer
}

func newWAVStream(r io.ReadSeeker) (*wavStream, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("failed to decode WAV: not a valid PCM wav file")
	}
	return &wavStream{
		dec:      dec,
		rate:     int(dec.SampleRate),
		channels: int(dec.NumChans),
		bitDepth: int(dec.BitDepth),
	}, nil
}

func (s *wavStream) SampleRate() int { return s.rate }

func (s *wavStream) Read(dst []int16) (int, error) {
	frames := len(dst) / 2
	want := frames * s.channels
	if want == 0 {
		return 0, nil
	}

	if s.intBuf == nil || cap(s.intBuf.Data) < want {
		s.intBuf = &goaudio.IntBuffer{
			Data:           make([]int, want),
			Format:         s.dec.Format(),
			SourceBitDepth: s.bitDepth,
		}
	} else {
		s.intBuf.Data = s.intBuf.Data[:want]
	}

	n, err := s.dec.PCMBuffer(s.intBuf)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	got := n / s.channels
	data := s.intBuf.Data
	stereoFrom(dst, got, s.channels, func(i, c int) int16 {
		v := int32(data[i*s.channels+c])
		if s.bitDepth == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		return scaleTo16(v, s.bitDepth)
	})
	return got * 2, nil
}

// oggReader is an interface for oggvorbis.Reader to allow testing
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
}

// oggStream decodes Ogg Vorbis
type oggStream struct {
	dec oggReader
	buf []float32
}

func newOggStream(r io.Reader) (*oggStream, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}
	return &oggStream{dec: dec}, nil
}

func (s *oggStream) SampleRate() int { return s.dec.SampleRate() }

func (s *oggStream) Read(dst []int16) (int, error) {
	ch := s.dec.Channels()
	want := (len(dst) / 2) * ch
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf) < want {
		s.buf = make([]float32, want)
	}
	buf := s.buf[:want]

	// Read returns interleaved values, always a multiple of Channels()
	n, err := s.dec.Read(buf)
	got := n / ch
	if got == 0 {
		if err != nil {
			return 0, err
		}
		return 0, nil
	}

	stereoFrom(dst, got, ch, func(i, c int) int16 {
		return floatTo16(buf[i*ch+c])
	})
	if err == io.EOF {
		err = nil
	}
	return got * 2, err
}
