// ABOUTME: Tests for the synthetic tone and file cores
// ABOUTME: Verifies per-frame sample counts, region timing and decoding
package source

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/retroaudio/retroaudio/internal/frontend"
)

// recordingSink keeps everything a core delivers
type recordingSink struct {
	samples []int16
	calls   int
}

func (s *recordingSink) Sample(left, right int16) {
	s.samples = append(s.samples, left, right)
	s.calls++
}

func (s *recordingSink) SampleBatch(data []int16, frames int) int {
	s.samples = append(s.samples, data[:frames*2]...)
	s.calls++
	return frames
}

func newTone(t *testing.T, config ToneConfig) *Tone {
	t.Helper()
	tone, err := NewTone(config)
	if err != nil {
		t.Fatalf("NewTone failed: %v", err)
	}
	return tone
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    Region
		wantErr bool
	}{
		{"ntsc", RegionNTSC, false},
		{"NTSC", RegionNTSC, false},
		{"", RegionNTSC, false},
		{"pal", RegionPAL, false},
		{"secam", RegionNTSC, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRegion(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRegion(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseRegion(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToneFrameSizes(t *testing.T) {
	for _, single := range []bool{false, true} {
		tone := newTone(t, ToneConfig{SingleSample: single})
		sink := &recordingSink{}

		const frames = 120
		for i := 0; i < frames; i++ {
			if err := tone.RunFrame(sink); err != nil {
				t.Fatalf("RunFrame failed: %v", err)
			}
		}

		info := tone.AVInfo()
		want := info.SampleRate / info.FPS * frames
		got := float64(len(sink.samples) / 2)
		if math.Abs(got-want) > 1 {
			t.Errorf("single=%v: %v frames over %d emulated frames, want %v", single, got, frames, want)
		}
		if single && sink.calls != len(sink.samples)/2 {
			t.Errorf("single-sample mode made %d calls for %d frames", sink.calls, len(sink.samples)/2)
		}
		if !single && sink.calls != frames {
			t.Errorf("batch mode made %d calls, want %d", sink.calls, frames)
		}
	}
}

func TestToneIsContinuous(t *testing.T) {
	tone := newTone(t, ToneConfig{Frequency: 1000, Volume: 1})
	sink := &recordingSink{}
	for i := 0; i < 10; i++ {
		tone.RunFrame(sink)
	}

	// Largest step of a full-scale 1kHz sine at 32040.5 Hz
	maxStep := 2*math.Pi*1000/32040.5*32767 + 2
	for i := 2; i < len(sink.samples); i += 2 {
		if sink.samples[i] != sink.samples[i+1] {
			t.Fatalf("frame %d: left %d != right %d", i/2, sink.samples[i], sink.samples[i+1])
		}
		step := math.Abs(float64(sink.samples[i]) - float64(sink.samples[i-2]))
		if step > maxStep {
			t.Fatalf("discontinuity at frame %d: step %v > %v", i/2, step, maxStep)
		}
	}
}

func TestToneSetRegion(t *testing.T) {
	tone := newTone(t, ToneConfig{})
	if tone.Region() != RegionNTSC {
		t.Fatalf("default region = %v, want NTSC", tone.Region())
	}
	ntsc := tone.AVInfo()

	tone.SetRegion(RegionPAL)
	pal := tone.AVInfo()
	if tone.Region() != RegionPAL || pal.FPS != 50.007 {
		t.Errorf("after SetRegion(PAL): region=%v fps=%v", tone.Region(), pal.FPS)
	}
	if pal.FPS == ntsc.FPS {
		t.Error("regions must differ in frame rate")
	}

	sink := &recordingSink{}
	tone.RunFrame(sink)
	// 32040.5 / 50.007 = 640.72
	const palFrames = 640
	if got := len(sink.samples) / 2; got != palFrames {
		t.Errorf("PAL frame had %d frames, want %d", got, palFrames)
	}

	custom := newTone(t, ToneConfig{SampleRate: 48000, Region: RegionPAL})
	if info := custom.AVInfo(); info.SampleRate != 48000 || info.FPS != 50.007 {
		t.Errorf("custom rate AVInfo = %+v", info)
	}
}

func TestNewToneFrameLimit(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		wantErr bool
	}{
		{"region default", 0, false},
		{"48kHz", 48000, false},
		{"largest PAL frame that fits", 200000, false},
		{"PAL frame too large", 250000, true},
		{"negative rate", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// NTSC is requested, but PAL's longer frames must fit too
			_, err := NewTone(ToneConfig{SampleRate: tt.rate, Region: RegionNTSC})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTone(%v) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			}
			if tt.rate > 0 && tt.wantErr && !errors.Is(err, frontend.ErrFrameTooLarge) {
				t.Errorf("error = %v, want ErrFrameTooLarge", err)
			}
		})
	}
}

// writeWAV writes a 16-bit WAV whose samples count up from 0
func writeWAV(t *testing.T, rate, channels, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ramp.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	data := make([]int, frames*channels)
	for i := range data {
		data[i] = i
	}

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func TestFileWAV(t *testing.T) {
	path := writeWAV(t, 8000, 2, 1000)

	core, err := NewFile(FileConfig{Path: path, FPS: 10})
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	defer core.Close()

	if core.Title() != "ramp" {
		t.Errorf("Title() = %q, want ramp", core.Title())
	}
	if info := core.AVInfo(); info.SampleRate != 8000 || info.FPS != 10 {
		t.Errorf("AVInfo() = %+v", info)
	}

	sink := &recordingSink{}
	if err := core.RunFrame(sink); err != nil {
		t.Fatalf("first frame failed: %v", err)
	}
	if len(sink.samples) != 1600 {
		t.Fatalf("first frame had %d samples, want 1600", len(sink.samples))
	}
	if err := core.RunFrame(sink); err != nil {
		t.Fatalf("second frame failed: %v", err)
	}
	if len(sink.samples) != 2000 {
		t.Fatalf("file yielded %d samples, want 2000", len(sink.samples))
	}
	for i, s := range sink.samples {
		if s != int16(i) {
			t.Fatalf("sample %d = %d, want %d", i, s, i)
		}
	}

	if err := core.RunFrame(sink); !errors.Is(err, io.EOF) {
		t.Errorf("RunFrame after end = %v, want io.EOF", err)
	}
}

func TestFileLoops(t *testing.T) {
	path := writeWAV(t, 8000, 2, 300)

	core, err := NewFile(FileConfig{Path: path, FPS: 10, Loop: true})
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	defer core.Close()

	sink := &recordingSink{}
	for i := 0; i < 3; i++ {
		if err := core.RunFrame(sink); err != nil {
			t.Fatalf("frame %d failed: %v", i, err)
		}
	}
	if len(sink.samples) != 3*1600 {
		t.Fatalf("got %d samples, want %d", len(sink.samples), 3*1600)
	}
	for i, s := range sink.samples {
		if want := int16(i % 600); s != want {
			t.Fatalf("sample %d = %d, want %d", i, s, want)
		}
	}
}

func TestFileMonoIsDuplicated(t *testing.T) {
	path := writeWAV(t, 4000, 1, 400)

	core, err := NewFile(FileConfig{Path: path, FPS: 10})
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	defer core.Close()

	sink := &recordingSink{}
	if err := core.RunFrame(sink); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}
	if len(sink.samples) != 800 {
		t.Fatalf("got %d samples, want 800", len(sink.samples))
	}
	for i := 0; i < 400; i++ {
		l, r := sink.samples[2*i], sink.samples[2*i+1]
		if l != int16(i) || r != int16(i) {
			t.Fatalf("frame %d = (%d, %d), want (%d, %d)", i, l, r, i, i)
		}
	}
}

func TestNewFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewFile(FileConfig{Path: filepath.Join(dir, "song.aiff")}); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if _, err := NewFile(FileConfig{Path: filepath.Join(dir, "missing.wav")}); err == nil {
		t.Error("expected error for missing file")
	}

	bogus := filepath.Join(dir, "bogus.wav")
	if err := os.WriteFile(bogus, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFile(FileConfig{Path: bogus}); err == nil {
		t.Error("expected error for invalid WAV data")
	}
}

func TestNewFileFrameLimit(t *testing.T) {
	path := writeWAV(t, 48000, 2, 100)

	// 48kHz at 10 fps is 4800 frames per emulated frame
	if _, err := NewFile(FileConfig{Path: path, FPS: 10}); !errors.Is(err, frontend.ErrFrameTooLarge) {
		t.Fatalf("NewFile at 10 fps = %v, want ErrFrameTooLarge", err)
	}

	core, err := NewFile(FileConfig{Path: path, FPS: 12})
	if err != nil {
		t.Fatalf("NewFile at 12 fps failed: %v", err)
	}
	core.Close()
}

type fakeMP3 struct {
	data []byte
	rate int
}

func (f *fakeMP3) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *fakeMP3) SampleRate() int { return f.rate }

func TestMP3StreamRead(t *testing.T) {
	// Three stereo frames: (1,-1) (2,-2) (3,-3)
	raw := []byte{1, 0, 0xFF, 0xFF, 2, 0, 0xFE, 0xFF, 3, 0, 0xFD, 0xFF}
	s := &mp3Stream{dec: &fakeMP3{data: raw, rate: 44100}}

	if s.SampleRate() != 44100 {
		t.Errorf("SampleRate() = %d", s.SampleRate())
	}

	dst := make([]int16, 4)
	n, err := s.Read(dst)
	if err != nil || n != 4 {
		t.Fatalf("Read = %d, %v; want 4, nil", n, err)
	}
	if dst[0] != 1 || dst[1] != -1 || dst[2] != 2 || dst[3] != -2 {
		t.Errorf("Read samples = %v", dst)
	}

	n, err = s.Read(dst)
	if err != nil || n != 2 || dst[0] != 3 || dst[1] != -3 {
		t.Errorf("tail Read = %d, %v, %v; want 2 samples (3,-3)", n, err, dst[:2])
	}

	if n, err = s.Read(dst); n != 0 || err != io.EOF {
		t.Errorf("Read at end = %d, %v; want 0, io.EOF", n, err)
	}
}

type fakeOgg struct {
	values   []float32
	channels int
}

func (f *fakeOgg) SampleRate() int { return 22050 }
func (f *fakeOgg) Channels() int   { return f.channels }
func (f *fakeOgg) Read(p []float32) (int, error) {
	if len(f.values) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.values)
	f.values = f.values[n:]
	return n, nil
}

func TestOggStreamMonoToStereo(t *testing.T) {
	s := &oggStream{dec: &fakeOgg{values: []float32{0, 0.5, -1, 1.5}, channels: 1}}

	dst := make([]int16, 8)
	n, err := s.Read(dst)
	if err != nil || n != 8 {
		t.Fatalf("Read = %d, %v; want 8, nil", n, err)
	}
	want := []int16{0, 0, 16384, 16384, -32767, -32767, 32767, 32767}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("Read samples = %v, want %v", dst, want)
		}
	}

	if n, err := s.Read(dst); n != 0 || err != io.EOF {
		t.Errorf("Read at end = %d, %v; want 0, io.EOF", n, err)
	}
}

func TestScaleTo16(t *testing.T) {
	tests := []struct {
		v        int32
		bitDepth int
		want     int16
	}{
		{1000, 16, 1000},
		{-8388608, 24, -32768},
		{8388607, 24, 32767},
		{127, 8, 32512},
		{-2147483648, 32, -32768},
	}

	for _, tt := range tests {
		if got := scaleTo16(tt.v, tt.bitDepth); got != tt.want {
			t.Errorf("scaleTo16(%d, %d) = %d, want %d", tt.v, tt.bitDepth, got, tt.want)
		}
	}
}
