// ABOUTME: Audio output tests
// ABOUTME: Verifies backend selection and the null device pull loop
package output

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestImplementsDevice(t *testing.T) {
	var _ Device = (*Oto)(nil)
	var _ Device = (*Malgo)(nil)
	var _ Device = (*PortAudio)(nil)
	var _ Device = (*Null)(nil)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		wantName string
		wantErr  bool
	}{
		{"oto", "oto", "oto", false},
		{"malgo upper case", "MALGO", "malgo", false},
		{"portaudio", "portaudio", "portaudio", false},
		{"null", "null", "null", false},
		{"none alias", "none", "null", false},
		{"unknown", "alsa", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := New(tt.backend, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if dev.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", dev.Name(), tt.wantName)
			}
		})
	}
}

func TestNullOpenValidatesFormat(t *testing.T) {
	n := NewNull(256)
	if err := n.Open(0, 2, func(out []byte) int { return 0 }); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if err := n.Start(); err == nil {
		t.Error("expected error starting an unopened device")
	}
}

func TestNullPullsPeriods(t *testing.T) {
	n := NewNull(64)

	var mu sync.Mutex
	var sizes []int
	var calls atomic.Int32
	pull := func(out []byte) int {
		mu.Lock()
		sizes = append(sizes, len(out))
		mu.Unlock()
		calls.Add(1)
		for i := range out {
			out[i] = 0x11
		}
		return len(out) / 2
	}

	var sink bytes.Buffer
	var sinkMu sync.Mutex
	n.SetSink(writerFunc(func(p []byte) (int, error) {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		return sink.Write(p)
	}))

	// 64 frames at 8kHz is an 8ms period
	if err := n.Open(8000, 2, pull); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := n.PeriodBytes(); got != 256 {
		t.Fatalf("PeriodBytes() = %d, want 256", got)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}

	pulls := n.Pulls()
	if pulls < 3 {
		t.Fatalf("Pulls() = %d, want at least 3", pulls)
	}

	mu.Lock()
	for i, s := range sizes {
		if s != 256 {
			t.Errorf("pull %d got %d bytes, want 256", i, s)
		}
	}
	mu.Unlock()

	if n.AudioBytes() != pulls*128 || n.SilenceBytes() != pulls*128 {
		t.Errorf("audio/silence = %d/%d, want %d each", n.AudioBytes(), n.SilenceBytes(), pulls*128)
	}

	sinkMu.Lock()
	if uint64(sink.Len()) != pulls*256 {
		t.Errorf("sink got %d bytes, want %d", sink.Len(), pulls*256)
	}
	sinkMu.Unlock()

	// No pulls after Stop returns
	time.Sleep(30 * time.Millisecond)
	if n.Pulls() != pulls {
		t.Errorf("pulls continued after Stop: %d -> %d", pulls, n.Pulls())
	}

	if err := n.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestPullReaderAlignsToFrames(t *testing.T) {
	var got int
	r := &pullReader{
		pull:      func(out []byte) int { got = len(out); return len(out) },
		frameSize: 4,
	}

	n, err := r.Read(make([]byte, 1027))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 1024 || got != 1024 {
		t.Errorf("Read returned %d, pull saw %d; want 1024", n, got)
	}

	buf := []byte{1, 2, 3}
	n, _ = r.Read(buf)
	if n != 3 || buf[0] != 0 || buf[2] != 0 {
		t.Errorf("short read = %d %v, want 3 zero bytes", n, buf)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
