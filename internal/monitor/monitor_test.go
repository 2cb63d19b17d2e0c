// ABOUTME: Tests for the WebSocket monitor
// ABOUTME: Drives the endpoint through httptest with a gorilla client
package monitor

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/retroaudio/retroaudio/pkg/engine"
)

type fakeTarget struct {
	mu    sync.Mutex
	muted bool
}

func (f *fakeTarget) Stats() engine.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return engine.Stats{
		SessionID:  "session-1",
		State:      engine.StateStreaming,
		Muted:      f.muted,
		SourceRate: 32041,
		TargetRate: 44100,
		Capacity:   8192,
		Occupied:   4096,
		StallTime:  1500 * time.Millisecond,
	}
}

func (f *fakeTarget) SetMuted(muted bool) {
	f.mu.Lock()
	f.muted = muted
	f.mu.Unlock()
}

func (f *fakeTarget) isMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one satisfies match
func readUntil(t *testing.T, conn *websocket.Conn, match func(received) bool) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var msg received
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad message %q: %v", data, err)
		}
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ string) func(received) bool {
	return func(m received) bool { return m.Type == typ }
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	if err := conn.WriteJSON(Message{Type: typ, Payload: payload}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestNewServer(t *testing.T) {
	if _, err := NewServer(Config{}, nil); err == nil {
		t.Error("expected error without a target")
	}

	s, err := NewServer(Config{}, &fakeTarget{})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if s.config.Port != DefaultPort || s.config.Interval != DefaultInterval || s.config.Name == "" {
		t.Errorf("defaults not applied: %+v", s.config)
	}
}

func TestHelloAndStats(t *testing.T) {
	s, _ := NewServer(Config{Name: "test", Interval: 10 * time.Millisecond}, &fakeTarget{})
	conn := dial(t, s)

	hello := readUntil(t, conn, ofType(TypeHello))
	var h Hello
	if err := json.Unmarshal(hello.Payload, &h); err != nil {
		t.Fatalf("bad hello: %v", err)
	}
	if h.Name != "test" || h.ServerID == "" || h.Version == "" {
		t.Errorf("hello = %+v", h)
	}

	msg := readUntil(t, conn, ofType(TypeStats))
	var st Stats
	if err := json.Unmarshal(msg.Payload, &st); err != nil {
		t.Fatalf("bad stats: %v", err)
	}
	if st.State != "streaming" || st.Occupied != 4096 || st.TargetRate != 44100 || st.StallMillis != 1500 {
		t.Errorf("stats = %+v", st)
	}

	if n := s.ClientCount(); n != 1 {
		t.Errorf("ClientCount() = %d, want 1", n)
	}
}

func TestMuteRequest(t *testing.T) {
	target := &fakeTarget{}
	s, _ := NewServer(Config{Interval: time.Hour}, target)
	conn := dial(t, s)
	readUntil(t, conn, ofType(TypeHello))

	send(t, conn, TypeMute, Mute{Muted: true})

	msg := readUntil(t, conn, ofType(TypeStats))
	var st Stats
	json.Unmarshal(msg.Payload, &st)
	if !st.Muted {
		t.Error("stats reply should report muted")
	}
	if !target.isMuted() {
		t.Error("target was not muted")
	}
}

func TestRegionRequest(t *testing.T) {
	var mu sync.Mutex
	var regions []string
	config := Config{
		Interval: time.Hour,
		OnRegion: func(region string) error {
			if region == "secam" {
				return errors.New("unknown region")
			}
			mu.Lock()
			regions = append(regions, region)
			mu.Unlock()
			return nil
		},
	}
	s, _ := NewServer(config, &fakeTarget{})
	conn := dial(t, s)
	readUntil(t, conn, ofType(TypeHello))

	send(t, conn, TypeRegion, Region{Region: "pal"})
	send(t, conn, TypeRegion, Region{Region: "secam"})

	msg := readUntil(t, conn, ofType(TypeError))
	var e Error
	json.Unmarshal(msg.Payload, &e)
	if e.Request != TypeRegion || !strings.Contains(e.Message, "unknown region") {
		t.Errorf("error reply = %+v", e)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(regions) != 1 || regions[0] != "pal" {
		t.Errorf("OnRegion calls = %v, want [pal]", regions)
	}
}

func TestRejectedRequests(t *testing.T) {
	s, _ := NewServer(Config{Interval: time.Hour}, &fakeTarget{})
	conn := dial(t, s)
	readUntil(t, conn, ofType(TypeHello))

	tests := []struct {
		name    string
		raw     string
		request string
	}{
		{"unknown type", `{"type":"engine/explode","payload":{}}`, "engine/explode"},
		{"region unsupported", `{"type":"core/region","payload":{"region":"pal"}}`, TypeRegion},
		{"bad payload", `{"type":"engine/mute","payload":"yes"}`, TypeMute},
		{"not json", `hello`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			msg := readUntil(t, conn, ofType(TypeError))
			var e Error
			json.Unmarshal(msg.Payload, &e)
			if e.Request != tt.request || e.Message == "" {
				t.Errorf("error reply = %+v, want request %q", e, tt.request)
			}
		})
	}
}

func TestStopDisconnectsClients(t *testing.T) {
	s, _ := NewServer(Config{Interval: time.Hour}, &fakeTarget{})
	conn := dial(t, s)
	readUntil(t, conn, ofType(TypeHello))

	s.Stop()
	s.Stop()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed after Stop")
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := s.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d after Stop, want 0", n)
	}
}

func TestStopWhileClientsConnect(t *testing.T) {
	s, _ := NewServer(Config{Interval: time.Hour}, &fakeTarget{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + Path

	var clients sync.WaitGroup
	for i := 0; i < 8; i++ {
		clients.Add(1)
		go func() {
			defer clients.Done()
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}

	s.Stop()

	done := make(chan struct{})
	go func() {
		s.waitClients()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("client goroutines still running after Stop")
	}

	clients.Wait()
	if n := s.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d after Stop, want 0", n)
	}
}
