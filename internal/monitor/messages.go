// ABOUTME: Monitor message type definitions
// ABOUTME: JSON envelopes for status pushes and control requests
package monitor

import (
	"encoding/json"

	"github.com/retroaudio/retroaudio/pkg/engine"
)

// Message types
const (
	TypeHello  = "monitor/hello"
	TypeStats  = "engine/stats"
	TypeMute   = "engine/mute"
	TypeRegion = "core/region"
	TypeError  = "monitor/error"
)

// Message is the top-level wrapper for all monitor messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// incoming is a client message with its payload left undecoded
type incoming struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hello is sent to every client when it connects
type Hello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
}

// Stats is the periodic engine status push
type Stats struct {
	SessionID     string  `json:"session_id"`
	State         string  `json:"state"`
	Reconfiguring bool    `json:"reconfiguring"`
	Muted         bool    `json:"muted"`
	SourceRate    float64 `json:"source_rate"`
	TargetRate    int     `json:"target_rate"`
	Bypassed      bool    `json:"bypassed"`
	Capacity      int     `json:"capacity"`
	Occupied      int     `json:"occupied"`
	Blocks        uint64  `json:"blocks"`
	Underruns     uint64  `json:"underruns"`
	SilenceBytes  uint64  `json:"silence_bytes"`
	Stalls        uint64  `json:"stalls"`
	StallMillis   int64   `json:"stall_ms"`
}

// NewStats converts an engine snapshot to its wire form
func NewStats(st engine.Stats) Stats {
	return Stats{
		SessionID:     st.SessionID,
		State:         st.State.String(),
		Reconfiguring: st.Reconfiguring,
		Muted:         st.Muted,
		SourceRate:    st.SourceRate,
		TargetRate:    st.TargetRate,
		Bypassed:      st.Bypassed,
		Capacity:      st.Capacity,
		Occupied:      st.Occupied,
		Blocks:        st.SubmittedBlocks,
		Underruns:     st.Underruns,
		SilenceBytes:  st.SilenceBytes,
		Stalls:        st.Stalls,
		StallMillis:   st.StallTime.Milliseconds(),
	}
}

// Mute asks the engine to mute or unmute
type Mute struct {
	Muted bool `json:"muted"`
}

// Region asks the core to switch video region
type Region struct {
	Region string `json:"region"`
}

// Error reports a rejected control request
type Error struct {
	Request string `json:"request"`
	Message string `json:"message"`
}
