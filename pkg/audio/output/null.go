// ABOUTME: Null audio output driven by a wall-clock ticker
// ABOUTME: Pulls one period per period duration and optionally copies it to a sink
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Null is a Device with no hardware behind it. It consumes audio at the real
// device rate, which makes it useful for headless runs and tests.
type Null struct {
	periodFrames int
	periodBytes  int
	period       time.Duration
	pull         PullFunc
	sink         io.Writer

	pulls    atomic.Uint64
	audioB   atomic.Uint64
	silenceB atomic.Uint64
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewNull creates a new Null output
func NewNull(periodFrames int) *Null {
	return &Null{periodFrames: periodFrames}
}

// SetSink copies every pulled period to w. Call before Start.
func (n *Null) SetSink(w io.Writer) {
	n.mu.Lock()
	n.sink = w
	n.mu.Unlock()
}

// Open records the format and pull callback
func (n *Null) Open(sampleRate, channels int, pull PullFunc) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid format: %dHz %dch", sampleRate, channels)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.pull = pull
	n.periodBytes = periodBytes(n.periodFrames, channels)
	n.period = time.Duration(n.periodFrames) * time.Second / time.Duration(sampleRate)

	log.Printf("Audio output initialized: %dHz, %d channels (null, %v period)",
		sampleRate, channels, n.period)
	return nil
}

// Start launches the pull loop
func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pull == nil {
		return fmt.Errorf("output not initialized")
	}
	if n.running {
		return nil
	}

	n.running = true
	n.stopChan = make(chan struct{})
	n.wg.Add(1)
	go n.loop(n.stopChan, n.pull, n.sink)
	return nil
}

func (n *Null) loop(stop <-chan struct{}, pull PullFunc, sink io.Writer) {
	defer n.wg.Done()

	buf := make([]byte, n.periodBytes)
	ticker := time.NewTicker(n.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			got := pull(buf)
			n.pulls.Add(1)
			n.audioB.Add(uint64(got))
			n.silenceB.Add(uint64(len(buf) - got))
			if sink != nil {
				if _, err := sink.Write(buf); err != nil {
					log.Printf("Null output sink error: %v", err)
				}
			}
		}
	}
}

// Stop halts the pull loop
func (n *Null) Stop() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = false
	close(n.stopChan)
	n.mu.Unlock()

	n.wg.Wait()
	return nil
}

// Close stops the loop; the device holds no other resources
func (n *Null) Close() error {
	return n.Stop()
}

// Name returns the backend name
func (n *Null) Name() string { return "null" }

// PeriodBytes returns the transfer chunk size
func (n *Null) PeriodBytes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.periodBytes
}

// Pulls returns how many periods have been pulled
func (n *Null) Pulls() uint64 { return n.pulls.Load() }

// AudioBytes returns how many pulled bytes were real audio
func (n *Null) AudioBytes() uint64 { return n.audioB.Load() }

// SilenceBytes returns how many pulled bytes were padding
func (n *Null) SilenceBytes() uint64 { return n.silenceB.Load() }
