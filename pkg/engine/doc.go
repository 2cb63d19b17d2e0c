// ABOUTME: Audio engine package bridging an emulation core and a playback device
// ABOUTME: Converts, buffers and paces producer blocks for a pull-driven device
// Package engine delivers audio from an emulation core to a playback device.
//
// The producer goroutine calls Submit once per emulated frame. Each block is
// converted to the device rate and written to a ring buffer; when the ring is
// full Submit waits for the device to drain it, which paces the core to real
// time. The device callback calls Pull, which never blocks and fills any
// shortfall with silence.
//
// Example:
//
//	dev, _ := output.New("oto", 0)
//	eng := engine.New(engine.Config{Device: dev})
//	if err := eng.Start(32040.5, 44100, 0); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	for frame := range frames {
//	    if err := eng.Submit(frame, len(frame)/2); err != nil {
//	        return err
//	    }
//	}
package engine
