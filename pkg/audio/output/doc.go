// ABOUTME: Audio output package for pull-driven playback devices
// ABOUTME: Provides the Device interface plus oto, malgo, PortAudio and null backends
// Package output provides playback devices that pull audio through a callback.
//
// Every backend is opened with a PullFunc. The device decides when it is
// called and how many bytes it asks for; the callback must fill the whole
// slice and return without blocking.
//
// Available backends:
//   - Oto: ebitengine/oto v3 (player reading an io.Reader)
//   - Malgo: miniaudio via gen2brain/malgo (data callback)
//   - PortAudio: gordonklaus/portaudio (build with -tags portaudio)
//   - Null: a ticker-driven headless device for servers and tests
//
// Example:
//
//	dev, err := output.New("oto", output.DefaultPeriodFrames)
//	err = dev.Open(44100, 2, engine.Pull)
//	err = dev.Start()
package output
