// ABOUTME: Display-synchronized audio rate calculation
// ABOUTME: Scales a core's sample rate by the ratio of display and core frame rates
package frontend

// DisplaySyncedRate returns the rate at which a core's audio actually arrives
// when its frames are paced to the display instead of the core's own clock.
// A core running 60.0988 fps content on a 60 Hz display produces audio slightly
// slower than its nominal rate.
func DisplaySyncedRate(coreRate, coreFPS, displayHz float64) float64 {
	if coreFPS <= 0 || displayHz <= 0 {
		return coreRate
	}
	return coreRate * displayHz / coreFPS
}
