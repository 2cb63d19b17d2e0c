// ABOUTME: Version information for retroaudio
// ABOUTME: Reported by the CLI and the monitor hello message
package version

import "fmt"

const (
	Version      = "0.3.0"
	Product      = "retroaudio"
	Manufacturer = "retroaudio"
)

// String returns "product version"
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
