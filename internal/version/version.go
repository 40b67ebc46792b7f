// ABOUTME: Version and product identification constants
// ABOUTME: Reported in the websocket hello and mDNS TXT records
package version

const (
	Version      = "0.3.0"
	Product      = "SDR Console"
	Manufacturer = "sdrconsole"
)
