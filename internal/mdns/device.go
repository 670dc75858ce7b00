package mdns

import (
	"fmt"
	"time"
)

// Device represents an emulated device found through mDNS
type Device struct {
	// Name is the friendly device name (the mDNS instance name)
	Name string

	// Serial is the device serial derived from Name
	Serial string

	// Plugin is the handler module controlling the device
	Plugin string

	// Hostname is the advertised mDNS host name
	Hostname string

	// IP is the advertised address
	IP string

	// Port is the control port
	Port int

	// Metadata contains every TXT record
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("%s [%s] at %s:%d", d.Name, d.Serial, d.IP, d.Port)
}

// BaseURL returns the HTTP base URL of the device's control port
func (d *Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.IP, d.Port)
}
