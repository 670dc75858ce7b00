package config

import (
	"net"

	"github.com/muurk/fauxhub/internal/multicast"
	"github.com/muurk/fauxhub/internal/netaddr"
	"github.com/muurk/fauxhub/internal/plugin"
	"github.com/muurk/fauxhub/internal/serial"
)

// CurrentVersion is the only config file version understood
const CurrentVersion = 1

// Config represents the entire fauxhub configuration file.
type Config struct {
	Version   int       `yaml:"version"`
	IPAddress string    `yaml:"ip_address"` // Address to advertise, or "auto"
	Discovery Discovery `yaml:"discovery"`

	// LoopbackAddresses are resolver answers that trigger the outbound
	// interface probe. Empty means netaddr.DefaultLoopbacks.
	LoopbackAddresses []string `yaml:"loopback_addresses,omitempty"`

	Plugins []Plugin `yaml:"plugins"`
}

// Discovery holds the multicast listener parameters.
type Discovery struct {
	Port      int    `yaml:"port"`
	Group     string `yaml:"group"`
	Interface string `yaml:"interface,omitempty"` // Interface name; empty joins on any interface
	ReusePort *bool  `yaml:"reuse_port,omitempty"`
}

// Plugin is one handler module and the devices it controls.
type Plugin struct {
	Name    string        `yaml:"name"` // Module name the plugin is loaded under
	Path    string        `yaml:"path"` // Path to the .wasm file, ~ is expanded
	Devices []DeviceEntry `yaml:"devices"`

	// Host environment for WASI plugins; ignored for plugins without
	// WASI imports
	Env  map[string]string `yaml:"env,omitempty"`
	Dirs []string          `yaml:"dirs,omitempty"` // Directories the plugin may open
}

// Loader returns a handler loader carrying the plugin's WASI settings.
func (p Plugin) Loader() *plugin.Loader {
	l := plugin.NewLoader()
	l.WASI = plugin.WASIConfig{
		Env:  p.Env,
		Dirs: append([]string(nil), p.Dirs...),
	}
	return l
}

// FindPlugin looks a plugin up by name.
func (c *Config) FindPlugin(name string) (Plugin, bool) {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}

// DeviceEntry is a device as written in the config file.
type DeviceEntry struct {
	Name string `yaml:"name"`           // Friendly name, also the serial seed
	Port int    `yaml:"port,omitempty"` // Control port; 0 lets the OS choose
}

// Device is a configured device with its derived serial.
type Device struct {
	Name       string
	Serial     string
	Port       int
	Plugin     string
	PluginPath string
}

// Default returns a config with no plugins and standard discovery settings.
func Default() *Config {
	reuse := true
	return &Config{
		Version:   CurrentVersion,
		IPAddress: netaddr.AutoHint,
		Discovery: Discovery{
			Port:      multicast.DiscoveryPort,
			Group:     multicast.DiscoveryGroup,
			ReusePort: &reuse,
		},
		Plugins: []Plugin{},
	}
}

// Devices flattens every plugin's devices, in file order.
func (c *Config) Devices() []Device {
	var devices []Device
	for _, p := range c.Plugins {
		for _, d := range p.Devices {
			devices = append(devices, Device{
				Name:       d.Name,
				Serial:     serial.FromName(d.Name),
				Port:       d.Port,
				Plugin:     p.Name,
				PluginPath: p.Path,
			})
		}
	}
	return devices
}

// FindDevice looks a device up by name or serial.
func (c *Config) FindDevice(key string) (Device, bool) {
	for _, d := range c.Devices() {
		if d.Name == key || d.Serial == key {
			return d, true
		}
	}
	return Device{}, false
}

// MulticastConfig converts the discovery section to socket parameters.
func (c *Config) MulticastConfig() (multicast.Config, error) {
	mc := multicast.Config{
		Port:      c.Discovery.Port,
		Group:     net.ParseIP(c.Discovery.Group),
		ReusePort: c.Discovery.ReusePort == nil || *c.Discovery.ReusePort,
	}

	if c.Discovery.Interface != "" {
		ifi, err := net.InterfaceByName(c.Discovery.Interface)
		if err != nil {
			return multicast.Config{}, err
		}
		mc.Interface = ifi
	}

	return mc, mc.Validate()
}

// Resolver returns an address resolver honouring LoopbackAddresses.
func (c *Config) Resolver() *netaddr.Resolver {
	r := netaddr.NewResolver()
	if len(c.LoopbackAddresses) > 0 {
		r.Loopbacks = append([]string(nil), c.LoopbackAddresses...)
	}
	return r
}
