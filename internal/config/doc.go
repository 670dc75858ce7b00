// Package config loads the fauxhub configuration file.
//
// The file is YAML. It names the address to advertise, the discovery socket
// parameters and the plugins, each with the devices it controls. Device
// serials are not stored; they are derived from the device names on load so
// they can never drift from what controllers already know.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/fauxhub/config.yaml or $HOME/.config/fauxhub/config.yaml
//   - macOS: $HOME/.config/fauxhub/config.yaml
//   - Windows: %LOCALAPPDATA%\fauxhub\config.yaml
//
// # Example
//
//	version: 1
//	ip_address: auto
//	discovery:
//	  port: 1900
//	  group: 239.255.255.250
//	  reuse_port: true
//	plugins:
//	  - name: switch
//	    path: ~/.config/fauxhub/plugins/switch.wasm
//	    devices:
//	      - name: living room light
//	        port: 49915
//
// # Thread Safety
//
// Save serialises writers with a mutex and replaces the file atomically.
package config
