package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "fauxhub"
	configFile = "config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/fauxhub or $HOME/.config/fauxhub
//   - macOS: $HOME/.config/fauxhub (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\fauxhub
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path. An empty path means the default
// location, where a missing file yields Default(); an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML config data, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration, reporting every problem found.
func (c *Config) Validate() error {
	var errs error

	if c.Discovery.Port < 0 || c.Discovery.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("discovery.port %d out of range", c.Discovery.Port))
	}
	if ip := net.ParseIP(c.Discovery.Group); ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		errs = multierr.Append(errs, fmt.Errorf("discovery.group %q is not an IPv4 multicast address", c.Discovery.Group))
	}

	pluginNames := make(map[string]bool)
	deviceNames := make(map[string]string)
	ports := make(map[int]string)

	for i, p := range c.Plugins {
		if p.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("plugins[%d]: name is required", i))
		} else if pluginNames[p.Name] {
			errs = multierr.Append(errs, fmt.Errorf("plugins[%d]: duplicate plugin name %q", i, p.Name))
		}
		pluginNames[p.Name] = true

		if p.Path == "" {
			errs = multierr.Append(errs, fmt.Errorf("plugin %q: path is required", p.Name))
		}

		for key := range p.Env {
			if key == "" || strings.Contains(key, "=") {
				errs = multierr.Append(errs, fmt.Errorf("plugin %q: invalid env name %q", p.Name, key))
			}
		}

		for j, d := range p.Devices {
			if d.Name == "" {
				errs = multierr.Append(errs, fmt.Errorf("plugin %q devices[%d]: name is required", p.Name, j))
				continue
			}
			if other, ok := deviceNames[d.Name]; ok {
				errs = multierr.Append(errs, fmt.Errorf("device %q defined by both %q and %q", d.Name, other, p.Name))
			}
			deviceNames[d.Name] = p.Name

			if d.Port < 0 || d.Port > 65535 {
				errs = multierr.Append(errs, fmt.Errorf("device %q: port %d out of range", d.Name, d.Port))
			} else if d.Port != 0 {
				if other, ok := ports[d.Port]; ok {
					errs = multierr.Append(errs, fmt.Errorf("device %q: port %d already used by %q", d.Name, d.Port, other))
				}
				ports[d.Port] = d.Name
			}
		}
	}

	return errs
}

// Save writes the configuration to path atomically.
// An empty path means the default location.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# fauxhub configuration
#
# ip_address: address advertised to controllers, or "auto"
# plugins:    wasm handler modules and the devices each one controls
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// WriteDefault writes an example configuration to path, refusing to
// overwrite an existing file.
func WriteDefault(path string) (string, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return "", fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists: %s", path)
	}

	return path, Example().Save(path)
}

// Example returns the starter configuration written by WriteDefault.
func Example() *Config {
	cfg := Default()
	cfg.Plugins = []Plugin{
		{
			Name: "switch",
			Path: "~/.config/fauxhub/plugins/switch.wasm",
			Devices: []DeviceEntry{
				{Name: "living room light", Port: 49915},
				{Name: "kitchen fan", Port: 49916},
			},
		},
	}
	return cfg
}
