package mdns

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/fauxhub/internal/logging"
)

const (
	// ServiceType is the mDNS service type devices are published under
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 10 * time.Second

	// Vendor marks fauxhub advertisements among other HTTP services
	Vendor = "fauxhub"
)

// Service is a device to advertise
type Service struct {
	Name   string
	Serial string
	Plugin string
	Port   int
}

// Announcer holds the running advertisements
type Announcer struct {
	servers []*zeroconf.Server
}

// Announce publishes every service with a non-zero port at ip.
// Services without a port are skipped since there is nothing to point at.
func Announce(services []Service, ip string) (*Announcer, error) {
	a := &Announcer{}

	for _, svc := range services {
		if svc.Port == 0 {
			logging.Warn("Skipping mDNS announcement for device without a port",
				zap.String("device", svc.Name),
			)
			continue
		}

		server, err := zeroconf.RegisterProxy(
			svc.Name,
			ServiceType,
			ServiceDomain,
			svc.Port,
			hostName(svc.Serial),
			[]string{ip},
			txtRecords(svc),
			nil,
		)
		if err != nil {
			a.Shutdown()
			return nil, fmt.Errorf("failed to announce %q: %w", svc.Name, err)
		}
		a.servers = append(a.servers, server)

		logging.Info("Announced device",
			zap.String("device", svc.Name),
			zap.String("serial", svc.Serial),
			zap.String("ip", ip),
			zap.Int("port", svc.Port),
		)
	}

	return a, nil
}

// Count returns the number of active advertisements
func (a *Announcer) Count() int {
	return len(a.servers)
}

// Shutdown withdraws every advertisement
func (a *Announcer) Shutdown() {
	for _, s := range a.servers {
		s.Shutdown()
	}
	a.servers = nil
}

// hostName builds a stable mDNS host label from a serial. zeroconf
// appends the domain.
func hostName(serial string) string {
	short := strings.ReplaceAll(serial, "-", "")
	if len(short) > 12 {
		short = short[:12]
	}
	return "fauxhub-" + short
}

func txtRecords(svc Service) []string {
	return []string{
		"serial=" + svc.Serial,
		"plugin=" + svc.Plugin,
		"vendor=" + Vendor,
	}
}

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForDevices discovers all advertised fauxhub devices on the local network
func (s *Scanner) ScanForDevices() ([]*Device, error) {
	return s.ScanForDevicesWithContext(context.Background())
}

// ScanForDevicesWithContext discovers devices with a custom context
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	var mu sync.Mutex
	devices := make([]*Device, 0)

	resolver, err := zeroconf.NewResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			if device := parseServiceEntry(entry); device != nil {
				mu.Lock()
				devices = append(devices, device)
				mu.Unlock()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Device(nil), devices...), nil
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry was not published by fauxhub.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	if metadata["vendor"] != Vendor || metadata["serial"] == "" {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	return &Device{
		Name:         entry.Instance,
		Serial:       metadata["serial"],
		Plugin:       metadata["plugin"],
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForDevices is a convenience function to scan with a custom timeout
func ScanForDevices(timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForDevices()
}
