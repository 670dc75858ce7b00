package mdns

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func entry(instance string, text []string, v4 []net.IP, v6 []net.IP) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = "fauxhub-5ff80a07b9b1.local."
	e.Port = 49915
	e.Text = text
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	return e
}

func TestParseServiceEntry(t *testing.T) {
	fauxhubTXT := []string{
		"serial=5ff80a07-b9b1-3f20-b174-1ec5b08d2573",
		"plugin=switch",
		"vendor=fauxhub",
	}

	tests := []struct {
		name    string
		entry   *zeroconf.ServiceEntry
		wantNil bool
		wantIP  string
	}{
		{
			name:   "fauxhub device with IPv4",
			entry:  entry("living room light", fauxhubTXT, []net.IP{net.ParseIP("192.168.4.16")}, nil),
			wantIP: "192.168.4.16",
		},
		{
			name:   "IPv6 only",
			entry:  entry("living room light", fauxhubTXT, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP: "fe80::1",
		},
		{
			name: "prefers IPv4",
			entry: entry("living room light", fauxhubTXT,
				[]net.IP{net.ParseIP("192.168.1.50")},
				[]net.IP{net.ParseIP("fe80::2")}),
			wantIP: "192.168.1.50",
		},
		{
			name:    "other vendor",
			entry:   entry("printer", []string{"serial=abc", "vendor=acme"}, []net.IP{net.ParseIP("192.168.1.9")}, nil),
			wantNil: true,
		},
		{
			name:    "no TXT records",
			entry:   entry("router", nil, []net.IP{net.ParseIP("192.168.1.1")}, nil),
			wantNil: true,
		},
		{
			name:    "missing serial",
			entry:   entry("odd", []string{"vendor=fauxhub"}, []net.IP{net.ParseIP("192.168.1.2")}, nil),
			wantNil: true,
		},
		{
			name:    "no address",
			entry:   entry("living room light", fauxhubTXT, nil, nil),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}

			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want non-nil device")
			}
			if device.IP != tt.wantIP {
				t.Errorf("device.IP = %v, want %v", device.IP, tt.wantIP)
			}
			if device.Name != "living room light" {
				t.Errorf("device.Name = %v", device.Name)
			}
			if device.Serial != "5ff80a07-b9b1-3f20-b174-1ec5b08d2573" {
				t.Errorf("device.Serial = %v", device.Serial)
			}
			if device.Plugin != "switch" {
				t.Errorf("device.Plugin = %v", device.Plugin)
			}
			if device.Port != 49915 {
				t.Errorf("device.Port = %v", device.Port)
			}
			if time.Since(device.DiscoveredAt) > time.Second {
				t.Errorf("device.DiscoveredAt is not recent: %v", device.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_FlagRecord(t *testing.T) {
	e := entry("lamp", []string{"serial=x", "vendor=fauxhub", "beta"}, []net.IP{net.ParseIP("10.0.0.3")}, nil)

	device := parseServiceEntry(e)
	if device == nil {
		t.Fatal("parseServiceEntry() = nil")
	}
	if v, ok := device.Metadata["beta"]; !ok || v != "" {
		t.Errorf("Metadata[beta] = %q, %v; want empty value present", v, ok)
	}
}

func TestTXTRecords(t *testing.T) {
	got := txtRecords(Service{Name: "porch", Serial: "abc", Plugin: "dimmer", Port: 1})
	want := []string{"serial=abc", "plugin=dimmer", "vendor=fauxhub"}

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("txtRecords() = %v, want %v", got, want)
	}
}

func TestHostName(t *testing.T) {
	got := hostName("5ff80a07-b9b1-3f20-b174-1ec5b08d2573")
	if got != "fauxhub-5ff80a07b9b1" {
		t.Errorf("hostName() = %v, want fauxhub-5ff80a07b9b1", got)
	}
	if got := hostName("ab"); got != "fauxhub-ab" {
		t.Errorf("hostName(short) = %v", got)
	}
}

func TestAnnounce_SkipsPortless(t *testing.T) {
	ann, err := Announce([]Service{{Name: "no port", Serial: "x"}}, "192.168.1.5")
	if err != nil {
		t.Fatalf("Announce() error = %v", err)
	}
	defer ann.Shutdown()

	if ann.Count() != 0 {
		t.Errorf("Count() = %d, want 0", ann.Count())
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()

	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}
