package mdns

import "testing"

func TestDevice_String(t *testing.T) {
	device := &Device{
		Name:   "living room light",
		Serial: "5ff80a07-b9b1-3f20-b174-1ec5b08d2573",
		IP:     "192.168.4.16",
		Port:   49915,
	}

	expected := "living room light [5ff80a07-b9b1-3f20-b174-1ec5b08d2573] at 192.168.4.16:49915"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_BaseURL(t *testing.T) {
	device := &Device{IP: "10.0.0.5", Port: 8080}

	if got := device.BaseURL(); got != "http://10.0.0.5:8080" {
		t.Errorf("Device.BaseURL() = %v, want http://10.0.0.5:8080", got)
	}
}
