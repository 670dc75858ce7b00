// Package mdns advertises emulated devices over multicast DNS and finds
// devices advertised by other fauxhub instances.
//
// Every device is published as an "_http._tcp" service pointing at its
// control port, with TXT records carrying its serial and plugin:
//
//	serial=5ff80a07-b9b1-3f20-b174-1ec5b08d2573
//	plugin=switch
//	vendor=fauxhub
//
// The advertised address is the one chosen by netaddr, not whatever the mDNS
// library would pick, so a multi-homed host announces the same address it
// uses elsewhere.
//
// # Usage Example
//
//	ann, err := mdns.Announce(services, "192.168.1.20")
//	if err != nil {
//	    return err
//	}
//	defer ann.Shutdown()
//
//	devices, err := mdns.ScanForDevices(5 * time.Second)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package mdns
