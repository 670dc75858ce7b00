// Package multicast opens the UDP socket fauxhub listens on for discovery
// traffic.
//
// The socket is bound to all IPv4 interfaces on the discovery port and joined
// to the discovery multicast group, so datagrams sent to the group reach it
// whichever interface they arrive on. SO_REUSEADDR is always set so a
// restarted process can rebind immediately. SO_REUSEPORT is requested on a
// best-effort basis; where the platform lacks it the socket still works but
// other processes cannot share the port. The outcome is recorded on the
// returned Socket rather than dropped.
//
// # Usage Example
//
//	sock, err := multicast.Listen(multicast.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer sock.Close()
//
//	if sock.ReusePort() != multicast.OptionEnabled {
//	    // co-located listeners are not possible on this host
//	}
//
// # Ports and Privileges
//
// Port 1900 is unprivileged, but it is frequently held by other SSDP
// listeners (media servers, desktop UPnP services). Those listeners must also
// set SO_REUSEPORT for a second bind to succeed; otherwise Listen returns a
// *SocketError with Op "bind".
//
// # Thread Safety
//
// Listen is reentrant. Two concurrent calls on the same port race for the
// bind and the kernel decides the outcome.
package multicast
