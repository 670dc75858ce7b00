// Package netaddr resolves the local IPv4 address fauxhub advertises to
// other devices on the network.
//
// Resolution prefers a caller supplied address. Without one, the host name
// is looked up; when that lookup only yields a loopback address (common on
// Linux, where /etc/hosts maps the host name to 127.0.1.1) the outbound
// interface address is read from a connected UDP socket instead. Connecting
// a UDP socket sends nothing, it only makes the kernel choose a route.
package netaddr

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/fauxhub/internal/logging"
)

// AutoHint asks for automatic resolution. Matched case-insensitively.
const AutoHint = "auto"

// DefaultProbeAddr is the destination used to pick the outbound interface.
// It is never contacted.
const DefaultProbeAddr = "8.8.8.8:80"

// DefaultLoopbacks are the answers that are useless to advertise.
var DefaultLoopbacks = []string{"127.0.1.1", "127.0.0.1", "localhost"}

// ResolveError reports a failed automatic resolution.
type ResolveError struct {
	// Op is the failing step: "hostname", "lookup" or "probe"
	Op string
	// Host is the name or address involved, if any
	Host string
	// Err is the underlying error
	Err error
}

func (e *ResolveError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("failed to resolve local address (%s %s): %v", e.Op, e.Host, e.Err)
	}
	return fmt.Sprintf("failed to resolve local address (%s): %v", e.Op, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Resolver determines the local address to advertise.
// The zero value is not usable; call NewResolver.
type Resolver struct {
	// Loopbacks lists resolved values that trigger the outbound probe
	Loopbacks []string

	// ProbeAddr is the UDP destination used by the outbound probe
	ProbeAddr string

	// Hostname returns the host's own name
	Hostname func() (string, error)

	// LookupIP resolves a host name; signature matches net.Resolver.LookupIP
	LookupIP func(ctx context.Context, network, host string) ([]net.IP, error)

	// Dial opens the transient probe socket; signature matches net.Dialer.DialContext
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewResolver creates a resolver backed by the operating system
func NewResolver() *Resolver {
	var dialer net.Dialer
	return &Resolver{
		Loopbacks: append([]string(nil), DefaultLoopbacks...),
		ProbeAddr: DefaultProbeAddr,
		Hostname:  os.Hostname,
		LookupIP:  net.DefaultResolver.LookupIP,
		Dial:      dialer.DialContext,
	}
}

// Resolve is a convenience wrapper using the default resolver
func Resolve(hint string) (string, error) {
	return NewResolver().Resolve(hint)
}

// Resolve returns hint unchanged unless it is empty or "auto", in which
// case the address is resolved automatically.
func (r *Resolver) Resolve(hint string) (string, error) {
	return r.ResolveContext(context.Background(), hint)
}

// ResolveContext is Resolve with a context bounding the lookup and probe
func (r *Resolver) ResolveContext(ctx context.Context, hint string) (string, error) {
	if hint != "" && !strings.EqualFold(hint, AutoHint) {
		logging.Debug("Using configured IP address", zap.String("ip", hint))
		return hint, nil
	}

	logging.Debug("Attempting to get IP address automatically")

	hostname, err := r.Hostname()
	if err != nil {
		return "", &ResolveError{Op: "hostname", Err: err}
	}

	ip, err := r.lookup(ctx, hostname)
	if err != nil {
		return "", err
	}

	if r.IsLoopback(ip) {
		logging.Debug("Host name resolves to loopback, probing outbound interface",
			zap.String("hostname", hostname),
			zap.String("resolved", ip),
		)
		ip, err = r.outboundAddr(ctx)
		if err != nil {
			return "", err
		}
	}

	logging.Debug("Using IP address", zap.String("ip", ip))
	return ip, nil
}

// IsLoopback reports whether addr is one of the configured loopback answers
func (r *Resolver) IsLoopback(addr string) bool {
	for _, lb := range r.Loopbacks {
		if strings.EqualFold(addr, lb) {
			return true
		}
	}
	return false
}

func (r *Resolver) lookup(ctx context.Context, hostname string) (string, error) {
	ips, err := r.LookupIP(ctx, "ip4", hostname)
	if err != nil {
		return "", &ResolveError{Op: "lookup", Host: hostname, Err: err}
	}

	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}

	return "", &ResolveError{
		Op:   "lookup",
		Host: hostname,
		Err:  &net.DNSError{Err: "no IPv4 address", Name: hostname, IsNotFound: true},
	}
}

// outboundAddr reads the local address the kernel picks for a route to
// ProbeAddr. The socket is closed before returning on every path.
func (r *Resolver) outboundAddr(ctx context.Context) (addr string, err error) {
	conn, err := r.Dial(ctx, "udp4", r.ProbeAddr)
	if err != nil {
		return "", &ResolveError{Op: "probe", Host: r.ProbeAddr, Err: err}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			err = multierr.Append(err, &ResolveError{Op: "probe", Host: r.ProbeAddr, Err: cerr})
			addr = ""
		}
	}()

	switch local := conn.LocalAddr().(type) {
	case *net.UDPAddr:
		return local.IP.String(), nil
	default:
		host, _, splitErr := net.SplitHostPort(local.String())
		if splitErr != nil {
			return "", &ResolveError{Op: "probe", Host: r.ProbeAddr, Err: splitErr}
		}
		return host, nil
	}
}
