package multicast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/fauxhub/internal/logging"
)

const (
	// DiscoveryPort is the well-known SSDP port
	DiscoveryPort = 1900

	// DiscoveryGroup is the well-known SSDP IPv4 multicast group
	DiscoveryGroup = "239.255.255.250"
)

// OptionStatus is the outcome of a best-effort socket option
type OptionStatus int

const (
	// OptionDisabled means the option was not requested
	OptionDisabled OptionStatus = iota
	// OptionEnabled means the option was set
	OptionEnabled
	// OptionUnsupported means the option was requested but the platform refused it
	OptionUnsupported
)

func (s OptionStatus) String() string {
	switch s {
	case OptionDisabled:
		return "disabled"
	case OptionEnabled:
		return "enabled"
	case OptionUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("OptionStatus(%d)", int(s))
	}
}

// Config describes the discovery socket
type Config struct {
	// Port to bind on all interfaces. Zero picks an ephemeral port.
	Port int

	// Group is the IPv4 multicast group to join
	Group net.IP

	// Interface to join the group on. Nil lets the kernel accept the
	// group on any interface.
	Interface *net.Interface

	// ReusePort requests SO_REUSEPORT so several processes can share the port
	ReusePort bool
}

// DefaultConfig returns the standard SSDP discovery parameters
func DefaultConfig() Config {
	return Config{
		Port:      DiscoveryPort,
		Group:     net.ParseIP(DiscoveryGroup),
		ReusePort: true,
	}
}

// Validate checks that the configuration describes an IPv4 multicast listener
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Group == nil {
		return errors.New("multicast group is required")
	}
	if c.Group.To4() == nil || !c.Group.IsMulticast() {
		return fmt.Errorf("%s is not an IPv4 multicast group", c.Group)
	}
	return nil
}

// SocketError reports a failure to acquire the discovery socket
type SocketError struct {
	// Op is "config", "bind", "sockopt" or "join"
	Op string
	// Addr is the bind address or the multicast group
	Addr string
	// Err is the underlying error
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("discovery socket %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

// Socket is a UDP socket bound to the discovery port and joined to the
// discovery group. The caller owns it and must Close it.
type Socket struct {
	conn         *net.UDPConn
	group        net.IP
	reusePort    OptionStatus
	reusePortErr error
}

// ListenDefault opens the socket with DefaultConfig
func ListenDefault() (*Socket, error) {
	return Listen(DefaultConfig())
}

// Listen opens and configures the discovery socket
func Listen(cfg Config) (*Socket, error) {
	return ListenContext(context.Background(), cfg)
}

// ListenContext is Listen with a context for the bind
func ListenContext(ctx context.Context, cfg Config) (*Socket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &SocketError{Op: "config", Addr: fmt.Sprintf("%v:%d", cfg.Group, cfg.Port), Err: err}
	}

	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.Port))
	group := cfg.Group.To4()

	sock := &Socket{group: group}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				if err := setReuseAddr(fd); err != nil {
					opErr = &SocketError{Op: "sockopt", Addr: "SO_REUSEADDR", Err: err}
					return
				}
				if cfg.ReusePort {
					sock.reusePort, sock.reusePortErr = setReusePort(fd)
				}
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		var sockErr *SocketError
		if errors.As(err, &sockErr) {
			return nil, sockErr
		}
		return nil, &SocketError{Op: "bind", Addr: addr, Err: err}
	}
	sock.conn = pc.(*net.UDPConn)

	if err := ipv4.NewPacketConn(sock.conn).JoinGroup(cfg.Interface, &net.UDPAddr{IP: group}); err != nil {
		joinErr := &SocketError{Op: "join", Addr: group.String(), Err: err}
		return nil, multierr.Append(joinErr, sock.conn.Close())
	}

	if sock.reusePort == OptionUnsupported {
		logging.Warn("SO_REUSEPORT unavailable, port cannot be shared with other listeners",
			zap.Error(sock.reusePortErr),
		)
	}

	logging.Info("Discovery socket ready",
		zap.String("local_addr", sock.conn.LocalAddr().String()),
		zap.String("group", group.String()),
		zap.Stringer("reuse_port", sock.reusePort),
	)

	return sock, nil
}

// Conn returns the underlying UDP connection
func (s *Socket) Conn() *net.UDPConn {
	return s.conn
}

// LocalAddr returns the bound address
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Port returns the bound port
func (s *Socket) Port() int {
	return s.LocalAddr().Port
}

// Group returns the joined multicast group
func (s *Socket) Group() net.IP {
	return s.group
}

// ReusePort reports whether SO_REUSEPORT is in effect
func (s *Socket) ReusePort() OptionStatus {
	return s.reusePort
}

// ReusePortErr returns why SO_REUSEPORT is unsupported, if the platform said
func (s *Socket) ReusePortErr() error {
	return s.reusePortErr
}

// ReadFrom reads one datagram
func (s *Socket) ReadFrom(b []byte) (int, *net.UDPAddr, error) {
	return s.conn.ReadFromUDP(b)
}

// Close releases the socket. Group membership ends with it.
func (s *Socket) Close() error {
	return s.conn.Close()
}
