package netaddr

import (
	"context"
	"errors"
	"net"
	"testing"
)

// fakeConn is a net.Conn whose only useful behaviour is LocalAddr and Close
type fakeConn struct {
	net.Conn
	local    net.Addr
	closed   bool
	closeErr error
}

func (c *fakeConn) LocalAddr() net.Addr { return c.local }

func (c *fakeConn) Close() error {
	c.closed = true
	return c.closeErr
}

type fakeHost struct {
	hostname    string
	hostnameErr error
	ips         []net.IP
	lookupErr   error
	conn        *fakeConn
	dialErr     error

	lookups  int
	dials    int
	dialAddr string
}

func (f *fakeHost) resolver() *Resolver {
	r := NewResolver()
	r.Hostname = func() (string, error) { return f.hostname, f.hostnameErr }
	r.LookupIP = func(ctx context.Context, network, host string) ([]net.IP, error) {
		f.lookups++
		return f.ips, f.lookupErr
	}
	r.Dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		f.dials++
		f.dialAddr = address
		if f.dialErr != nil {
			return nil, f.dialErr
		}
		return f.conn, nil
	}
	return r
}

func TestResolve_HintOverride(t *testing.T) {
	host := &fakeHost{hostname: "box"}
	r := host.resolver()

	tests := []string{"10.0.0.5", "192.168.1.20", "not-even-an-ip"}
	for _, hint := range tests {
		t.Run(hint, func(t *testing.T) {
			got, err := r.Resolve(hint)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", hint, err)
			}
			if got != hint {
				t.Errorf("Resolve(%q) = %v, want it unchanged", hint, got)
			}
		})
	}

	if host.lookups != 0 || host.dials != 0 {
		t.Errorf("hint should bypass resolution, got %d lookups and %d dials", host.lookups, host.dials)
	}
}

func TestResolve_AutoAndEmptyAgree(t *testing.T) {
	host := &fakeHost{hostname: "box", ips: []net.IP{net.ParseIP("192.168.4.2")}}
	r := host.resolver()

	for _, hint := range []string{"", "auto", "AUTO", "Auto"} {
		got, err := r.Resolve(hint)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", hint, err)
		}
		if got != "192.168.4.2" {
			t.Errorf("Resolve(%q) = %v, want 192.168.4.2", hint, got)
		}
	}

	if host.dials != 0 {
		t.Errorf("non-loopback answer should not probe, got %d dials", host.dials)
	}
}

func TestResolve_LoopbackSubstitution(t *testing.T) {
	for _, loopback := range []string{"127.0.0.1", "127.0.1.1"} {
		t.Run(loopback, func(t *testing.T) {
			conn := &fakeConn{local: &net.UDPAddr{IP: net.ParseIP("192.168.1.77"), Port: 53211}}
			host := &fakeHost{hostname: "box", ips: []net.IP{net.ParseIP(loopback)}, conn: conn}
			r := host.resolver()

			got, err := r.Resolve("")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != "192.168.1.77" {
				t.Errorf("Resolve() = %v, want 192.168.1.77", got)
			}
			for _, lb := range DefaultLoopbacks {
				if got == lb {
					t.Errorf("Resolve() returned loopback %v", got)
				}
			}
			if host.dialAddr != DefaultProbeAddr {
				t.Errorf("probe dialed %v, want %v", host.dialAddr, DefaultProbeAddr)
			}
			if !conn.closed {
				t.Error("probe socket was not closed")
			}
		})
	}
}

func TestResolve_SkipsIPv6Answers(t *testing.T) {
	host := &fakeHost{
		hostname: "box",
		ips:      []net.IP{net.ParseIP("fe80::1"), net.ParseIP("10.1.2.3")},
	}

	got, err := host.resolver().Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "10.1.2.3" {
		t.Errorf("Resolve() = %v, want 10.1.2.3", got)
	}
}

func TestResolve_ExtendedLoopbacks(t *testing.T) {
	conn := &fakeConn{local: &net.UDPAddr{IP: net.ParseIP("172.16.0.9")}}
	host := &fakeHost{hostname: "box", ips: []net.IP{net.ParseIP("127.0.0.53")}, conn: conn}
	r := host.resolver()

	got, err := r.Resolve("auto")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "127.0.0.53" {
		t.Errorf("Resolve() = %v, want 127.0.0.53 with default loopback list", got)
	}

	r.Loopbacks = append(r.Loopbacks, "127.0.0.53")
	got, err = r.Resolve("auto")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "172.16.0.9" {
		t.Errorf("Resolve() = %v, want 172.16.0.9 with extended loopback list", got)
	}
}

func TestResolve_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		host   *fakeHost
		wantOp string
	}{
		{
			name:   "hostname failure",
			host:   &fakeHost{hostnameErr: boom},
			wantOp: "hostname",
		},
		{
			name:   "lookup failure",
			host:   &fakeHost{hostname: "box", lookupErr: boom},
			wantOp: "lookup",
		},
		{
			name:   "no IPv4 answer",
			host:   &fakeHost{hostname: "box", ips: []net.IP{net.ParseIP("::1")}},
			wantOp: "lookup",
		},
		{
			name:   "probe dial failure",
			host:   &fakeHost{hostname: "box", ips: []net.IP{net.ParseIP("127.0.0.1")}, dialErr: boom},
			wantOp: "probe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.host.resolver().Resolve("")
			if err == nil {
				t.Fatalf("Resolve() = %v, want error", got)
			}
			if got != "" {
				t.Errorf("Resolve() returned %q alongside an error", got)
			}

			var resErr *ResolveError
			if !errors.As(err, &resErr) {
				t.Fatalf("error %v is not a *ResolveError", err)
			}
			if resErr.Op != tt.wantOp {
				t.Errorf("Op = %v, want %v", resErr.Op, tt.wantOp)
			}
		})
	}
}

func TestResolve_ProbeCloseFailure(t *testing.T) {
	closeErr := errors.New("close failed")
	conn := &fakeConn{local: &net.UDPAddr{IP: net.ParseIP("192.168.1.77")}, closeErr: closeErr}
	host := &fakeHost{hostname: "box", ips: []net.IP{net.ParseIP("127.0.1.1")}, conn: conn}

	got, err := host.resolver().Resolve("")
	if !errors.Is(err, closeErr) {
		t.Fatalf("Resolve() error = %v, want close error", err)
	}
	if got != "" {
		t.Errorf("Resolve() = %q, want empty on failure", got)
	}
}

func TestResolveError_Message(t *testing.T) {
	err := &ResolveError{Op: "lookup", Host: "box", Err: errors.New("no such host")}
	want := "failed to resolve local address (lookup box): no such host"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsLoopback(t *testing.T) {
	r := NewResolver()
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", true},
		{"127.0.1.1", true},
		{"localhost", true},
		{"LOCALHOST", true},
		{"192.168.1.1", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := r.IsLoopback(tt.addr); got != tt.want {
			t.Errorf("IsLoopback(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
