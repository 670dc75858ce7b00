// Package monitor observes traffic arriving on the discovery socket.
//
// It does not answer anything; replies belong to the discovery server. The
// monitor is what `fauxhub listen` runs to confirm that M-SEARCH requests
// from controllers actually reach this host.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/muurk/fauxhub/internal/logging"
)

// maxDatagram is large enough for any UDP payload
const maxDatagram = 65535

// Conn is the part of *net.UDPConn the monitor needs
type Conn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	SetReadDeadline(t time.Time) error
}

// Datagram is one received packet
type Datagram struct {
	From       *net.UDPAddr
	Data       []byte
	ReceivedAt time.Time
}

// Monitor reads datagrams until its context ends
type Monitor struct {
	conn     Conn
	group    string
	handler  func(Datagram)
	received atomic.Int64
}

// New creates a monitor for conn. group only labels log entries.
func New(conn Conn, group string) *Monitor {
	return &Monitor{conn: conn, group: group}
}

// OnDatagram registers a callback invoked for every datagram, in the
// reading goroutine. Must be called before Run.
func (m *Monitor) OnDatagram(fn func(Datagram)) {
	m.handler = fn
}

// Received returns the number of datagrams read so far
func (m *Monitor) Received() int64 {
	return m.received.Load()
}

// Run reads until ctx is cancelled or the connection fails. Cancellation
// returns nil. The connection is left open for its owner to close, with no
// read deadline.
func (m *Monitor) Run(ctx context.Context) error {
	stop := make(chan struct{})
	exited := make(chan struct{})
	var expired bool

	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			// Unblock the pending read
			_ = m.conn.SetReadDeadline(time.Unix(1, 0))
			expired = true
		case <-stop:
		}
	}()

	defer func() {
		close(stop)
		<-exited
		if expired {
			_ = m.conn.SetReadDeadline(time.Time{})
		}
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("failed to read discovery datagram: %w", err)
		}

		m.received.Add(1)

		data := make([]byte, n)
		copy(data, buf[:n])

		logging.LogDatagram(from.String(), m.group, data)

		if m.handler != nil {
			m.handler(Datagram{From: from, Data: data, ReceivedAt: time.Now()})
		}
	}
}
