// Package transport carries heartbeat frames as connectionless datagrams.
// Concrete implementations: udp (production) and mem (in-process, for tests).
package transport

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrClosed is returned by Recv and Send after Close.
var ErrClosed = errors.New("transport: closed")

// Datagram is one received frame and where it came from.
type Datagram struct {
	Data []byte
	From net.Addr
	At   time.Time
}

// Conn receives datagrams on the unit's listen address and sends replies.
// One goroutine calls Recv and one calls Send.
type Conn interface {
	// Recv blocks until the next datagram arrives, ctx is done or the conn closes.
	Recv(ctx context.Context) (Datagram, error)
	// Send transmits b to addr. It does not retry.
	Send(ctx context.Context, to net.Addr, b []byte) error
	LocalAddr() net.Addr
	Close() error
}

// WithPort returns addr with its port replaced, or addr itself when port is 0
// or addr is not a UDP address.
func WithPort(addr net.Addr, port int) net.Addr {
	ua, ok := addr.(*net.UDPAddr)
	if !ok || port == 0 {
		return addr
	}
	out := *ua
	out.Port = port
	return &out
}
