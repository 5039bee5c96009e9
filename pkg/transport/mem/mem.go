// Package mem is an in-process datagram transport. Useful for tests.
package mem

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ryandielhenn/izzy/pkg/transport"
)

// Addr is an in-memory endpoint name.
type Addr string

func (a Addr) Network() string { return "mem" }
func (a Addr) String() string  { return string(a) }

// Sent is one datagram written through Send.
type Sent struct {
	To   net.Addr
	Data []byte
}

// Conn implements transport.Conn over channels. Inbound datagrams are
// injected with Deliver; outbound ones are read from Sent.
type Conn struct {
	addr Addr
	in   chan transport.Datagram
	out  chan Sent

	mu      sync.Mutex
	sendErr error

	closeOnce sync.Once
	closed    chan struct{}
}

var _ transport.Conn = (*Conn)(nil)

func New(addr string) *Conn {
	return &Conn{
		addr:   Addr(addr),
		in:     make(chan transport.Datagram, 64),
		out:    make(chan Sent, 64),
		closed: make(chan struct{}),
	}
}

// Deliver queues b as if it arrived from the given address.
func (c *Conn) Deliver(from net.Addr, b []byte) {
	select {
	case c.in <- transport.Datagram{Data: append([]byte(nil), b...), From: from, At: time.Now()}:
	case <-c.closed:
	}
}

// Sent returns the channel of outbound datagrams.
func (c *Conn) Sent() <-chan Sent { return c.out }

// FailSends makes every following Send return err (nil restores).
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *Conn) LocalAddr() net.Addr { return c.addr }

func (c *Conn) Recv(ctx context.Context) (transport.Datagram, error) {
	select {
	case <-ctx.Done():
		return transport.Datagram{}, ctx.Err()
	case <-c.closed:
		return transport.Datagram{}, transport.ErrClosed
	case d := <-c.in:
		return d, nil
	}
}

func (c *Conn) Send(ctx context.Context, to net.Addr, b []byte) error {
	c.mu.Lock()
	err := c.sendErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return transport.ErrClosed
	case c.out <- Sent{To: to, Data: append([]byte(nil), b...)}:
		return nil
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
