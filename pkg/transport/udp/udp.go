package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ryandielhenn/izzy/pkg/transport"
)

// maxDatagram bounds reads; heartbeat frames never exceed 255 bytes, larger
// datagrams are truncated and then fail framing.
const maxDatagram = 2048

// Options configures the UDP conn.
type Options struct {
	// Listen is the inbound address, e.g. ":9001".
	Listen string
	// ReplyBind is the local address replies are sent from. Empty picks an
	// ephemeral port.
	ReplyBind string
	// SendTimeout bounds each reply write. Zero means no deadline.
	SendTimeout time.Duration
}

// Conn is a transport.Conn over two UDP sockets: one for intake, one for
// replies.
type Conn struct {
	in          *net.UDPConn
	out         *net.UDPConn
	sendTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

var _ transport.Conn = (*Conn)(nil)

func Listen(opts Options) (*Conn, error) {
	laddr, err := net.ResolveUDPAddr("udp", opts.Listen)
	if err != nil {
		return nil, fmt.Errorf("resolve listen %q: %w", opts.Listen, err)
	}
	in, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", opts.Listen, err)
	}

	var raddr *net.UDPAddr
	if opts.ReplyBind != "" {
		raddr, err = net.ResolveUDPAddr("udp", opts.ReplyBind)
		if err != nil {
			_ = in.Close()
			return nil, fmt.Errorf("resolve reply bind %q: %w", opts.ReplyBind, err)
		}
	}
	out, err := net.ListenUDP("udp", raddr)
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("bind reply socket: %w", err)
	}

	return &Conn{in: in, out: out, sendTimeout: opts.SendTimeout, closed: make(chan struct{})}, nil
}

func (c *Conn) LocalAddr() net.Addr { return c.in.LocalAddr() }

// ReplyAddr is the local address replies leave from.
func (c *Conn) ReplyAddr() net.Addr { return c.out.LocalAddr() }

func (c *Conn) Recv(ctx context.Context) (transport.Datagram, error) {
	stop := context.AfterFunc(ctx, func() {
		// unblock ReadFromUDP
		_ = c.in.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	buf := make([]byte, maxDatagram)
	n, from, err := c.in.ReadFromUDP(buf)
	if err != nil {
		select {
		case <-c.closed:
			return transport.Datagram{}, transport.ErrClosed
		default:
		}
		if ctx.Err() != nil {
			return transport.Datagram{}, ctx.Err()
		}
		return transport.Datagram{}, err
	}
	return transport.Datagram{Data: buf[:n:n], From: from, At: time.Now()}, nil
}

func (c *Conn) Send(ctx context.Context, to net.Addr, b []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	ua, ok := to.(*net.UDPAddr)
	if !ok {
		var err error
		ua, err = net.ResolveUDPAddr("udp", to.String())
		if err != nil {
			return fmt.Errorf("resolve reply addr %s: %w", to, err)
		}
	}

	deadline := time.Time{}
	if c.sendTimeout > 0 {
		deadline = time.Now().Add(c.sendTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.out.SetWriteDeadline(deadline); err != nil {
		return err
	}

	n, err := c.out.WriteToUDP(b, ua)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errors.New("udp: short write")
	}
	return nil
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = errors.Join(c.in.Close(), c.out.Close())
	})
	return err
}
