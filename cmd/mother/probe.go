package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ryandielhenn/izzy/discovery"
	"github.com/ryandielhenn/izzy/pkg/heartbeat"
	"github.com/ryandielhenn/izzy/pkg/node"
	"github.com/ryandielhenn/izzy/pkg/status"
)

type probeOpts struct {
	unit     string
	listen   string
	id       string
	tag      string
	count    int
	interval time.Duration
	timeout  time.Duration
	etcd     []string
}

func NewProbeCmd() *cobra.Command {
	o := probeOpts{}
	cmd := &cobra.Command{
		Use:          "mother [unit-addr]",
		Short:        "Send heartbeat Hellos to an izzy unit and print its replies",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				o.unit = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return o.run(ctx, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.unit, "unit", "127.0.0.1:9001", "unit heartbeat address, or a unit id when --etcd is set")
	f.StringVar(&o.listen, "listen", ":0", "local address Hellos are sent from and replies read on (the unit answers the source port)")
	f.StringVar(&o.id, "id", "", "supervisor UUID (default random)")
	f.StringVar(&o.tag, "tag", heartbeat.DefaultTag.String(), "protocol tag, 11 ASCII chars or 22 hex digits")
	f.IntVarP(&o.count, "count", "n", 3, "Hellos to send; 0 runs until interrupted")
	f.DurationVar(&o.interval, "interval", time.Second, "time between Hellos")
	f.DurationVar(&o.timeout, "timeout", time.Second, "wait for each reply")
	f.StringSliceVar(&o.etcd, "etcd", nil, "etcd endpoints to resolve the unit id")
	return cmd
}

func (o probeOpts) run(ctx context.Context, out io.Writer) error {
	tag, err := heartbeat.ParseTag(o.tag)
	if err != nil {
		return err
	}
	self := uuid.New()
	if o.id != "" {
		if self, err = uuid.Parse(o.id); err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}
	}

	target, err := o.resolve(ctx)
	if err != nil {
		return err
	}
	raddr, err := net.ResolveUDPAddr("udp", node.NormalizeHostPort(target, "9001"))
	if err != nil {
		return err
	}
	laddr, err := net.ResolveUDPAddr("udp", o.listen)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	hello, err := heartbeat.Encode(heartbeat.Message{Preamble: heartbeat.Preamble, Tag: tag, Sender: self, Kind: heartbeat.Hello})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "probing %s as %s from %s\n", raddr, self, conn.LocalAddr())

	buf := make([]byte, 512)
	for i := 0; o.count == 0 || i < o.count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(o.interval):
			}
		}
		start := time.Now()
		if _, err := conn.WriteToUDP(hello, raddr); err != nil {
			fmt.Fprintf(out, "seq=%d send: %v\n", i, err)
			continue
		}
		conn.SetReadDeadline(start.Add(o.timeout))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				fmt.Fprintf(out, "seq=%d timeout\n", i)
				continue
			}
			return err
		}
		fmt.Fprintln(out, describe(i, from, buf[:n], time.Since(start)))
	}
	return nil
}

// resolve looks the unit up in etcd when endpoints are given.
func (o probeOpts) resolve(ctx context.Context) (string, error) {
	if len(o.etcd) == 0 {
		return o.unit, nil
	}
	cli, err := discovery.NewClient(o.etcd)
	if err != nil {
		return "", err
	}
	defer cli.Close()
	units, err := discovery.Units(ctx, cli)
	if err != nil {
		return "", err
	}
	addr, ok := units[o.unit]
	if !ok {
		return "", fmt.Errorf("unit %s not registered (%d units known)", o.unit, len(units))
	}
	return addr, nil
}

func describe(seq int, from net.Addr, b []byte, rtt time.Duration) string {
	m, err := heartbeat.Decode(b)
	if err != nil {
		return fmt.Sprintf("seq=%d from=%s undecodable reply (%d bytes): %v", seq, from, len(b), err)
	}
	line := fmt.Sprintf("seq=%d from=%s unit=%s kind=%s rtt=%s", seq, from, m.Sender, m.Kind, rtt.Round(time.Microsecond))
	name, s, err := status.Parse(m.Kind, m.Payload)
	if err != nil {
		return line + fmt.Sprintf(" payload=%x (%v)", m.Payload, err)
	}
	if m.Kind == heartbeat.NotValid {
		return line
	}
	line += fmt.Sprintf(" name=%q status=%s pos=(%d,%d,%d) heading=%d speed=%d",
		name, s.Status, s.X, s.Y, s.Z, s.Heading, s.Speed)
	if m.Kind == heartbeat.Following {
		line += fmt.Sprintf(" pid=(%g,%g,%g) err=%g angle=%g", s.PID.Kp, s.PID.Ki, s.PID.Kd, s.PID.Error, s.PID.Angle)
	}
	return line
}
