package node

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ryandielhenn/izzy/internal/telemetry"
	"github.com/ryandielhenn/izzy/pkg/heartbeat"
	"github.com/ryandielhenn/izzy/pkg/session"
	"github.com/ryandielhenn/izzy/pkg/status"
	"github.com/ryandielhenn/izzy/pkg/transport/mem"
)

var (
	unitID  = uuid.MustParse("aaaaaaaa-0000-4000-8000-000000000001")
	senderS = uuid.MustParse("5e5e5e5e-1111-4222-8333-444455556666")
	senderT = uuid.MustParse("7a7a7a7a-1111-4222-8333-444455556666")
	mother  = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 9000}
)

type harness struct {
	conn    *mem.Conn
	tracker *session.Tracker
	tel     *status.Telemetry
	node    *Node
	done    chan error
	cancel  context.CancelFunc
}

func start(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.ID == uuid.Nil {
		opts.ID = unitID
	}
	if opts.Name == "" {
		opts.Name = "izzy"
	}
	if opts.Tag == (heartbeat.Tag{}) {
		opts.Tag = heartbeat.DefaultTag
	}
	h := &harness{
		conn:    mem.New("unit:9001"),
		tracker: session.NewTracker(0),
		tel:     status.NewTelemetry(status.Available),
		done:    make(chan error, 1),
	}
	h.tel.SetPosition(1, 2, 3)
	h.tel.SetHeading(4)
	h.tel.SetSpeed(5)
	h.node = New(h.conn, h.tracker, h.tel, opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.node.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-h.done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("Run did not stop")
		}
	})
	return h
}

func hello(sender uuid.UUID) []byte {
	b, err := heartbeat.Encode(heartbeat.Message{
		Preamble: heartbeat.Preamble,
		Tag:      heartbeat.DefaultTag,
		Sender:   sender,
		Kind:     heartbeat.Hello,
	})
	if err != nil {
		panic(err)
	}
	return b
}

func (h *harness) next(t *testing.T) mem.Sent {
	t.Helper()
	select {
	case s := <-h.conn.Sent():
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("no reply sent")
		return mem.Sent{}
	}
}

func (h *harness) none(t *testing.T) {
	t.Helper()
	select {
	case s := <-h.conn.Sent():
		t.Fatalf("unexpected reply to %s: %x", s.To, s.Data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHelloGetsHereReply(t *testing.T) {
	h := start(t, Options{})
	h.conn.Deliver(mother, hello(senderS))

	s := h.next(t)
	if s.To.String() != "10.0.0.5:9000" {
		t.Fatalf("reply to %s, want 10.0.0.5:9000", s.To)
	}
	m, err := heartbeat.Decode(s.Data)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if m.Kind != heartbeat.Here || m.Sender != unitID || m.Receiver != senderS {
		t.Fatalf("reply header = kind %s sender %s receiver %s", m.Kind, m.Sender, m.Receiver)
	}
	if m.Preamble != heartbeat.Preamble || m.Tag != heartbeat.DefaultTag {
		t.Fatalf("reply framing = 0x%02x %s", m.Preamble, m.Tag)
	}
	want := []byte("izzy,2,\x00\x01,\x00\x02,\x00\x03,\x00\x04,\x00\x05")
	if !bytes.Equal(m.Payload, want) {
		t.Fatalf("payload = %q, want %q", m.Payload, want)
	}

	p, ok := h.tracker.Peer(time.Now())
	if !ok || p.ID != senderS {
		t.Fatalf("tracker peer = %#v,%v", p, ok)
	}
}

func TestMalformedDatagramGetsNoReply(t *testing.T) {
	h := start(t, Options{})
	h.conn.Deliver(mother, make([]byte, 10))
	h.none(t)

	// pipeline still alive
	h.conn.Deliver(mother, hello(senderS))
	h.next(t)
}

func TestRejectedFramesGetNoReply(t *testing.T) {
	h := start(t, Options{})

	badPreamble := hello(senderS)
	badPreamble[0] = 0x11
	badTag := hello(senderS)
	badTag[1] = 0x69
	here, _ := heartbeat.Encode(heartbeat.Message{
		Preamble: heartbeat.Preamble, Tag: heartbeat.DefaultTag, Sender: senderS, Kind: heartbeat.Here,
	})
	for _, b := range [][]byte{badPreamble, badTag, here} {
		h.conn.Deliver(mother, b)
	}
	h.none(t)
	if _, ok := h.tracker.Peer(time.Now()); ok {
		t.Fatalf("rejected frames bound a peer")
	}
}

func TestConflictingSenderIgnored(t *testing.T) {
	h := start(t, Options{})
	h.conn.Deliver(mother, hello(senderS))
	h.next(t)

	h.conn.Deliver(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 9000}, hello(senderT))
	h.none(t)

	h.tracker.Reset()
	h.conn.Deliver(mother, hello(senderT))
	m, _ := heartbeat.Decode(h.next(t).Data)
	if m.Receiver != senderT {
		t.Fatalf("receiver after reset = %s, want %s", m.Receiver, senderT)
	}
}

func TestRepliesKeepArrivalOrder(t *testing.T) {
	h := start(t, Options{})
	const n = 32
	for i := 0; i < n; i++ {
		h.conn.Deliver(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 9000 + i}, hello(senderS))
	}
	for i := 0; i < n; i++ {
		s := h.next(t)
		if got := s.To.(*net.UDPAddr).Port; got != 9000+i {
			t.Fatalf("reply %d went to port %d, want %d", i, got, 9000+i)
		}
	}
}

func TestIntakeContinuesWhileProcessorStalls(t *testing.T) {
	h := start(t, Options{})

	// Sent is never read below, so the processor blocks once the 64-slot
	// outbound buffer fills; the receiver must keep queueing.
	const n = 200
	for i := 0; i < n; i++ {
		h.conn.Deliver(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 9000 + i}, hello(senderS))
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.node.q.len() < n-64-1 {
		if time.Now().After(deadline) {
			t.Fatalf("queue depth = %d, receiver stopped taking frames", h.node.q.len())
		}
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < n; i++ {
		s := h.next(t)
		if got := s.To.(*net.UDPAddr).Port; got != 9000+i {
			t.Fatalf("reply %d went to port %d, want %d", i, got, 9000+i)
		}
	}
	if d := h.node.q.len(); d != 0 {
		t.Fatalf("queue depth after drain = %d", d)
	}
}

func TestReplyPortOverride(t *testing.T) {
	h := start(t, Options{ReplyPort: 9100})
	h.conn.Deliver(mother, hello(senderS))
	if s := h.next(t); s.To.String() != "10.0.0.5:9100" {
		t.Fatalf("reply to %s, want 10.0.0.5:9100", s.To)
	}
}

func TestStatusDrivesReplyKind(t *testing.T) {
	h := start(t, Options{})
	cases := []struct {
		st   status.UnitStatus
		kind heartbeat.MessageKind
	}{
		{status.Moving, heartbeat.Moving},
		{status.Following, heartbeat.Following},
		{status.EStop, heartbeat.EStop},
		{status.Broken, heartbeat.NotValid},
	}
	for _, c := range cases {
		h.tel.SetStatus(c.st)
		h.conn.Deliver(mother, hello(senderS))
		m, err := heartbeat.Decode(h.next(t).Data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m.Kind != c.kind {
			t.Fatalf("status %s: kind = %s, want %s", c.st, m.Kind, c.kind)
		}
		if c.kind == heartbeat.NotValid && len(m.Payload) != 0 {
			t.Fatalf("NotValid reply carries payload %q", m.Payload)
		}
	}
}

func TestOverflowFallsBackToBaseline(t *testing.T) {
	name := strings.Repeat("n", 170)
	h := start(t, Options{Name: name})
	h.tel.SetStatus(status.Following)
	h.conn.Deliver(mother, hello(senderS))

	m, err := heartbeat.Decode(h.next(t).Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Kind != heartbeat.Following {
		t.Fatalf("kind = %s, want following", m.Kind)
	}
	if want := status.Baseline(name, h.tel.Snapshot()); !bytes.Equal(m.Payload, want) {
		t.Fatalf("payload is not the baseline: %d bytes vs %d", len(m.Payload), len(want))
	}
}

func TestSendFailureKeepsPipelineRunning(t *testing.T) {
	h := start(t, Options{})
	h.conn.FailSends(errors.New("network unreachable"))
	h.conn.Deliver(mother, hello(senderS))
	h.none(t)

	h.conn.FailSends(nil)
	h.conn.Deliver(mother, hello(senderS))
	h.next(t)
}

func TestQueueFIFO(t *testing.T) {
	q := newQueue()
	for i := 0; i < 5; i++ {
		q.push(inbound{from: &net.UDPAddr{Port: i}})
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		it, ok := q.pop(ctx)
		if !ok || it.from.(*net.UDPAddr).Port != i {
			t.Fatalf("pop %d = %v,%v", i, it.from, ok)
		}
	}
	if q.len() != 0 {
		t.Fatalf("len = %d, want 0", q.len())
	}

	short, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	if _, ok := q.pop(short); ok {
		t.Fatalf("pop on empty queue returned an item")
	}
}

func TestQueueDepthGaugeMatchesLen(t *testing.T) {
	q := newQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const n = 500
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			q.pop(ctx)
		}
	}()
	for i := 0; i < n; i++ {
		q.push(inbound{from: mother})
	}
	<-done

	if got := testutil.ToFloat64(telemetry.QueueDepth); got != 0 || q.len() != 0 {
		t.Fatalf("gauge = %v, len = %d after draining", got, q.len())
	}
	q.push(inbound{from: mother})
	if got := testutil.ToFloat64(telemetry.QueueDepth); got != 1 {
		t.Fatalf("gauge = %v after one push", got)
	}
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := newQueue()
	got := make(chan inbound, 1)
	go func() {
		it, _ := q.pop(context.Background())
		got <- it
	}()
	time.Sleep(10 * time.Millisecond)
	q.push(inbound{from: mother})
	select {
	case it := <-got:
		if it.from != net.Addr(mother) {
			t.Fatalf("popped %v", it.from)
		}
	case <-time.After(time.Second):
		t.Fatalf("pop did not wake")
	}
}
