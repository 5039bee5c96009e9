package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ryandielhenn/izzy/internal/telemetry"
	"github.com/ryandielhenn/izzy/pkg/heartbeat"
	"github.com/ryandielhenn/izzy/pkg/session"
	"github.com/ryandielhenn/izzy/pkg/status"
	"github.com/ryandielhenn/izzy/pkg/transport"
)

type Options struct {
	ID   uuid.UUID
	Name string
	Tag  heartbeat.Tag
	// ReplyPort overrides the destination port of replies; 0 keeps the
	// source port of the Hello.
	ReplyPort   int
	SendTimeout time.Duration
	Logger      *zap.Logger
}

// Node is the unit's heartbeat endpoint: a receiver that decodes datagrams
// and a processor that answers Hellos with status replies.
type Node struct {
	id          uuid.UUID
	name        string
	tag         heartbeat.Tag
	replyPort   int
	sendTimeout time.Duration

	conn    transport.Conn
	tracker *session.Tracker
	tel     *status.Telemetry
	q       *queue

	log     *zap.Logger
	dropLog *rate.Limiter
}

func New(conn transport.Conn, tracker *session.Tracker, tel *status.Telemetry, opts Options) *Node {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		id:          opts.ID,
		name:        opts.Name,
		tag:         opts.Tag,
		replyPort:   opts.ReplyPort,
		sendTimeout: opts.SendTimeout,
		conn:        conn,
		tracker:     tracker,
		tel:         tel,
		q:           newQueue(),
		log:         log.With(zap.String("unit", opts.ID.String())),
		// bursts of garbage log at warn for the first few, debug after
		dropLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (n *Node) ID() uuid.UUID { return n.id }

// Run starts the receiver and processor and blocks until ctx is done or the
// transport is closed.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.log.Info("heartbeat listening", zap.Stringer("addr", n.conn.LocalAddr()), zap.String("name", n.name))

	var wg sync.WaitGroup
	var recvErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		recvErr = n.receive(ctx)
	}()
	go func() {
		defer wg.Done()
		n.processLoop(ctx)
	}()
	wg.Wait()

	if errors.Is(recvErr, context.Canceled) || errors.Is(recvErr, context.DeadlineExceeded) {
		return nil
	}
	return recvErr
}

// receive decodes datagrams and queues well-formed frames. It never waits on
// the processor.
func (n *Node) receive(ctx context.Context) error {
	for {
		d, err := n.conn.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, transport.ErrClosed) {
				return err
			}
			n.log.Warn("heartbeat recv", zap.Error(err))
			continue
		}
		telemetry.DatagramsReceived.Inc()

		m, err := heartbeat.Decode(d.Data)
		if err != nil {
			n.drop("framing", err, zap.Stringer("from", d.From), zap.Int("bytes", len(d.Data)))
			continue
		}
		n.q.push(inbound{msg: m, from: d.From, at: d.At})
	}
}

func (n *Node) processLoop(ctx context.Context) {
	for {
		it, ok := n.q.pop(ctx)
		if !ok {
			return
		}
		n.process(ctx, it)
	}
}

// process applies protocol checks to one frame and sends the status reply.
func (n *Node) process(ctx context.Context, it inbound) {
	start := time.Now()
	m := it.msg

	if err := heartbeat.Validate(m, n.tag); err != nil {
		reason := "protocol_mismatch"
		if errors.Is(err, heartbeat.ErrUnsupportedKind) {
			reason = "unsupported_kind"
		}
		n.drop(reason, err, zap.Stringer("from", it.from))
		return
	}

	ev, err := n.tracker.BindOrUpdate(m.Sender, it.from, it.at)
	if err != nil {
		n.drop("peer_conflict", err, zap.Stringer("from", it.from))
		return
	}
	telemetry.PeerLastContact.Set(float64(it.at.UnixNano()) / 1e9)
	if ev == session.FirstContact {
		n.log.Info("peer bound", zap.Stringer("peer", m.Sender), zap.Stringer("addr", it.from))
	}

	frame, kind, err := n.reply(m.Sender)
	if err != nil {
		n.drop("overflow", err, zap.Stringer("peer", m.Sender))
		return
	}

	to := transport.WithPort(it.from, n.replyPort)
	sctx := ctx
	if n.sendTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, n.sendTimeout)
		defer cancel()
	}
	if err := n.conn.Send(sctx, to, frame); err != nil {
		telemetry.SendErrors.Inc()
		n.log.Warn("reply send failed", zap.Stringer("to", to), zap.Error(err))
		return
	}
	telemetry.RepliesSent.WithLabelValues(kind.String()).Inc()
	telemetry.ProcessDuration.Observe(time.Since(start).Seconds())
	n.log.Debug("reply sent",
		zap.Stringer("to", to),
		zap.Stringer("kind", kind),
		zap.String("event", ev.String()),
		zap.Int("bytes", len(frame)))
}

// reply renders the current telemetry for peer. A payload too large for the
// frame falls back to the baseline payload with the same kind.
func (n *Node) reply(peer uuid.UUID) ([]byte, heartbeat.MessageKind, error) {
	snap := n.tel.Snapshot()
	kind, payload := status.Build(n.name, snap)

	frame, err := heartbeat.Encode(heartbeat.NewReply(n.id, peer, n.tag, kind, payload))
	if errors.Is(err, heartbeat.ErrEncodingOverflow) {
		n.log.Warn("status payload too large, sending baseline", zap.Stringer("kind", kind), zap.Int("bytes", len(payload)))
		frame, err = heartbeat.Encode(heartbeat.NewReply(n.id, peer, n.tag, kind, status.Baseline(n.name, snap)))
	}
	return frame, kind, err
}

func (n *Node) drop(reason string, err error, fields ...zap.Field) {
	telemetry.Dropped.WithLabelValues(reason).Inc()
	fields = append(fields, zap.String("reason", reason), zap.Error(err))
	if n.dropLog.Allow() {
		n.log.Warn("heartbeat frame dropped", fields...)
		return
	}
	n.log.Debug("heartbeat frame dropped", fields...)
}
