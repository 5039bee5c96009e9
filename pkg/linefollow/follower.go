package linefollow

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/izzy/pkg/status"
)

// ErrLineLost is returned by Step when no sensor sees the line.
var ErrLineLost = errors.New("linefollow: line lost")

// Turner applies a relative turn. motion.Drive implements it.
type Turner interface {
	IncreaseTurnAt(inc, speed int16) error
}

// Follower runs the line-following loop and publishes controller state to
// the telemetry the heartbeat reports from.
type Follower struct {
	arr  *Array
	turn Turner
	tel  *status.Telemetry
	log  *zap.Logger

	mu      sync.Mutex
	pid     *PID
	speed   int16
	running bool
}

func NewFollower(arr *Array, turn Turner, tel *status.Telemetry, log *zap.Logger) *Follower {
	if log == nil {
		log = zap.NewNop()
	}
	return &Follower{arr: arr, turn: turn, tel: tel, log: log, pid: NewPID()}
}

// Start enables stepping at speed and reports Following.
func (f *Follower) Start(speed int16) {
	f.mu.Lock()
	f.running = true
	f.speed = speed
	f.mu.Unlock()
	f.tel.SetStatus(status.Following)
	f.log.Info("line following started", zap.Int16("speed", speed))
}

// Stop disables stepping and reports Available, unless the unit has been
// estopped meanwhile.
func (f *Follower) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	if f.tel.Status() == status.Following {
		f.tel.SetStatus(status.Available)
	}
	f.log.Info("line following stopped")
}

func (f *Follower) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *Follower) SetSpeed(speed int16) {
	f.mu.Lock()
	f.speed = speed
	f.mu.Unlock()
}

func (f *Follower) Tune(kp, ki, kd float64) {
	f.mu.Lock()
	f.pid.Tune(kp, ki, kd)
	f.mu.Unlock()
	f.publish()
}

// Reset restores default PID gains and state.
func (f *Follower) Reset() {
	f.mu.Lock()
	f.pid.Reset()
	f.mu.Unlock()
	f.publish()
}

// Step samples the sensors once and issues one steering correction. A
// stopped follower does nothing.
func (f *Follower) Step() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil
	}

	readings, err := f.arr.Sample()
	if err != nil {
		return err
	}
	if !f.arr.LineDetected(readings) {
		f.publishLocked(0)
		return ErrLineLost
	}
	f.pid.Calculate(f.arr.XError(readings))
	angle := f.pid.ErrorAngle(f.arr.YOffsetMM)
	f.publishLocked(angle)

	inc := int16(math.Round(-angle))
	if inc == 0 {
		return nil
	}
	return f.turn.IncreaseTurnAt(inc, f.speed)
}

// Run steps every interval until ctx is done.
func (f *Follower) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := f.Step(); err != nil {
				f.log.Debug("line follow step", zap.Error(err))
			}
		}
	}
}

func (f *Follower) publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishLocked(f.pid.ErrorAngle(f.arr.YOffsetMM))
}

func (f *Follower) publishLocked(angle float64) {
	f.tel.SetPID(status.PID{
		Kp:    float32(f.pid.Kp),
		Ki:    float32(f.pid.Ki),
		Kd:    float32(f.pid.Kd),
		Error: float32(f.pid.Error()),
		Angle: float32(angle),
	})
	if n := len(f.arr.Sensors); n > 0 {
		f.tel.SetSensor(status.LeftSensor, sensorState(f.arr.Sensors[0]))
		f.tel.SetSensor(status.RightSensor, sensorState(f.arr.Sensors[n-1]))
	}
}

func sensorState(s *Sensor) status.Sensor {
	lo, hi, last := s.State()
	return status.Sensor{Min: float32(lo), Max: float32(hi), Reading: float32(last)}
}
