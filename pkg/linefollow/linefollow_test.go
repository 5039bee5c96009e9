package linefollow

import (
	"errors"
	"math"
	"testing"

	"github.com/ryandielhenn/izzy/pkg/status"
)

func fixed(v int) AnalogInput {
	return AnalogFunc(func() (int, error) { return v, nil })
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

const slope = float64(DefaultOffsetMM) / (DefaultMax - DefaultMin)

func TestSensorDefaults(t *testing.T) {
	s := NewSensor(fixed(9000))
	if !near(s.Slope(), slope) {
		t.Fatalf("slope = %v, want %v", s.Slope(), slope)
	}
	v, err := s.Read()
	if err != nil || v != 9000 {
		t.Fatalf("read = %v,%v", v, err)
	}
	if !s.Detected(9000) || s.Detected(6000) || s.Detected(17000) || s.Detected(100) {
		t.Fatalf("detection window wrong")
	}
	if err := s.Calibrate(5000, 5000); err == nil {
		t.Fatalf("expected calibration error")
	}
	s.Calibrate(1000, 2000)
	s.SetOffset(10)
	if !near(s.Slope(), 0.01) {
		t.Fatalf("slope after calibrate = %v", s.Slope())
	}
}

func TestXError(t *testing.T) {
	mk := func(n int) *Array {
		ss := make([]*Sensor, n)
		for i := range ss {
			ss[i] = NewSensor(fixed(0))
		}
		return NewArray(DefaultYOffset, ss...)
	}
	cases := []struct {
		readings []float64
		want     float64
	}{
		{[]float64{9000, 12000}, 3000 * slope},
		{[]float64{12000, 9000}, -3000 * slope},
		{[]float64{1, 2, 3, 4}, 4 * slope},
		{[]float64{1000, 2000, 3000}, 4000 * slope},
		{[]float64{3000, 2000, 1000}, -4000 * slope},
		{[]float64{5}, -5 * slope},
	}
	for _, c := range cases {
		if got := mk(len(c.readings)).XError(c.readings); !near(got, c.want) {
			t.Fatalf("XError(%v) = %v, want %v", c.readings, got, c.want)
		}
	}
}

func TestArraySampleAndDetect(t *testing.T) {
	a := NewArray(DefaultYOffset, NewSensor(fixed(5000)), NewSensor(fixed(9000)))
	r, err := a.Sample()
	if err != nil || r[0] != 5000 || r[1] != 9000 {
		t.Fatalf("sample = %v,%v", r, err)
	}
	if !a.LineDetected(r) {
		t.Fatalf("line not detected")
	}
	if a.LineDetected([]float64{100, 100}) {
		t.Fatalf("line detected on blank floor")
	}

	broken := NewArray(DefaultYOffset, NewSensor(AnalogFunc(func() (int, error) { return 0, errors.New("i2c nack") })))
	if _, err := broken.Sample(); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestPID(t *testing.T) {
	p := NewPID()
	if p.Kp != 1 || p.Ki != 0 || p.Kd != 0 {
		t.Fatalf("defaults = %#v", p)
	}
	p.Tune(1, 0.5, 2)
	if v := p.Calculate(2); !near(v, 6) {
		t.Fatalf("first output = %v, want 6", v)
	}
	if v := p.Calculate(4); !near(v, 9) {
		t.Fatalf("second output = %v, want 9", v)
	}
	if p.Error() != 4 {
		t.Fatalf("error = %v", p.Error())
	}

	p.Reset()
	if p.Kp != 1 || p.Ki != 0 || p.Kd != 0 || p.Value() != 0 || p.Calculate(3) != 3 {
		t.Fatalf("reset left state behind: %#v", p)
	}
}

func TestErrorAngle(t *testing.T) {
	p := NewPID()
	p.Calculate(88)
	if a := p.ErrorAngle(88); !near(a, -45) {
		t.Fatalf("angle = %v, want -45", a)
	}
}

type turns struct{ inc, speed []int16 }

func (tr *turns) IncreaseTurnAt(inc, speed int16) error {
	tr.inc = append(tr.inc, inc)
	tr.speed = append(tr.speed, speed)
	return nil
}

func TestFollowerStep(t *testing.T) {
	tel := status.NewTelemetry(status.Available)
	tr := &turns{}
	arr := NewArray(DefaultYOffset, NewSensor(fixed(9000)), NewSensor(fixed(12000)))
	f := NewFollower(arr, tr, tel, nil)

	if err := f.Step(); err != nil || len(tr.inc) != 0 {
		t.Fatalf("stopped follower stepped: %v %v", err, tr.inc)
	}

	f.Start(20)
	if tel.Status() != status.Following {
		t.Fatalf("status = %s, want following", tel.Status())
	}
	if err := f.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	// x error 6.27mm at 88mm ahead is about 4.08 degrees
	if len(tr.inc) != 1 || tr.inc[0] != 4 || tr.speed[0] != 20 {
		t.Fatalf("turns = %v at %v", tr.inc, tr.speed)
	}

	s := tel.Snapshot()
	if s.PID.Kp != 1 || math.Abs(float64(s.PID.Error)-3000*slope) > 1e-4 {
		t.Fatalf("pid telemetry = %#v", s.PID)
	}
	if s.PID.Angle > -4 || s.PID.Angle < -4.2 {
		t.Fatalf("angle telemetry = %v", s.PID.Angle)
	}
	if s.Sensors[status.LeftSensor].Reading != 9000 || s.Sensors[status.RightSensor].Reading != 12000 {
		t.Fatalf("sensor telemetry = %#v", s.Sensors)
	}
	if s.Sensors[status.LeftSensor].Min != DefaultMin || s.Sensors[status.RightSensor].Max != DefaultMax {
		t.Fatalf("sensor calibration = %#v", s.Sensors)
	}

	f.Stop()
	if tel.Status() != status.Available {
		t.Fatalf("status after stop = %s", tel.Status())
	}
}

func TestFollowerLineLost(t *testing.T) {
	tel := status.NewTelemetry(status.Available)
	tr := &turns{}
	f := NewFollower(NewArray(DefaultYOffset, NewSensor(fixed(100)), NewSensor(fixed(100))), tr, tel, nil)
	f.Start(10)
	if err := f.Step(); !errors.Is(err, ErrLineLost) {
		t.Fatalf("err = %v, want ErrLineLost", err)
	}
	if len(tr.inc) != 0 {
		t.Fatalf("turned with no line: %v", tr.inc)
	}
}

func TestStopKeepsEStop(t *testing.T) {
	tel := status.NewTelemetry(status.Available)
	f := NewFollower(NewArray(DefaultYOffset), &turns{}, tel, nil)
	f.Start(10)
	tel.SetStatus(status.EStop)
	f.Stop()
	if tel.Status() != status.EStop {
		t.Fatalf("stop cleared estop: %s", tel.Status())
	}
}

func TestTunePublishes(t *testing.T) {
	tel := status.NewTelemetry(status.Available)
	f := NewFollower(NewArray(DefaultYOffset, NewSensor(fixed(0))), &turns{}, tel, nil)
	f.Tune(2, 0.5, 0.25)
	if p := tel.Snapshot().PID; p.Kp != 2 || p.Ki != 0.5 || p.Kd != 0.25 {
		t.Fatalf("pid telemetry = %#v", p)
	}
	f.Reset()
	if p := tel.Snapshot().PID; p.Kp != 1 || p.Ki != 0 {
		t.Fatalf("pid after reset = %#v", p)
	}
}
