package linefollow

import "math"

// PID is a discrete PID controller over the array's x error.
type PID struct {
	Kp, Ki, Kd float64

	err   float64
	total float64
	prev  float64
	value float64
}

// NewPID returns a controller with the default gains kp=1, ki=0, kd=0.
func NewPID() *PID { return &PID{Kp: 1} }

// Calculate feeds one error sample and returns the controller output.
func (p *PID) Calculate(xErr float64) float64 {
	p.err = xErr
	p.value = p.Kp*p.err + p.Ki*p.total + p.Kd*(p.err-p.prev)
	p.total += p.err
	p.prev = p.err
	return p.value
}

// ErrorAngle converts the last output into a steering angle in degrees for a
// sensor row yOffset ahead of the turning center. Positive output steers
// counterclockwise.
func (p *PID) ErrorAngle(yOffset float64) float64 {
	return -math.Atan(p.value/yOffset) * 180 / math.Pi
}

func (p *PID) Tune(kp, ki, kd float64) { p.Kp, p.Ki, p.Kd = kp, ki, kd }

// Reset clears the accumulated state and restores the default gains.
func (p *PID) Reset() { *p = PID{Kp: 1} }

func (p *PID) Error() float64 { return p.err }
func (p *PID) Value() float64 { return p.value }
