package linefollow

import "errors"

// Array is a row of sensors ordered left to right, mounted YOffsetMM ahead
// of the unit's turning center.
type Array struct {
	YOffsetMM float64
	Sensors   []*Sensor
}

func NewArray(yOffsetMM float64, sensors ...*Sensor) *Array {
	return &Array{YOffsetMM: yOffsetMM, Sensors: sensors}
}

// Sample reads every sensor once.
func (a *Array) Sample() ([]float64, error) {
	out := make([]float64, len(a.Sensors))
	var errs []error
	for i, s := range a.Sensors {
		v, err := s.Read()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[i] = v
	}
	return out, errors.Join(errs...)
}

// LineDetected reports whether any sensor sees the line.
func (a *Array) LineDetected(readings []float64) bool {
	for i, s := range a.Sensors {
		if i < len(readings) && s.Detected(readings[i]) {
			return true
		}
	}
	return false
}

// XError is the lateral offset from the line: the right half's weighted
// readings minus the left half's. With an odd count the center sensor adds
// to whichever side is already larger.
func (a *Array) XError(readings []float64) float64 {
	n := len(a.Sensors)
	if len(readings) < n {
		n = len(readings)
	}
	var neg, pos float64
	half := n / 2
	for i := 0; i < half; i++ {
		neg += readings[i] * a.Sensors[i].Slope()
	}
	right := half
	if n%2 == 1 {
		right = half + 1
	}
	for i := right; i < n; i++ {
		pos += readings[i] * a.Sensors[i].Slope()
	}
	if n%2 == 1 {
		c := readings[half] * a.Sensors[half].Slope()
		if neg >= pos {
			neg += c
		} else {
			pos += c
		}
	}
	return pos - neg
}
