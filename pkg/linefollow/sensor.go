// Package linefollow steers the unit along a floor line using an array of
// analog line sensors and a PID loop.
package linefollow

import (
	"fmt"
	"sync"
)

// Sensor defaults for the unit's reflectance sensors.
const (
	DefaultOffsetMM = 23
	DefaultMin      = 6000
	DefaultMax      = 17000
	DefaultYOffset  = 88
)

// AnalogInput is one ADC channel. Readings are raw 16-bit counts.
type AnalogInput interface {
	Read() (int, error)
}

// AnalogFunc adapts a function to AnalogInput.
type AnalogFunc func() (int, error)

func (f AnalogFunc) Read() (int, error) { return f() }

// Sensor is a calibrated line sensor. The slope scales a reading to a
// distance in millimeters from the unit's center line.
type Sensor struct {
	in AnalogInput

	mu       sync.Mutex
	offsetMM float64
	min      float64
	max      float64
	slope    float64
	last     float64
}

func NewSensor(in AnalogInput) *Sensor {
	s := &Sensor{in: in, offsetMM: DefaultOffsetMM, min: DefaultMin, max: DefaultMax}
	s.slope = s.offsetMM / (s.max - s.min)
	return s
}

// Calibrate sets the readings seen farthest from (min) and on (max) the line.
func (s *Sensor) Calibrate(lo, hi float64) error {
	if hi <= lo {
		return fmt.Errorf("linefollow: calibration max %v must exceed min %v", hi, lo)
	}
	s.mu.Lock()
	s.min, s.max = lo, hi
	s.slope = s.offsetMM / (s.max - s.min)
	s.mu.Unlock()
	return nil
}

// SetOffset sets the distance from the unit's center to the sensor.
func (s *Sensor) SetOffset(mm float64) {
	s.mu.Lock()
	s.offsetMM = mm
	s.slope = s.offsetMM / (s.max - s.min)
	s.mu.Unlock()
}

func (s *Sensor) Slope() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slope
}

// Read samples the input and remembers the value.
func (s *Sensor) Read() (float64, error) {
	v, err := s.in.Read()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.last = float64(v)
	s.mu.Unlock()
	return float64(v), nil
}

// Detected reports whether reading lies strictly inside the calibration
// window.
func (s *Sensor) Detected(reading float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return reading > s.min && reading < s.max
}

// State returns calibration and the last reading.
func (s *Sensor) State() (lo, hi, last float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.min, s.max, s.last
}
