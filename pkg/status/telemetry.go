package status

import "sync"

// Sensor is one line sensor's calibration bounds and live reading.
type Sensor struct {
	Min     float32 `json:"min"`
	Max     float32 `json:"max"`
	Reading float32 `json:"reading"`
}

// PID is the line follower's controller state as reported to the peer.
type PID struct {
	Kp    float32 `json:"kp"`
	Ki    float32 `json:"ki"`
	Kd    float32 `json:"kd"`
	Error float32 `json:"error"`
	Angle float32 `json:"angle"` // steering error angle, degrees
}

const (
	LeftSensor  = 0
	RightSensor = 1
)

// Snapshot is a consistent copy of the telemetry at one instant.
type Snapshot struct {
	Status  UnitStatus `json:"status"`
	X       int16      `json:"x"`
	Y       int16      `json:"y"`
	Z       int16      `json:"z"`
	Heading int16      `json:"heading"`
	Speed   int16      `json:"speed"`
	PID     PID        `json:"pid"`
	Sensors [2]Sensor  `json:"sensors"`
}

// Telemetry is the shared handle written by the motion and line-following
// collaborators and read by the heartbeat pipeline. Each field group has one
// writer: the control layer owns the status, the drive owns pose and speed,
// the follower owns PID and sensor values.
type Telemetry struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewTelemetry(initial UnitStatus) *Telemetry {
	return &Telemetry{snap: Snapshot{Status: initial}}
}

func (t *Telemetry) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

func (t *Telemetry) Status() UnitStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Status
}

func (t *Telemetry) SetStatus(s UnitStatus) {
	t.mu.Lock()
	t.snap.Status = s
	t.mu.Unlock()
}

func (t *Telemetry) SetPosition(x, y, z int16) {
	t.mu.Lock()
	t.snap.X, t.snap.Y, t.snap.Z = x, y, z
	t.mu.Unlock()
}

func (t *Telemetry) SetHeading(h int16) {
	t.mu.Lock()
	t.snap.Heading = h
	t.mu.Unlock()
}

// AddHeading applies a relative turn and returns the new heading.
func (t *Telemetry) AddHeading(delta int16) int16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Heading += delta
	return t.snap.Heading
}

func (t *Telemetry) SetSpeed(v int16) {
	t.mu.Lock()
	t.snap.Speed = v
	t.mu.Unlock()
}

// AddSpeed applies a relative speed change and returns the new speed.
func (t *Telemetry) AddSpeed(delta int16) int16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Speed += delta
	return t.snap.Speed
}

func (t *Telemetry) SetPID(p PID) {
	t.mu.Lock()
	t.snap.PID = p
	t.mu.Unlock()
}

// SetSensor records sensor i (LeftSensor or RightSensor).
func (t *Telemetry) SetSensor(i int, s Sensor) {
	if i < LeftSensor || i > RightSensor {
		return
	}
	t.mu.Lock()
	t.snap.Sensors[i] = s
	t.mu.Unlock()
}
