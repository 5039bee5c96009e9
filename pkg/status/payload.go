package status

import (
	"encoding/binary"
	"math"

	"github.com/ryandielhenn/izzy/pkg/heartbeat"
)

// Delimiter separates payload fields. It is for human inspection only.
const Delimiter byte = ','

// followingFields counts the float32 fields appended in Following replies:
// three gains, error, angle, then min, max and reading per sensor.
const followingFields = 5 + 3*2

// Report renders one operating status into a reply.
type Report interface {
	Kind() heartbeat.MessageKind
	Render(name string, s Snapshot) []byte
}

type baseline struct{ kind heartbeat.MessageKind }

func (b baseline) Kind() heartbeat.MessageKind { return b.kind }

func (b baseline) Render(name string, s Snapshot) []byte {
	return appendBaseline(make([]byte, 0, len(name)+17), name, s)
}

type following struct{}

func (following) Kind() heartbeat.MessageKind { return heartbeat.Following }

func (following) Render(name string, s Snapshot) []byte {
	buf := appendBaseline(make([]byte, 0, len(name)+17+followingFields*5), name, s)
	for _, f := range []float32{s.PID.Kp, s.PID.Ki, s.PID.Kd, s.PID.Error, s.PID.Angle} {
		buf = appendFloat(buf, f)
	}
	for _, sn := range s.Sensors {
		buf = appendFloat(buf, sn.Min)
		buf = appendFloat(buf, sn.Max)
		buf = appendFloat(buf, sn.Reading)
	}
	return buf
}

type notValid struct{}

func (notValid) Kind() heartbeat.MessageKind { return heartbeat.NotValid }

func (notValid) Render(string, Snapshot) []byte { return nil }

var reports = map[UnitStatus]Report{
	Available: baseline{heartbeat.Here},
	Moving:    baseline{heartbeat.Moving},
	Following: following{},
	EStop:     baseline{heartbeat.EStop},
}

// ReportFor returns the renderer for a status; statuses without a reply of
// their own render as NotValid with no telemetry.
func ReportFor(s UnitStatus) Report {
	if r, ok := reports[s]; ok {
		return r
	}
	return notValid{}
}

// Build selects the reply kind for the snapshot's status and renders its
// payload.
func Build(name string, s Snapshot) (heartbeat.MessageKind, []byte) {
	r := ReportFor(s.Status)
	return r.Kind(), r.Render(name, s)
}

// Baseline renders the baseline payload regardless of status. It is the
// fallback when the full payload does not fit in a frame.
func Baseline(name string, s Snapshot) []byte {
	return baseline{}.Render(name, s)
}

func appendBaseline(buf []byte, name string, s Snapshot) []byte {
	buf = append(buf, name...)
	buf = append(buf, Delimiter, s.Status.Code())
	for _, v := range []int16{s.X, s.Y, s.Z, s.Heading, s.Speed} {
		buf = append(buf, Delimiter)
		buf = binary.BigEndian.AppendUint16(buf, uint16(v))
	}
	return buf
}

func appendFloat(buf []byte, f float32) []byte {
	buf = append(buf, Delimiter)
	return binary.BigEndian.AppendUint32(buf, math.Float32bits(f))
}
