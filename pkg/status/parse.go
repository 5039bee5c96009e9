package status

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ryandielhenn/izzy/pkg/heartbeat"
)

// ErrMalformedPayload is returned by Parse for payloads no unit renders.
var ErrMalformedPayload = errors.New("status: malformed payload")

const (
	baselineTail  = 1 + 1 + 5*3
	followingTail = followingFields * 5
)

// Parse reads a reply payload back into the unit name and snapshot. The
// name is located from the end since it may itself contain delimiters. A
// Following reply that fell back to the baseline parses with zero PID and
// sensor values.
func Parse(kind heartbeat.MessageKind, p []byte) (string, Snapshot, error) {
	switch kind {
	case heartbeat.NotValid:
		if len(p) != 0 {
			return "", Snapshot{}, fmt.Errorf("%w: %d bytes in NotValid reply", ErrMalformedPayload, len(p))
		}
		return "", Snapshot{}, nil
	case heartbeat.Here, heartbeat.Moving, heartbeat.EStop:
		return parseBaseline(p)
	case heartbeat.Following:
		if len(p) >= baselineTail+followingTail && hasFloatTail(p[len(p)-followingTail:]) {
			name, s, err := parseBaseline(p[:len(p)-followingTail])
			if err == nil {
				parseFloats(p[len(p)-followingTail:], &s)
				return name, s, nil
			}
		}
		return parseBaseline(p)
	default:
		return "", Snapshot{}, fmt.Errorf("%w: kind %s carries no status", ErrMalformedPayload, kind)
	}
}

func parseBaseline(p []byte) (string, Snapshot, error) {
	if len(p) < baselineTail {
		return "", Snapshot{}, fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(p))
	}
	name, tail := p[:len(p)-baselineTail], p[len(p)-baselineTail:]
	if tail[0] != Delimiter || tail[1] < '0' || tail[1] > '9' {
		return "", Snapshot{}, fmt.Errorf("%w: bad status field", ErrMalformedPayload)
	}
	s := Snapshot{Status: UnitStatus(tail[1] - '0')}
	fields := []*int16{&s.X, &s.Y, &s.Z, &s.Heading, &s.Speed}
	for i, f := range fields {
		off := 2 + i*3
		if tail[off] != Delimiter {
			return "", Snapshot{}, fmt.Errorf("%w: missing delimiter at field %d", ErrMalformedPayload, i)
		}
		*f = int16(binary.BigEndian.Uint16(tail[off+1 : off+3]))
	}
	return string(name), s, nil
}

func hasFloatTail(p []byte) bool {
	for i := 0; i < followingFields; i++ {
		if p[i*5] != Delimiter {
			return false
		}
	}
	return true
}

func parseFloats(p []byte, s *Snapshot) {
	v := func(i int) float32 { return math.Float32frombits(binary.BigEndian.Uint32(p[i*5+1 : i*5+5])) }
	s.PID = PID{Kp: v(0), Ki: v(1), Kd: v(2), Error: v(3), Angle: v(4)}
	for i := range s.Sensors {
		s.Sensors[i] = Sensor{Min: v(5 + i*3), Max: v(6 + i*3), Reading: v(7 + i*3)}
	}
}
