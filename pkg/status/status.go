// Package status holds the unit's operating mode and live telemetry, and
// renders them into heartbeat reply payloads.
package status

import (
	"fmt"
	"strconv"
)

// UnitStatus is the unit's own operating mode.
type UnitStatus uint8

const (
	Unknown UnitStatus = iota
	Missing
	Available
	Moving
	Following
	EStop
	Broken
	Unverified
)

func (s UnitStatus) String() string {
	switch s {
	case Missing:
		return "missing"
	case Available:
		return "available"
	case Moving:
		return "moving"
	case Following:
		return "following"
	case EStop:
		return "estop"
	case Broken:
		return "broken"
	case Unverified:
		return "unverified"
	default:
		return "unknown"
	}
}

// Code is the single status byte carried in reply payloads: the ASCII digit
// of the status value.
func (s UnitStatus) Code() byte {
	return strconv.Itoa(int(s))[0]
}

// MarshalText encodes the status by name, so JSON carries "available"
// rather than 2.
func (s UnitStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *UnitStatus) UnmarshalText(b []byte) error {
	if string(b) == Unknown.String() {
		*s = Unknown
		return nil
	}
	v, ok := ParseStatus(string(b))
	if !ok {
		return fmt.Errorf("status: unknown name %q", b)
	}
	*s = v
	return nil
}

// ParseStatus maps a status name back to its value.
func ParseStatus(name string) (UnitStatus, bool) {
	for s := Missing; s <= Unverified; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return Unknown, false
}
