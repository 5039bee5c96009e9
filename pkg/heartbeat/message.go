package heartbeat

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const (
	// Preamble is the first byte of every frame.
	Preamble byte = 0x10

	HeaderSize   = 46
	MaxFrameSize = 255
	MaxPayload   = MaxFrameSize - HeaderSize

	LengthOffset = 12
	TagSize      = 11
)

type MessageKind uint8

const (
	NotValid   MessageKind = 0x00
	Hello      MessageKind = 0x01 // peer liveness probe, inbound only
	Here       MessageKind = 0x02
	SetupError MessageKind = 0x03
	Moving     MessageKind = 0x04
	// 0x05 was "broken" in earlier firmware and is no longer sent.
	ObstacleCommError MessageKind = 0x06
	Following         MessageKind = 0x07
	EStop             MessageKind = 0x08
)

func (k MessageKind) String() string {
	switch k {
	case NotValid:
		return "not_valid"
	case Hello:
		return "hello"
	case Here:
		return "here"
	case SetupError:
		return "setup_error"
	case Moving:
		return "moving"
	case ObstacleCommError:
		return "obstacle_comm_error"
	case Following:
		return "following"
	case EStop:
		return "estop"
	default:
		return fmt.Sprintf("kind(0x%02x)", uint8(k))
	}
}

// Tag is the magic sequence identifying the protocol family.
type Tag [TagSize]byte

// DefaultTag is the sequence shipped in the unit firmware. AltTag carries the
// other first byte seen in deployed peers; pick one through configuration.
var (
	DefaultTag = Tag{0x68, 0x7A, 0x7A, 0x79, 0x6D, 0x65, 0x73, 0x73, 0x61, 0x67, 0x65}
	AltTag     = Tag{0x69, 0x7A, 0x7A, 0x79, 0x6D, 0x65, 0x73, 0x73, 0x61, 0x67, 0x65}
)

// ParseTag accepts an 11-character ASCII string or 22 hex digits.
func ParseTag(s string) (Tag, error) {
	var t Tag
	switch len(s) {
	case TagSize:
		copy(t[:], s)
		return t, nil
	case TagSize * 2:
		b, err := hex.DecodeString(s)
		if err != nil {
			return t, fmt.Errorf("protocol tag %q: %w", s, err)
		}
		copy(t[:], b)
		return t, nil
	default:
		return t, fmt.Errorf("protocol tag %q: want %d ascii bytes or %d hex digits", s, TagSize, TagSize*2)
	}
}

func (t Tag) String() string { return hex.EncodeToString(t[:]) }

// Message is one heartbeat frame. Length mirrors the total length byte and is
// filled in by Decode; Encode computes it from the payload.
type Message struct {
	Preamble byte
	Tag      Tag
	Length   uint8
	Sender   uuid.UUID
	Receiver uuid.UUID
	Kind     MessageKind
	Payload  []byte
}

// NewReply builds an outbound message from this unit to the bound peer.
func NewReply(self, peer uuid.UUID, tag Tag, kind MessageKind, payload []byte) Message {
	return Message{
		Preamble: Preamble,
		Tag:      tag,
		Sender:   self,
		Receiver: peer,
		Kind:     kind,
		Payload:  payload,
	}
}
