package heartbeat

import (
	"fmt"

	"github.com/google/uuid"
)

// Encode lays the message out in wire order. Length is always recomputed.
func Encode(m Message) ([]byte, error) {
	if len(m.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload %d bytes, max %d", ErrEncodingOverflow, len(m.Payload), MaxPayload)
	}
	n := HeaderSize + len(m.Payload)
	buf := make([]byte, n)
	buf[0] = m.Preamble
	copy(buf[1:12], m.Tag[:])
	buf[LengthOffset] = byte(n)
	copy(buf[13:29], m.Sender[:])
	copy(buf[29:45], m.Receiver[:])
	buf[45] = byte(m.Kind)
	copy(buf[HeaderSize:], m.Payload)
	return buf, nil
}

// Decode checks the declared length against len(b) before interpreting any
// field. Preamble, tag and kind are not validated here; see Validate.
func Decode(b []byte) (Message, error) {
	if len(b) <= LengthOffset {
		return Message{}, fmt.Errorf("%w: %d bytes, no length field", ErrFraming, len(b))
	}
	if declared := int(b[LengthOffset]); declared != len(b) {
		return Message{}, fmt.Errorf("%w: declared %d, got %d", ErrFraming, declared, len(b))
	}
	if len(b) < HeaderSize {
		return Message{}, fmt.Errorf("%w: %d bytes, header is %d", ErrFraming, len(b), HeaderSize)
	}

	var m Message
	m.Preamble = b[0]
	copy(m.Tag[:], b[1:12])
	m.Length = b[LengthOffset]
	m.Sender = uuid.UUID(b[13:29])
	m.Receiver = uuid.UUID(b[29:45])
	m.Kind = MessageKind(b[45])
	if len(b) > HeaderSize {
		m.Payload = append([]byte(nil), b[HeaderSize:]...)
	}
	return m, nil
}

// Validate applies the protocol checks the unit performs before acting on a
// decoded frame.
func Validate(m Message, tag Tag) error {
	if m.Preamble != Preamble {
		return fmt.Errorf("%w: preamble 0x%02x", ErrProtocolMismatch, m.Preamble)
	}
	if m.Tag != tag {
		return fmt.Errorf("%w: tag %s", ErrProtocolMismatch, m.Tag)
	}
	if m.Kind != Hello {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, m.Kind)
	}
	return nil
}
