// Package heartbeat implements the wire format of the izzy liveness protocol.
// A frame is a fixed 46-byte header followed by an optional payload:
//
//	 0      preamble (0x10)
//	 1..11  protocol tag
//	12      total length, equal to the frame's byte count
//	13..28  sender id (UUID)
//	29..44  receiver id (UUID)
//	45      message kind
//	46..    payload (at most 209 bytes)
//
// The declared length is the only integrity check; there is no checksum.
//
// Typical usage:
//
//	m, err := heartbeat.Decode(buf)
//	if errors.Is(err, heartbeat.ErrFraming) {
//		// drop
//	}
//	out, err := heartbeat.Encode(heartbeat.NewReply(self, m.Sender, tag, heartbeat.Here, payload))
package heartbeat
