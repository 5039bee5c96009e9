package heartbeat

import "errors"

var (
	// ErrFraming: declared length disagrees with the received byte count.
	ErrFraming = errors.New("heartbeat: framing error")
	// ErrProtocolMismatch: wrong preamble or protocol tag.
	ErrProtocolMismatch = errors.New("heartbeat: protocol mismatch")
	// ErrUnsupportedKind: well-formed frame the unit does not act on.
	ErrUnsupportedKind = errors.New("heartbeat: unsupported message kind")
	// ErrPeerConflict: sender differs from the bound peer.
	ErrPeerConflict = errors.New("heartbeat: peer conflict")
	// ErrEncodingOverflow: payload does not fit the 1-byte length field.
	ErrEncodingOverflow = errors.New("heartbeat: encoding overflow")
)
