package peerwire

import "github.com/pkg/errors"

// ErrHandshakeProtocol is returned when a peer's handshake has a
// protocol-length byte or protocol string other than 19/"BitTorrent
// protocol".
var ErrHandshakeProtocol = errors.New("peerwire: unexpected handshake protocol")

// ErrHandshakeInfoHashMismatch is returned when a peer's handshake
// echoes back an info-hash different from the one we sent.
var ErrHandshakeInfoHashMismatch = errors.New("peerwire: handshake info-hash mismatch")

// ErrInvalidMessage is returned when a message frame's id byte is not
// one of the nine known kinds.
var ErrInvalidMessage = errors.New("peerwire: invalid message id")
