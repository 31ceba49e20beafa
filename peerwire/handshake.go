// Package peerwire implements the fixed 68-byte BitTorrent handshake
// and the length-prefixed post-handshake message framing.
package peerwire

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Protocol is the fixed protocol identifier string sent in every
// handshake.
const Protocol = "BitTorrent protocol"

// handshakeLen is the total wire size: 1 + 19 + 8 + 20 + 20.
const handshakeLen = 1 + len(Protocol) + 8 + 20 + 20

// Handshake is the fixed-layout message exchanged before any other
// wire traffic, proving both sides agree on the info-hash.
type Handshake struct {
	InfoHash [20]byte
	PeerID   [20]byte
}

// NewHandshake builds a Handshake for the given info-hash and peer id.
func NewHandshake(infoHash, peerID [20]byte) Handshake {
	return Handshake{InfoHash: infoHash, PeerID: peerID}
}

// Serialize encodes the handshake to its 68-byte wire form.
func (h Handshake) Serialize() []byte {
	buf := make([]byte, handshakeLen)
	buf[0] = byte(len(Protocol))
	cursor := 1
	cursor += copy(buf[cursor:], Protocol)
	cursor += 8 // reserved, zeros
	cursor += copy(buf[cursor:], h.InfoHash[:])
	copy(buf[cursor:], h.PeerID[:])
	return buf
}

// ReadHandshake reads and validates a handshake off r. The protocol
// length and string must match exactly; a mismatch is
// ErrHandshakeProtocol.
func ReadHandshake(r io.Reader) (Handshake, error) {
	var h Handshake

	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return h, errors.Wrap(err, "peerwire: reading handshake protocol length")
	}
	pstrlen := int(lenBuf[0])
	if pstrlen != len(Protocol) {
		return h, errors.Wrapf(ErrHandshakeProtocol, "protocol length %d", pstrlen)
	}

	rest := make([]byte, pstrlen+48)
	if _, err := io.ReadFull(r, rest); err != nil {
		return h, errors.Wrap(err, "peerwire: reading handshake body")
	}

	if !bytes.Equal(rest[:pstrlen], []byte(Protocol)) {
		return h, errors.Wrapf(ErrHandshakeProtocol, "protocol string %q", rest[:pstrlen])
	}

	cursor := pstrlen + 8 // skip reserved bytes
	copy(h.InfoHash[:], rest[cursor:cursor+20])
	cursor += 20
	copy(h.PeerID[:], rest[cursor:cursor+20])

	return h, nil
}

// Exchange writes our handshake to conn, reads the peer's response,
// and verifies the peer echoed back our info-hash. Returns the peer's
// handshake (notably its PeerID) on success.
func Exchange(rw io.ReadWriter, infoHash, peerID [20]byte) (Handshake, error) {
	ours := NewHandshake(infoHash, peerID)
	if _, err := rw.Write(ours.Serialize()); err != nil {
		return Handshake{}, errors.Wrap(err, "peerwire: writing handshake")
	}

	theirs, err := ReadHandshake(rw)
	if err != nil {
		return Handshake{}, err
	}

	if theirs.InfoHash != infoHash {
		return Handshake{}, errors.Wrapf(ErrHandshakeInfoHashMismatch,
			"expected %x got %x", infoHash, theirs.InfoHash)
	}

	return theirs, nil
}
