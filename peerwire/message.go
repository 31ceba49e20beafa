package peerwire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ID identifies which of the nine wire message kinds a Message is.
type ID uint8

// The nine post-handshake message kinds.
const (
	Choke ID = iota
	Unchoke
	Interested
	NotInterested
	Have
	Bitfield
	Request
	Piece
	Cancel
)

func (id ID) String() string {
	switch id {
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not_interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case Piece:
		return "piece"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Message is one length-prefixed post-handshake wire message. Payload
// holds everything past the id byte; its layout depends on ID.
type Message struct {
	ID      ID
	Payload []byte
}

// Serialize encodes m to its length-prefixed wire form. A nil
// *Message is not valid to serialize; keep-alives are handled at the
// connection level, not as a Message value.
func (m *Message) Serialize() []byte {
	length := uint32(len(m.Payload) + 1)
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

// ReadMessage reads the next non-keep-alive message off r. Keep-alive
// frames (length-prefix 0) are transparently skipped.
func ReadMessage(r io.Reader) (*Message, error) {
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, errors.Wrap(err, "peerwire: reading message length")
		}
		length := binary.BigEndian.Uint32(lenBuf[:])
		if length == 0 {
			continue // keep-alive, read again
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, errors.Wrap(err, "peerwire: reading message body")
		}

		id := ID(body[0])
		if id > Cancel {
			return nil, errors.Wrapf(ErrInvalidMessage, "id %d", id)
		}

		return &Message{ID: id, Payload: body[1:]}, nil
	}
}

// FormatHave builds a "have" message announcing piece index.
func FormatHave(index int) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(index))
	return &Message{ID: Have, Payload: payload}
}

// FormatRequest builds a "request" message for a block.
func FormatRequest(index, begin, length int) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:12], uint32(length))
	return &Message{ID: Request, Payload: payload}
}

// FormatCancel builds a "cancel" message, same layout as "request".
func FormatCancel(index, begin, length int) *Message {
	m := FormatRequest(index, begin, length)
	m.ID = Cancel
	return m
}

// Simple builds a payload-less message (choke/unchoke/interested/not_interested).
func Simple(id ID) *Message {
	return &Message{ID: id}
}

// ParseHave extracts the piece index from a "have" message.
func ParseHave(m *Message) (int, error) {
	if m.ID != Have {
		return 0, errors.Wrapf(ErrInvalidMessage, "expected have, got %s", m.ID)
	}
	if len(m.Payload) != 4 {
		return 0, errors.Wrapf(ErrInvalidMessage, "have payload length %d", len(m.Payload))
	}
	return int(binary.BigEndian.Uint32(m.Payload)), nil
}

// PieceBlock is the parsed payload of a "piece" message.
type PieceBlock struct {
	Index int
	Begin int
	Block []byte
}

// ParsePiece extracts index, begin, and block bytes from a "piece"
// message.
func ParsePiece(m *Message) (PieceBlock, error) {
	var pb PieceBlock
	if m.ID != Piece {
		return pb, errors.Wrapf(ErrInvalidMessage, "expected piece, got %s", m.ID)
	}
	if len(m.Payload) < 8 {
		return pb, errors.Wrapf(ErrInvalidMessage, "piece payload too short: %d", len(m.Payload))
	}
	pb.Index = int(binary.BigEndian.Uint32(m.Payload[0:4]))
	pb.Begin = int(binary.BigEndian.Uint32(m.Payload[4:8]))
	pb.Block = m.Payload[8:]
	return pb, nil
}
