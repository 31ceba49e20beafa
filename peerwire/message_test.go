package peerwire

import (
	"bytes"
	"testing"
)

func TestMessageSerializeReadRoundTrip(t *testing.T) {
	m := FormatRequest(1, 16384, 16384)
	wire := m.Serialize()

	got, err := ReadMessage(bytes.NewReader(wire))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != Request {
		t.Fatalf("got id %s, want request", got.ID)
	}
	if len(got.Payload) != 12 {
		t.Fatalf("got payload length %d, want 12", len(got.Payload))
	}
}

func TestReadMessageSkipsKeepAlives(t *testing.T) {
	var buf bytes.Buffer
	// two keep-alives (zero length prefix) then a real message
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(Simple(Unchoke).Serialize())

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != Unchoke {
		t.Fatalf("got id %s, want unchoke", got.ID)
	}
}

func TestReadMessageRejectsUnknownID(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 1, 200})
	if _, err := ReadMessage(&buf); err == nil {
		t.Fatal("expected error for unknown message id")
	}
}

func TestParsePiece(t *testing.T) {
	payload := make([]byte, 8+4)
	payload[3] = 2   // index = 2
	payload[7] = 0   // begin = 0
	copy(payload[8:], []byte{1, 2, 3, 4})
	m := &Message{ID: Piece, Payload: payload}

	pb, err := ParsePiece(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pb.Index != 2 || pb.Begin != 0 {
		t.Fatalf("got %+v", pb)
	}
	if !bytes.Equal(pb.Block, []byte{1, 2, 3, 4}) {
		t.Fatalf("got block %v", pb.Block)
	}
}

func TestParseHave(t *testing.T) {
	m := FormatHave(7)
	idx, err := ParseHave(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 7 {
		t.Fatalf("got %d, want 7", idx)
	}
}

func TestParsePieceRejectsWrongID(t *testing.T) {
	if _, err := ParsePiece(Simple(Choke)); err == nil {
		t.Fatal("expected error for non-piece message")
	}
}
