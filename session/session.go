// Package session implements the peer handshake/download state
// machine: handshake, bitfield receipt, interested/unchoke
// negotiation, and block-by-block piece retrieval with SHA-1
// verification.
package session

import (
	"crypto/sha1"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"gorent/bitfield"
	"gorent/metainfo"
	"gorent/peerwire"
	"gorent/tracker"
)

// BlockSize is the unit of request on the peer wire.
const BlockSize = 16 * 1024

// State is the session's position in the handshake/download state
// machine.
type State int

// The five states of the handshake/download progression.
const (
	StateFresh State = iota
	StateHandshaked
	StateHaveBitfield
	StateUnchoked
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateHandshaked:
		return "handshaked"
	case StateHaveBitfield:
		return "have_bitfield"
	case StateUnchoked:
		return "unchoked"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	handshakeTimeout = 5 * time.Second
	unchokeTimeout   = 10 * time.Second
	blockTimeout     = 30 * time.Second
)

// Session owns the TCP connection to one peer, the torrent metadata
// being exchanged, the peer's advertised bitfield, and the current
// state-machine position. A Session is not safe for concurrent use:
// exactly one goroutine may drive its handshake and download calls.
type Session struct {
	conn         net.Conn
	meta         *metainfo.TorrentMetadata
	peerID       [20]byte
	remotePeerID [20]byte
	peer         tracker.PeerAddress
	bitfield     bitfield.Bitfield
	state        State
	choked       bool

	// MaxBacklog bounds how many outstanding block requests
	// DownloadPiece keeps in flight at once. 1 means strict
	// request/response; raising it pipelines multiple requests to the
	// same peer before their responses arrive.
	MaxBacklog int

	log *logrus.Entry
}

// Dial connects to peer, performs the handshake, and waits for the
// peer's bitfield, taking the session from Fresh to HaveBitfield. The
// caller must still call Unchoke before downloading.
func Dial(peer tracker.PeerAddress, meta *metainfo.TorrentMetadata, peerID [20]byte) (*Session, error) {
	conn, err := net.DialTimeout("tcp", peer.String(), handshakeTimeout)
	if err != nil {
		return nil, errors.Wrapf(ErrConnectFailed, "%s: %s", peer, err)
	}
	return newSession(conn, peer, meta, peerID)
}

// newSession drives a session to the HaveBitfield state over an
// already-open conn. Split out from Dial so tests can exercise the
// state machine over an in-memory net.Pipe instead of a real socket.
func newSession(conn net.Conn, peer tracker.PeerAddress, meta *metainfo.TorrentMetadata, peerID [20]byte) (*Session, error) {
	s := &Session{
		conn:       conn,
		meta:       meta,
		peerID:     peerID,
		peer:       peer,
		state:      StateFresh,
		choked:     true,
		MaxBacklog: 1,
		log:        logrus.WithField("peer", peer.String()),
	}

	if err := s.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.receiveBitfield(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// DialFirst tries each candidate peer in order, returning the first
// successful session. A peer that cannot be connected to
// (ErrConnectFailed) is skipped in favour of the next; any other error,
// such as a failed handshake, is returned unchanged. Exhausting the
// list surfaces ErrConnectingToPeers.
func DialFirst(peers []tracker.PeerAddress, meta *metainfo.TorrentMetadata, peerID [20]byte) (*Session, error) {
	var lastErr error
	for _, p := range peers {
		s, err := Dial(p, meta, peerID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrConnectFailed) {
			return nil, err
		}
		logrus.WithError(err).WithField("peer", p.String()).Debug("session: peer unreachable, trying next")
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no peers to try")
	}
	return nil, errors.Wrap(ErrConnectingToPeers, lastErr.Error())
}

func (s *Session) handshake() error {
	s.conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer s.conn.SetDeadline(time.Time{})

	infoHash := s.meta.InfoHash()
	theirs, err := peerwire.Exchange(s.conn, infoHash, s.peerID)
	if err != nil {
		return classifyNetErr(err)
	}
	s.remotePeerID = theirs.PeerID
	s.state = StateHandshaked
	return nil
}

// PeerHandshakeID returns the peer ID the remote side presented during
// the handshake.
func (s *Session) PeerHandshakeID() [20]byte {
	return s.remotePeerID
}

func (s *Session) receiveBitfield() error {
	s.conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer s.conn.SetDeadline(time.Time{})

	msg, err := peerwire.ReadMessage(s.conn)
	if err != nil {
		return classifyNetErr(err)
	}
	if msg.ID != peerwire.Bitfield {
		return errors.Wrapf(ErrUnexpectedBitfield, "got %s", msg.ID)
	}
	s.bitfield = bitfield.Bitfield(msg.Payload)
	s.state = StateHaveBitfield
	return nil
}

// Unchoke sends "interested" and blocks until the peer unchokes us,
// completing the HaveBitfield -> Unchoked transition. "have" messages
// received while waiting update the tracked bitfield.
func (s *Session) Unchoke() error {
	s.conn.SetDeadline(time.Now().Add(unchokeTimeout))
	defer s.conn.SetDeadline(time.Time{})

	if _, err := s.conn.Write(peerwire.Simple(peerwire.Interested).Serialize()); err != nil {
		return classifyNetErr(err)
	}

	for {
		msg, err := peerwire.ReadMessage(s.conn)
		if err != nil {
			return classifyNetErr(err)
		}
		switch msg.ID {
		case peerwire.Unchoke:
			s.choked = false
			s.state = StateUnchoked
			s.log.Debug("session: unchoked")
			return nil
		case peerwire.Choke:
			s.choked = true
		case peerwire.Have:
			idx, err := peerwire.ParseHave(msg)
			if err != nil {
				return err
			}
			s.ensureBitfieldCapacity(idx)
			s.bitfield.Set(idx)
		default:
			// ignore anything else while waiting for unchoke
		}
	}
}

func (s *Session) ensureBitfieldCapacity(index int) {
	need := index/8 + 1
	if len(s.bitfield) < need {
		grown := make(bitfield.Bitfield, need)
		copy(grown, s.bitfield)
		s.bitfield = grown
	}
}

// HasPiece reports whether the peer's bitfield advertises index.
func (s *Session) HasPiece(index int) bool {
	return s.bitfield.Has(index)
}

// State returns the session's current position in the state machine.
func (s *Session) State() State {
	return s.state
}

// Close closes the underlying TCP connection. Safe to call multiple
// times and on every exit path (success, error, or caller abort).
func (s *Session) Close() error {
	s.state = StateClosed
	return s.conn.Close()
}

// DownloadPiece performs the block-by-block retrieval and SHA-1
// verification for piece index, writing verified block bytes to w in
// ascending offset order. Only valid in the Unchoked state. On a hash
// mismatch the bytes already written to w are NOT retracted by this
// call; callers that need atomicity should write through a
// transactional temp buffer and only copy it out on success.
func (s *Session) DownloadPiece(index int, w io.Writer) error {
	if s.state != StateUnchoked {
		return errors.Wrapf(ErrNotUnchoked, "state is %s", s.state)
	}

	pieceLen, err := s.meta.Info.PieceLengthOf(index)
	if err != nil {
		return err
	}

	s.conn.SetDeadline(time.Now().Add(blockTimeout))
	defer s.conn.SetDeadline(time.Time{})

	hasher := sha1.New()
	requested := uint64(0)
	written := uint64(0)
	// outstanding tracks begin -> requested length for blocks we've
	// asked for but not yet received, so an arriving piece message can
	// be checked against what was actually requested instead of just
	// its index. pending holds blocks that arrived out of order,
	// keyed by begin, until the offset they occupy becomes the next
	// one due to be flushed to w and the hasher.
	outstanding := make(map[uint64]uint64)
	pending := make(map[uint64][]byte)

	for written < pieceLen {
		for uint64(len(outstanding)) < uint64(s.MaxBacklog) && requested < pieceLen {
			blockLen := uint64(BlockSize)
			if pieceLen-requested < blockLen {
				blockLen = pieceLen - requested
			}
			req := peerwire.FormatRequest(index, int(requested), int(blockLen))
			if _, err := s.conn.Write(req.Serialize()); err != nil {
				return classifyNetErr(err)
			}
			outstanding[requested] = blockLen
			requested += blockLen
		}

		begin, block, err := s.readPieceBlock(index, outstanding)
		if err != nil {
			return err
		}
		delete(outstanding, begin)
		pending[begin] = block

		for {
			next, ok := pending[written]
			if !ok {
				break
			}
			if _, err := w.Write(next); err != nil {
				return errors.Wrap(err, "session: sink write failed")
			}
			if _, err := hasher.Write(next); err != nil {
				return errors.Wrap(err, "session: hashing block failed")
			}
			delete(pending, written)
			written += uint64(len(next))
		}
	}

	sum := hasher.Sum(nil)
	want, err := s.meta.Info.PieceHash(index)
	if err != nil {
		return err
	}
	var got [20]byte
	copy(got[:], sum)
	if got != want {
		return errors.Wrapf(ErrPieceHashMismatch, "piece %d", index)
	}
	return nil
}

// readPieceBlock reads the next message, requiring a "piece" message
// whose index and begin match one of the offsets in outstanding (with
// the exact length that was requested for it), tolerating interleaved
// "have" notices, returning ErrPeerChoked on a choke, and treating
// anything else — including a
// piece for an offset we never asked for — as a fatal desync.
func (s *Session) readPieceBlock(index int, outstanding map[uint64]uint64) (uint64, []byte, error) {
	for {
		msg, err := peerwire.ReadMessage(s.conn)
		if err != nil {
			return 0, nil, classifyNetErr(err)
		}
		switch msg.ID {
		case peerwire.Piece:
			pb, err := peerwire.ParsePiece(msg)
			if err != nil {
				return 0, nil, err
			}
			if pb.Index != index {
				return 0, nil, errors.Wrapf(ErrProtocolDesync, "piece index %d, want %d", pb.Index, index)
			}
			wantLen, ok := outstanding[uint64(pb.Begin)]
			if !ok || wantLen != uint64(len(pb.Block)) {
				return 0, nil, errors.Wrapf(ErrProtocolDesync, "piece begin %d not an outstanding request", pb.Begin)
			}
			return uint64(pb.Begin), pb.Block, nil
		case peerwire.Have:
			idx, err := peerwire.ParseHave(msg)
			if err != nil {
				return 0, nil, err
			}
			s.ensureBitfieldCapacity(idx)
			s.bitfield.Set(idx)
		case peerwire.Choke:
			s.choked = true
			s.state = StateHaveBitfield
			return 0, nil, ErrPeerChoked
		default:
			return 0, nil, errors.Wrapf(ErrProtocolDesync, "unexpected message %s", msg.ID)
		}
	}
}

// DownloadFile iterates every piece in order and streams each
// verified piece into w.
func (s *Session) DownloadFile(w io.Writer) error {
	n := s.meta.Info.PieceCount()
	for i := 0; i < n; i++ {
		if err := s.DownloadPiece(i, w); err != nil {
			return errors.Wrapf(err, "downloading piece %d of %d", i, n)
		}
		s.log.WithField("piece", i).Debug("session: piece verified")
	}
	return nil
}

func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(ErrPeerTimeout, err.Error())
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(ErrPeerClosed, err.Error())
	}
	return err
}
