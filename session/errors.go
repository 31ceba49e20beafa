package session

import "github.com/pkg/errors"

// Network errors.
var (
	// ErrConnectFailed wraps a failed TCP dial to a single peer.
	ErrConnectFailed = errors.New("session: connect failed")
	// ErrPeerTimeout is returned when a read or write deadline expires on
	// an established connection; a connect that times out is reported
	// as ErrConnectFailed.
	ErrPeerTimeout = errors.New("session: peer timed out")
	// ErrPeerClosed is returned when the peer closes the connection
	// mid-session.
	ErrPeerClosed = errors.New("session: peer closed connection")
	// ErrConnectingToPeers is returned by DialFirst when no candidate
	// peer could be connected to.
	ErrConnectingToPeers = errors.New("session: could not connect to any peer")
)

// Protocol errors.
var (
	// ErrUnexpectedBitfield is returned when the first post-handshake
	// message isn't a bitfield.
	ErrUnexpectedBitfield = errors.New("session: expected bitfield message")
	// ErrProtocolDesync is returned when a message arrives that the
	// current state doesn't expect.
	ErrProtocolDesync = errors.New("session: protocol desync")
	// ErrPeerChoked is returned when the peer chokes us mid-download;
	// this client treats that as fatal rather than waiting to resume.
	ErrPeerChoked = errors.New("session: peer choked mid-download")
	// ErrNotUnchoked is returned when DownloadPiece is called before
	// the session has reached the Unchoked state.
	ErrNotUnchoked = errors.New("session: session is not unchoked")
)

// Integrity errors.
var (
	// ErrPieceHashMismatch is returned when a downloaded piece's SHA-1
	// doesn't match the metainfo's recorded hash; the caller must
	// discard the bytes it wrote.
	ErrPieceHashMismatch = errors.New("session: piece hash mismatch")
)
