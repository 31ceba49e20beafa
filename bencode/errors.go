package bencode

import "github.com/pkg/errors"

// Sentinel errors for the four bencode parse failures spec'd for the
// decoder. Wrap with errors.Wrap/Wrapf for positional context; callers
// should compare with errors.Is.
var (
	// ErrInvalidToken is returned when the first byte of a value is not
	// one of '0'..'9', 'i', 'l', or 'd'.
	ErrInvalidToken = errors.New("bencode: invalid token")
	// ErrUnexpectedEOF is returned when the input ends before a value,
	// length prefix, or terminator is fully read.
	ErrUnexpectedEOF = errors.New("bencode: unexpected end of input")
	// ErrInvalidInteger is returned when an integer body is not a valid
	// decimal (including "-0" and a leading zero on a multi-digit number,
	// both of which the decoder rejects and the encoder never emits).
	ErrInvalidInteger = errors.New("bencode: invalid integer")
	// ErrInvalidLength is returned when a string's length prefix is
	// malformed or negative.
	ErrInvalidLength = errors.New("bencode: invalid string length")
)
