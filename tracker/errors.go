package tracker

import "github.com/pkg/errors"

// ErrServerError is returned when the tracker responds with a non-200
// HTTP status.
var ErrServerError = errors.New("tracker: server returned non-200 status")

// ErrMalformedResponse is returned when the tracker's bencoded reply
// is missing the compact "peers" string or its length isn't a
// multiple of 6.
var ErrMalformedResponse = errors.New("tracker: malformed response")
