package metainfo

import "github.com/pkg/errors"

// ErrMalformedMetainfo is returned when a decoded bencode tree is
// missing a required metainfo key or holds one with the wrong type or
// an out-of-range value (negative length, non-positive piece length,
// a pieces string whose length isn't a multiple of 20).
var ErrMalformedMetainfo = errors.New("metainfo: malformed torrent metadata")

// ErrInvalidPieceIndex is returned by piece-indexed queries when the
// index is outside [0, PieceCount).
var ErrInvalidPieceIndex = errors.New("metainfo: invalid piece index")
