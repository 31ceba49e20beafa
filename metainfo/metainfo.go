// Package metainfo projects a decoded bencode tree onto the typed
// torrent record: announce URL, info dictionary, and the derived
// info-hash and piece-hash sequence.
package metainfo

import (
	"crypto/sha1"
	"io"
	"os"

	"github.com/pkg/errors"

	"gorent/bencode"
)

// PieceHashLen is the fixed length of a SHA-1 piece digest.
const PieceHashLen = 20

// TorrentInfo is the projected "info" sub-dictionary: the file name,
// total length, nominal piece length, and the concatenated 20-byte
// piece hashes.
type TorrentInfo struct {
	Name        string
	Length      uint64
	PieceLength uint64
	Pieces      []byte
}

// PieceCount returns the number of pieces described by Pieces.
func (i TorrentInfo) PieceCount() int {
	return len(i.Pieces) / PieceHashLen
}

// PieceLengthOf returns the length in bytes of piece index, which is
// PieceLength for every piece but the last, and the remainder of
// Length for the last (or PieceLength again if Length divides evenly).
func (i TorrentInfo) PieceLengthOf(index int) (uint64, error) {
	n := i.PieceCount()
	if index < 0 || index >= n {
		return 0, errors.Wrapf(ErrInvalidPieceIndex, "index %d of %d pieces", index, n)
	}
	if index < n-1 {
		return i.PieceLength, nil
	}
	remainder := i.Length % i.PieceLength
	if remainder == 0 {
		return i.PieceLength, nil
	}
	return remainder, nil
}

// PieceHash returns the 20-byte SHA-1 digest for piece index.
func (i TorrentInfo) PieceHash(index int) ([PieceHashLen]byte, error) {
	var h [PieceHashLen]byte
	n := i.PieceCount()
	if index < 0 || index >= n {
		return h, errors.Wrapf(ErrInvalidPieceIndex, "index %d of %d pieces", index, n)
	}
	copy(h[:], i.Pieces[index*PieceHashLen:(index+1)*PieceHashLen])
	return h, nil
}

// TorrentMetadata is the top-level decoded torrent file: the tracker
// announce URL (plus any backup announce-list URLs), and the info
// record. The raw, as-parsed info sub-tree is retained so InfoHash can
// re-encode exactly what was read rather than re-deriving bytes from
// TorrentInfo's Go field names.
type TorrentMetadata struct {
	Announce     string
	AnnounceList []string
	Info         TorrentInfo

	rawInfo bencode.Value
}

// Parse projects a decoded top-level bencode dictionary onto a
// TorrentMetadata. Missing or ill-typed required keys produce
// ErrMalformedMetainfo.
func Parse(root bencode.Value) (*TorrentMetadata, error) {
	if root.Kind != bencode.KindDictionary {
		return nil, errors.Wrap(ErrMalformedMetainfo, "top-level value is not a dictionary")
	}

	announceVal, ok := root.Get("announce")
	if !ok || announceVal.Kind != bencode.KindString {
		return nil, errors.Wrap(ErrMalformedMetainfo, "missing or invalid \"announce\"")
	}

	infoVal, ok := root.Get("info")
	if !ok || infoVal.Kind != bencode.KindDictionary {
		return nil, errors.Wrap(ErrMalformedMetainfo, "missing or invalid \"info\"")
	}

	info, err := parseInfo(infoVal)
	if err != nil {
		return nil, err
	}

	m := &TorrentMetadata{
		Announce: string(announceVal.Str),
		Info:     info,
		rawInfo:  infoVal,
	}

	if listVal, ok := root.Get("announce-list"); ok && listVal.Kind == bencode.KindList {
		m.AnnounceList = flattenAnnounceList(listVal)
	}

	return m, nil
}

func parseInfo(infoVal bencode.Value) (TorrentInfo, error) {
	var info TorrentInfo

	nameVal, ok := infoVal.Get("name")
	if !ok || nameVal.Kind != bencode.KindString {
		return info, errors.Wrap(ErrMalformedMetainfo, "missing or invalid \"name\"")
	}
	info.Name = string(nameVal.Str)

	lengthVal, ok := infoVal.Get("length")
	if !ok || lengthVal.Kind != bencode.KindInteger || lengthVal.Int < 0 {
		return info, errors.Wrap(ErrMalformedMetainfo, "missing or invalid \"length\"")
	}
	info.Length = uint64(lengthVal.Int)

	pieceLengthVal, ok := infoVal.Get("piece length")
	if !ok || pieceLengthVal.Kind != bencode.KindInteger || pieceLengthVal.Int <= 0 {
		return info, errors.Wrap(ErrMalformedMetainfo, "missing or invalid \"piece length\"")
	}
	info.PieceLength = uint64(pieceLengthVal.Int)

	piecesVal, ok := infoVal.Get("pieces")
	if !ok || piecesVal.Kind != bencode.KindString {
		return info, errors.Wrap(ErrMalformedMetainfo, "missing or invalid \"pieces\"")
	}
	if len(piecesVal.Str)%PieceHashLen != 0 {
		return info, errors.Wrap(ErrMalformedMetainfo, "\"pieces\" length is not a multiple of 20")
	}
	info.Pieces = piecesVal.Str

	return info, nil
}

// flattenAnnounceList flattens a list-of-lists-of-strings
// "announce-list" into a single ordered slice of backup tracker URLs,
// skipping anything that isn't a non-empty string.
func flattenAnnounceList(listVal bencode.Value) []string {
	var urls []string
	for _, tier := range listVal.List {
		if tier.Kind != bencode.KindList {
			continue
		}
		for _, u := range tier.List {
			if u.Kind != bencode.KindString || len(u.Str) == 0 {
				continue
			}
			urls = append(urls, string(u.Str))
		}
	}
	return urls
}

// InfoHash returns the SHA-1 digest of the canonical bencoding of the
// info sub-dictionary exactly as it was parsed.
func (m *TorrentMetadata) InfoHash() [20]byte {
	return sha1.Sum(bencode.EncodeBytes(m.rawInfo))
}

// Load reads and parses a .torrent file at path.
func Load(path string) (*TorrentMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a .torrent file's contents from r.
func Read(r io.Reader) (*TorrentMetadata, error) {
	root, err := bencode.NewDecoder(r).Decode()
	if err != nil {
		return nil, err
	}
	return Parse(root)
}
