// Package tracker builds the HTTP tracker announce GET request and
// decodes its bencoded compact-peer reply.
package tracker

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"gorent/bencode"
	"gorent/metainfo"
)

// DefaultPort is the listening port advertised to the tracker when the
// caller has none of its own; this client never actually listens on
// it.
const DefaultPort = 6881

// PeerAddress is an IPv4 address and port pair decoded from a
// tracker's compact peer list.
type PeerAddress struct {
	IP   net.IP
	Port uint16
}

// String renders the address as "ip:port".
func (p PeerAddress) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// Response is the information extracted from a tracker's announce
// reply.
type Response struct {
	Interval int
	Peers    []PeerAddress
}

// Request announces to m's tracker, trying the primary announce URL
// and then any announce-list backups in order, and returns the parsed
// peer list.
func Request(m *metainfo.TorrentMetadata, peerID [20]byte, port uint16) (*Response, error) {
	urls := append([]string{m.Announce}, m.AnnounceList...)

	var lastErr error
	for _, announce := range urls {
		resp, err := requestOne(announce, m, peerID, port)
		if err == nil {
			return resp, nil
		}
		logrus.WithError(err).WithField("announce", announce).Warn("tracker: announce failed, trying next URL")
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, "tracker: all announce URLs failed")
}

func requestOne(announce string, m *metainfo.TorrentMetadata, peerID [20]byte, port uint16) (*Response, error) {
	reqURL, err := buildURL(announce, m, peerID, port)
	if err != nil {
		return nil, err
	}

	httpResp, err := http.Get(reqURL)
	if err != nil {
		return nil, errors.Wrap(err, "tracker: GET failed")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrServerError, "status %d", httpResp.StatusCode)
	}

	root, err := bencode.NewDecoder(httpResp.Body).Decode()
	if err != nil {
		return nil, errors.Wrap(err, "tracker: decoding response")
	}

	return parseResponse(root)
}

func buildURL(announce string, m *metainfo.TorrentMetadata, peerID [20]byte, port uint16) (string, error) {
	base, err := url.Parse(announce)
	if err != nil {
		return "", errors.Wrap(err, "tracker: invalid announce URL")
	}

	infoHash := m.InfoHash()
	q := url.Values{
		"port":       []string{strconv.Itoa(int(port))},
		"uploaded":   []string{"0"},
		"downloaded": []string{"0"},
		"left":       []string{strconv.FormatUint(m.Info.Length, 10)},
		"compact":    []string{"1"},
	}
	base.RawQuery = q.Encode() +
		"&info_hash=" + percentEncode(infoHash[:]) +
		"&peer_id=" + percentEncode(peerID[:])
	return base.String(), nil
}

// percentEncode URL-encodes b byte-by-byte, for the two raw-byte
// query parameters (info_hash and peer_id) a tracker expects encoded
// this way rather than through url.Values' form-encoding.
func percentEncode(b []byte) string {
	out := make([]byte, 0, len(b)*3)
	for _, c := range b {
		out = append(out, '%')
		out = append(out, fmt.Sprintf("%02X", c)...)
	}
	return string(out)
}

func parseResponse(root bencode.Value) (*Response, error) {
	intervalVal, ok := root.Get("interval")
	if !ok || intervalVal.Kind != bencode.KindInteger {
		return nil, errors.Wrap(ErrMalformedResponse, "missing or invalid \"interval\"")
	}

	peersVal, ok := root.Get("peers")
	if !ok || peersVal.Kind != bencode.KindString {
		return nil, errors.Wrap(ErrMalformedResponse, "missing or invalid \"peers\"")
	}

	peers, err := DecodeCompactPeers(peersVal.Str)
	if err != nil {
		return nil, err
	}

	return &Response{Interval: int(intervalVal.Int), Peers: peers}, nil
}

// DecodeCompactPeers decodes the compact peer representation: groups
// of 6 bytes, 4-byte IPv4 followed by a 2-byte big-endian port.
func DecodeCompactPeers(data []byte) ([]PeerAddress, error) {
	const peerSize = 6
	if len(data)%peerSize != 0 {
		return nil, errors.Wrapf(ErrMalformedResponse, "peers length %d not a multiple of 6", len(data))
	}
	n := len(data) / peerSize
	peers := make([]PeerAddress, n)
	for i := 0; i < n; i++ {
		off := i * peerSize
		ip := make(net.IP, 4)
		copy(ip, data[off:off+4])
		peers[i] = PeerAddress{
			IP:   ip,
			Port: binary.BigEndian.Uint16(data[off+4 : off+6]),
		}
	}
	return peers, nil
}
