package bencode

import (
	"io"
	"strconv"
)

// Encode writes v to sink in canonical bencoding: dictionary keys in
// ascending byte order, minimal-digit integers, length-prefixed raw
// strings. Encoding an already-canonical decoded Value reproduces the
// exact input bytes.
func Encode(sink io.Writer, v Value) error {
	w := &errWriter{w: sink}
	encodeValue(w, v)
	return w.err
}

// errWriter lets the recursive encoder ignore per-call error checks;
// the first write error short-circuits all further writes and is
// surfaced once Encode returns.
type errWriter struct {
	w   io.Writer
	err error
}

func (w *errWriter) writeString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, s)
}

func (w *errWriter) writeBytes(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func encodeValue(w *errWriter, v Value) {
	switch v.Kind {
	case KindString:
		encodeString(w, v.Str)
	case KindInteger:
		w.writeString("i")
		w.writeString(strconv.FormatInt(v.Int, 10))
		w.writeString("e")
	case KindList:
		w.writeString("l")
		for _, item := range v.List {
			encodeValue(w, item)
		}
		w.writeString("e")
	case KindDictionary:
		w.writeString("d")
		for _, e := range v.Dict {
			encodeString(w, e.Key)
			encodeValue(w, e.Value)
		}
		w.writeString("e")
	}
}

func encodeString(w *errWriter, s []byte) {
	w.writeString(strconv.Itoa(len(s)))
	w.writeString(":")
	w.writeBytes(s)
}

// EncodeBytes renders v canonically and returns the bytes directly,
// for callers that want to hash or compare the output rather than
// stream it.
func EncodeBytes(v Value) []byte {
	var buf bytesBuffer
	_ = Encode(&buf, v)
	return buf.b
}

// bytesBuffer is a minimal growable byte sink, avoiding a bytes.Buffer
// import purely for Encode's convenience wrapper.
type bytesBuffer struct {
	b []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

// FieldEncoder builds a KindDictionary Value from a list of named
// fields, for encoding a typed record (such as an info dictionary) in
// canonical form without constructing it through the generic Decode
// path. metainfo.InfoHash does not use it; it re-encodes the parsed
// info sub-tree instead.
type FieldEncoder struct {
	entries []DictEntry
}

// NewFieldEncoder starts an empty typed-record encoder.
func NewFieldEncoder() *FieldEncoder {
	return &FieldEncoder{}
}

// Str adds a byte-string field.
func (f *FieldEncoder) Str(name string, val []byte) *FieldEncoder {
	f.entries = append(f.entries, DictEntry{Key: []byte(name), Value: String(val)})
	return f
}

// Int adds an integer field.
func (f *FieldEncoder) Int(name string, val int64) *FieldEncoder {
	f.entries = append(f.entries, DictEntry{Key: []byte(name), Value: Integer(val)})
	return f
}

// Value builds the canonical (key-sorted) dictionary Value.
func (f *FieldEncoder) Value() Value {
	entries := make([]DictEntry, len(f.entries))
	copy(entries, f.entries)
	return NewDict(entries)
}
