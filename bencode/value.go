// Package bencode implements a decoder and canonical encoder for the
// bencoded value format used by BitTorrent metainfo files and tracker
// replies: strings, signed integers, lists, and dictionaries.
package bencode

import "bytes"

// Kind tags which variant a Value holds.
type Kind int

const (
	// KindString marks a raw byte-string value.
	KindString Kind = iota
	// KindInteger marks a signed 64-bit integer value.
	KindInteger
	// KindList marks an ordered sequence of values.
	KindList
	// KindDictionary marks a key-sorted mapping of byte-string keys to values.
	KindDictionary
)

// Value is a tagged bencode value. Exactly one of the accessors below is
// meaningful, selected by Kind. A Value owns its Str bytes, its List
// elements, and its Dict entries; nothing aliases the original input
// once decoded.
type Value struct {
	Kind Kind

	Str  []byte
	Int  int64
	List []Value
	Dict []DictEntry
}

// DictEntry is one key/value pair of a decoded dictionary. Dict on a
// Value is always sorted ascending by Key's raw bytes, regardless of
// the order the keys appeared in the source.
type DictEntry struct {
	Key   []byte
	Value Value
}

// String builds a KindString Value from s.
func String(s []byte) Value {
	return Value{Kind: KindString, Str: s}
}

// Integer builds a KindInteger Value.
func Integer(i int64) Value {
	return Value{Kind: KindInteger, Int: i}
}

// List builds a KindList Value.
func List(items []Value) Value {
	return Value{Kind: KindList, List: items}
}

// Dict builds a KindDictionary Value from already-sorted entries. Use
// NewDict if the entries are not known to be sorted.
func Dict(entries []DictEntry) Value {
	return Value{Kind: KindDictionary, Dict: entries}
}

// NewDict sorts entries by key and builds a KindDictionary Value.
// Duplicate keys are an invariant violation the decoder itself never
// produces; callers building a tree by hand must ensure uniqueness.
func NewDict(entries []DictEntry) Value {
	sortEntries(entries)
	return Dict(entries)
}

// Get returns the value associated with key in a dictionary, and
// whether it was present. Get on a non-dictionary Value always reports
// false.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindDictionary {
		return Value{}, false
	}
	k := []byte(key)
	// Dict is sorted, so this could binary-search; dictionaries in
	// torrent metainfo are small enough that it isn't worth it.
	for _, e := range v.Dict {
		if bytes.Equal(e.Key, k) {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether v and o represent the same bencode value.
// Dictionary comparison relies on both sides already being in
// ascending key order, which the decoder and NewDict both guarantee.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return bytes.Equal(v.Str, o.Str)
	case KindInteger:
		return v.Int == o.Int
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindDictionary:
		if len(v.Dict) != len(o.Dict) {
			return false
		}
		for i := range v.Dict {
			if !bytes.Equal(v.Dict[i].Key, o.Dict[i].Key) {
				return false
			}
			if !v.Dict[i].Value.Equal(o.Dict[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

func sortEntries(entries []DictEntry) {
	// insertion sort: dictionaries in torrent files rarely exceed a
	// handful of keys, and this keeps the sort stable without pulling
	// in sort.Slice's reflection-based comparator for a tiny slice.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && bytes.Compare(entries[j-1].Key, entries[j].Key) > 0; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}
