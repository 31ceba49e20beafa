package bencode

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecodeString(t *testing.T) {
	v, err := Decode([]byte("5:hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindString || string(v.Str) != "hello" {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeEmptyString(t *testing.T) {
	v, err := Decode([]byte("0:"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindString || len(v.Str) != 0 {
		t.Fatalf("expected zero-length string, got %+v", v)
	}
}

func TestDecodeInteger(t *testing.T) {
	cases := map[string]int64{
		"i52e":   52,
		"i0e":    0,
		"i-42e":  -42,
		"i100e":  100,
	}
	for in, want := range cases {
		v, err := Decode([]byte(in))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", in, err)
		}
		if v.Kind != KindInteger || v.Int != want {
			t.Fatalf("%s: got %+v, want %d", in, v, want)
		}
	}
}

func TestDecodeIntegerRejectsNegativeZero(t *testing.T) {
	if _, err := Decode([]byte("i-0e")); err == nil {
		t.Fatal("expected error decoding i-0e")
	}
}

func TestDecodeIntegerRejectsLeadingZero(t *testing.T) {
	if _, err := Decode([]byte("i042e")); err == nil {
		t.Fatal("expected error decoding i042e")
	}
}

func TestDecodeList(t *testing.T) {
	v, err := Decode([]byte("l5:helloi52ee"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindList || len(v.List) != 2 {
		t.Fatalf("got %+v", v)
	}
	if string(v.List[0].Str) != "hello" {
		t.Fatalf("got %+v", v.List[0])
	}
	if v.List[1].Int != 52 {
		t.Fatalf("got %+v", v.List[1])
	}
}

func TestDecodeEmptyList(t *testing.T) {
	v, err := Decode([]byte("le"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindList || len(v.List) != 0 {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeDictionary(t *testing.T) {
	v, err := Decode([]byte("d3:bar4:spam3:fooi42ee"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindDictionary || len(v.Dict) != 2 {
		t.Fatalf("got %+v", v)
	}
	// keys must come out in ascending order regardless of source order
	if string(v.Dict[0].Key) != "bar" || string(v.Dict[1].Key) != "foo" {
		t.Fatalf("got keys %q, %q", v.Dict[0].Key, v.Dict[1].Key)
	}
	bar, ok := v.Get("bar")
	if !ok || string(bar.Str) != "spam" {
		t.Fatalf("got bar=%+v", bar)
	}
	foo, ok := v.Get("foo")
	if !ok || foo.Int != 42 {
		t.Fatalf("got foo=%+v", foo)
	}
}

func TestDecodeEmptyDict(t *testing.T) {
	v, err := Decode([]byte("de"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindDictionary || len(v.Dict) != 0 {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeInvalidToken(t *testing.T) {
	if _, err := Decode([]byte("x5:hello")); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestDecodeUnexpectedEOF(t *testing.T) {
	if _, err := Decode([]byte("5:hel")); err == nil {
		t.Fatal("expected error for truncated string")
	}
	if _, err := Decode([]byte("i52")); err == nil {
		t.Fatal("expected error for unterminated integer")
	}
}

func TestDecoderStreaming(t *testing.T) {
	r := strings.NewReader("d3:bar4:spam3:fooi42ee")
	d := NewDecoder(r)
	v, err := d.Decode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.Dict) != 2 {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	inputs := []string{
		"5:hello",
		"i52e",
		"l5:helloi52ee",
		"d3:bar4:spam3:fooi42ee",
		"de",
		"le",
		"0:",
		"i0e",
	}
	for _, in := range inputs {
		v, err := Decode([]byte(in))
		if err != nil {
			t.Fatalf("%s: decode error: %v", in, err)
		}
		out := EncodeBytes(v)
		if !bytes.Equal(out, []byte(in)) {
			t.Fatalf("%s: round trip mismatch, got %q", in, out)
		}
	}
}

func TestValueEqualIgnoresSourceDictOrder(t *testing.T) {
	a, _ := Decode([]byte("d3:bar4:spam3:fooi42ee"))
	b, _ := Decode([]byte("d3:fooi42e3:bar4:spame"))
	if !a.Equal(b) {
		t.Fatalf("expected dictionaries with different source order to be equal")
	}
}
