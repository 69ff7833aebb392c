package canon

import "testing"

func TestValueEncodeDecodeRoundTrip(t *testing.T) {
	v := Object(map[string]Value{
		"what": String("transfer"),
		"n":    Int(42),
		"tags": Array(String("a"), String("b")),
		"raw":  Bytes([]byte{1, 2, 3}),
		"ok":   Bool(true),
		"pi":   Float(3.5),
		"nil":  Null(),
	})

	enc, err := EncodeValue(v)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := DecodeValue(enc)
	if err != nil {
		t.Fatal(err)
	}
	enc2, err := EncodeValue(dec)
	if err != nil {
		t.Fatal(err)
	}
	if string(enc) != string(enc2) {
		t.Fatal("encode(decode(encode(x))) != encode(x)")
	}
}

func TestEncodeDeterministicAcrossKeyOrder(t *testing.T) {
	a := Object(map[string]Value{"a": Int(1), "b": Int(2), "c": Int(3)})
	b := Object(map[string]Value{"c": Int(3), "a": Int(1), "b": Int(2)})

	encA, err := EncodeValue(a)
	if err != nil {
		t.Fatal(err)
	}
	encB, err := EncodeValue(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(encA) != string(encB) {
		t.Fatal("logically equal objects with different map insertion order produced different bytes")
	}
}

func TestEncodeDifferentForDifferentValues(t *testing.T) {
	a := Object(map[string]Value{"x": Int(1)})
	b := Object(map[string]Value{"x": Int(2)})
	encA, _ := EncodeValue(a)
	encB, _ := EncodeValue(b)
	if string(encA) == string(encB) {
		t.Fatal("different values encoded identically")
	}
}

type sample struct {
	A int64  `cbor:"a"`
	B string `cbor:"b"`
}

func TestEncodeStructRoundTrip(t *testing.T) {
	s := sample{A: 7, B: "seven"}
	enc, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	var got sample
	if err := Decode(enc, &got); err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Fatalf("got %+v, want %+v", got, s)
	}
}
