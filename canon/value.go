// Package canon implements the ledger's canonical object encoding: a
// deterministic binary tree encoding used for intent.data, for the
// sub-structures fed into pre-hashes, and for on-disk record persistence.
//
// Determinism is achieved by encoding through github.com/fxamacker/cbor/v2's
// core deterministic encoding mode (RFC 8949 §4.2.1): shortest-form
// integers, definite-length arrays/maps/strings, and map keys sorted by
// their encoded byte representation. encode(decode(x)) == x byte-for-byte,
// and two logically equal values always produce identical bytes, because
// CBOR's core deterministic mode defines exactly one admissible encoding
// per value.
package canon

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind identifies the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
)

// Value is a tagged-variant tree: the free-form document shape that
// intent.data (and any other dynamic payload in this ledger) is expressed
// as. Only one of the typed fields is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	Array []Value
	// Object is sorted by key at encode time regardless of insertion
	// order, which is what gives two logically-equal documents identical
	// canonical bytes.
	Object map[string]Value
}

func Null() Value                { return Value{Kind: KindNull} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value          { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value      { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value       { return Value{Kind: KindBytes, Bytes: append([]byte(nil), b...)} }
func Array(vs ...Value) Value    { return Value{Kind: KindArray, Array: vs} }
func Object(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindObject, Object: m}
}

// wireValue is the shape actually handed to the CBOR encoder/decoder: a
// plain Go value tree (nil, bool, int64, float64, string, []byte,
// []interface{}, map[string]interface{}) that cbor's core deterministic
// mode already knows how to encode canonically.
func (v Value) toWire() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindBytes:
		return v.Bytes
	case KindArray:
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.toWire()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.Object))
		for k, e := range v.Object {
			out[k] = e.toWire()
		}
		return out
	default:
		panic(fmt.Sprintf("canon: unknown Value kind %d", v.Kind))
	}
}

func fromWire(w interface{}) Value {
	switch t := w.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int64:
		return Int(t)
	case uint64:
		return Int(int64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case []interface{}:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = fromWire(e)
		}
		return Value{Kind: KindArray, Array: arr}
	case map[interface{}]interface{}:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[fmt.Sprintf("%v", k)] = fromWire(e)
		}
		return Object(obj)
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = fromWire(e)
		}
		return Object(obj)
	default:
		panic(fmt.Sprintf("canon: unsupported wire type %T", w))
	}
}

// MarshalCBOR lets a Value embed directly as a field of any other
// cbor-tagged struct (e.g. rhex.Intent.Data), so dynamic payload trees
// compose with the statically-shaped parts of a record.
func (v Value) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(v.toWire())
}

// UnmarshalCBOR is the decode half of MarshalCBOR.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var w interface{}
	if err := decMode.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = fromWire(w)
	return nil
}

var encMode = func() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

var decMode = func() cbor.DecMode {
	m, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// EncodeValue canonically encodes a dynamic Value tree.
func EncodeValue(v Value) ([]byte, error) {
	return encMode.Marshal(v.toWire())
}

// DecodeValue decodes bytes produced by EncodeValue.
func DecodeValue(b []byte) (Value, error) {
	var w interface{}
	if err := decMode.Unmarshal(b, &w); err != nil {
		return Value{}, err
	}
	return fromWire(w), nil
}

// Encode canonically encodes any Go value using struct tags (`cbor:"..."`)
// for field naming — used for the static-shaped parts of a record (Intent,
// Context, Signature) where field order is fixed by this package's types,
// not by map iteration order.
func Encode(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode decodes bytes produced by Encode into v.
func Decode(b []byte, v interface{}) error {
	return decMode.Unmarshal(b, v)
}
