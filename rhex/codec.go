package rhex

import (
	"github.com/hodeauxledger/rhexledger/canon"
)

// wireRecord is the canonical on-the-wire shape of a full Record, combining
// magic, intent, context, the ordered signature stack, and current_hash.
type wireRecord struct {
	Magic       []byte          `cbor:"magic"`
	Intent      wireIntent      `cbor:"intent"`
	At          uint64          `cbor:"at"`
	Signatures  []wireSignature `cbor:"signatures"`
	CurrentHash []byte          `cbor:"current_hash"`
	Finalized   bool            `cbor:"finalized"`
}

// Pack canonically encodes r in full, including whatever signatures and
// current_hash are present so far. The result is the payload placed inside a
// wireframe.Frame.
func Pack(r *Record) ([]byte, error) {
	wire := wireRecord{
		Magic:     append([]byte(nil), r.Magic[:]...),
		Intent:    toWireIntent(r.Intent),
		At:        r.Context.At,
		Finalized: r.finalized,
	}
	wire.Signatures = make([]wireSignature, len(r.Signatures))
	for i, s := range r.Signatures {
		wire.Signatures[i] = toWireSignature(s)
	}
	if r.finalized {
		wire.CurrentHash = append([]byte(nil), r.CurrentHash[:]...)
	}
	return canon.Encode(wire)
}

// Unpack decodes b into a Record. It trusts nothing: the caller must run
// Validate on the result before relying on current_hash, signatures, or the
// magic version. Unpack only fails on malformed wire bytes.
func Unpack(b []byte) (*Record, error) {
	var wire wireRecord
	if err := canon.Decode(b, &wire); err != nil {
		return nil, ErrEncodingError
	}

	var r Record
	copy(r.Magic[:], wire.Magic)
	r.Intent = fromWireIntent(wire.Intent)
	r.Context.At = wire.At

	r.Signatures = make([]Signature, len(wire.Signatures))
	for i, ws := range wire.Signatures {
		var s Signature
		s.SigType = SigType(ws.SigType)
		copy(s.PublicKey[:], ws.PublicKey)
		copy(s.Sig[:], ws.Sig)
		r.Signatures[i] = s
	}

	if wire.Finalized {
		copy(r.CurrentHash[:], wire.CurrentHash)
		r.finalized = true
	}

	return &r, nil
}
