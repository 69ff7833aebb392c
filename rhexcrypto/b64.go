package rhexcrypto

import "encoding/base64"

// Hashes, public keys and rhex:// URLs are all rendered as unpadded
// base64url, the printable form used for rhex:// URLs and CLI output.
// encoding/base64 is the idiomatic and only sensible choice here — there
// is no ecosystem replacement for a codec this small (RFC 4648 §5, no
// padding).
var b64 = base64.RawURLEncoding

// EncodeB64 renders b as unpadded base64url.
func EncodeB64(b []byte) string {
	return b64.EncodeToString(b)
}

// DecodeB64 parses unpadded base64url text back into bytes.
func DecodeB64(s string) ([]byte, error) {
	return b64.DecodeString(s)
}

// String renders the hash as unpadded base64url, the canonical printable
// form used in rhex:// URLs.
func (h Hash) String() string {
	return EncodeB64(h[:])
}

// MarshalJSON renders h as a quoted base64url string, so JSON documents
// (scope_table.json, rhexapi responses) stay human-readable.
func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

// UnmarshalJSON parses the quoted base64url string produced by MarshalJSON.
func (h *Hash) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := DecodeB64(s)
	if err != nil {
		return err
	}
	*h = BytesToHash(decoded)
	return nil
}
