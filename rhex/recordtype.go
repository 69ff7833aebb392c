package rhex

// ASCII is canonical for record types on the wire and on disk.
// The emoji spellings in the catalog below are accepted as aliases on
// decode and rewritten to ASCII; encoding only ever emits ASCII.
const (
	TypeScopeGenesis  = "scope:genesis"
	TypeScopeCreate   = "scope:create"
	TypeScopeRequest  = "scope:request"
	TypePolicySet     = "policy:set"
	TypeKeyGrant      = "key:grant"
	TypeKeyRevoke     = "key:revoke"
	TypeRequestHead   = "request:head"
	TypeRequestRhex   = "request:rhex"
	TypeResponseHead  = "response:head"
	TypeErrorVerify   = "error:verify_failed"
	TypeErrorPolicy   = "error:policy_denied"
	TypeConfirmOK     = "confirm:ok"
)

var emojiAliases = map[string]string{
	"🌐:💡":      TypeScopeGenesis,
	"🌐:🟢":      TypeScopeCreate,
	"🌐:📩":      TypeScopeRequest,
	"🔑:🟢":      TypeKeyGrant,
	"🔑:🔴":      TypeKeyRevoke,
	"📩:➡️🧬":     TypeRequestHead,
	"📩:R⬢":     TypeRequestRhex,
}

// CanonicalRecordType rewrites a record_type spelling to its canonical
// ASCII form, accepting both ASCII and the emoji aliases from the wire
// catalog. Unknown spellings are returned unchanged — dispatch treats an
// unrecognized major prefix as a no-op, not an error.
func CanonicalRecordType(recordType string) string {
	if canon, ok := emojiAliases[recordType]; ok {
		return canon
	}
	return recordType
}

// Major returns the part of a (canonical) record_type before the ':',
// used by the usher relay's quorum check to treat a whole family of record
// types alike.
func Major(recordType string) string {
	for i := 0; i < len(recordType); i++ {
		if recordType[i] == ':' {
			return recordType[:i]
		}
	}
	return recordType
}
