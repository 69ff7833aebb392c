package scope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hodeauxledger/rhexledger/rhexcrypto"
)

// Alias binds a human-readable name, scoped to one ledger scope, to a
// record hash. Renders as rhex://<scope>/<name>.
type Alias struct {
	Name  string
	Scope string
	Hash  rhexcrypto.Hash
}

// URL renders the alias's human-readable form.
func (a Alias) URL() string {
	return fmt.Sprintf("rhex://%s/%s", a.Scope, a.Name)
}

// HashURL renders the scope's base64url-addressed form for hash rather
// than name.
func HashURL(scopeName string, hash rhexcrypto.Hash) string {
	return fmt.Sprintf("rhex://%s/%s", scopeName, hash.String())
}

// ErrAliasExists is returned when binding a (name, scope) pair that is
// already bound to a different hash. Aliases are immutable once set,
// matching the immutable-after-finalize spirit of R⬢ records themselves.
// The authoritative alias table is ledgerdb.Index.PutAlias/GetAlias; this
// error is shared with that package so both report the same failure.
var ErrAliasExists = errors.New("scope: alias already exists")

// ErrBadURL is returned by ParseURL for text that doesn't start with
// "rhex://" or that has no "/<hash_or_alias>" segment after the scope.
var ErrBadURL = errors.New("scope: malformed rhex:// URL")

// ParsedURL is the decoded form of a rhex:// URL:
// rhex://<scope>/<hash_or_alias>[@<version>][#<field>]. Version and Field
// are "" when their suffix is absent.
type ParsedURL struct {
	Scope   string
	Ref     string
	Version string
	Field   string
}

// ParseURL parses the ledger's rhex:// URL form. Scope may be empty
// (root); Ref is either a base64url-without-padding hash or an alias name.
// A version or field suffix present in the text is split off but not
// otherwise interpreted here; rhexapi's resolver rejects a ParsedURL that
// carries a Version.
func ParseURL(raw string) (ParsedURL, error) {
	const prefix = "rhex://"
	if !strings.HasPrefix(raw, prefix) {
		return ParsedURL{}, ErrBadURL
	}
	rest := raw[len(prefix):]

	var field string
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		field = rest[i+1:]
		rest = rest[:i]
	}
	var version string
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		version = rest[i+1:]
		rest = rest[:i]
	}
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return ParsedURL{}, ErrBadURL
	}
	scopeName := rest[:i]
	ref := rest[i+1:]
	if ref == "" {
		return ParsedURL{}, ErrBadURL
	}
	return ParsedURL{Scope: scopeName, Ref: ref, Version: version, Field: field}, nil
}
