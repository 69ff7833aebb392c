// Package policy implements the R⬢ ledger's append-authorization engine:
// which keys may append which record types to which scope, under what
// quorum and rate constraints.
package policy

import (
	"errors"
	"sort"
)

// Defaults applies to any record_type with no matching Rule.
type Defaults struct {
	Roles       []string
	QuorumK     int
	RatePerMark int
	QuorumRoles []string
}

// Rule gates append access for one record_type.
type Rule struct {
	RecordType  string
	AppendRoles []string
	QuorumK     int
	RatePerMark int
	QuorumRoles []string
}

// Policy is the active append-authorization configuration for one scope,
// valid over an effective/expiration window measured in micromarks.
type Policy struct {
	Scope               string
	Defaults            Defaults
	Rules               []Rule
	QuorumTTL           uint64
	EffectiveMicromark  uint64
	ExpirationMicromark uint64
	Note                string
}

// ErrRateLimited is returned by a Limiter when a key has exhausted its
// rate_per_mark allowance for the current window.
var ErrRateLimited = errors.New("policy: rate limited")

// ruleFor returns the Rule matching recordType, or ok=false if none matches
// and the caller should fall back to Defaults.
func (p Policy) ruleFor(recordType string) (Rule, bool) {
	for _, r := range p.Rules {
		if r.RecordType == recordType {
			return r, true
		}
	}
	return Rule{}, false
}

// effectiveRoles/quorumK/quorumRoles resolve a matching rule or fall back to
// defaults.
func (p Policy) effectiveRoles(recordType string) []string {
	if r, ok := p.ruleFor(recordType); ok {
		return r.AppendRoles
	}
	return p.Defaults.Roles
}

func (p Policy) effectiveQuorumK(recordType string) int {
	if r, ok := p.ruleFor(recordType); ok {
		return r.QuorumK
	}
	return p.Defaults.QuorumK
}

func (p Policy) effectiveQuorumRoles(recordType string) []string {
	if r, ok := p.ruleFor(recordType); ok && len(r.QuorumRoles) > 0 {
		return r.QuorumRoles
	}
	if len(p.Defaults.QuorumRoles) > 0 {
		return p.Defaults.QuorumRoles
	}
	// No quorum_roles configured anywhere for this record_type: fall back
	// to the roles already authorized to append it, so a quorum_k > 0 with
	// no quorum_roles set is satisfiable rather than a standing deadlock.
	return p.effectiveRoles(recordType)
}

// QuorumRoles returns the set of roles whose holders count toward
// recordType's quorum_k, resolving a matching Rule or falling back to
// Defaults. Exported so callers assembling QuorumSatisfied's
// signerHasQuorumRole argument can resolve the same role set this package
// uses internally.
func (p Policy) QuorumRoles(recordType string) []string {
	return p.effectiveQuorumRoles(recordType)
}

func (p Policy) effectiveRatePerMark(recordType string) int {
	if r, ok := p.ruleFor(recordType); ok {
		return r.RatePerMark
	}
	return p.Defaults.RatePerMark
}

// CanAppend reports whether a record of recordType, authored by a key
// holding authorRoles, may be appended to scope at micromark at. writable
// is the caller's resolved scope.role == "authority" check (§4.6); this
// function does not look scopes up itself.
func CanAppend(p Policy, writable bool, recordType string, authorRoles []string, at uint64) bool {
	if !writable {
		return false
	}
	roles := p.effectiveRoles(recordType)
	if !rolesIntersect(authorRoles, roles) {
		return false
	}
	if p.EffectiveMicromark != 0 && at < p.EffectiveMicromark {
		return false
	}
	if p.ExpirationMicromark != 0 && at > p.ExpirationMicromark {
		return false
	}
	return true
}

func rolesIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, r := range b {
		set[r] = struct{}{}
	}
	for _, r := range a {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

// QuorumSatisfied reports whether the distinct quorum signatures already
// collected for a record meet recordType's quorum_k requirement within
// quorum_ttl of at. quorumSignedAt holds the micromark timestamp each
// signature was observed at, and signerHasQuorumRole whether the matching
// signer holds a quorum role.
// A gated record is final only once quorum_k distinct signers holding a
// quorum role have signed within quorum_ttl of context.at — measured from
// context.at (clock-of-record), not from the quorum signer's own clock,
// since only context.at carries the usher's authentication.
func QuorumSatisfied(p Policy, recordType string, at uint64, quorumSignedAt []uint64, signerHasQuorumRole []bool) bool {
	need := p.effectiveQuorumK(recordType)
	if need <= 0 {
		return true
	}
	count := 0
	for i, signedAt := range quorumSignedAt {
		if i >= len(signerHasQuorumRole) || !signerHasQuorumRole[i] {
			continue
		}
		if withinTTL(at, signedAt, p.QuorumTTL) {
			count++
		}
	}
	return count >= need
}

func withinTTL(at, signedAt, ttl uint64) bool {
	var delta uint64
	if signedAt >= at {
		delta = signedAt - at
	} else {
		delta = at - signedAt
	}
	return delta <= ttl
}

// HasAnyRole reports whether roles contains any role named in want.
func HasAnyRole(roles, want []string) bool {
	return rolesIntersect(roles, want)
}

// SortedRuleTypes returns the record_type of every rule in p, sorted, for
// deterministic iteration (CLI inspection, cache persistence).
func SortedRuleTypes(p Policy) []string {
	out := make([]string, len(p.Rules))
	for i, r := range p.Rules {
		out[i] = r.RecordType
	}
	sort.Strings(out)
	return out
}
