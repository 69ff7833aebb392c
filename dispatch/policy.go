package dispatch

import (
	"strings"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/policy"
	"github.com/hodeauxledger/rhexledger/rhex"
)

// handlePolicySet upserts the active policy for a scope. Admission is
// gated upstream by the prior policy's policy:set rule (the caller's
// policy check, before Dispatch is ever reached); this handler only
// persists the new policy keyed by this record's current_hash.
func handlePolicySet(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	p := policyFromData(r)
	if err := ctx.Index.PutPolicy(r.CurrentHash, p); err != nil {
		return nil, err
	}
	if err := ctx.Index.SetActivePolicy(r.Intent.Scope, r.CurrentHash); err != nil {
		return nil, err
	}
	for _, rule := range p.Rules {
		if err := ctx.Index.PutRule(r.Intent.Scope, rule.RecordType, rule); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// policyFromData reads a Policy out of a policy:set record's intent.data.
// Missing numeric fields default to zero (unbounded/no window); missing
// rules yield a policy with only defaults.
func policyFromData(r *rhex.Record) policy.Policy {
	p := policy.Policy{Scope: r.Intent.Scope}

	if d, ok := r.Intent.Data.Object["defaults"]; ok && d.Kind == canon.KindObject {
		p.Defaults = defaultsFromValue(d)
	}
	if qt, ok := intField(r, "quorum_ttl"); ok {
		p.QuorumTTL = uint64(qt)
	}
	if em, ok := intField(r, "effective_micromark"); ok {
		p.EffectiveMicromark = uint64(em)
	}
	if xm, ok := intField(r, "expiration_micromark"); ok {
		p.ExpirationMicromark = uint64(xm)
	}
	p.Note = field(r, "note")

	if rulesVal, ok := r.Intent.Data.Object["rules"]; ok && rulesVal.Kind == canon.KindArray {
		for _, rv := range rulesVal.Array {
			if rv.Kind == canon.KindObject {
				p.Rules = append(p.Rules, ruleFromValue(rv))
			}
		}
	}
	return p
}

func defaultsFromValue(v canon.Value) policy.Defaults {
	var d policy.Defaults
	if roles, ok := v.Object["roles"]; ok && roles.Kind == canon.KindString {
		d.Roles = strings.Split(roles.Str, ",")
	}
	if qk, ok := v.Object["quorum_k"]; ok && qk.Kind == canon.KindInt {
		d.QuorumK = int(qk.Int)
	}
	if rpm, ok := v.Object["rate_per_mark"]; ok && rpm.Kind == canon.KindInt {
		d.RatePerMark = int(rpm.Int)
	}
	if qr, ok := v.Object["quorum_roles"]; ok && qr.Kind == canon.KindString {
		d.QuorumRoles = strings.Split(qr.Str, ",")
	}
	return d
}

func ruleFromValue(v canon.Value) policy.Rule {
	var r policy.Rule
	if rt, ok := v.Object["record_type"]; ok && rt.Kind == canon.KindString {
		r.RecordType = rt.Str
	}
	if ar, ok := v.Object["append_roles"]; ok && ar.Kind == canon.KindString {
		r.AppendRoles = strings.Split(ar.Str, ",")
	}
	if qk, ok := v.Object["quorum_k"]; ok && qk.Kind == canon.KindInt {
		r.QuorumK = int(qk.Int)
	}
	if rpm, ok := v.Object["rate_per_mark"]; ok && rpm.Kind == canon.KindInt {
		r.RatePerMark = int(rpm.Int)
	}
	if qr, ok := v.Object["quorum_roles"]; ok && qr.Kind == canon.KindString {
		r.QuorumRoles = strings.Split(qr.Str, ",")
	}
	return r
}
