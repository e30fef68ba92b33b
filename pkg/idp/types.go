// Package idp holds the per-identity-provider policy table that drives
// username derivation and login authorization.
//
// The table is keyed by entity ID, the URI that uniquely identifies an
// identity provider within federation metadata. It is built once from
// configuration, validated, and never mutated afterwards, so it is safe
// for concurrent reads from every in-flight login.
package idp

import (
	"sort"
	"strings"
)

// Action is the transformation applied to a resolved username.
type Action string

const (
	// ActionNone leaves the resolved username unchanged.
	ActionNone Action = ""
	// ActionStripDomain removes everything from the first "@" onwards.
	ActionStripDomain Action = "strip_idp_domain"
	// ActionPrefix prepends "<prefix>:" to the username.
	ActionPrefix Action = "prefix"
)

// DerivationRule describes how to derive the canonical username from the
// identity claims returned by a specific provider.
type DerivationRule struct {
	UsernameClaim string `json:"username_claim" yaml:"username_claim"`
	Action        Action `json:"action,omitempty" yaml:"action,omitempty"`
	Domain        string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Prefix        string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Apply transforms a resolved username according to the rule's action.
// Stripping a value that carries no "@" leaves it unchanged, which makes
// the action idempotent.
func (r DerivationRule) Apply(username string) string {
	switch r.Action {
	case ActionStripDomain:
		local, _, _ := strings.Cut(username, "@")
		return local
	case ActionPrefix:
		return r.Prefix + ":" + username
	default:
		return username
	}
}

// Policy is the full rule set for one identity provider.
type Policy struct {
	EntityID       string         `json:"entity_id" yaml:"-"`
	Derivation     DerivationRule `json:"username_derivation" yaml:"username_derivation"`
	AllowedDomains []string       `json:"allowed_domains,omitempty" yaml:"allowed_domains,omitempty"`
}

// DomainAllowed reports whether the given email domain is on the policy's
// allowed_domains list. An empty list imposes no restriction and the
// caller is expected to check RestrictsDomains first.
func (p Policy) DomainAllowed(domain string) bool {
	for _, d := range p.AllowedDomains {
		if d == domain {
			return true
		}
	}
	return false
}

// RestrictsDomains reports whether the policy carries an allowed_domains
// restriction at all.
func (p Policy) RestrictsDomains() bool {
	return len(p.AllowedDomains) > 0
}

// Table maps entity IDs to their policies. A nil *Table means no IdP
// restriction is configured.
type Table struct {
	policies map[string]Policy
}

// Lookup returns the policy for the given entity ID.
func (t *Table) Lookup(entityID string) (Policy, bool) {
	if t == nil {
		return Policy{}, false
	}
	p, ok := t.policies[entityID]
	return p, ok
}

// Len returns the number of configured providers.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.policies)
}

// EntityIDs returns the configured entity IDs in sorted order.
func (t *Table) EntityIDs() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.policies))
	for id := range t.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
