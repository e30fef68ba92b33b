// Package claims resolves the canonical username from the identity
// claims returned by a provider's userinfo endpoint.
package claims

import "sort"

// IdPClaim is the claim naming the identity provider that authenticated
// the user. It is present whenever the gateway runs in multi-provider
// mode behind a federation broker.
const IdPClaim = "idp"

// Set holds identity claims keyed by claim name. A Set is produced once
// per login and treated as read-only afterwards.
type Set map[string]string

// Get returns the value for a claim name, if present and non-empty.
func (s Set) Get(name string) (string, bool) {
	v, ok := s[name]
	return v, ok && v != ""
}

// IdP returns the entity ID of the provider that authenticated the user,
// or "" when the claim is absent.
func (s Set) IdP() string {
	return s[IdPClaim]
}

// Names returns the available claim names in sorted order. Values are
// deliberately not included anywhere this list is used: claim values may
// be sensitive, claim names are safe for diagnostics.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
