package claims

import (
	"fmt"
	"strings"

	"github.com/fedgate/fedgate/pkg/idp"
)

// UsernameNotFoundError indicates that none of the candidate claims
// carried a usable value. It names the claims that were attempted and
// the claims that were available so a misconfigured claim pipeline can
// be diagnosed without ever exposing claim values.
type UsernameNotFoundError struct {
	Attempted []string
	Available []string
}

func (e *UsernameNotFoundError) Error() string {
	return fmt.Sprintf("no username claim in %v found among claims %v",
		e.Attempted, e.Available)
}

// CandidateClaims returns the ordered list of claim names to try for the
// given login. A provider listed in the policy table pins the list to
// exactly its configured username_claim; otherwise the default claim and
// the fallbacks are tried in order.
func CandidateClaims(set Set, table *idp.Table, defaultClaim string, fallbackClaims []string) []string {
	if policy, ok := table.Lookup(set.IdP()); ok {
		return []string{policy.Derivation.UsernameClaim}
	}
	candidates := make([]string, 0, 1+len(fallbackClaims))
	candidates = append(candidates, defaultClaim)
	candidates = append(candidates, fallbackClaims...)
	return candidates
}

// FromCandidates returns the first candidate claim carrying a non-empty
// value, or "" when none does.
func FromCandidates(set Set, candidates []string) string {
	for _, name := range candidates {
		if v, ok := set.Get(name); ok {
			return v
		}
	}
	return ""
}

// ResolveUsername determines the canonical username for a login. The
// provider's derivation rule, when one is configured, both selects the
// claim and transforms the value (domain stripping or prefixing).
func ResolveUsername(set Set, table *idp.Table, defaultClaim string, fallbackClaims []string) (string, error) {
	candidates := CandidateClaims(set, table, defaultClaim, fallbackClaims)
	username := FromCandidates(set, candidates)
	if username == "" {
		return "", &UsernameNotFoundError{
			Attempted: candidates,
			Available: set.Names(),
		}
	}

	if policy, ok := table.Lookup(set.IdP()); ok {
		username = policy.Derivation.Apply(username)
	}
	return username, nil
}

// DomainOf extracts the part after the first "@" of a username-with-domain
// value. It returns "" when the value carries no domain.
func DomainOf(value string) string {
	_, domain, found := strings.Cut(value, "@")
	if !found {
		return ""
	}
	return domain
}
