package config

import (
	"fmt"

	"github.com/fedgate/fedgate/pkg/idp"
)

// Legacy policy fields are mapped onto their canonical replacements once
// at load time. Decision logic never branches on a legacy name.
//
//	idp_whitelist                 -> allowed_idps (entries gain a default derivation)
//	github_organization_whitelist -> allowed_organizations
//	strip_idp_domain              -> rejected; it has no lossless mapping and
//	                                 silently guessing one would change who
//	                                 may log in
func (p *Policy) resolveAliases() error {
	if len(p.LegacyIdPWhitelist) > 0 {
		if len(p.AllowedIdPs) > 0 {
			return fmt.Errorf("idp_whitelist is deprecated and cannot be combined with allowed_idps")
		}
		claim := p.DefaultUsernameClaim
		if claim == "" {
			claim = DefaultUsernameClaimName
		}
		p.AllowedIdPs = makeDefaultPolicies(p.LegacyIdPWhitelist, claim)
		p.LegacyIdPWhitelist = nil
	}

	if len(p.LegacyOrgWhitelist) > 0 {
		if len(p.AllowedOrganizations) > 0 {
			return fmt.Errorf("github_organization_whitelist is deprecated and cannot be combined with allowed_organizations")
		}
		p.AllowedOrganizations = p.LegacyOrgWhitelist
		p.LegacyOrgWhitelist = nil
	}

	if p.LegacyStripIdPDomain != nil {
		return fmt.Errorf(
			"strip_idp_domain is no longer supported: set allowed_idps.<entity-id>.username_derivation.action to %q with an explicit domain",
			"strip_idp_domain")
	}

	return nil
}

// makeDefaultPolicies builds allowed_idps entries for a plain entity-ID
// list, deriving usernames from the configured default claim.
func makeDefaultPolicies(entityIDs []string, claim string) map[string]idp.Policy {
	policies := make(map[string]idp.Policy, len(entityIDs))
	for _, entityID := range entityIDs {
		policies[entityID] = idp.Policy{
			Derivation: idp.DerivationRule{UsernameClaim: claim},
		}
	}
	return policies
}
