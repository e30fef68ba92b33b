package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fedgate/fedgate/pkg/idp"
)

// Policy is the externally authored authorization policy. It is loaded
// and validated once at startup; the rest of the system only ever sees
// the canonical fields, never the legacy aliases.
type Policy struct {
	// DefaultUsernameClaim is the claim tried first when the login's
	// provider has no entry in AllowedIdPs.
	DefaultUsernameClaim string `yaml:"default_username_claim"`

	// AdditionalUsernameClaims are fallbacks tried in order when the
	// default claim carries no value. Useful for linked identities
	// where not every provider returns the primary claim.
	AdditionalUsernameClaims []string `yaml:"additional_username_claims"`

	// AllowedUsers is the static username allow-list.
	AllowedUsers []string `yaml:"allowed_users"`

	// AllowedOrganizations lists org or org:team entries whose members
	// are authorized via the remote membership check.
	AllowedOrganizations []string `yaml:"allowed_organizations"`

	// AllowedIdPs maps entity IDs to per-provider policy.
	AllowedIdPs map[string]idp.Policy `yaml:"allowed_idps"`

	// Legacy aliases, resolved by resolveAliases and zeroed afterwards.
	LegacyIdPWhitelist   []string `yaml:"idp_whitelist"`
	LegacyOrgWhitelist   []string `yaml:"github_organization_whitelist"`
	LegacyStripIdPDomain *bool    `yaml:"strip_idp_domain"`

	// table is built by Validate.
	table *idp.Table
}

// DefaultUsernameClaimName is used when the policy file does not set one.
const DefaultUsernameClaimName = "eppn"

// DefaultFallbackClaims is used when the policy file does not set
// additional_username_claims.
var DefaultFallbackClaims = []string{"email"}

// LoadPolicyFile reads and validates a YAML policy file.
func LoadPolicyFile(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var policy Policy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

// Validate resolves legacy aliases, applies defaults, and builds the
// IdP rule table. Any failure here is fatal at startup.
func (p *Policy) Validate() error {
	if err := p.resolveAliases(); err != nil {
		return err
	}

	if p.DefaultUsernameClaim == "" {
		p.DefaultUsernameClaim = DefaultUsernameClaimName
	}
	if p.AdditionalUsernameClaims == nil {
		p.AdditionalUsernameClaims = DefaultFallbackClaims
	}

	table, err := idp.BuildTable(p.AllowedIdPs)
	if err != nil {
		return err
	}
	p.table = table
	return nil
}

// Table returns the validated IdP rule table (nil when no IdP
// restriction is configured). Validate must have succeeded first.
func (p *Policy) Table() *idp.Table {
	return p.table
}
