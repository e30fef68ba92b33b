package idp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTable(t *testing.T) {
	tests := []struct {
		name        string
		entries     map[string]Policy
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid entry with no action",
			entries: map[string]Policy{
				"https://idp.example.org/shibboleth": {
					Derivation: DerivationRule{UsernameClaim: "eppn"},
				},
			},
			expectError: false,
		},
		{
			name: "valid strip action",
			entries: map[string]Policy{
				"https://idpz.utorauth.utoronto.ca/shibboleth": {
					Derivation: DerivationRule{
						UsernameClaim: "email",
						Action:        ActionStripDomain,
						Domain:        "utoronto.ca",
					},
				},
			},
			expectError: false,
		},
		{
			name: "valid prefix action",
			entries: map[string]Policy{
				"https://github.com/login/oauth/authorize": {
					Derivation: DerivationRule{
						UsernameClaim: "username",
						Action:        ActionPrefix,
						Prefix:        "gh",
					},
				},
			},
			expectError: false,
		},
		{
			name: "urn scheme accepted",
			entries: map[string]Policy{
				"urn:mace:incommon:uni.edu": {
					Derivation: DerivationRule{UsernameClaim: "eppn"},
				},
			},
			expectError: false,
		},
		{
			name: "bare domain name rejected",
			entries: map[string]Policy{
				"uni.edu": {
					Derivation: DerivationRule{UsernameClaim: "eppn"},
				},
			},
			expectError: true,
			errorMsg:    "entity ID URI",
		},
		{
			name: "missing username_claim",
			entries: map[string]Policy{
				"https://idp.example.org/shibboleth": {
					Derivation: DerivationRule{Action: ActionPrefix, Prefix: "x"},
				},
			},
			expectError: true,
			errorMsg:    "username_claim",
		},
		{
			name: "strip action without domain",
			entries: map[string]Policy{
				"https://idp.example.org/shibboleth": {
					Derivation: DerivationRule{
						UsernameClaim: "email",
						Action:        ActionStripDomain,
					},
				},
			},
			expectError: true,
			errorMsg:    "domain",
		},
		{
			name: "prefix action without prefix",
			entries: map[string]Policy{
				"https://idp.example.org/shibboleth": {
					Derivation: DerivationRule{
						UsernameClaim: "username",
						Action:        ActionPrefix,
					},
				},
			},
			expectError: true,
			errorMsg:    "prefix",
		},
		{
			name: "prefix set without action",
			entries: map[string]Policy{
				"https://idp.example.org/shibboleth": {
					Derivation: DerivationRule{
						UsernameClaim: "username",
						Prefix:        "gh",
					},
				},
			},
			expectError: true,
			errorMsg:    "require an action",
		},
		{
			name: "domain set on prefix action",
			entries: map[string]Policy{
				"https://idp.example.org/shibboleth": {
					Derivation: DerivationRule{
						UsernameClaim: "username",
						Action:        ActionPrefix,
						Prefix:        "gh",
						Domain:        "uni.edu",
					},
				},
			},
			expectError: true,
			errorMsg:    "domain is only valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := BuildTable(tt.entries)
			if tt.expectError {
				require.Error(t, err)
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, table)
			} else {
				require.NoError(t, err)
				require.NotNil(t, table)
				assert.Equal(t, len(tt.entries), table.Len())
			}
		})
	}
}

func TestBuildTable_Empty(t *testing.T) {
	table, err := BuildTable(nil)
	require.NoError(t, err)
	assert.Nil(t, table)
	assert.Equal(t, 0, table.Len())
}

func TestValidationError_NamesEntry(t *testing.T) {
	_, err := BuildTable(map[string]Policy{
		"ftp://idp.example.org": {
			Derivation: DerivationRule{UsernameClaim: "eppn"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp://idp.example.org")
}

func TestTable_Lookup(t *testing.T) {
	table, err := BuildTable(map[string]Policy{
		"https://idp.example.org/shibboleth": {
			Derivation:     DerivationRule{UsernameClaim: "eppn"},
			AllowedDomains: []string{"example.edu"},
		},
	})
	require.NoError(t, err)

	policy, ok := table.Lookup("https://idp.example.org/shibboleth")
	require.True(t, ok)
	assert.Equal(t, "https://idp.example.org/shibboleth", policy.EntityID)
	assert.Equal(t, "eppn", policy.Derivation.UsernameClaim)
	assert.True(t, policy.RestrictsDomains())

	_, ok = table.Lookup("https://other.example.org")
	assert.False(t, ok)

	// nil table never matches
	var nilTable *Table
	_, ok = nilTable.Lookup("https://idp.example.org/shibboleth")
	assert.False(t, ok)
}

func TestTable_EntityIDs(t *testing.T) {
	table, err := BuildTable(map[string]Policy{
		"https://b.example.org": {Derivation: DerivationRule{UsernameClaim: "eppn"}},
		"https://a.example.org": {Derivation: DerivationRule{UsernameClaim: "eppn"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, table.EntityIDs())
}
