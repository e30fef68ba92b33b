package idp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// derivationSchema validates the username_derivation object of every
// policy entry. Cross-field requirements (action implies domain/prefix)
// are expressed as draft-07 conditionals.
const derivationSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["username_claim"],
	"additionalProperties": false,
	"properties": {
		"username_claim": {"type": "string", "minLength": 1},
		"action": {"enum": ["strip_idp_domain", "prefix"]},
		"domain": {"type": "string", "minLength": 1},
		"prefix": {"type": "string", "minLength": 1}
	},
	"allOf": [
		{
			"if": {"properties": {"action": {"const": "strip_idp_domain"}}, "required": ["action"]},
			"then": {"required": ["domain"]}
		},
		{
			"if": {"properties": {"action": {"const": "prefix"}}, "required": ["action"]},
			"then": {"required": ["prefix"]}
		}
	]
}`

// entityIDSchemes are the URI schemes accepted for entity IDs. Bare
// domain names are a common configuration mistake and are rejected
// rather than coerced, since a key that never matches the idp claim
// silently disables the IdP restriction.
var entityIDSchemes = map[string]bool{
	"https": true,
	"http":  true,
	"urn":   true,
}

// ValidationError reports a malformed policy entry. It is a startup-time
// failure: the process must not begin serving with a table that did not
// validate.
type ValidationError struct {
	EntityID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid idp policy %q: %s", e.EntityID, e.Reason)
}

var schemaLoader = gojsonschema.NewStringLoader(derivationSchema)

// BuildTable validates raw policy entries and assembles the immutable
// lookup table. The first invalid entry aborts the build.
func BuildTable(entries map[string]Policy) (*Table, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	policies := make(map[string]Policy, len(entries))
	for entityID, policy := range entries {
		if err := validateEntityID(entityID); err != nil {
			return nil, err
		}
		if err := validateDerivation(entityID, policy.Derivation); err != nil {
			return nil, err
		}
		policy.EntityID = entityID
		policies[entityID] = policy
	}

	return &Table{policies: policies}, nil
}

func validateEntityID(entityID string) error {
	u, err := url.Parse(entityID)
	if err != nil || !entityIDSchemes[u.Scheme] {
		return &ValidationError{
			EntityID: entityID,
			Reason:   "key must be an entity ID URI with scheme in {https, http, urn}, not a domain name",
		}
	}
	return nil
}

func validateDerivation(entityID string, rule DerivationRule) error {
	doc, err := json.Marshal(rule)
	if err != nil {
		return &ValidationError{EntityID: entityID, Reason: err.Error()}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &ValidationError{EntityID: entityID, Reason: fmt.Sprintf("schema validation: %v", err)}
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return &ValidationError{
			EntityID: entityID,
			Reason:   fmt.Sprintf("username_derivation: %s", strings.Join(reasons, "; ")),
		}
	}

	// The schema cannot express that domain and prefix are mutually
	// exclusive with the configured action.
	switch rule.Action {
	case ActionStripDomain:
		if rule.Prefix != "" {
			return &ValidationError{EntityID: entityID, Reason: "username_derivation: prefix is only valid with action=prefix"}
		}
	case ActionPrefix:
		if rule.Domain != "" {
			return &ValidationError{EntityID: entityID, Reason: "username_derivation: domain is only valid with action=strip_idp_domain"}
		}
	case ActionNone:
		if rule.Domain != "" || rule.Prefix != "" {
			return &ValidationError{EntityID: entityID, Reason: "username_derivation: domain and prefix require an action"}
		}
	default:
		return &ValidationError{EntityID: entityID, Reason: fmt.Sprintf("username_derivation: unknown action %q", rule.Action)}
	}

	return nil
}
