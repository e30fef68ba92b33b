// Package authz makes the allow/deny decision for an authenticated
// login, combining static user allow-lists, per-IdP policy, and remote
// organization membership.
package authz

import "net/http"

// Outcome is the top-level result class of an authorization decision.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeDeny  Outcome = "deny"
	OutcomeError Outcome = "error"
)

// DenyReason distinguishes the deny branches. Operators audit IdP and
// domain denials separately, so the reasons are never collapsed.
type DenyReason string

const (
	DenyIdPNotAllowed    DenyReason = "idp_not_allowed"
	DenyDomainNotAllowed DenyReason = "domain_not_allowed"
	DenyNotOnAllowlist   DenyReason = "not_on_allowlist"
	DenyNotOrgMember     DenyReason = "not_org_member"
)

// ErrorKind distinguishes internal failures from policy denials.
type ErrorKind string

const (
	ErrorUsernameNotFound ErrorKind = "username_not_found"
	ErrorConfigInvalid    ErrorKind = "config_invalid"
)

// Decision is the outcome of one login's authorization.
type Decision struct {
	Outcome  Outcome
	Reason   DenyReason // set when Outcome is OutcomeDeny
	Kind     ErrorKind  // set when Outcome is OutcomeError
	Username string
}

// Allow builds an allow decision for the given username.
func Allow(username string) Decision {
	return Decision{Outcome: OutcomeAllow, Username: username}
}

// Deny builds a deny decision with the given reason.
func Deny(username string, reason DenyReason) Decision {
	return Decision{Outcome: OutcomeDeny, Reason: reason, Username: username}
}

// Errored builds an internal-error decision.
func Errored(kind ErrorKind) Decision {
	return Decision{Outcome: OutcomeError, Kind: kind}
}

// Allowed reports whether the decision permits the login.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Message returns the user-facing message for the decision.
func (d Decision) Message() string {
	switch d.Outcome {
	case OutcomeAllow:
		return "authorized"
	case OutcomeError:
		switch d.Kind {
		case ErrorUsernameNotFound:
			return "failed to determine username from identity claims"
		default:
			return "authorization configuration error"
		}
	}

	switch d.Reason {
	case DenyIdPNotAllowed:
		return "login using an identity provider that is not allowed"
	case DenyDomainNotAllowed:
		return "login using a domain that is not allowed"
	case DenyNotOrgMember:
		return "user is not a member of an allowed organization"
	default:
		return "user is not on the allow list"
	}
}

// HTTPStatus maps the decision to a response status: denials are
// forbidden, internal errors are server errors.
func (d Decision) HTTPStatus() int {
	switch d.Outcome {
	case OutcomeAllow:
		return http.StatusOK
	case OutcomeError:
		return http.StatusInternalServerError
	default:
		return http.StatusForbidden
	}
}
