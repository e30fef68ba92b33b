package api

import (
	"errors"
	"net/http"

	"github.com/fedgate/fedgate/pkg/audit"
	"github.com/fedgate/fedgate/pkg/authz"
	"github.com/fedgate/fedgate/pkg/claims"
	"github.com/fedgate/fedgate/pkg/httputil"
	"github.com/fedgate/fedgate/pkg/observability"
)

// AuthState carries the login's identity claims and token. Its absence
// means no auth state exists for the identity (bulk-created users), in
// which case there is no policy to evaluate and the login is allowed.
type AuthState struct {
	Claims      map[string]string `json:"claims"`
	AccessToken string            `json:"access_token,omitempty"`
	TokenType   string            `json:"token_type,omitempty"`
}

// AuthorizeRequest is the decision request for one login attempt.
type AuthorizeRequest struct {
	// Username, when set, skips claim resolution. Normally left empty
	// so the gateway derives it from the claims.
	Username string `json:"username,omitempty"`

	Admin     bool       `json:"admin,omitempty"`
	AuthState *AuthState `json:"auth_state,omitempty"`

	// IncludeTeams asks for the token's team memberships alongside an
	// allow decision.
	IncludeTeams bool `json:"include_teams,omitempty"`
}

// AuthorizeResponse is the decision result.
type AuthorizeResponse struct {
	Allowed  bool     `json:"allowed"`
	Username string   `json:"username,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Message  string   `json:"message,omitempty"`
	Teams    []string `json:"teams,omitempty"`
}

// handleAuthorize resolves the username and runs the decision engine.
// Denials are 403 with the reason spelled out; a claim pipeline that
// yields no username at all is a 500, not a policy denial.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	input := authz.Input{
		Username: req.Username,
		Admin:    req.Admin,
	}

	if req.AuthState != nil {
		// A supplied auth state is never the "no auth state" case, even
		// when it carries no claims: policy still applies.
		input.Claims = claims.Set(req.AuthState.Claims)
		if input.Claims == nil {
			input.Claims = claims.Set{}
		}
		input.AccessToken = req.AuthState.AccessToken
		input.TokenType = req.AuthState.TokenType

		if len(input.Claims) == 0 && input.AccessToken != "" && s.userinfo != nil {
			fetched, err := s.userinfo.FetchClaims(r.Context(), input.AccessToken, input.TokenType)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Error("failed to fetch userinfo claims")
				httputil.WriteErrorMessage(w, http.StatusBadGateway, "failed to fetch identity claims")
				return
			}
			input.Claims = fetched
		}

		if input.Username == "" {
			username, err := claims.ResolveUsername(input.Claims, s.table, s.defaultClaim, s.fallbackClaims)
			if err != nil {
				s.writeUsernameError(w, r, err)
				return
			}
			input.Username = username
		}
	}

	decision := s.engine.Authorize(r.Context(), input)
	s.auditDecision(r, input, decision)

	var teams []string
	if req.IncludeTeams && decision.Allowed() && s.teams != nil && input.AccessToken != "" {
		var err error
		teams, err = s.teams.UserTeams(r.Context(), input.AccessToken, input.TokenType)
		if err != nil {
			// Team listing decorates an allow, it never blocks one.
			observability.FromContext(r.Context()).WithError(err).Warn("failed to list user teams")
			teams = nil
		}
	}
	writeDecision(w, decision, teams)
}

func (s *Server) auditDecision(r *http.Request, in authz.Input, decision authz.Decision) {
	status := audit.EventStatusDenied
	if decision.Allowed() {
		status = audit.EventStatusAllowed
	}
	event := audit.Event{
		Type:      audit.EventTypeDecision,
		Status:    status,
		Username:  decision.Username,
		IdP:       in.Claims.IdP(),
		Reason:    string(decision.Reason),
		RequestID: observability.GetRequestID(r.Context()),
		Admin:     in.Admin,
	}
	if err := s.audit.Log(r.Context(), event); err != nil {
		s.logger.WithError(err).Error("failed to write audit event")
	}
}

func (s *Server) writeUsernameError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *claims.UsernameNotFoundError
	if errors.As(err, &notFound) {
		if s.metrics != nil {
			s.metrics.UsernameResolutionErr.Inc()
			s.metrics.ObserveDecision(string(authz.OutcomeError), string(authz.ErrorUsernameNotFound), 0)
		}
		observability.FromContext(r.Context()).WithFields(map[string]interface{}{
			"attempted_claims": notFound.Attempted,
			"available_claims": notFound.Available,
		}).Error("no username claim found in userinfo response")

		if err := s.audit.Log(r.Context(), audit.Event{
			Type:      audit.EventTypeResolutionFailure,
			Status:    audit.EventStatusError,
			Reason:    string(authz.ErrorUsernameNotFound),
			RequestID: observability.GetRequestID(r.Context()),
		}); err != nil {
			s.logger.WithError(err).Error("failed to write audit event")
		}

		decision := authz.Errored(authz.ErrorUsernameNotFound)
		httputil.WriteJSON(w, decision.HTTPStatus(), AuthorizeResponse{
			Allowed: false,
			Reason:  string(decision.Kind),
			Message: decision.Message(),
		})
		return
	}
	httputil.WriteInternalError(w, err)
}

func writeDecision(w http.ResponseWriter, decision authz.Decision, teams []string) {
	resp := AuthorizeResponse{
		Allowed:  decision.Allowed(),
		Username: decision.Username,
		Message:  decision.Message(),
		Teams:    teams,
	}
	switch decision.Outcome {
	case authz.OutcomeDeny:
		resp.Reason = string(decision.Reason)
	case authz.OutcomeError:
		resp.Reason = string(decision.Kind)
	}
	httputil.WriteJSON(w, decision.HTTPStatus(), resp)
}

// handleListIdPs lists the configured entity IDs so operators can audit
// which providers may log in. Policies carry no secrets, but only the
// IDs are exposed here regardless.
func (s *Server) handleListIdPs(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"entity_ids": s.table.EntityIDs(),
	})
}
