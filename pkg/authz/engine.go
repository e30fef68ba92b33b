package authz

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fedgate/fedgate/pkg/claims"
	"github.com/fedgate/fedgate/pkg/idp"
	"github.com/fedgate/fedgate/pkg/membership"
	"github.com/fedgate/fedgate/pkg/observability"
)

// MembershipChecker is the remote org/team lookup used for the
// organization allow-list dimension.
type MembershipChecker interface {
	IsMember(ctx context.Context, q membership.Query) bool
}

// Input carries everything one login's decision needs. It is built per
// attempt and discarded with the decision.
type Input struct {
	// Username is the resolved canonical username.
	Username string

	// Claims are the identity claims from the userinfo fetch. A nil
	// Claims set means no auth state exists for this identity (users
	// created in bulk on the host side); with no policy to evaluate
	// against, such logins are allowed.
	Claims claims.Set

	// Admin marks identities recognized as admins by the host. Admins
	// bypass every allow-list.
	Admin bool

	// AccessToken and TokenType authenticate membership API calls.
	AccessToken string
	TokenType   string
}

// EngineConfig holds the policy the engine evaluates. All fields are
// read-only after construction.
type EngineConfig struct {
	// Table is the per-IdP policy table; nil means no IdP restriction.
	Table *idp.Table

	// AllowedUsers is the static username allow-list.
	AllowedUsers []string

	// AllowedOrganizations lists org or org:team entries whose members
	// are authorized even when the static allow-list denies them.
	AllowedOrganizations []string

	// DefaultClaim and FallbackClaims drive username re-resolution for
	// the allowed_domains check. They must match what the claim
	// resolver was configured with.
	DefaultClaim   string
	FallbackClaims []string

	// Verifier performs remote membership checks. Required when
	// AllowedOrganizations is non-empty.
	Verifier MembershipChecker

	// ConcurrentChecks fans membership checks out in parallel, with the
	// first match cancelling the rest. The default is sequential
	// iteration, which bounds API calls to the first match.
	ConcurrentChecks bool

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Engine evaluates authorization policy. It holds no mutable state, so
// one Engine serves all concurrent logins.
type Engine struct {
	table          *idp.Table
	allowedUsers   map[string]struct{}
	allowedOrgs    []string
	defaultClaim   string
	fallbackClaims []string
	verifier       MembershipChecker
	concurrent     bool
	logger         *observability.Logger
	metrics        *observability.Metrics
}

// NewEngine creates an engine from validated policy
func NewEngine(cfg EngineConfig) *Engine {
	users := make(map[string]struct{}, len(cfg.AllowedUsers))
	for _, u := range cfg.AllowedUsers {
		users[u] = struct{}{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Engine{
		table:          cfg.Table,
		allowedUsers:   users,
		allowedOrgs:    cfg.AllowedOrganizations,
		defaultClaim:   cfg.DefaultClaim,
		fallbackClaims: cfg.FallbackClaims,
		verifier:       cfg.Verifier,
		concurrent:     cfg.ConcurrentChecks,
		logger:         logger,
		metrics:        cfg.Metrics,
	}
}

// Authorize decides whether the login is permitted. Precedence, each
// step terminal on a definitive answer:
//
//  1. no auth state: allow
//  2. admin: allow
//  3. IdP table configured: the login's idp must be listed, then the
//     static allow-list, then the policy's allowed_domains
//  4. no IdP table, static allow-list configured: membership decides
//  5. nothing configured: allow
//
// A login the allow-lists turned down (not IdP- or domain-rejected) gets
// one more chance via the organization allow-list, when one is set.
func (e *Engine) Authorize(ctx context.Context, in Input) Decision {
	start := time.Now()
	decision := e.baseDecision(in)

	if decision.Outcome == OutcomeDeny && decision.Reason == DenyNotOnAllowlist {
		if rescued, ok := e.checkOrganizations(ctx, in); ok {
			decision = rescued
		}
	}

	e.logDecision(in, decision)
	e.metrics.ObserveDecision(string(decision.Outcome), string(decision.Reason), time.Since(start))
	return decision
}

func (e *Engine) baseDecision(in Input) Decision {
	// Hosts sometimes create users in bulk without a login having ever
	// happened; with no auth state there is no policy to evaluate.
	if in.Claims == nil {
		return Allow(in.Username)
	}

	if in.Admin {
		return Allow(in.Username)
	}

	if e.table.Len() > 0 {
		policy, ok := e.table.Lookup(in.Claims.IdP())
		if !ok {
			return Deny(in.Username, DenyIdPNotAllowed)
		}

		if len(e.allowedUsers) == 0 && !policy.RestrictsDomains() {
			return Allow(in.Username)
		}

		// Static allow-list wins over allowed_domains. Reversing this
		// would silently change security posture for deployments that
		// configure both.
		if _, listed := e.allowedUsers[in.Username]; listed {
			return Allow(in.Username)
		}

		if policy.RestrictsDomains() {
			// The domain comes from the pre-transformation claim value:
			// domain stripping must not hide the domain from the check.
			candidates := claims.CandidateClaims(in.Claims, e.table, e.defaultClaim, e.fallbackClaims)
			withDomain := claims.FromCandidates(in.Claims, candidates)
			if policy.DomainAllowed(claims.DomainOf(withDomain)) {
				return Allow(in.Username)
			}
			return Deny(in.Username, DenyDomainNotAllowed)
		}

		return Deny(in.Username, DenyNotOnAllowlist)
	}

	if len(e.allowedUsers) > 0 {
		if _, listed := e.allowedUsers[in.Username]; listed {
			return Allow(in.Username)
		}
		return Deny(in.Username, DenyNotOnAllowlist)
	}

	// Open registration: no allow-list of any kind is configured.
	return Allow(in.Username)
}

// checkOrganizations reports whether org membership rescues a denied
// login. It returns ok=false when no organization allow-list applies.
func (e *Engine) checkOrganizations(ctx context.Context, in Input) (Decision, bool) {
	if len(e.allowedOrgs) == 0 || e.verifier == nil {
		return Decision{}, false
	}

	var matched string
	if e.concurrent {
		matched = e.anyMembershipConcurrent(ctx, in)
	} else {
		matched = e.anyMembershipSequential(ctx, in)
	}

	if matched != "" {
		e.logger.WithFields(map[string]interface{}{
			"username": in.Username,
			"org_team": matched,
		}).Debug("allowing user as organization member")
		return Allow(in.Username), true
	}

	e.logger.WithField("username", in.Username).
		Warn("user is not part of any allowed organization")
	return Deny(in.Username, DenyNotOrgMember), true
}

// anyMembershipSequential stops at the first matching entry, bounding
// upstream API calls.
func (e *Engine) anyMembershipSequential(ctx context.Context, in Input) string {
	for _, entry := range e.allowedOrgs {
		if e.verifier.IsMember(ctx, queryFor(entry, in)) {
			return entry
		}
	}
	return ""
}

// anyMembershipConcurrent checks all entries in parallel. The first
// match cancels the remaining checks; cancellation is advisory, since
// an already-issued remote call runs to completion server-side either
// way.
func (e *Engine) anyMembershipConcurrent(ctx context.Context, in Input) string {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		matched string
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range e.allowedOrgs {
		entry := entry
		g.Go(func() error {
			defer observability.RecoverPanic(e.logger, "membership check")
			if e.verifier.IsMember(gctx, queryFor(entry, in)) {
				mu.Lock()
				if matched == "" {
					matched = entry
				}
				mu.Unlock()
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()
	return matched
}

func queryFor(entry string, in Input) membership.Query {
	org, team := membership.ParseOrgTeam(entry)
	return membership.Query{
		Org:         org,
		Team:        team,
		Username:    in.Username,
		AccessToken: in.AccessToken,
		TokenType:   in.TokenType,
	}
}

func (e *Engine) logDecision(in Input, d Decision) {
	switch d.Outcome {
	case OutcomeDeny:
		log := e.logger.WithFields(map[string]interface{}{
			"username": in.Username,
			"reason":   string(d.Reason),
		})
		if d.Reason == DenyIdPNotAllowed && in.Claims != nil {
			log = log.WithField("idp", in.Claims.IdP())
		}
		log.Warn("login denied")
	case OutcomeAllow:
		e.logger.WithField("username", in.Username).Debug("login authorized")
	}
}
