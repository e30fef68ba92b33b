// Package membership checks org and team membership against a remote
// REST API, the provider-specific allow-list dimension of the
// authorization decision.
//
// The upstream contract follows the GitHub REST shape: a no-content
// success on the membership endpoint means "member", a client error
// means "not a member", and list endpoints paginate through rel="next"
// Link headers. Any failure to verify is treated as "not a member"; an
// unreachable membership API must deny, never allow.
package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fedgate/fedgate/pkg/observability"
)

// DefaultMaxPages bounds pagination so a misbehaving upstream returning
// an endless rel="next" chain cannot pin a login forever.
const DefaultMaxPages = 64

// Query identifies one org or org/team membership check. One Query is
// built per allow-list entry and discarded with the decision.
type Query struct {
	Org         string
	Team        string // empty for org-level checks
	Username    string
	AccessToken string
	TokenType   string
}

// String renders the query target for logging, without the token.
func (q Query) String() string {
	if q.Team != "" {
		return q.Org + ":" + q.Team
	}
	return q.Org
}

// ParseOrgTeam splits an allow-list entry like "org-a" or "org-b:team-x"
// into its organization and optional team parts.
func ParseOrgTeam(entry string) (org, team string) {
	org, team, _ = strings.Cut(entry, ":")
	return org, team
}

// Config holds verifier configuration
type Config struct {
	// APIBase is the upstream REST API root, e.g. https://api.github.com
	APIBase string

	// HTTPClient issues all upstream calls. Its timeout bounds each
	// suspension point; retries, if any, belong to it, not to the
	// verifier. Defaults to a client with a 10s timeout.
	HTTPClient *http.Client

	// MaxPages caps pagination. Zero means DefaultMaxPages.
	MaxPages int

	// RequestsPerSecond and Burst configure the local rate limiter in
	// front of the upstream API. Zero values disable limiting.
	RequestsPerSecond float64
	Burst             int

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Verifier performs remote membership checks and paginated fetches
type Verifier struct {
	apiBase  string
	client   *http.Client
	limiter  *rate.Limiter
	maxPages int
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewVerifier creates a verifier for the configured upstream API
func NewVerifier(cfg Config) *Verifier {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Verifier{
		apiBase:  strings.TrimRight(cfg.APIBase, "/"),
		client:   client,
		limiter:  limiter,
		maxPages: maxPages,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

// IsMember reports whether the user belongs to the queried org or team.
// Every failure mode short of a no-content success counts as "not a
// member": unexpected statuses and transport errors are logged and
// denied, never surfaced as authorization errors.
func (v *Verifier) IsMember(ctx context.Context, q Query) bool {
	var endpoint string
	if q.Team != "" {
		endpoint = fmt.Sprintf("%s/orgs/%s/teams/%s/members/%s",
			v.apiBase, url.PathEscape(q.Org), url.PathEscape(q.Team), url.PathEscape(q.Username))
	} else {
		endpoint = fmt.Sprintf("%s/orgs/%s/members/%s",
			v.apiBase, url.PathEscape(q.Org), url.PathEscape(q.Username))
	}

	log := v.logger.WithFields(map[string]interface{}{
		"username": q.Username,
		"org_team": q.String(),
	})
	log.Debug("checking organization membership")

	start := time.Now()
	resp, err := v.get(ctx, endpoint, q.AccessToken, q.TokenType)
	if err != nil {
		v.metrics.ObserveMembershipCheck(false, time.Since(start))
		log.WithError(err).Debug("membership check failed, treating as non-member")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		v.metrics.ObserveMembershipCheck(true, time.Since(start))
		log.Debug("user is a member")
		return true
	}

	v.metrics.ObserveMembershipCheck(false, time.Since(start))
	log.WithFields(map[string]interface{}{
		"status":  resp.StatusCode,
		"message": upstreamMessage(resp.Body),
	}).Debug("user is not a member")
	return false
}

// FetchAllPages issues a GET to startURL and follows rel="next" Link
// headers, returning the concatenation of every page's JSON array body
// in page order. The walk stops after the configured page ceiling and
// reports the truncation as an error alongside what was gathered.
func (v *Verifier) FetchAllPages(ctx context.Context, startURL, accessToken, tokenType string) ([]json.RawMessage, error) {
	var items []json.RawMessage

	pageURL := startURL
	for page := 0; page < v.maxPages; page++ {
		resp, err := v.get(ctx, pageURL, accessToken, tokenType)
		if err != nil {
			return items, fmt.Errorf("failed to fetch page %q: %w", pageURL, err)
		}

		if resp.StatusCode != http.StatusOK {
			msg := upstreamMessage(resp.Body)
			resp.Body.Close()
			return items, fmt.Errorf("unexpected status %d fetching %q: %s", resp.StatusCode, pageURL, msg)
		}

		var pageItems []json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&pageItems)
		linkHeader := resp.Header.Get("Link")
		resp.Body.Close()
		if err != nil {
			return items, fmt.Errorf("failed to decode page %q: %w", pageURL, err)
		}
		items = append(items, pageItems...)
		v.metrics.ObservePageFetched()

		next := nextPageURL(linkHeader)
		if next == "" {
			return items, nil
		}
		pageURL = next
	}

	return items, fmt.Errorf("pagination exceeded %d pages starting at %q", v.maxPages, startURL)
}

// UserTeams lists the teams the token's user belongs to, as
// "org:team-slug" entries matching the allow-list format. The walk uses
// the token's own /user/teams listing, so it needs no username.
func (v *Verifier) UserTeams(ctx context.Context, accessToken, tokenType string) ([]string, error) {
	items, err := v.FetchAllPages(ctx, v.apiBase+"/user/teams", accessToken, tokenType)
	if err != nil {
		return nil, err
	}

	teams := make([]string, 0, len(items))
	for _, item := range items {
		var team struct {
			Slug         string `json:"slug"`
			Organization struct {
				Login string `json:"login"`
			} `json:"organization"`
		}
		if err := json.Unmarshal(item, &team); err != nil {
			return nil, fmt.Errorf("failed to decode team entry: %w", err)
		}
		if team.Slug == "" || team.Organization.Login == "" {
			continue
		}
		teams = append(teams, team.Organization.Login+":"+team.Slug)
	}
	return teams, nil
}

func (v *Verifier) get(ctx context.Context, endpoint, accessToken, tokenType string) (*http.Response, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authorizationHeader(accessToken, tokenType))

	return v.client.Do(req)
}

func authorizationHeader(accessToken, tokenType string) string {
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + accessToken
}

// upstreamMessage extracts the "message" field from an upstream error
// body for logging. Bodies that are not JSON objects yield "".
func upstreamMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	return parsed.Message
}
