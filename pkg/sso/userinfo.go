// Package sso fetches identity claims from a provider's userinfo
// endpoint once the host has completed the OAuth2 code exchange.
//
// The exchange itself is the host's concern; this package starts from an
// already-acquired access token and ends with a read-only claim set for
// the authorization decision.
package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/fedgate/fedgate/pkg/claims"
)

// UserinfoClient fetches identity claims for an access token. Exactly
// one of IssuerURL (OIDC discovery) or UserinfoURL (direct endpoint)
// drives the fetch.
type UserinfoClient struct {
	userinfoURL string
	provider    *oidc.Provider
	httpClient  *http.Client
	logger      *logrus.Logger
}

// ClientConfig configures a UserinfoClient.
type ClientConfig struct {
	// IssuerURL enables OIDC discovery; the userinfo endpoint is taken
	// from the issuer's metadata.
	IssuerURL string

	// UserinfoURL names the userinfo endpoint directly, for providers
	// without OIDC discovery.
	UserinfoURL string

	// HTTPClient issues the requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	Logger *logrus.Logger
}

// NewUserinfoClient creates a userinfo client. OIDC discovery happens
// once here, not per login.
func NewUserinfoClient(ctx context.Context, cfg ClientConfig) (*UserinfoClient, error) {
	if cfg.IssuerURL == "" && cfg.UserinfoURL == "" {
		return nil, fmt.Errorf("either issuer_url or userinfo_url is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	c := &UserinfoClient{
		userinfoURL: cfg.UserinfoURL,
		httpClient:  cfg.HTTPClient,
		logger:      logger,
	}

	if cfg.IssuerURL != "" {
		if cfg.HTTPClient != nil {
			ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
		}
		provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
		}
		c.provider = provider
	}

	return c, nil
}

// FetchClaims retrieves the identity claims for the given access token.
// Only string-valued claims survive the flattening; the decision layer
// consumes nothing else.
func (c *UserinfoClient) FetchClaims(ctx context.Context, accessToken, tokenType string) (claims.Set, error) {
	if tokenType == "" {
		tokenType = "Bearer"
	}
	token := &oauth2.Token{AccessToken: accessToken, TokenType: tokenType}

	var raw map[string]interface{}
	if c.provider != nil {
		if c.httpClient != nil {
			ctx = oidc.ClientContext(ctx, c.httpClient)
		}
		userInfo, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch user info: %w", err)
		}
		if err := userInfo.Claims(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse user info claims: %w", err)
		}
	} else {
		var err error
		raw, err = c.fetchDirect(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	set := make(claims.Set, len(raw))
	for k, v := range raw {
		if str, ok := v.(string); ok {
			set[k] = str
		}
	}

	c.logger.WithField("claims", set.Names()).Debug("fetched userinfo claims")
	return set, nil
}

func (c *UserinfoClient) fetchDirect(ctx context.Context, token *oauth2.Token) (map[string]interface{}, error) {
	httpClient := c.httpClient
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return raw, nil
}
