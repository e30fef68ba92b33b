package sso

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserinfoServer(t *testing.T, status int, body map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewUserinfoClient_RequiresEndpoint(t *testing.T) {
	_, err := NewUserinfoClient(context.Background(), ClientConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer_url or userinfo_url")
}

func TestFetchClaims_Direct(t *testing.T) {
	srv := newUserinfoServer(t, http.StatusOK, map[string]interface{}{
		"eppn":           "alice@example.edu",
		"email":          "alice@example.edu",
		"idp":            "https://idp.example/shibboleth",
		"email_verified": true,
		"groups":         []string{"staff"},
	})
	defer srv.Close()

	client, err := NewUserinfoClient(context.Background(), ClientConfig{
		UserinfoURL: srv.URL,
		HTTPClient:  srv.Client(),
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	set, err := client.FetchClaims(context.Background(), "tok", "")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.edu", set["eppn"])
	assert.Equal(t, "https://idp.example/shibboleth", set.IdP())

	// Non-string claims do not survive flattening.
	_, ok := set["email_verified"]
	assert.False(t, ok)
	_, ok = set["groups"]
	assert.False(t, ok)
}

func TestFetchClaims_UpstreamError(t *testing.T) {
	srv := newUserinfoServer(t, http.StatusUnauthorized, map[string]interface{}{
		"error": "invalid_token",
	})
	defer srv.Close()

	client, err := NewUserinfoClient(context.Background(), ClientConfig{
		UserinfoURL: srv.URL,
		HTTPClient:  srv.Client(),
		Logger:      quietLogger(),
	})
	require.NoError(t, err)

	_, err = client.FetchClaims(context.Background(), "tok", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewUserinfoClient_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewUserinfoClient(context.Background(), ClientConfig{
		IssuerURL:  srv.URL,
		HTTPClient: srv.Client(),
		Logger:     quietLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover")
}
