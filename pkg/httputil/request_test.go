package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

func TestParseJSON(t *testing.T) {
	body := bytes.NewReader([]byte(`{"username": "alice", "admin": true}`))
	req := httptest.NewRequest(http.MethodPost, "/", body)

	var payload testPayload
	err := ParseJSON(req, &payload)

	require.NoError(t, err)
	assert.Equal(t, "alice", payload.Username)
	assert.True(t, payload.Admin)
}

func TestParseJSON_Invalid(t *testing.T) {
	body := bytes.NewReader([]byte(`{not json`))
	req := httptest.NewRequest(http.MethodPost, "/", body)

	var payload testPayload
	err := ParseJSON(req, &payload)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParseJSONOrError(t *testing.T) {
	body := bytes.NewReader([]byte(`{"username": "alice"}`))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	w := httptest.NewRecorder()

	var payload testPayload
	ok := ParseJSONOrError(w, req, &payload)

	assert.True(t, ok)
	assert.Equal(t, "alice", payload.Username)
}

func TestParseJSONOrError_WritesBadRequest(t *testing.T) {
	body := bytes.NewReader([]byte(`{not json`))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	w := httptest.NewRecorder()

	var payload testPayload
	ok := ParseJSONOrError(w, req, &payload)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
