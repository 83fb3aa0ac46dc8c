package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/observability"
)

func newTestHandler(t *testing.T) (*Handler, *fakeStore) {
	t.Helper()
	service, store := newTestService(t)
	return NewHandler(service, observability.NewLogger()), store
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRegisterEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","password":"secret","confirm_password":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["account_id"])
	assert.Equal(t, "alice", body["username"])

	// Duplicate username.
	w = postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","password":"other","confirm_password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"user with that username already exists"}`, w.Body.String())

	// Confirmation mismatch.
	w = postJSON(t, handler.Register, "/auth/register",
		`{"username":"bob","password":"secret","confirm_password":"sceret"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"password confirmation does not match"}`, w.Body.String())
}

func TestRegisterEndpointBadInput(t *testing.T) {
	handler, _ := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"username":`},
		{"unknown field", `{"username":"alice","password":"x","confirm_password":"x","extra":1}`},
		{"empty username", `{"username":"  ","password":"secret","confirm_password":"secret"}`},
		{"empty password", `{"username":"alice","password":"","confirm_password":""}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, handler.Register, "/auth/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLoginEndpointSuccess(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","password":"secret","confirm_password":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, handler.Login, "/auth/login", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])

	account, ok := body["account"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), account["id"])
	assert.Equal(t, "alice", account["username"])
}

func TestLoginEndpointLockoutScenario(t *testing.T) {
	handler, store := newTestHandler(t)

	w := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","password":"secret","confirm_password":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	wrong := `{"username":"alice","password":"wrong"}`

	// Two wrong attempts are plain credential failures.
	for i := 0; i < 2; i++ {
		w = postJSON(t, handler.Login, "/auth/login", wrong)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
		assert.JSONEq(t, `{"error":"incorrect username or password"}`, w.Body.String())
	}

	// The third one imposes the block.
	w = postJSON(t, handler.Login, "/auth/login", wrong)
	assert.Equal(t, http.StatusForbidden, w.Code)
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 60, retryAfter, 1)
	assert.Contains(t, decodeBody(t, w)["error"], "account blocked")

	// Correct password while blocked is still rejected.
	w = postJSON(t, handler.Login, "/auth/login", `{"username":"alice","password":"secret"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// After the block expires, the correct password works again.
	expired := time.Now().UTC().Add(-time.Second)
	store.setBlockedUntil(1, &expired)

	w = postJSON(t, handler.Login, "/auth/login", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, 0, store.account(t, 1).FailedLoginAttempts)
}

func TestLoginEndpointUnknownUser(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := postJSON(t, handler.Login, "/auth/login", `{"username":"ghost","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"incorrect username or password"}`, w.Body.String())
}

func TestRefreshEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := postJSON(t, handler.Register, "/auth/register",
		`{"username":"alice","password":"secret","confirm_password":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, handler.Login, "/auth/login", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	login := decodeBody(t, w)
	refreshToken := login["refresh_token"].(string)
	accessToken := login["access_token"].(string)

	// Refresh with the refresh token yields a fresh access token.
	w = postJSON(t, handler.Refresh, "/auth/login/refresh",
		`{"refresh_token":"`+refreshToken+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "bearer", body["token_type"])
	assert.NotEmpty(t, body["access_token"])

	// Refresh with the access token is rejected.
	w = postJSON(t, handler.Refresh, "/auth/login/refresh",
		`{"refresh_token":"`+accessToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid refresh token"}`, w.Body.String())
}

func TestRefreshEndpointUnknownSubject(t *testing.T) {
	handler, _ := newTestHandler(t)

	token, err := handler.service.codec.Issue(99, ClassRefresh, time.Hour)
	require.NoError(t, err)

	w := postJSON(t, handler.Refresh, "/auth/login/refresh",
		`{"refresh_token":"`+token+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"account not found"}`, w.Body.String())
}
