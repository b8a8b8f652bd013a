package http_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/oof2win2/library-review-site/internal/http"
	"github.com/oof2win2/library-review-site/internal/pkg/cookie"
	"github.com/oof2win2/library-review-site/internal/services/auth"
	"github.com/oof2win2/library-review-site/internal/storage/inmemory"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := inmemory.New(log)
	transport := cookie.NewTransport("seq", false)

	service := auth.NewSessionService(log, store, store, transport, auth.SessionParams{
		TTL:    time.Hour,
		Secret: []byte("test"),
	}).WithEvents(store)

	server := httpserver.New(
		httpserver.WithLogger(log),
		httpserver.WithAddr(":0"),
		httpserver.WithRequestTimeout(5*time.Second),
		httpserver.WithAuth(service, transport),
	)
	return server.Router()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, cookieValue string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	r := httptest.NewRequest(method, path, reader)
	if cookieValue != "" {
		r.Header.Set("Cookie", "seq="+cookieValue)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

// credentialFromResponse pulls the cookie value out of the Set-Cookie header,
// the way a browser would store it.
func credentialFromResponse(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	setCookie := w.Header().Get("Set-Cookie")
	require.NotEmpty(t, setCookie)

	value, found := strings.CutPrefix(setCookie, "seq=")
	require.True(t, found, "unexpected Set-Cookie: %s", setCookie)
	value, _, _ = strings.Cut(value, ";")
	return value
}

func TestSignupLoginMeLogout(t *testing.T) {
	handler := newTestHandler(t)

	// Signup.
	w := doJSON(t, handler, http.MethodPost, "/api/user/signup", map[string]string{
		"email":    "reader@example.com",
		"name":     "reader",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate signup.
	w = doJSON(t, handler, http.MethodPost, "/api/user/signup", map[string]string{
		"email":    "reader@example.com",
		"password": "password456",
	}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Login sets the credential cookie.
	w = doJSON(t, handler, http.MethodPost, "/api/user/login", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	setCookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, "seq=Bearer ")
	assert.Contains(t, setCookie, "HttpOnly")
	assert.Contains(t, setCookie, "Max-Age=3600")
	assert.Contains(t, setCookie, "Path=/")

	credential := credentialFromResponse(t, w)

	// Authenticated request.
	w = doJSON(t, handler, http.MethodGet, "/api/user/me", nil, credential)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "reader@example.com", me.Email)

	// Logout revokes server-side and overwrites the cookie.
	w = doJSON(t, handler, http.MethodPost, "/api/user/logout", nil, credential)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=1")

	// The revoked credential no longer authenticates.
	w = doJSON(t, handler, http.MethodGet, "/api/user/me", nil, credential)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRenewsPreviousSession(t *testing.T) {
	handler := newTestHandler(t)

	w := doJSON(t, handler, http.MethodPost, "/api/user/signup", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/api/user/login", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	first := credentialFromResponse(t, w)

	// Second login from the same browser renews the same session id.
	w = doJSON(t, handler, http.MethodPost, "/api/user/login", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
	}, first)
	require.Equal(t, http.StatusOK, w.Code)
	second := credentialFromResponse(t, w)

	firstJti := jtiOf(t, first)
	assert.Equal(t, firstJti, jtiOf(t, second))
}

// jtiOf decodes the payload segment without verifying; tests only need the
// session id claim.
func jtiOf(t *testing.T, credential string) string {
	t.Helper()

	raw := strings.TrimPrefix(credential, "Bearer ")
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims struct {
		Jti string `json:"jti"`
	}
	require.NoError(t, json.Unmarshal(payload, &claims))
	return claims.Jti
}

func TestAuthFailures(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		credential string
		wantCode   int
	}{
		{name: "me_without_cookie", method: http.MethodGet, path: "/api/user/me", wantCode: http.StatusUnauthorized},
		{name: "me_with_garbage", method: http.MethodGet, path: "/api/user/me", credential: "Bearer garbage", wantCode: http.StatusUnauthorized},
		{name: "login_unknown_user", method: http.MethodPost, path: "/api/user/login", body: map[string]string{"email": "nobody@example.com", "password": "x"}, wantCode: http.StatusUnauthorized},
		{name: "login_missing_fields", method: http.MethodPost, path: "/api/user/login", body: map[string]string{}, wantCode: http.StatusBadRequest},
		{name: "signup_missing_fields", method: http.MethodPost, path: "/api/user/signup", body: map[string]string{}, wantCode: http.StatusBadRequest},
		{name: "logout_without_cookie", method: http.MethodPost, path: "/api/user/logout", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler, tt.method, tt.path, tt.body, tt.credential)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
