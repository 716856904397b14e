package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rapport/pkg/apperr"
	"rapport/pkg/auth"
	"rapport/pkg/envelope"
	"rapport/pkg/handlers"
	"rapport/pkg/hub"
	"rapport/pkg/logging"
	"rapport/pkg/models"
	"rapport/pkg/ratelimit"
	"rapport/pkg/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopStore struct{}

func (nopStore) CreateSession(context.Context, *models.Session) error { return nil }
func (nopStore) ConsumeSession(context.Context, string, time.Time) (*models.Session, error) {
	return nil, apperr.ErrNotFound
}
func (nopStore) RevokeSession(context.Context, string) error { return nil }

type stubAuth struct {
	services.AuthService
	logins int
}

func (s *stubAuth) Login(context.Context, models.LoginRequest, models.SessionMeta) (models.AuthResponse, error) {
	s.logins++
	return models.AuthResponse{}, apperr.ErrBadCredentials
}

func (s *stubAuth) Me(_ context.Context, userID int) (models.User, error) {
	return models.User{ID: userID, Email: "ada@example.com"}, nil
}

type fixture struct {
	app    *fiber.App
	issuer *auth.Issuer
	auth   *stubAuth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.Nop()
	issuer := auth.NewIssuer(auth.IssuerConfig{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}, nopStore{})
	gate := ratelimit.NewMemoryGate()
	t.Cleanup(gate.Close)

	stub := &stubAuth{}
	app := NewApp("rapport-test", []string{"http://localhost:3000"}, log)
	Register(app, Deps{
		Auth:   stub,
		Hub:    hub.New(log),
		Tokens: issuer,
		Gate:   gate,
		Quotas: ratelimit.Quotas{
			ratelimit.ClassAuth:    {Limit: 3, Window: time.Minute},
			ratelimit.ClassDefault: {Limit: 50, Window: time.Minute},
		},
		Cookie: handlers.CookieConfig{TTL: time.Hour},
		Log:    log,
	})
	return &fixture{app: app, issuer: issuer, auth: stub}
}

func (f *fixture) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealth_CarriesTraceID(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e, err := envelope.Unmarshal(body)
	require.NoError(t, err)
	assert.NotEmpty(t, e.TraceID)
	assert.Equal(t, resp.Header.Get(fiber.HeaderXRequestID), e.TraceID)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	e, err := envelope.Unmarshal(body)
	require.NoError(t, err)
	assert.Equal(t, apperr.CodeNotFound, e.Code)
}

func TestProtectedRoute(t *testing.T) {
	f := newFixture(t)
	pair, err := f.issuer.Issue(context.Background(), 42, models.SessionMeta{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   apperr.Code
	}{
		{"no header", "", http.StatusUnauthorized, apperr.CodeUnauthenticated},
		{"malformed", "Bearer xyz", http.StatusUnauthorized, apperr.CodeTokenInvalid},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized, apperr.CodeTokenInvalid},
		{"access token", "Bearer " + pair.AccessToken, http.StatusOK, apperr.CodeOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, body := f.do(t, req)
			assert.Equal(t, tt.status, resp.StatusCode)

			e, err := envelope.Unmarshal(body)
			require.NoError(t, err)
			assert.Equal(t, tt.code, e.Code)
			if tt.code != apperr.CodeOK {
				assert.Nil(t, e.Data)
			}
		})
	}
}

func TestGateRunsBeforeHandlers(t *testing.T) {
	f := newFixture(t)

	login := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		return req
	}

	for i := 0; i < 3; i++ {
		resp, _ := f.do(t, login())
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := f.do(t, login())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"code":429,"message":"too many requests, please slow down"}`, string(body))
	assert.Equal(t, 3, f.auth.logins)
}

func TestGate_PathCaseSharesQuota(t *testing.T) {
	f := newFixture(t)

	login := func(path string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "203.0.113.10")
		return req
	}

	for _, path := range []string{"/auth/login", "/AUTH/login", "/Auth/Login"} {
		resp, _ := f.do(t, login(path))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	for _, path := range []string{"/AUTH/login", "/Auth/Login", "/auth/login"} {
		resp, _ := f.do(t, login(path))
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, path)
	}
	assert.Equal(t, 3, f.auth.logins)
}

func TestHubStatus(t *testing.T) {
	f := newFixture(t)
	pair, err := f.issuer.Issue(context.Background(), 1, models.SessionMeta{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/hub/status", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, body := f.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e, err := envelope.Unmarshal(body)
	require.NoError(t, err)
	got, err := envelope.ParseData[map[string]int](e)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"clients": 0, "users": 0}, got)
}
