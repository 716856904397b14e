package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"rapport/pkg/apperr"
	"rapport/pkg/auth"
	"rapport/pkg/envelope"
	"rapport/pkg/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type stubValidator struct{}

func (stubValidator) Validate(token string) (*auth.Principal, error) {
	switch token {
	case "good":
		return &auth.Principal{UserID: 7, TokenID: "jti-7"}, nil
	case "expired":
		return nil, apperr.ErrTokenExpired
	default:
		return nil, apperr.ErrTokenInvalid
	}
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Nop())})
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decode(t *testing.T, body []byte) envelope.Envelope {
	t.Helper()
	e, err := envelope.Unmarshal(body)
	require.NoError(t, err)
	return e
}

func rawMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func get(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func post(path string) *http.Request {
	return httptest.NewRequest(http.MethodPost, path, nil)
}
