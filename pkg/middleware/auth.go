package middleware

import (
	"strings"

	"rapport/pkg/apperr"
	"rapport/pkg/auth"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// PrincipalLocal is the fiber Locals key holding the *auth.Principal.
const PrincipalLocal = "principal"

type TokenValidator interface {
	Validate(token string) (*auth.Principal, error)
}

// RequireAuth rejects requests without a valid bearer access token.
// A missing header is 2001; anything that is not a well-formed, valid
// token is 2003, or 2002 once it has expired.
func RequireAuth(v TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return apperr.ErrUnauthenticated
		}
		token, ok := bearerToken(header)
		if !ok {
			return apperr.ErrTokenInvalid
		}
		return authenticate(c, v, token)
	}
}

// WebSocketAuth authenticates upgrade requests. Browsers cannot set headers on
// websocket handshakes, so the token may also come as ?token=.
func WebSocketAuth(v TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Query("token")
		if token == "" {
			if header := c.Get(fiber.HeaderAuthorization); header != "" {
				var ok bool
				if token, ok = bearerToken(header); !ok {
					return apperr.ErrTokenInvalid
				}
			}
		}
		if token == "" {
			return apperr.ErrUnauthenticated
		}
		return authenticate(c, v, token)
	}
}

func authenticate(c *fiber.Ctx, v TokenValidator, token string) error {
	p, err := v.Validate(token)
	if err != nil {
		return err
	}
	c.Locals(PrincipalLocal, p)
	c.SetUserContext(auth.WithPrincipal(c.UserContext(), p))
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Principal returns the authenticated principal of the request, if any.
func Principal(c *fiber.Ctx) (*auth.Principal, bool) {
	p, ok := c.Locals(PrincipalLocal).(*auth.Principal)
	return p, ok && p != nil
}
