package handlers

import (
	"time"

	"rapport/pkg/envelope"
	"rapport/pkg/models"
	"rapport/pkg/services"

	"github.com/gofiber/fiber/v2"
)

const refreshCookie = "refresh_token"

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	Secure bool
	TTL    time.Duration
}

type AuthHandler struct {
	svc    services.AuthService
	cookie CookieConfig
}

func NewAuth(svc services.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.Register(c.UserContext(), req, sessionMeta(c))
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, resp.RefreshToken)
	return envelope.Created(c, resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.Login(c.UserContext(), req, sessionMeta(c))
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, resp.RefreshToken)
	return envelope.OK(c, resp)
}

// Refresh rotates the refresh token sent in the body or, failing that, the cookie.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token, err := refreshToken(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.Refresh(c.UserContext(), token, sessionMeta(c))
	if err != nil {
		h.clearRefreshCookie(c)
		return err
	}
	h.setRefreshCookie(c, resp.RefreshToken)
	return envelope.OK(c, resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	token, err := refreshToken(c)
	if err != nil {
		return err
	}
	if err := h.svc.Logout(c.UserContext(), uid, token); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	return envelope.OK(c, nil)
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.svc.LogoutAll(c.UserContext(), uid); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	return envelope.OK(c, nil)
}

func (h *AuthHandler) Sessions(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	sessions, err := h.svc.Sessions(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return envelope.OK(c, fiber.Map{"sessions": sessions})
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req models.ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.ChangePassword(c.UserContext(), uid, req, sessionMeta(c))
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, resp.RefreshToken)
	return envelope.OK(c, resp)
}

func refreshToken(c *fiber.Ctx) (string, error) {
	var req models.RefreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return "", errMalformedBody
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Cookies(refreshCookie)
	}
	return req.RefreshToken, nil
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookie.TTL),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: "Lax",
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: "Lax",
	})
}
