package handlers

import (
	"rapport/pkg/envelope"
	"rapport/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	svc services.AuthService
}

func NewUsers(svc services.AuthService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	user, err := h.svc.Me(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return envelope.OK(c, fiber.Map{"user": user})
}
