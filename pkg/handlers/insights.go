package handlers

import (
	"rapport/pkg/envelope"
	"rapport/pkg/models"
	"rapport/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type InsightHandler struct {
	svc services.InsightService
}

func NewInsights(svc services.InsightService) *InsightHandler {
	return &InsightHandler{svc: svc}
}

func (h *InsightHandler) Preview(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req models.InsightPreviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	preview, err := h.svc.Preview(c.UserContext(), uid, req)
	if err != nil {
		return err
	}
	return envelope.OK(c, preview)
}
