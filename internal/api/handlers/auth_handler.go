package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/service"
	"github.com/instagrid/instagrid/internal/transfer"
)

type AuthHandler struct {
	ts service.TokenService
}

func NewAuthHandler(ts service.TokenService) *AuthHandler {
	return &AuthHandler{ts: ts}
}

// ExchangeToken trades a short-lived token for the most durable token
// reachable and persists it.
func (h *AuthHandler) ExchangeToken(c *fiber.Ctx) error {
	var req transfer.TokenExchangeRequest
	if err := c.BodyParser(&req); err != nil || req.ShortLivedToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "short_lived_token is required",
		})
	}

	token, err := h.ts.Exchange(c.Context(), req.ShortLivedToken)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	message := "Long-lived user token saved."
	switch token.TokenType {
	case models.TokenTypePermanentPage:
		message = "Permanent page token obtained for '" + token.PageName + "'. It never expires."
	case models.TokenTypePage:
		message = "Page token obtained for '" + token.PageName + "'. Verify the page is linked to your Instagram account."
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token_type":   token.TokenType,
		"page_name":    token.PageName,
		"access_token": truncateToken(token.AccessToken),
		"message":      message,
	})
}
