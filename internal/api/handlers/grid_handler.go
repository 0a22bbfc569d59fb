package handlers

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/service"
	"github.com/instagrid/instagrid/internal/transfer"
)

const defaultRecentLimit = 12

// GridHandler covers direct interaction with the Instagram account: ad-hoc
// grid publication and the feed preview.
type GridHandler struct {
	cfg config.Config
	ps  service.PublishService
	ig  service.InstagramService
	ts  service.TokenService
}

func NewGridHandler(cfg config.Config, ps service.PublishService, ig service.InstagramService, ts service.TokenService) *GridHandler {
	return &GridHandler{cfg: cfg, ps: ps, ig: ig, ts: ts}
}

// PostGrid publishes 3 images straight from the request, without a draft.
func (h *GridHandler) PostGrid(c *fiber.Ctx) error {
	var req transfer.GridPostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if len(req.Posts) != models.GridPostCount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Must provide exactly 3 posts",
		})
	}

	creds := resolveCredentials(h.cfg, h.ts, req.AccessToken, req.IGUserID)
	if creds.AccessToken == "" || creds.IGUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing Instagram credentials (access_token / ig_user_id)",
		})
	}

	items := make([]service.GridItem, 0, models.GridPostCount)
	for idx, post := range req.Posts {
		raw, err := base64.StdEncoding.DecodeString(post.ImageBase64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Post %d: invalid base64 image", idx),
			})
		}
		items = append(items, service.GridItem{
			Image:        raw,
			Caption:      post.Caption,
			CropRatio:    models.CropRatioOriginal,
			CropPosition: models.CropPosition{X: 50, Y: 50},
		})
	}

	results, err := h.ps.PublishGrid(c.Context(), items, creds)
	if err != nil {
		return publishErrorResponse(c, results, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   "All 3 images posted",
		"published": results,
	})
}

// ListRecent returns the account's latest published media for the grid
// preview.
func (h *GridHandler) ListRecent(c *fiber.Ctx) error {
	creds := resolveCredentials(h.cfg, h.ts, c.Query("access_token"), c.Query("ig_user_id"))
	if creds.AccessToken == "" || creds.IGUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing ig_user_id or access_token",
		})
	}

	limit := c.QueryInt("limit", defaultRecentLimit)
	posts, err := h.ig.FetchRecent(c.Context(), creds.IGUserID, creds.AccessToken, limit)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"posts": posts})
}
