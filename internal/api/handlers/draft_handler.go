package handlers

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/queue"
	"github.com/instagrid/instagrid/internal/repository"
	"github.com/instagrid/instagrid/internal/service"
	"github.com/instagrid/instagrid/internal/transfer"
)

type DraftHandler struct {
	cfg         config.Config
	ds          service.DraftService
	ps          service.PublishService
	ts          service.TokenService
	AsynqClient *asynq.Client
	storeDir    string
}

func NewDraftHandler(cfg config.Config, ds service.DraftService, ps service.PublishService, ts service.TokenService, asynqClient *asynq.Client, storeDir string) *DraftHandler {
	return &DraftHandler{
		cfg:         cfg,
		ds:          ds,
		ps:          ps,
		ts:          ts,
		AsynqClient: asynqClient,
		storeDir:    storeDir,
	}
}

func (h *DraftHandler) ListDrafts(c *fiber.Ctx) error {
	drafts, err := h.ds.List(c.Context())
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list drafts",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"drafts": drafts})
}

func (h *DraftHandler) GetDraft(c *fiber.Ctx) error {
	draftID := c.Params("id")

	draft, err := h.ds.Get(c.Context(), draftID)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if draft == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("Draft '%s' not found", draftID),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"draft": draft})
}

func (h *DraftHandler) SaveDraft(c *fiber.Ctx) error {
	var req transfer.SaveDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	draft, err := h.ds.Save(c.Context(), &req)
	if err != nil {
		if err == service.ErrInvalidInput {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Must provide exactly 3 posts",
			})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": fmt.Sprintf("Draft saved: %s", draft.ID),
		"draft":   draft,
	})
}

func (h *DraftHandler) UpdateDraft(c *fiber.Ctx) error {
	draftID := c.Params("id")

	var req transfer.UpdateDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	draft, err := h.ds.Update(c.Context(), draftID, &req)
	if err != nil {
		if err == repository.ErrInvalidPostOrder {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if draft == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("Draft '%s' not found", draftID),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": fmt.Sprintf("Draft updated: %s", draftID),
		"draft":   draft,
	})
}

func (h *DraftHandler) DeleteDraft(c *fiber.Ctx) error {
	draftID := c.Params("id")

	deleted, err := h.ds.Delete(c.Context(), draftID)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("Draft '%s' not found", draftID),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": fmt.Sprintf("Draft deleted: %s", draftID),
	})
}

// PostDraft publishes a draft right now and blocks until the batch finishes
// or aborts. Response always reports which positions went through.
func (h *DraftHandler) PostDraft(c *fiber.Ctx) error {
	draftID := c.Params("id")

	var req transfer.PostDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	creds := resolveCredentials(h.cfg, h.ts, req.AccessToken, req.IGUserID)
	if creds.AccessToken == "" || creds.IGUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing Instagram credentials",
		})
	}

	results, err := h.ps.PublishDraft(c.Context(), draftID, req.Force, creds)
	if err != nil {
		return publishErrorResponse(c, results, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":   fmt.Sprintf("Draft '%s' published to Instagram", draftID),
		"published": results,
	})
}

// ScheduleDraft enqueues the publication for later instead of running it in
// the request.
func (h *DraftHandler) ScheduleDraft(c *fiber.Ctx) error {
	draftID := c.Params("id")

	if h.AsynqClient == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Scheduling requires a configured Redis queue",
		})
	}

	var req transfer.ScheduleDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	scheduledTime, err := time.Parse("2006-01-02T15:04", req.ScheduledTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled time format",
		})
	}
	delay := time.Until(scheduledTime)
	if delay < 0 {
		delay = 0
	}

	err = queue.EnqueueDraft(h.AsynqClient, queue.PublishDraftPayload{
		DraftID:     draftID,
		Force:       req.Force,
		AccessToken: req.AccessToken,
		IGUserID:    req.IGUserID,
	}, delay)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error scheduling publication",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": fmt.Sprintf("Draft '%s' scheduled for %s", draftID, scheduledTime.Format(time.RFC3339)),
	})
}

// servablePrefixes are the only store subtrees reachable over the image
// route. token.json and the drafts index live in the same store and must
// never be served.
var servablePrefixes = []string{"drafts/images/", "temp/"}

// GetDraftImage serves a stored image from the local filesystem backend. Only
// useful when S3 is not configured.
func (h *DraftHandler) GetDraftImage(c *fiber.Ctx) error {
	key := strings.TrimPrefix(path.Clean("/"+c.Params("*")), "/")

	servable := false
	for _, prefix := range servablePrefixes {
		if strings.HasPrefix(key, prefix) {
			servable = true
			break
		}
	}
	if !servable {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Image not found",
		})
	}

	filePath := filepath.Join(h.storeDir, filepath.FromSlash(key))
	if _, err := os.Stat(filePath); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Image not found",
		})
	}
	return c.SendFile(filePath)
}
