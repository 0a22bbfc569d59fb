package handlers

import (
	"encoding/base64"
	"io"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"

	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/imaging"
	"github.com/instagrid/instagrid/internal/models"
	"github.com/instagrid/instagrid/internal/service"
	"github.com/instagrid/instagrid/internal/transfer"
)

const analysisMaxSizeKB = 800

// AnalysisHandler drives the AI endpoints. Generators are built per request
// so the operator can switch providers without a restart.
type AnalysisHandler struct {
	cfg          config.Config
	newGenerator func(provider string) (service.AIGenerator, error)
}

func NewAnalysisHandler(cfg config.Config) *AnalysisHandler {
	return &AnalysisHandler{
		cfg: cfg,
		newGenerator: func(provider string) (service.AIGenerator, error) {
			return service.NewAIGenerator(cfg, provider)
		},
	}
}

// Analyze scores 3 uploaded images as a grid row and proposes ordering,
// captions and hashtags.
func (h *AnalysisHandler) Analyze(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	files := form.File["files"]
	if len(files) != models.GridPostCount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Please upload exactly 3 images",
		})
	}

	images := make([][]byte, 0, models.GridPostCount)
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unable to read file"})
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unable to read file"})
		}

		// Shrink before shipping to the model; vision pricing scales with
		// input size.
		compressed, err := imaging.Compress(raw, analysisMaxSizeKB)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		images = append(images, compressed)
	}

	provider := c.FormValue("ai_provider", h.cfg.AIProvider)
	generator, err := h.newGenerator(provider)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := generator.AnalyzeGrid(c.Context(), images, service.AnalysisOptions{
		UserContext: c.FormValue("user_context"),
		ImageContext: [3]string{
			c.FormValue("context_0"),
			c.FormValue("context_1"),
			c.FormValue("context_2"),
		},
	})
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *AnalysisHandler) RegenerateCaption(c *fiber.Ctx) error {
	var req transfer.RegenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid base64 image",
		})
	}

	provider := req.AIProvider
	if provider == "" {
		provider = h.cfg.AIProvider
	}
	generator, err := h.newGenerator(provider)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	caption, err := generator.RegenerateCaption(c.Context(), image, &req)
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(transfer.RegenerateResponse{Caption: caption})
}

// ListProviders pings each configured provider in parallel and reports the
// ones answering.
func (h *AnalysisHandler) ListProviders(c *fiber.Ctx) error {
	type providerInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	candidates := []providerInfo{
		{ID: "openai", Name: "OpenAI GPT-4o"},
		{ID: "gemini", Name: "Google Gemini Flash"},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	available := make([]providerInfo, 0, len(candidates))

	for _, candidate := range candidates {
		wg.Add(1)
		go func(p providerInfo) {
			defer wg.Done()
			generator, err := h.newGenerator(p.ID)
			if err != nil {
				return
			}
			if generator.Ping(c.Context()) {
				mu.Lock()
				available = append(available, p)
				mu.Unlock()
			}
		}(candidate)
	}
	wg.Wait()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"providers": available})
}
