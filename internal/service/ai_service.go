package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	config "github.com/instagrid/instagrid/configs"
	"github.com/instagrid/instagrid/internal/transfer"
)

const geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// AnalysisOptions carry the operator's free-text guidance for a grid
// analysis: an optional common thread plus per-image context.
type AnalysisOptions struct {
	UserContext  string
	ImageContext [3]string
}

// AIGenerator produces grid analyses and caption regenerations from images.
// Concrete variants differ only in the model endpoint behind them; picking
// one is a configuration-time decision.
type AIGenerator interface {
	AnalyzeGrid(ctx context.Context, images [][]byte, opts AnalysisOptions) (*transfer.AnalysisResponse, error)
	RegenerateCaption(ctx context.Context, image []byte, req *transfer.RegenerateRequest) (string, error)

	// Ping verifies the provider is reachable with the configured key.
	Ping(ctx context.Context) bool
}

type prompts struct {
	GridAnalysis struct {
		System string `yaml:"system"`
	} `yaml:"instagram_grid_analysis"`
	SingleCaption struct {
		System string `yaml:"system"`
	} `yaml:"single_image_caption"`
}

func loadPrompts(path string) (*prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	var p prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}
	return &p, nil
}

type chatGenerator struct {
	client  *openai.Client
	model   string
	prompts *prompts
}

// NewAIGenerator builds the generator for the named provider. "gemini" talks
// to Google's OpenAI-compatible endpoint; anything else defaults to OpenAI.
func NewAIGenerator(cfg config.Config, provider string) (AIGenerator, error) {
	promptSet, err := loadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(provider, "gemini") {
		if cfg.GeminiKey == "" {
			return nil, errors.New("GEMINI_API_KEY is not configured")
		}
		clientCfg := openai.DefaultConfig(cfg.GeminiKey)
		clientCfg.BaseURL = geminiOpenAIBaseURL
		return &chatGenerator{
			client:  openai.NewClientWithConfig(clientCfg),
			model:   "gemini-2.0-flash",
			prompts: promptSet,
		}, nil
	}

	if cfg.OpenAIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is not configured")
	}
	return &chatGenerator{
		client:  openai.NewClient(cfg.OpenAIKey),
		model:   "gpt-4o-mini",
		prompts: promptSet,
	}, nil
}

var gridPositions = [3]string{"Image 1 (Left)", "Image 2 (Middle)", "Image 3 (Right)"}

const analyzeUserPrompt = "Analyze these 3 images for an Instagram grid strategy. " +
	"The goal is a single coherent row of 3 consecutive photos on the profile: image 3 (Right) " +
	"is posted first, then 2 (Middle), then 1 (Left), so they appear left to right."

func (g *chatGenerator) AnalyzeGrid(ctx context.Context, images [][]byte, opts AnalysisOptions) (*transfer.AnalysisResponse, error) {
	systemPrompt := fill(g.prompts.GridAnalysis.System, map[string]string{
		"common_instruction": optional("IMPORTANT - COMMON THREAD: ", opts.UserContext),
		"context_0":          optional("Context for Image 1 (Left): ", opts.ImageContext[0]),
		"context_1":          optional("Context for Image 2 (Middle): ", opts.ImageContext[1]),
		"context_2":          optional("Context for Image 3 (Right): ", opts.ImageContext[2]),
	})

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: analyzeUserPrompt},
	}
	for idx, img := range images {
		parts = append(parts,
			openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: "--- " + gridPositions[idx] + " ---"},
			imagePart(img),
		)
	}

	var result transfer.AnalysisResponse
	if err := g.completeJSON(ctx, systemPrompt, parts, &result); err != nil {
		return nil, fmt.Errorf("grid analysis failed: %w", err)
	}

	// Models occasionally answer with 1-based indices.
	if oneBased(result.SuggestedOrder) {
		slog.Info("normalizing 1-based order from model", "order", result.SuggestedOrder)
		for i := range result.SuggestedOrder {
			result.SuggestedOrder[i]--
		}
	}
	return &result, nil
}

func (g *chatGenerator) RegenerateCaption(ctx context.Context, image []byte, req *transfer.RegenerateRequest) (string, error) {
	history := "None yet."
	if len(req.CaptionsHistory) > 0 {
		var b strings.Builder
		for _, c := range req.CaptionsHistory {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		history = b.String()
	}

	systemPrompt := fill(g.prompts.SingleCaption.System, map[string]string{
		"common_instruction": fallback(req.CommonContext, "No specific common thread."),
		"individual_context": fallback(req.IndividualContext, "No specific context."),
		"common_thread_fr":   req.CommonThreadFR,
		"common_thread_en":   req.CommonThreadEN,
		"captions_history":   history,
	})

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: "Regenerate the specific part of the caption."},
		imagePart(image),
	}

	var result struct {
		SpecificFR string `json:"specific_fr"`
		SpecificEN string `json:"specific_en"`
	}
	if err := g.completeJSON(ctx, systemPrompt, parts, &result); err != nil {
		return "", fmt.Errorf("caption regeneration failed: %w", err)
	}

	return fmt.Sprintf("%s %s\n\n%s %s", result.SpecificFR, req.CommonThreadFR, result.SpecificEN, req.CommonThreadEN), nil
}

func (g *chatGenerator) Ping(ctx context.Context) bool {
	if _, err := g.client.ListModels(ctx); err != nil {
		slog.Warn("AI provider ping failed", "model", g.model, "error", err)
		return false
	}
	return true
}

func (g *chatGenerator) completeJSON(ctx context.Context, systemPrompt string, parts []openai.ChatMessagePart, out any) error {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return errors.New("empty completion")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("model returned unparseable JSON: %w", err)
	}
	return nil
}

func imagePart(img []byte) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
		},
	}
}

// fill replaces {name} placeholders in a prompt template.
func fill(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func optional(prefix, value string) string {
	if value == "" {
		return ""
	}
	return prefix + value
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func oneBased(order []int) bool {
	for _, idx := range order {
		if idx > 2 {
			return true
		}
	}
	return false
}
