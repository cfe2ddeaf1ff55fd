// Package gemini implements the vision model capability on Vertex AI Gemini.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"

	"github.com/qb-bastiaan/invoice-processor-app/internal/common"
	"github.com/qb-bastiaan/invoice-processor-app/internal/extract"
)

// Appended to every call; the model is reminded on each pass that the final
// artifact of the conversation is schema-shaped JSON.
const jsonOutputReminder = "\nEnsure your entire response is a single, valid JSON object based on the provided schema. Do not include any text outside of the JSON structure."

// Client calls Gemini with an inline document payload. It implements
// extract.ModelCaller.
type Client struct {
	cfg    common.GeminiConfig
	base   *genai.Client
	logger *slog.Logger
}

// NewClient builds the Vertex AI client. Close must be called on shutdown.
func NewClient(ctx context.Context, cfg common.GeminiConfig, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, common.NewAppError("GEMINI_CONFIG_ERROR",
			"project ID and location are required", common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, base: base, logger: logger}, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// GenerateText submits the system prompt, the document and the ordered
// context parts, returning the concatenated text of the first candidate.
// An empty string with a nil error means the model produced no usable text;
// the caller decides what that means for its pass.
func (c *Client) GenerateText(ctx context.Context, systemPrompt string, doc extract.InlineDocument, contextParts []string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	model := c.base.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		TopK:            genai.Ptr[int32](1),
		TopP:            genai.Ptr[float32](1),
		MaxOutputTokens: genai.Ptr[int32](8192),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}

	parts := make([]genai.Part, 0, len(contextParts)+2)
	parts = append(parts, genai.Blob{MIMEType: doc.MediaType, Data: doc.Data})
	for _, p := range contextParts {
		parts = append(parts, genai.Text(p))
	}
	parts = append(parts, genai.Text(jsonOutputReminder))

	c.logger.Info("gemini.call",
		"req_id", rid,
		"model", c.cfg.Model,
		"media_type", doc.MediaType,
		"doc_bytes", len(doc.Data),
		"context_parts", len(contextParts),
	)

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		c.logger.Error("gemini.call_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}

	text := firstCandidateText(resp)
	if text == "" {
		c.logger.Warn("gemini.empty_response",
			"req_id", rid,
			"candidates", len(resp.Candidates),
			"finish_reason", firstFinishReason(resp),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", nil
	}

	c.logger.Info("gemini.call_ok",
		"req_id", rid,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

func firstFinishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return "no_candidates"
	}
	return resp.Candidates[0].FinishReason.String()
}
