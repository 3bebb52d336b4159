package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// systemPrompt pins the model to the response schema the parser expects.
const systemPrompt = `You are a marine biologist identifying sea life in underwater photographs.
Identify every visible organism. For each one report its common name, scientific
name if you are certain of it, a confidence between 0 and 1, and a bounding box
with x, y, width, height as fractions of the image dimensions measured from the
top-left corner. Organisms you cannot identify go into unknownSpecies with a
short description.

Respond with JSON only (no markdown):
{"detections": [{"species": "Clownfish", "scientificName": "Amphiprion ocellaris", "confidence": 0.92, "boundingBox": {"x": 0.1, "y": 0.2, "width": 0.3, "height": 0.25}}], "unknownSpecies": [{"description": "small translucent shrimp", "confidence": 0.4, "boundingBox": {"x": 0.5, "y": 0.5, "width": 0.1, "height": 0.1}}]}`

const analysisPrompt = "Identify all marine life in this photo."

// AnthropicProvider analyzes images through the Anthropic messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// NewAnthropicProvider builds a provider from the vision settings.
func NewAnthropicProvider(settings *conf.VisionSettings) (*AnthropicProvider, error) {
	if settings.APIKey == "" {
		return nil, errors.Newf("anthropic provider requires an API key").
			Component("vision").
			Category(errors.CategoryConfiguration).
			Build()
	}

	model := settings.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := int64(settings.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicProvider{
		client:    anthropic.NewClient(option.WithAPIKey(settings.APIKey)),
		model:     model,
		maxTokens: maxTokens,
		timeout:   time.Duration(settings.Timeout) * time.Second,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Analyze sends the image with the identification prompt and returns the
// model's text response.
func (p *AnthropicProvider) Analyze(ctx context.Context, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image payload")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	mediaType := http.DetectContentType(imageData)
	if !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("unsupported payload type %s", mediaType)
	}
	encoded := base64.StdEncoding.EncodeToString(imageData)

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, encoded),
				anthropic.NewTextBlock(analysisPrompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in model response")
	}

	logger.Debug("Model response received",
		"model", p.model,
		"response_bytes", sb.Len(),
		"tokens_in", message.Usage.InputTokens,
		"tokens_out", message.Usage.OutputTokens)
	return sb.String(), nil
}
