// Package extract turns scraped shopping list pages into structured
// need and excess item lists using Gemini structured output.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/givefood/needwatch/internal/fetch"
	"github.com/givefood/needwatch/internal/needtext"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// retryBackoff is how long to wait before the single retry on a
// transient model error.
const retryBackoff = 60 * time.Second

// ItemLists holds the extracted item lists, one item per line,
// already cleaned for storage.
type ItemLists struct {
	NeedText   string
	ExcessText string
}

// Request describes one page to extract items from.
type Request struct {
	FoodbankName string
	SourceKind   fetch.SourceKind
	PageText     string
	PageHTML     string
}

// Extractor extracts item lists from a scraped page.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*ItemLists, error)
}

// itemListsSchema validates the model's JSON response before we trust it.
const itemListsSchema = `{
	"type": "object",
	"properties": {
		"needed": {"type": "array", "items": {"type": "string"}},
		"excess": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["needed", "excess"]
}`

// responseSchema is the structured output schema sent with every request.
// The descriptions steer the model towards Title Case, deduplicated items.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"needed": {
			Type:        genai.TypeArray,
			Description: "A list of food items the food bank is requesting or has low stock of. Items should be in Title Case and not repeated.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
		"excess": {
			Type:        genai.TypeArray,
			Description: "A list of food items the food bank has an excess of. Items should be in Title Case and not repeated.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"needed", "excess"},
}

// GeminiExtractor implements Extractor using Google Gemini.
type GeminiExtractor struct {
	client  *genai.Client
	model   string
	backoff time.Duration
}

// NewGeminiExtractor creates an extractor backed by the Gemini API.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiExtractor{
		client:  client,
		model:   model,
		backoff: retryBackoff,
	}, nil
}

// Extract asks the model for the page's need and excess lists.
// Transient server errors get exactly one retry after a backoff.
func (e *GeminiExtractor) Extract(ctx context.Context, req Request) (*ItemLists, error) {
	model := e.client.GenerativeModel(e.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema

	prompt := BuildPrompt(req)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil && isTransient(err) {
		select {
		case <-time.After(e.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		resp, err = model.GenerateContent(ctx, genai.Text(prompt))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := textFromResponse(resp)
	if err != nil {
		return nil, err
	}

	return ParseResponse(text)
}

// Close releases resources held by the client.
func (e *GeminiExtractor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ParseResponse validates and decodes a model JSON response into
// cleaned item lists.
func ParseResponse(raw string) (*ItemLists, error) {
	schemaLoader := gojsonschema.NewStringLoader(itemListsSchema)
	documentLoader := gojsonschema.NewStringLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate response: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("response does not match schema: %s", strings.Join(details, "; "))
	}

	var parsed struct {
		Needed []string `json:"needed"`
		Excess []string `json:"excess"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &ItemLists{
		NeedText:   needtext.Clean(strings.Join(parsed.Needed, "\n")),
		ExcessText: needtext.Clean(strings.Join(parsed.Excess, "\n")),
	}, nil
}

// isTransient reports whether a generate error is worth one retry.
func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return false
}

// textFromResponse extracts text from a Gemini API response.
func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
