package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-3-flash-preview"

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	name    string
	timeout time.Duration
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string, timeout time.Duration) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(promptTemperature)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = geminiReceiptSchema

	return &Gemini{
		client:  client,
		model:   model,
		name:    modelName,
		timeout: timeout,
	}, nil
}

// Extract sends the image to Gemini and decodes the JSON answer
func (g *Gemini) Extract(ctx context.Context, imageData []byte, mediaType string) (any, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	parts := []genai.Part{
		genai.Blob{MIMEType: normalizeMediaType(mediaType), Data: imageData},
		genai.Text(receiptScanPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: fmt.Errorf("generating content: %w", err)}
	}

	data, err := decodeResponse(firstText(resp))
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: err}
	}
	return data, nil
}

// Model returns the Gemini model name
func (g *Gemini) Model() string {
	return g.name
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}

// firstText joins the text parts of the first candidate
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
