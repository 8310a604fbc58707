package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gatherinfo/llm"

	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// GeminiConfig defines the configuration for the Gemini API completer.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// HTTPClient is optional. Its Timeout bounds every call.
	HTTPClient *http.Client
}

// Gemini completes prompts with the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	client, modelName, err := newGenaiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: modelName}, nil
}

// NewGeminiChatModel serves Gemini through the eino chat model interface,
// for callers that want tool calling on top of plain completion.
func NewGeminiChatModel(ctx context.Context, cfg GeminiConfig) (model.ToolCallingChatModel, error) {
	client, modelName, err := newGenaiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return geminiModel.NewChatModel(ctx, &geminiModel.Config{
		Client: client,
		Model:  modelName,
	})
}

func newGenaiClient(ctx context.Context, cfg GeminiConfig) (*genai.Client, string, error) {
	if cfg.APIKey == "" {
		return nil, "", fmt.Errorf("gemini: API key is required (GEMINI_API_KEY)")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, modelName, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string, opts ...llm.CallOption) (string, error) {
	o := llm.ApplyOptions(opts...)
	modelName := g.model
	if o.Model != "" {
		modelName = o.Model
	}

	var config *genai.GenerateContentConfig
	if o.Temperature != nil {
		config = &genai.GenerateContentConfig{Temperature: genai.Ptr(*o.Temperature)}
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), config)
	if err != nil {
		return "", geminiError(err)
	}
	return resp.Text(), nil
}

// geminiError lifts the SDK's APIError into a StatusError.
func geminiError(err error) *llm.StatusError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.StatusError{Code: apiErr.Code, Status: apiErr.Status, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &llm.StatusError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Err: err}
	}
	return &llm.StatusError{Err: err}
}
