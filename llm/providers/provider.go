package providers

import (
	"context"
	"fmt"
	"net/http"

	"gatherinfo/config"
	"gatherinfo/llm"

	"github.com/cloudwego/eino/components/model"
)

// New builds the raw completer selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case "gemini", "":
		return NewGemini(ctx, GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		})
	case "gemini-chat":
		cm, err := NewGeminiChatModel(ctx, GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		})
		if err != nil {
			return nil, err
		}
		return NewChatCompleter(cm), nil
	case "openai":
		cm, err := NewChatModel(ctx, &ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		return NewChatCompleter(cm), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewToolCallingModel builds the eino chat model behind cfg.Provider, for
// agents. Both Gemini providers go through the eino Gemini model here.
func NewToolCallingModel(ctx context.Context, cfg config.LLMConfig) (model.ToolCallingChatModel, error) {
	switch cfg.Provider {
	case "gemini", "gemini-chat", "":
		return NewGeminiChatModel(ctx, GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		})
	case "openai":
		return NewChatModel(ctx, &ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
