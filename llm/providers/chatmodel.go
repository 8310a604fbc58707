package providers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gatherinfo/llm"

	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelConfig defines the configuration for creating a chat model.
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewChatModel creates an OpenAI-compatible chat model from specific configuration.
func NewChatModel(ctx context.Context, config *ChatModelConfig) (model.ToolCallingChatModel, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required in config")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	modelName := config.Model
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:  config.APIKey,
		BaseURL: baseURL,
		Model:   modelName,
	})
}

// ChatCompleter adapts an eino chat model to llm.Completer with a single
// user message per prompt.
type ChatCompleter struct {
	model model.BaseChatModel
}

func NewChatCompleter(m model.BaseChatModel) *ChatCompleter {
	return &ChatCompleter{model: m}
}

func (c *ChatCompleter) Complete(ctx context.Context, prompt string, opts ...llm.CallOption) (string, error) {
	o := llm.ApplyOptions(opts...)

	var modelOpts []model.Option
	if o.Model != "" {
		modelOpts = append(modelOpts, model.WithModel(o.Model))
	}
	if o.Temperature != nil {
		modelOpts = append(modelOpts, model.WithTemperature(*o.Temperature))
	}

	msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, modelOpts...)
	if err != nil {
		return "", chatModelError(err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

var (
	statusCodeRe = regexp.MustCompile(`(?i)status(?:\s*code)?\s*[:=]?\s*(\d{3})\b`)
	statusNameRe = regexp.MustCompile(`\b[A-Za-z]+(?:_[A-Za-z]+)+\b`)
)

// chatModelError recovers the HTTP status from the error text. OpenAI
// compatible clients report it as "status code: 429, status: 429 Too Many
// Requests, message: ...".
func chatModelError(err error) error {
	if se := geminiError(err); se.Code != 0 || se.Status != "" {
		return se
	}
	msg := err.Error()
	se := &llm.StatusError{Err: err}
	if m := statusCodeRe.FindStringSubmatch(msg); m != nil {
		se.Code, _ = strconv.Atoi(m[1])
	}
	if m := statusNameRe.FindString(msg); m != "" {
		se.Status = strings.ToUpper(m)
	}
	return se
}
