package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gatherinfo/logs"
	"gatherinfo/workflow"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const maxLoggedArguments = 200

// Runtime holds one conversation with an agent. Turns run one at a time.
type Runtime struct {
	mu     sync.Mutex
	runner *adk.Runner
	store  ConversationStore
}

func NewRuntime(ctx context.Context, agent adk.Agent, store ConversationStore) *Runtime {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Runtime{
		runner: adk.NewRunner(ctx, adk.RunnerConfig{
			Agent:           agent,
			EnableStreaming: false,
		}),
		store: store,
	}
}

// Run sends prompt with the conversation so far and returns the last
// assistant answer. Tool calls and results are reported to sink as they
// happen.
func (r *Runtime) Run(ctx context.Context, prompt string, sink logs.Sink) (string, error) {
	sink = logs.OrDiscard(sink)
	r.mu.Lock()
	defer r.mu.Unlock()

	sink.Emit(logs.LevelInfo, "agent:start", logs.Fields{"prompt": prompt})

	if err := r.store.Add(ctx, schema.UserMessage(prompt)); err != nil {
		return "", fmt.Errorf("store user message: %w", err)
	}
	history, err := r.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	var answer string
	iter := r.runner.Run(ctx, history)
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			sink.Emit(logs.LevelError, "agent:error", logs.Fields{"error": event.Err.Error()})
			return "", event.Err
		}
		msg, ok := r.message(ctx, event, sink)
		if !ok {
			continue
		}
		if msg.Role == schema.Assistant && len(msg.ToolCalls) == 0 && msg.Content != "" {
			answer = msg.Content
		}
	}

	sink.Emit(logs.LevelSuccess, "agent:done", logs.Fields{"chars": len([]rune(answer))})
	return answer, nil
}

func (r *Runtime) message(ctx context.Context, event *adk.AgentEvent, sink logs.Sink) (adk.Message, bool) {
	if event.Output == nil || event.Output.MessageOutput == nil {
		return nil, false
	}
	msg, err := event.Output.MessageOutput.GetMessage()
	if err != nil || msg == nil {
		if err != nil {
			sink.Emit(logs.LevelError, "agent:messageError", logs.Fields{"error": err.Error()})
		}
		return nil, false
	}
	if err := r.store.Add(ctx, msg); err != nil {
		sink.Emit(logs.LevelError, "agent:storeError", logs.Fields{"error": err.Error()})
	}

	switch msg.Role {
	case schema.Assistant:
		for _, tc := range msg.ToolCalls {
			sink.Emit(logs.LevelInfo, "agent:toolCall", logs.Fields{
				"tool":      tc.Function.Name,
				"arguments": truncate(tc.Function.Arguments, maxLoggedArguments),
			})
		}
	case schema.Tool:
		sink.Emit(logs.LevelDebug, "agent:toolResult", logs.Fields{
			"tool":  msg.ToolName,
			"chars": len([]rune(msg.Content)),
		})
	}
	return msg, true
}

func (r *Runtime) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Clear(ctx)
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

// OneShot answers each prompt in a fresh conversation, with tools bound to
// the sink of that call.
type OneShot struct {
	Model model.ToolCallingChatModel
	Tools func(sink logs.Sink) ([]tool.BaseTool, error)
}

func (o *OneShot) Run(ctx context.Context, prompt string, sink logs.Sink) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", workflow.ErrEmptyPrompt
	}
	list, err := o.Tools(sink)
	if err != nil {
		return "", err
	}
	researcher, err := NewResearcher(ctx, &ResearcherConfig{ChatModel: o.Model, Tools: list})
	if err != nil {
		return "", err
	}
	return NewRuntime(ctx, researcher, nil).Run(ctx, prompt, sink)
}
