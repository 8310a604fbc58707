package agent

import (
	"context"
	"strings"
	"sync"
	"testing"

	"gatherinfo/llm/tools"
	"gatherinfo/logs"
	"gatherinfo/web"
	"gatherinfo/workflow"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSlidingWindow(t *testing.T) {
	s := NewMemoryStore()
	s.maxMessages = 3
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, schema.UserMessage("q1")))
	require.NoError(t, s.Add(ctx, schema.AssistantMessage("", []schema.ToolCall{{ID: "1"}})))
	require.NoError(t, s.Add(ctx, schema.ToolMessage("result", "1")))
	require.NoError(t, s.Add(ctx, schema.AssistantMessage("a1", nil)))
	require.NoError(t, s.Add(ctx, schema.UserMessage("q2")))

	msgs, err := s.List(ctx)
	require.NoError(t, err)
	// the tool result lost its call, so it goes too
	require.Len(t, msgs, 2)
	assert.Equal(t, "a1", msgs[0].Content)
	assert.Equal(t, "q2", msgs[1].Content)

	require.NoError(t, s.Clear(ctx))
	msgs, _ = s.List(ctx)
	assert.Empty(t, msgs)
}

func TestMemoryStoreCompressesToolResults(t *testing.T) {
	s := NewMemoryStore()
	s.maxToolResponse = 100
	long := strings.Repeat("word ", 15) + "end of sentence. " + strings.Repeat("x", 200)

	require.NoError(t, s.Add(context.Background(), schema.ToolMessage(long, "call-7")))
	msgs, _ := s.List(context.Background())
	require.Len(t, msgs, 1)

	got := msgs[0]
	assert.Equal(t, "call-7", got.ToolCallID)
	assert.True(t, strings.HasPrefix(got.Content, strings.Repeat("word ", 15)+"end of sentence. \n\n[Content truncated: original"), got.Content)
	assert.Less(t, len(got.Content), len(long))

	short := schema.ToolMessage("short", "call-8")
	require.NoError(t, s.Add(context.Background(), short))
	msgs, _ = s.List(context.Background())
	assert.Same(t, short, msgs[1])
}

type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	calls   int
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply := m.replies[min(m.calls, len(m.replies)-1)]
	m.calls++
	return reply, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type countingSearcher struct {
	mu      sync.Mutex
	queries []string
}

func (s *countingSearcher) Search(_ context.Context, query string) ([]web.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return []web.SearchResult{{Title: "Paris", URL: "https://en.wikipedia.org/wiki/Paris", Snippet: "Capital of France"}}, nil
}

func TestRuntimeRunsToolsAndAnswers(t *testing.T) {
	ctx := context.Background()
	searcher := &countingSearcher{}
	toolList, err := (&tools.Toolset{Searcher: searcher}).Tools()
	require.NoError(t, err)

	chat := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call-1",
			Type:     "function",
			Function: schema.FunctionCall{Name: tools.SearchToolName, Arguments: `{"query":"capital of France"}`},
		}}),
		schema.AssistantMessage("Paris is the capital of France.", nil),
	}}

	researcher, err := NewResearcher(ctx, &ResearcherConfig{ChatModel: chat, Tools: toolList})
	require.NoError(t, err)
	rt := NewRuntime(ctx, researcher, nil)

	rec := &logs.Recorder{}
	answer, err := rt.Run(ctx, "What is the capital of France?", rec)
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", answer)
	assert.Equal(t, []string{"capital of France"}, searcher.queries)

	msgs := rec.Messages()
	assert.Equal(t, "agent:start", msgs[0])
	assert.Contains(t, msgs, "agent:toolCall")
	assert.Equal(t, "agent:done", msgs[len(msgs)-1])
}

func TestOneShotBindsToolsPerCall(t *testing.T) {
	var sinks []logs.Sink
	o := &OneShot{
		Model: &scriptedModel{replies: []*schema.Message{schema.AssistantMessage("Paris.", nil)}},
		Tools: func(sink logs.Sink) ([]tool.BaseTool, error) {
			sinks = append(sinks, sink)
			return nil, nil
		},
	}

	rec := &logs.Recorder{}
	answer, err := o.Run(context.Background(), "capital of France?", rec)
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
	require.Len(t, sinks, 1)
	assert.Same(t, rec, sinks[0])

	_, err = o.Run(context.Background(), "   ", rec)
	assert.ErrorIs(t, err, workflow.ErrEmptyPrompt)
	assert.Len(t, sinks, 1)
}

func TestNewResearcherNeedsModel(t *testing.T) {
	_, err := NewResearcher(context.Background(), &ResearcherConfig{})
	assert.Error(t, err)
	_, err = NewResearcher(context.Background(), nil)
	assert.Error(t, err)
}
