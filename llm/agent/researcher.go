// Package agent runs a tool-calling research assistant on top of the search,
// fetch and gather tools.
package agent

import (
	"context"
	"errors"

	"gatherinfo/llm/tools"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
)

const DefaultMaxIterations = 20

const ResearcherPrompt = `
You are a research assistant that answers questions from the web.

TOOLS
1. web_search: find pages about the question
2. fetch_page: download one page as Markdown and keep it for later questions
3. gather_info: search, download and rank documents, then answer with citations in one step

RULES
- For questions about current facts, versions or events, search before answering.
- Prefer gather_info for broad questions. Use web_search and fetch_page when you need one specific page.
- Fetch several URLs in a single response when you need more than one; calls in one response run together.
- Cite the URLs you relied on.
- If a tool returns an error, say what failed and continue with what you have.

STYLE
Concise, direct, factual.
`

type ResearcherConfig struct {
	ChatModel     model.ToolCallingChatModel
	Tools         []tool.BaseTool
	MaxIterations int
}

// NewResearcher builds the agent. Tool failures reach the model as
// "Error: ..." results instead of aborting the run.
func NewResearcher(ctx context.Context, config *ResearcherConfig) (adk.Agent, error) {
	if config == nil || config.ChatModel == nil {
		return nil, errors.New("researcher: chat model is required")
	}
	maxIterations := config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	return adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:        "Researcher",
		Description: "Answers questions from web search results and stored pages.",
		Instruction: ResearcherPrompt,
		Model:       config.ChatModel,
		ToolsConfig: adk.ToolsConfig{
			ToolsNodeConfig: compose.ToolsNodeConfig{
				Tools:               config.Tools,
				ToolCallMiddlewares: []compose.ToolMiddleware{tools.ErrorHandler()},
			},
		},
		MaxIterations: maxIterations,
	})
}
