package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gatherinfo/logs"
	"gatherinfo/store"
	"gatherinfo/web"
	"gatherinfo/workflow"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

const (
	SearchToolName = "web_search"
	FetchToolName  = "fetch_page"
	GatherToolName = "gather_info"

	DefaultSearchMaxResults = 10
	MaxSearchMaxResults     = 20

	// MaxFetchChars bounds the Markdown returned by fetch_page.
	MaxFetchChars = 20_000
)

type Gatherer interface {
	Gather(ctx context.Context, prompt string, opts workflow.Options, sink logs.Sink) (*workflow.Result, error)
}

// Toolset builds the tools over the running components. Progress of every
// call goes to Sink.
type Toolset struct {
	Searcher   workflow.Searcher
	Downloader workflow.Downloader
	Gatherer   Gatherer
	Docs       store.Store
	Sink       logs.Sink
}

type SearchToolParams struct {
	Query      string `json:"query" jsonschema:"description=The search keywords or question to look for on the web"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of search results to return (default: 10, max: 20)"`
}

type FetchToolParams struct {
	URL   string `json:"url" jsonschema:"description=The page to fetch. Must start with http:// or https://"`
	Force bool   `json:"force,omitempty" jsonschema:"description=Fetch again even when the page is already stored"`
}

type GatherToolParams struct {
	Prompt            string `json:"prompt" jsonschema:"description=The question to research and answer"`
	MaxSearchResults  int    `json:"max_search_results,omitempty" jsonschema:"description=How many search results to consider (default: 6)"`
	MaxDocsToDownload int    `json:"max_docs_to_download,omitempty" jsonschema:"description=How many result pages to download (default: 3)"`
	Force             bool   `json:"force,omitempty" jsonschema:"description=Download pages again even when already stored"`
}

const searchDescription = `Performs a web search and returns title, URL and snippet for each result.

PARAMETERS:
- query (required): The search keywords or question
- max_results (optional): Maximum results (default: 10, max: 20)

EXAMPLES:
- {"query": "capital of France"}
- {"query": "Go generics tutorial", "max_results": 5}`

const fetchDescription = `Downloads a web page, converts it to Markdown and stores it for later retrieval.
Pages already stored are served from the store unless force is set.

PARAMETERS:
- url (required): http or https URL
- force (optional): refetch a stored page

OUTPUT FORMAT:
The Markdown of the page, truncated to 20000 characters.`

const gatherDescription = `Researches a question end to end: searches the web, downloads the top pages,
ranks every stored document against the question and answers with citations.

PARAMETERS:
- prompt (required): the question
- max_search_results, max_docs_to_download (optional): limits
- force (optional): download pages again even when already stored`

func (ts *Toolset) sink() logs.Sink { return logs.OrDiscard(ts.Sink) }

func (ts *Toolset) Search(ctx context.Context, params SearchToolParams) (string, error) {
	if strings.TrimSpace(params.Query) == "" {
		return Error("query parameter is required")
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultSearchMaxResults
	}
	maxResults = min(maxResults, MaxSearchMaxResults)

	results, err := ts.Searcher.Search(ctx, params.Query)
	if err != nil {
		return Error(fmt.Sprintf("search failed: %v", err))
	}
	results = results[:min(maxResults, len(results))]
	if len(results) == 0 {
		return Success(fmt.Sprintf("No results found for '%s'", params.Query), nil)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d search results for '%s':\n\n", len(results), params.Query)
	links := make([]string, 0, len(results))
	for _, r := range results {
		fmt.Fprintf(&sb, "- **%s**\n", r.Title)
		if r.URL != "" {
			fmt.Fprintf(&sb, "  URL: %s\n", r.URL)
			links = append(links, r.URL)
		}
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "  Snippet: %s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	return Success(strings.TrimRight(sb.String(), "\n"), &Metadata{Count: len(results), Sources: links})
}

func (ts *Toolset) Fetch(ctx context.Context, params FetchToolParams) (string, error) {
	if params.URL == "" {
		return Error("URL parameter is required")
	}
	if _, err := web.ValidateURL(params.URL); err != nil {
		return Error("URL must start with http:// or https://")
	}

	start := time.Now()
	saved, err := ts.Downloader.Download(ctx, params.URL, params.Force, ts.sink())
	if err != nil {
		return Error(fmt.Sprintf("failed to fetch URL: %v", err))
	}
	md := &Metadata{URL: params.URL, Path: saved.Path, Skipped: saved.Skipped, Duration: time.Since(start).Milliseconds()}

	data, err := ts.Docs.Read(ctx, saved.Key)
	if err != nil {
		return Partial(fmt.Sprintf("page stored but could not be read back: %v", err), md)
	}
	content := string(data)
	if r := []rune(content); len(r) > MaxFetchChars {
		content = string(r[:MaxFetchChars]) + fmt.Sprintf("\n\n[Content truncated to %d characters]", MaxFetchChars)
	}
	return Success(content, md)
}

func (ts *Toolset) Gather(ctx context.Context, params GatherToolParams) (string, error) {
	if strings.TrimSpace(params.Prompt) == "" {
		return Error("prompt parameter is required")
	}
	res, err := ts.Gatherer.Gather(ctx, params.Prompt, workflow.Options{
		MaxSearchResults:  params.MaxSearchResults,
		MaxDocsToDownload: params.MaxDocsToDownload,
		Force:             params.Force,
	}, ts.sink())
	if err != nil {
		return Error(fmt.Sprintf("gather failed: %v", err))
	}

	var sources []string
	failed := 0
	for _, d := range res.Downloads {
		if d.Error != "" {
			failed++
			continue
		}
		sources = append(sources, d.URL)
	}
	md := &Metadata{Count: len(res.Retrieved), Sources: sources}
	if failed > 0 && len(sources) == 0 && len(res.Downloads) > 0 {
		return Partial(res.Answer, md)
	}
	return Success(res.Answer, md)
}

// Tools returns web_search, fetch_page and gather_info, skipping those whose
// component is not set.
func (ts *Toolset) Tools() ([]tool.BaseTool, error) {
	var out []tool.BaseTool
	if ts.Searcher != nil {
		t, err := utils.InferTool(SearchToolName, searchDescription, ts.Search)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", SearchToolName, err)
		}
		out = append(out, t)
	}
	if ts.Downloader != nil && ts.Docs != nil {
		t, err := utils.InferTool(FetchToolName, fetchDescription, ts.Fetch)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", FetchToolName, err)
		}
		out = append(out, t)
	}
	if ts.Gatherer != nil {
		t, err := utils.InferTool(GatherToolName, gatherDescription, ts.Gather)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tool: %w", GatherToolName, err)
		}
		out = append(out, t)
	}
	return out, nil
}
