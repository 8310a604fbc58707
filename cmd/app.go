package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gatherinfo/config"
	"gatherinfo/llm"
	"gatherinfo/llm/agent"
	"gatherinfo/llm/convert"
	"gatherinfo/llm/providers"
	"gatherinfo/llm/retriever"
	"gatherinfo/llm/tools"
	"gatherinfo/logs"
	"gatherinfo/server"
	"gatherinfo/store"
	"gatherinfo/web"
	"gatherinfo/workflow"

	"github.com/cloudwego/eino/components/tool"
	"go.uber.org/zap"
)

// app holds every wired component of one process.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	relay  *logs.Relay

	docs       store.Store
	searcher   *web.Searcher
	downloader *web.Downloader
	retriever  *retriever.Retriever
	gatherer   *workflow.Gatherer
	summarizer *workflow.Summarizer
	// agent is nil when no tool calling model could be built.
	agent *agent.OneShot

	closers []func() error
}

type appOptions struct {
	// quiet drops process logs, for commands that own the terminal.
	quiet bool
}

func newApp(ctx context.Context, cfgPath string, opts appOptions) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if !opts.quiet {
		if logger, err = logs.NewLogger(cfg.App.Env, cfg.App.LogLevel); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, logger: logger, relay: logs.NewRelay(logs.DefaultHistory)}

	docs, jsonData, schemas, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.docs = docs

	provider, err := a.searchProvider(jsonData, schemas)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.searcher = web.NewSearcher(provider, cfg.Search.MaxResults)

	// AI steps are optional for everything but the final answer
	var completer llm.Completer
	raw, llmErr := providers.New(ctx, cfg.LLM)
	if llmErr != nil {
		logger.Warn("llm unavailable, AI steps use heuristics", zap.Error(llmErr))
	} else {
		completer = llm.NewResilient(raw, logger,
			llm.WithMaxRetries(cfg.LLM.MaxRetries),
			llm.WithBaseDelay(cfg.LLM.BaseDelay),
		)
	}

	converter, err := convert.New(convert.Mode(cfg.Convert.Mode), completer)
	if err != nil {
		a.Close()
		return nil, err
	}

	scraper := web.NewScraper(web.ScraperConfig{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		MaxChars:  cfg.Fetch.MaxChars,
		MaxBytes:  cfg.Fetch.MaxBytes,
	})
	a.downloader = web.NewDownloader(scraper, converter, docs)
	a.retriever = retriever.New(docs, completer)

	answerer := completer
	if answerer == nil {
		answerer = llm.CompleterFunc(func(context.Context, string, ...llm.CallOption) (string, error) {
			return "", fmt.Errorf("llm unavailable: %w", llmErr)
		})
	}
	// runs cap search results with their own maxSearchResults
	a.gatherer = workflow.NewGatherer(web.NewSearcher(provider, 0), a.downloader, a.retriever, answerer, docs, cfg.Workflow)
	a.summarizer = workflow.NewSummarizer(a.searcher, answerer)

	if chat, err := providers.NewToolCallingModel(ctx, cfg.LLM); err != nil {
		logger.Debug("agent disabled", zap.Error(err))
	} else {
		a.agent = &agent.OneShot{
			Model: chat,
			Tools: func(sink logs.Sink) ([]tool.BaseTool, error) {
				return a.toolset(sink).Tools()
			},
		}
	}
	return a, nil
}

// openStores returns the document store, the JSON response store and the
// schema store for the configured driver.
func (a *app) openStores(ctx context.Context) (docs, jsonData, schemas store.Store, err error) {
	cfg := a.cfg.Store
	switch cfg.Driver {
	case "redis":
		rs, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix + "docs:",
		})
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, rs.Close)
		client := rs.Client()
		return rs,
			store.NewRedisStoreFromClient(client, cfg.Redis.Prefix+"json:"),
			store.NewRedisStoreFromClient(client, cfg.Redis.Prefix+"schemas:"),
			nil
	default:
		return store.NewFileStore(cfg.DocsDir),
			store.NewFileStore(cfg.JSONDir),
			store.NewFileStore(cfg.SchemaDir),
			nil
	}
}

func (a *app) searchProvider(jsonData, schemas store.Store) (web.Provider, error) {
	cfg := a.cfg.Search
	switch cfg.Provider {
	case "instant":
		var cache *store.JSONCache
		if cfg.Cache {
			cache = store.NewJSONCache(jsonData,
				store.WithSchemas(schemas),
				store.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
				store.WithUserAgent(a.cfg.Fetch.UserAgent),
				store.WithLogger(a.logger),
			)
		}
		return web.NewInstantProvider(web.InstantConfig{
			Endpoint:  cfg.InstantURL,
			Timeout:   cfg.Timeout,
			UserAgent: a.cfg.Fetch.UserAgent,
			Cache:     cache,
		}), nil
	case "lite":
		return web.NewLiteProvider(web.LiteConfig{
			Endpoint: cfg.LiteURL,
			Timeout:  cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

func (a *app) services() server.Services {
	svc := server.Services{
		Gatherer:   a.gatherer,
		Summarizer: a.summarizer,
		Searcher:   a.searcher,
		Downloader: a.downloader,
		Retriever:  a.retriever,
	}
	// a typed nil would hide the missing model from the server
	if a.agent != nil {
		svc.Agent = a.agent
	}
	return svc
}

// toolset binds the tools to sink.
func (a *app) toolset(sink logs.Sink) *tools.Toolset {
	return &tools.Toolset{
		Searcher:   a.searcher,
		Downloader: a.downloader,
		Gatherer:   a.gatherer,
		Docs:       a.docs,
		Sink:       sink,
	}
}

// runSink sends progress of run id to the relay and the process log.
func (a *app) runSink(id string) logs.Sink {
	return logs.Tee(a.relay.Sink(id), logs.NewZapSink(a.logger, id))
}

func (a *app) Close() error {
	var errs []error
	if a.relay != nil {
		a.relay.Close()
	}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}
