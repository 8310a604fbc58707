// Package server exposes the workflows over HTTP: one endpoint per action,
// plus polling and streaming access to the progress log of every run.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gatherinfo/llm/retriever"
	"gatherinfo/logs"
	"gatherinfo/metrics"
	"gatherinfo/web"
	"gatherinfo/workflow"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	DefaultKeepalive = 15 * time.Second

	maxBodyBytes = 1 << 20
	maxLogIDLen  = 128
)

var (
	errBadInput      = errors.New("invalid request body")
	errUnknownAction = errors.New("unknown action")
	errUnavailable   = errors.New("action is not configured")
)

type Gatherer interface {
	Gather(ctx context.Context, prompt string, opts workflow.Options, sink logs.Sink) (*workflow.Result, error)
}

type Summarizer interface {
	SearchToAI(ctx context.Context, query string, results []web.SearchResult, sink logs.Sink) (string, error)
}

// Agent answers a prompt by calling tools on its own.
type Agent interface {
	Run(ctx context.Context, prompt string, sink logs.Sink) (string, error)
}

// Services are the components behind the actions. A nil service disables
// its action.
type Services struct {
	Gatherer   Gatherer
	Summarizer Summarizer
	Searcher   workflow.Searcher
	Downloader workflow.Downloader
	Retriever  workflow.Retriever
	Agent      Agent
}

type Server struct {
	services  Services
	relay     *logs.Relay
	logger    *zap.Logger
	keepalive time.Duration
	actions   map[string]action
}

type Option func(*Server)

// WithKeepalive sets the interval of comment lines on idle log streams.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepalive = d
		}
	}
}

func New(services Services, relay *logs.Relay, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		services:  services,
		relay:     relay,
		logger:    logger,
		keepalive: DefaultKeepalive,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.actions = map[string]action{
		"gather":       s.gather,
		"search":       s.search,
		"fetch":        s.fetch,
		"retrieve":     s.retrieve,
		"search-to-ai": s.searchToAI,
		"agent":        s.agent,
	}
	return s
}

// Router mounts every route with recovery, request ids, a canonical request
// log line and HTTP metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/actions/{action}", s.handleAction)
		r.Get("/logs", s.listLogs)
		r.Get("/logs/{id}", s.getLogs)
		r.Delete("/logs/{id}", s.clearLogs)
		r.Get("/logs/{id}/stream", s.streamLogs)
	})
	return r
}

type actionRequest struct {
	LogID string          `json:"logId"`
	Input json.RawMessage `json:"input"`
}

type actionResponse struct {
	LogID  string `json:"logId"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type action func(ctx context.Context, input json.RawMessage, sink logs.Sink) (any, error)

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "action")

	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, actionResponse{Error: fmt.Sprintf("%v: %v", errBadInput, err)})
		return
	}
	req.LogID = strings.TrimSpace(req.LogID)
	if req.LogID == "" {
		req.LogID = uuid.NewString()
	}
	if len(req.LogID) > maxLogIDLen {
		writeJSON(w, http.StatusBadRequest, actionResponse{Error: "logId is too long"})
		return
	}

	run, ok := s.actions[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, actionResponse{LogID: req.LogID, Error: fmt.Sprintf("%v: %q", errUnknownAction, name)})
		return
	}

	sink := logs.Tee(s.relay.Sink(req.LogID), logs.NewZapSink(s.logger, req.LogID))
	// the run outlives a client that stops waiting so its log still completes
	ctx := context.WithoutCancel(r.Context())

	result, err := run(ctx, req.Input, sink)
	s.relay.Finish(req.LogID)
	if err != nil {
		writeJSON(w, statusFor(err), actionResponse{LogID: req.LogID, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{LogID: req.LogID, Result: result})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadInput),
		errors.Is(err, web.ErrEmptyQuery),
		errors.Is(err, web.ErrInvalidURL),
		errors.Is(err, workflow.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func decodeInput(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errBadInput, err)
	}
	return nil
}

type gatherInput struct {
	Prompt string `json:"prompt"`
	workflow.Options
}

func (s *Server) gather(ctx context.Context, raw json.RawMessage, sink logs.Sink) (any, error) {
	if s.services.Gatherer == nil {
		return nil, errUnavailable
	}
	var in gatherInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	return s.services.Gatherer.Gather(ctx, in.Prompt, in.Options, sink)
}

type searchInput struct {
	Query string `json:"query"`
}

type searchOutput struct {
	Results []web.SearchResult `json:"results"`
}

func (s *Server) search(ctx context.Context, raw json.RawMessage, sink logs.Sink) (any, error) {
	if s.services.Searcher == nil {
		return nil, errUnavailable
	}
	var in searchInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}

	sink.Emit(logs.LevelInfo, "searchWeb:start", logs.Fields{"query": in.Query})
	results, err := s.services.Searcher.Search(ctx, in.Query)
	if err != nil {
		sink.Emit(logs.LevelError, "searchWeb:error", logs.Fields{"error": err.Error()})
		return nil, err
	}
	if results == nil {
		results = []web.SearchResult{}
	}
	sink.Emit(logs.LevelSuccess, "searchWeb:success", logs.Fields{"count": len(results)})
	return searchOutput{Results: results}, nil
}

type fetchInput struct {
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

func (s *Server) fetch(ctx context.Context, raw json.RawMessage, sink logs.Sink) (any, error) {
	if s.services.Downloader == nil {
		return nil, errUnavailable
	}
	var in fetchInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	return s.services.Downloader.Download(ctx, in.URL, in.Force, sink)
}

type retrieveInput struct {
	Query    string `json:"query"`
	MinScore *int   `json:"minScore"`
	MaxFiles *int   `json:"maxFiles"`
}

type retrieveOutput struct {
	Results []retriever.Candidate `json:"results"`
	Outcome retriever.Outcome     `json:"outcome"`
}

func (s *Server) retrieve(ctx context.Context, raw json.RawMessage, sink logs.Sink) (any, error) {
	if s.services.Retriever == nil {
		return nil, errUnavailable
	}
	var in retrieveInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	results, outcome, err := s.services.Retriever.Retrieve(ctx, in.Query, retriever.Options{MinScore: in.MinScore, MaxFiles: in.MaxFiles}, sink)
	if err != nil {
		return nil, err
	}
	return retrieveOutput{Results: results, Outcome: outcome}, nil
}

type searchToAIInput struct {
	Query   string             `json:"query"`
	Results []web.SearchResult `json:"results"`
}

// answerOutput is the result of actions that produce only text.
type answerOutput struct {
	Answer string `json:"answer"`
}

func (s *Server) searchToAI(ctx context.Context, raw json.RawMessage, sink logs.Sink) (any, error) {
	if s.services.Summarizer == nil {
		return nil, errUnavailable
	}
	var in searchToAIInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	answer, err := s.services.Summarizer.SearchToAI(ctx, in.Query, in.Results, sink)
	if err != nil {
		return nil, err
	}
	return answerOutput{Answer: answer}, nil
}

type agentInput struct {
	Prompt string `json:"prompt"`
}

func (s *Server) agent(ctx context.Context, raw json.RawMessage, sink logs.Sink) (any, error) {
	if s.services.Agent == nil {
		return nil, errUnavailable
	}
	var in agentInput
	if err := decodeInput(raw, &in); err != nil {
		return nil, err
	}
	answer, err := s.services.Agent.Run(ctx, in.Prompt, sink)
	if err != nil {
		return nil, err
	}
	return answerOutput{Answer: answer}, nil
}

func (s *Server) listLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"ids": s.relay.IDs()})
}

type logsResponse struct {
	LogID  string       `json:"logId"`
	Events []logs.Event `json:"events"`
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, logsResponse{LogID: id, Events: s.relay.History(id)})
}

func (s *Server) clearLogs(w http.ResponseWriter, r *http.Request) {
	s.relay.Clear(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
