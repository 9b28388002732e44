// Package api implements the HTTP and WebSocket front end: query
// submission with background processing, status and result polling,
// and memory inspection.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"github.com/waypoint-ai/waypoint/internal/agent"
	"github.com/waypoint-ai/waypoint/internal/buildinfo"
	"github.com/waypoint-ai/waypoint/internal/memory"
)

// queueDepth bounds how many queries may wait behind the single
// worker. The orchestrator serves one query at a time, so this is
// backpressure, not parallelism.
const queueDepth = 16

// QueryRunner processes one query end to end. Satisfied by
// agent.Orchestrator.
type QueryRunner interface {
	Run(ctx context.Context, query string) (*agent.Result, error)
}

// writeJSON encodes v to w, logging failures at debug level since they
// usually mean the client went away.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server. It owns the query registry and the
// single background worker that feeds queries to the orchestrator.
type Server struct {
	listen    string
	runner    QueryRunner
	mem       *memory.Store
	snapshots *memory.SnapshotStore
	registry  *Registry
	logger    *slog.Logger

	markdown goldmark.Markdown
	server   *http.Server

	jobs chan string // query IDs awaiting the worker
	wg   sync.WaitGroup
}

// NewServer creates the API server. snapshots may be nil to disable
// persistence.
func NewServer(listen string, runner QueryRunner, mem *memory.Store, snapshots *memory.SnapshotStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listen:    listen,
		runner:    runner,
		mem:       mem,
		snapshots: snapshots,
		registry:  NewRegistry(),
		logger:    logger,
		markdown:  goldmark.New(),
		jobs:      make(chan string, queueDepth),
	}
}

// Start runs the worker and serves HTTP until the listener fails or
// Shutdown is called. The context cancels in-flight query processing.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /query", s.handleSubmit)
	mux.HandleFunc("GET /query/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /query/{id}/result", s.handleResult)
	mux.HandleFunc("GET /ws/query/{id}", s.handleQueryStream)

	mux.HandleFunc("GET /memory", s.handleMemory)
	mux.HandleFunc("POST /memory/reset", s.handleMemoryReset)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)

	s.wg.Add(1)
	go s.worker(ctx)

	s.server = &http.Server{
		Addr:         s.listen,
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections stay open
	}

	s.logger.Info("starting API server", "listen", s.listen)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for the worker to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	close(s.jobs)
	s.wg.Wait()
	return err
}

// worker drains the job queue one query at a time, preserving the
// orchestrator's single-query pacing contract.
func (s *Server) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.jobs:
			if !ok {
				return
			}
			s.process(ctx, id)
		}
	}
}

func (s *Server) process(ctx context.Context, id string) {
	q, ok := s.registry.Get(id)
	if !ok {
		return
	}

	s.registry.SetProcessing(id)
	s.logger.Info("processing query", "query_id", id, "query", q.Text)

	result, err := s.runner.Run(ctx, q.Text)
	if err != nil {
		s.registry.SetFailed(id, err.Error())
		s.logger.Error("query failed", "query_id", id, "error", err)
		return
	}

	s.registry.SetCompleted(id, result.Answer, result.Transcript)
	s.logger.Info("query completed",
		"query_id", id,
		"iterations", result.Iterations,
		"tool_calls", result.ToolCalls,
		"local_summary", result.LocalSummary,
	)

	if s.snapshots != nil {
		if err := s.snapshots.Save(s.mem.Snapshot()); err != nil {
			s.logger.Warn("failed to persist memory snapshot", "error", err)
		}
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

type submitRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q := s.registry.Create(req.Query)

	select {
	case s.jobs <- q.ID:
	default:
		s.registry.SetFailed(q.ID, "查询队列已满，请稍后再试")
		s.errorResponse(w, http.StatusServiceUnavailable, "query queue full")
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]any{
		"query_id": q.ID,
		"status":   q.Status,
		"message":  "查询已提交，正在处理中",
	}, s.logger)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "unknown query ID")
		return
	}

	resp := map[string]any{
		"query_id": q.ID,
		"status":   q.Status,
	}
	if q.Status == StatusFailed {
		resp["error"] = q.Error
	}
	writeJSON(w, resp, s.logger)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	q, ok := s.registry.Get(r.PathValue("id"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "unknown query ID")
		return
	}

	if q.Status != StatusCompleted {
		writeJSON(w, map[string]any{
			"query_id": q.ID,
			"status":   q.Status,
			"message":  fmt.Sprintf("查询尚未完成，当前状态: %s", q.Status),
		}, s.logger)
		return
	}

	writeJSON(w, map[string]any{
		"query_id":                q.ID,
		"status":                  q.Status,
		"final_answer":            q.Answer,
		"final_answer_html":       s.renderMarkdown(q.Answer),
		"transcript":              q.Transcript,
		"processing_time_seconds": q.ProcessingSeconds(),
	}, s.logger)
}

// renderMarkdown converts the answer to HTML for browser clients. On
// render failure the raw text is returned.
func (s *Server) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		s.logger.Debug("markdown render failed", "error", err)
		return text
	}
	return buf.String()
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"memory": s.mem.Snapshot()}, s.logger)
}

func (s *Server) handleMemoryReset(w http.ResponseWriter, r *http.Request) {
	s.mem.Reset()
	if s.snapshots != nil {
		if err := s.snapshots.Save(s.mem.Snapshot()); err != nil {
			s.logger.Warn("failed to persist memory snapshot", "error", err)
		}
	}
	writeJSON(w, map[string]any{
		"status":  "success",
		"message": "记忆已重置",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"message": "服务正常运行",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.Info(), s.logger)
}
