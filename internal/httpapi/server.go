// Package httpapi exposes the analysis pipeline over HTTP.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/joelkehle/legalbrief/internal/analysis"
	"github.com/joelkehle/legalbrief/internal/render"
	"github.com/joelkehle/legalbrief/internal/store"
)

const defaultMaxBodyBytes = 4 << 20

// Analyzer runs one analysis. *analysis.Pipeline satisfies it.
type Analyzer interface {
	RunWithProgress(ctx context.Context, req analysis.Request, progress analysis.StageProgressFn) (analysis.Result, error)
}

// Store persists envelopes. *store.SQLiteStore satisfies it.
type Store interface {
	Save(ctx context.Context, env analysis.ResponseEnvelope) error
	Get(ctx context.Context, id string) (analysis.ResponseEnvelope, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
	Delete(ctx context.Context, id string) error
}

type Config struct {
	Analyzer Analyzer
	// Store is optional. Without it analyses are not persisted and the
	// read endpoints are not mounted.
	Store          Store
	MetricsHandler http.Handler
	MaxBodyBytes   int64
	Version        string
}

type Server struct {
	analyzer     Analyzer
	store        Store
	maxBodyBytes int64
	version      string
	started      time.Time
}

func NewServer(cfg Config) http.Handler {
	s := &Server{
		analyzer:     cfg.Analyzer,
		store:        cfg.Store,
		maxBodyBytes: cfg.MaxBodyBytes,
		version:      cfg.Version,
		started:      time.Now(),
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)

	r.Get("/v1/health", s.handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1/analyses", func(ar chi.Router) {
		ar.Post("/", s.handleCreateAnalysis)
		ar.Post("/stream", s.handleStreamAnalysis)
		if s.store == nil {
			return
		}
		ar.Get("/", s.handleListAnalyses)
		ar.Route("/{analysisID}", func(item chi.Router) {
			item.Get("/", s.handleGetAnalysis)
			item.Delete("/", s.handleDeleteAnalysis)
			item.Get("/report", s.handleReport)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// readRequest decodes an analysis request from JSON, or from a plain-text
// body with language and level in the query string.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (analysis.Request, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return analysis.Request{}, newError(http.StatusRequestEntityTooLarge, CodeTooLarge, "request body too large", false)
		}
		return analysis.Request{}, newError(http.StatusBadRequest, CodeInvalidRequest, "could not read request body", false)
	}

	var req analysis.Request
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		req.Content = string(body)
	} else if err := json.Unmarshal(body, &req); err != nil {
		return analysis.Request{}, newError(http.StatusBadRequest, CodeInvalidRequest, "invalid JSON: "+err.Error(), false)
	}
	q := r.URL.Query()
	if v := q.Get("language"); v != "" {
		req.Language = analysis.Language(v)
	}
	if v := q.Get("level"); v != "" {
		req.SimplificationLevel = analysis.SimplificationLevel(v)
	}
	return req, nil
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.analyzer.RunWithProgress(r.Context(), req, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	env := analysis.BuildResponse(res)
	s.persist(r.Context(), w, env)
	w.Header().Set("Location", "/v1/analyses/"+env.Analysis.ID)
	writeJSON(w, http.StatusCreated, env)
}

// handleStreamAnalysis runs an analysis and reports progress as server-sent
// events, ending with a result or error event.
func (s *Server) handleStreamAnalysis(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, newError(http.StatusInternalServerError, CodeInternal, "streaming unsupported", false))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var mu sync.Mutex
	bw := bufio.NewWriter(w)
	send := func(event string, payload any) {
		blob, err := json.Marshal(payload)
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(bw, "event: %s\ndata: %s\n\n", event, blob)
		if bw.Flush() == nil {
			flusher.Flush()
		}
	}

	res, err := s.analyzer.RunWithProgress(r.Context(), req, func(stage, message string) {
		send("progress", map[string]string{"stage": stage, "message": message})
	})
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		apiErr := toAPIError(err)
		send("error", apiErr.payload())
		return
	}
	env := analysis.BuildResponse(res)
	s.persist(r.Context(), nil, env)
	send("result", env)
}

func (s *Server) persist(ctx context.Context, w http.ResponseWriter, env analysis.ResponseEnvelope) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, env); err != nil {
		zap.L().Warn("httpapi analysis_not_persisted", zap.String("analysis_id", env.Analysis.ID), zap.Error(err))
		if w != nil {
			w.Header().Set("X-Analysis-Stored", "false")
		}
	}
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), store.DefaultListLimit)
	items, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "analyses": items})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	env, err := s.store.Get(r.Context(), chi.URLParam(r, "analysisID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "analysisID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	env, err := s.store.Get(r.Context(), chi.URLParam(r, "analysisID"))
	if err != nil {
		writeError(w, err)
		return
	}
	switch format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))); format {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, env.ReportMarkdown)
	case "html":
		page, err := render.HTML(env)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, page)
	default:
		writeError(w, newError(http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("unsupported format %q", format), false))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"version":        s.version,
		"store":          s.store != nil,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func parseInt(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return v
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("elapsed_ms", time.Since(started).Milliseconds()),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
