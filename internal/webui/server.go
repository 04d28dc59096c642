// Package webui exposes a small HTTP surface for triggering pipeline runs by
// hand and inspecting the last one.
//
// Routes:
//
//	POST /runs      → runs the pipeline synchronously; 409 while one is running
//	GET  /runs/last → batch record of the last run; 404 before the first run
//	GET  /healthz   → liveness
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/schrodingerkitkat/csv-processor/internal/audit"
	"github.com/schrodingerkitkat/csv-processor/internal/pipeline"
)

// Config controls server startup.
type Config struct {
	Addr string
}

// Pipeline is what the server triggers. *pipeline.Processor satisfies it.
type Pipeline interface {
	Run(ctx context.Context) (*pipeline.Result, error)
	Last() *pipeline.Result
}

// Server wraps http.Server for convenience.
type Server struct {
	cfg    Config
	p      Pipeline
	log    *slog.Logger
	router *chi.Mux
	srv    *http.Server
}

// NewServer constructs a Server with its routes.
func NewServer(cfg Config, p Pipeline, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, p: p, log: log, router: chi.NewRouter()}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handleRun)
		r.Get("/last", s.handleLast)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe starts the HTTP server. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) ListenAndServe() error {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("webui: listening", "addr", s.cfg.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type runResponse struct {
	RunID string             `json:"run_id"`
	OK    bool               `json:"ok"`
	Error string             `json:"error,omitempty"`
	Batch *audit.BatchRecord `json:"batch,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	// A client that hangs up must not abandon files half settled.
	res, err := s.p.Run(context.WithoutCancel(r.Context()))
	if errors.Is(err, pipeline.ErrBusy) {
		writeJSON(w, http.StatusConflict, runResponse{Error: err.Error()})
		return
	}

	var body runResponse
	if res != nil {
		body.RunID = res.RunID
		body.OK = res.OK()
		body.Batch = &res.Batch
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
		body.OK = false
		body.Error = err.Error()
		s.log.Error("webui: run failed", "err", err, "request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, body)
}

func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	res := s.p.Last()
	if res == nil {
		writeJSON(w, http.StatusNotFound, runResponse{Error: "no run yet"})
		return
	}
	writeJSON(w, http.StatusOK, res.Batch)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
