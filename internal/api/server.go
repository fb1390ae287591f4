package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dealflowhq/dealflow/control-plane/internal/config"
	"github.com/dealflowhq/dealflow/control-plane/internal/engine"
	"github.com/dealflowhq/dealflow/control-plane/internal/events"
	"github.com/dealflowhq/dealflow/control-plane/internal/store"
	"github.com/dealflowhq/dealflow/control-plane/internal/workflows"
)

type Server struct {
	store     store.Store
	broker    Broker
	workflows WorkflowService
	runner    *workflows.ScanActivities
	engine    *engine.Engine
	cfg       config.Config
}

type Broker interface {
	Subscribe(ctx context.Context, scanID string) <-chan events.ScanEvent
	Emit(scanID, eventType string, payload map[string]any)
	Finish(scanID string)
}

// WorkflowService starts scan workflows on temporal. A nil service makes the
// server run scans inline instead.
type WorkflowService interface {
	StartScan(ctx context.Context, input workflows.ScanInput) error
	CancelScan(ctx context.Context, scanID string) error
}

func NewServer(st store.Store, broker *events.Broker, wf WorkflowService, eng *engine.Engine, cfg config.Config) *Server {
	return &Server{
		store:     st,
		broker:    broker,
		workflows: wf,
		runner:    workflows.NewScanActivities(eng, st, broker, cfg),
		engine:    eng,
		cfg:       cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Post("/chat", s.chat)
	r.Post("/scan", s.runScan)
	r.Get("/scans", s.listScans)
	r.Get("/scans/{id}", s.getScan)
	r.Delete("/scans/{id}", s.deleteScan)
	r.Get("/scans/{id}/events", s.streamScanEvents)
	r.Get("/automations", s.listAutomations)
	r.Post("/automations", s.createAutomation)
	r.Put("/automations/{id}", s.updateAutomation)
	r.Delete("/automations/{id}", s.deleteAutomation)
	r.Get("/automations/{id}/inbox", s.getAutomationInbox)
	r.Post("/automations/{id}/inbox/{entryID}/read", s.markAutomationInboxRead)
	r.Post("/automations/{id}/inbox/read-all", s.markAutomationInboxReadAll)
	r.Post("/automations/process-due", s.processDueAutomations)
	r.Post("/automations/{id}/run", s.runAutomationNow)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/scans" || cleanPath == "/automations") {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/health" || cleanPath == "/ready") {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListScans(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if s.workflows == nil {
		subsystems["temporal"] = subsystemStatus{Status: "skipped"}
	} else {
		subsystems["temporal"] = subsystemStatus{Status: "ok"}
	}

	if s.cfg.HasAnthropic() || s.cfg.HasGroq() || s.cfg.HasTavily() {
		subsystems["providers"] = subsystemStatus{Status: "ok"}
	} else {
		subsystems["providers"] = subsystemStatus{Status: "error", Error: "no provider configured"}
		overall = http.StatusServiceUnavailable
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, map[string]string{"error": message}, statusCode)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
