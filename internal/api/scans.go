package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dealflowhq/dealflow/control-plane/internal/agents"
	"github.com/dealflowhq/dealflow/control-plane/internal/deals"
	"github.com/dealflowhq/dealflow/control-plane/internal/events"
	"github.com/dealflowhq/dealflow/control-plane/internal/store"
	"github.com/dealflowhq/dealflow/control-plane/internal/workflows"
)

const defaultMarket = "Las Vegas, NV"

const maxRawResponseChars = 500

type scanRequest struct {
	AgentType string `json:"agentType"`
	Market    string `json:"market"`
	Async     bool   `json:"async"`
}

type scanResponse struct {
	ScanID      string         `json:"scanId"`
	AgentType   string         `json:"agentType"`
	Market      string         `json:"market"`
	Status      string         `json:"status"`
	Deals       []deals.Record `json:"deals"`
	RawResponse string         `json:"rawResponse,omitempty"`
	Model       string         `json:"model,omitempty"`
	Stage       string         `json:"stage,omitempty"`
	ScannedAt   string         `json:"scannedAt,omitempty"`
}

// runScan kicks off a market scan. The default is synchronous: the handler
// blocks until the cascade finishes and returns the extracted deals. With
// async set and temporal available, the scan runs as a workflow and the
// caller follows progress over the events stream.
func (s *Server) runScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Failed to process request", http.StatusInternalServerError)
		return
	}
	if !agents.Known(req.AgentType) {
		writeError(w, "Unknown agent type", http.StatusBadRequest)
		return
	}
	market := strings.TrimSpace(req.Market)
	if market == "" {
		market = defaultMarket
	}

	scanID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	scan := store.Scan{
		ID:        scanID,
		AgentType: req.AgentType,
		Market:    market,
		Status:    store.ScanRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateScan(r.Context(), scan); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	input := workflows.ScanInput{
		ScanID:    scanID,
		AgentType: req.AgentType,
		Market:    market,
		StartedAt: now,
	}

	if req.Async && s.workflows != nil {
		if err := s.workflows.StartScan(r.Context(), input); err != nil {
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSONStatus(w, scanResponse{
			ScanID:    scanID,
			AgentType: req.AgentType,
			Market:    market,
			Status:    store.ScanRunning,
			Deals:     []deals.Record{},
		}, http.StatusAccepted)
		return
	}

	if _, err := s.runner.RunMarketScan(r.Context(), workflows.RunScanInput{
		ScanID:    scanID,
		AgentType: req.AgentType,
		Market:    market,
	}); err != nil {
		_ = s.runner.HandleScanFailure(r.Context(), workflows.ScanFailureInput{ScanID: scanID, Error: err.Error()})
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	completed, err := s.store.GetScan(r.Context(), scanID)
	if err != nil || completed == nil {
		writeError(w, "failed to load scan result", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, toScanResponse(*completed), http.StatusOK)
}

func toScanResponse(scan store.Scan) scanResponse {
	resp := scanResponse{
		ScanID:    scan.ID,
		AgentType: scan.AgentType,
		Market:    scan.Market,
		Status:    scan.Status,
		Deals:     scan.Deals,
		Model:     scan.Model,
		Stage:     scan.Stage,
		ScannedAt: scan.ScannedAt,
	}
	if resp.Deals == nil {
		resp.Deals = []deals.Record{}
	}
	if len(resp.Deals) == 0 && scan.RawResponse != "" {
		resp.RawResponse = truncate(scan.RawResponse, maxRawResponseChars)
	}
	return resp
}

// truncate shortens s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

type scanSummaryRecord struct {
	ID        string `json:"id"`
	AgentType string `json:"agentType"`
	Market    string `json:"market"`
	Status    string `json:"status"`
	Stage     string `json:"stage,omitempty"`
	DealCount int64  `json:"dealCount"`
	ScannedAt string `json:"scannedAt,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type scansListResponse struct {
	Scans []scanSummaryRecord `json:"scans"`
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.store.ListScans(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	result := make([]scanSummaryRecord, 0, len(scans))
	for _, scan := range scans {
		result = append(result, scanSummaryRecord{
			ID:        scan.ID,
			AgentType: scan.AgentType,
			Market:    scan.Market,
			Status:    scan.Status,
			Stage:     scan.Stage,
			DealCount: scan.DealCount,
			ScannedAt: scan.ScannedAt,
			CreatedAt: scan.CreatedAt,
			UpdatedAt: scan.UpdatedAt,
		})
	}
	writeJSONStatus(w, scansListResponse{Scans: result}, http.StatusOK)
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "id")
	scan, err := s.store.GetScan(r.Context(), scanID)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if scan == nil {
		writeError(w, "scan not found", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, toScanResponse(*scan), http.StatusOK)
}

func (s *Server) deleteScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "id")
	if err := s.store.DeleteScan(r.Context(), scanID); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, map[string]any{"deleted": true}, http.StatusOK)
}

// streamScanEvents follows a running scan over SSE. Events are live-only; a
// subscriber joining after the scan finished sees only heartbeats.
func (s *Server) streamScanEvents(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	eventsChan := s.broker.Subscribe(ctx, scanID)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	flusher.Flush()
	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.ScanEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.ScanID, event.Seq)
	fmt.Fprint(w, "event: scan_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
