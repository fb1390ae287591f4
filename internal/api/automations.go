package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dealflowhq/dealflow/control-plane/internal/agents"
	"github.com/dealflowhq/dealflow/control-plane/internal/schedule"
	"github.com/dealflowhq/dealflow/control-plane/internal/store"
	"github.com/dealflowhq/dealflow/control-plane/internal/workflows"
)

var defaultScheduleDays = []string{"mon", "tue", "wed", "thu", "fri"}

type automationRecord struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AgentType  string   `json:"agentType"`
	Market     string   `json:"market"`
	Days       []string `json:"days"`
	TimeOfDay  string   `json:"time"`
	Timezone   string   `json:"timezone"`
	Enabled    bool     `json:"enabled"`
	NextRunAt  string   `json:"nextRunAt,omitempty"`
	LastRunAt  string   `json:"lastRunAt,omitempty"`
	InProgress bool     `json:"inProgress"`
	Unread     int      `json:"unreadCount"`
	LastStatus string   `json:"lastStatus,omitempty"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`
}

type automationUpsertRequest struct {
	Name      string   `json:"name"`
	AgentType string   `json:"agentType"`
	Market    string   `json:"market"`
	Days      []string `json:"days"`
	TimeOfDay string   `json:"time"`
	Timezone  string   `json:"timezone"`
	Enabled   *bool    `json:"enabled"`
}

type automationsListResponse struct {
	Automations []automationRecord `json:"automations"`
	UnreadCount int                `json:"unreadCount"`
}

type automationInboxRecord struct {
	ID           string `json:"id"`
	AutomationID string `json:"automationId"`
	ScanID       string `json:"scanId,omitempty"`
	Status       string `json:"status"`
	DealCount    int64  `json:"dealCount"`
	Error        string `json:"error,omitempty"`
	Unread       bool   `json:"unread"`
	Trigger      string `json:"trigger"`
	StartedAt    string `json:"startedAt"`
	CompletedAt  string `json:"completedAt,omitempty"`
}

type automationDetailResponse struct {
	Automation  automationRecord        `json:"automation"`
	Inbox       []automationInboxRecord `json:"inbox"`
	UnreadCount int                     `json:"unreadCount"`
}

type automationQueueResponse struct {
	Queued bool   `json:"queued"`
	ScanID string `json:"scanId,omitempty"`
	Error  string `json:"error,omitempty"`
}

type automationProcessResponse struct {
	Queued int `json:"queued"`
}

func normalizeScheduleDays(days []string) []string {
	normalized, err := schedule.NormalizeDays(days)
	if err != nil || len(normalized) == 0 {
		return append([]string(nil), defaultScheduleDays...)
	}
	return normalized
}

func normalizeTimezone(value string) string {
	tz := strings.TrimSpace(value)
	if tz == "" {
		return "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "UTC"
	}
	return tz
}

func normalizeTimeOfDay(value string) (string, error) {
	timePart := strings.TrimSpace(value)
	if timePart == "" {
		timePart = "09:00"
	}
	if _, _, err := schedule.ParseTimeOfDay(timePart); err != nil {
		return "", err
	}
	parsed, _ := time.Parse("15:04", timePart)
	return parsed.Format("15:04"), nil
}

func toAutomationRecord(value store.Automation) automationRecord {
	return automationRecord{
		ID:         value.ID,
		Name:       value.Name,
		AgentType:  value.AgentType,
		Market:     value.Market,
		Days:       append([]string(nil), value.Days...),
		TimeOfDay:  value.TimeOfDay,
		Timezone:   value.Timezone,
		Enabled:    value.Enabled,
		NextRunAt:  value.NextRunAt,
		LastRunAt:  value.LastRunAt,
		InProgress: value.InProgress,
		CreatedAt:  value.CreatedAt,
		UpdatedAt:  value.UpdatedAt,
	}
}

func toStoreAutomation(value automationRecord) store.Automation {
	return store.Automation{
		ID:         value.ID,
		Name:       value.Name,
		AgentType:  value.AgentType,
		Market:     value.Market,
		Days:       append([]string(nil), value.Days...),
		TimeOfDay:  value.TimeOfDay,
		Timezone:   value.Timezone,
		Enabled:    value.Enabled,
		NextRunAt:  value.NextRunAt,
		LastRunAt:  value.LastRunAt,
		InProgress: value.InProgress,
		CreatedAt:  value.CreatedAt,
		UpdatedAt:  value.UpdatedAt,
	}
}

func toInboxRecord(entry store.AutomationInboxEntry) automationInboxRecord {
	return automationInboxRecord{
		ID:           entry.ID,
		AutomationID: entry.AutomationID,
		ScanID:       entry.ScanID,
		Status:       entry.Status,
		DealCount:    entry.DealCount,
		Error:        entry.Error,
		Unread:       entry.Unread,
		Trigger:      entry.Trigger,
		StartedAt:    entry.StartedAt,
		CompletedAt:  entry.CompletedAt,
	}
}

func summarizeInbox(entries []store.AutomationInboxEntry) (int, string) {
	unread := 0
	lastStatus := ""
	for idx, entry := range entries {
		if entry.Unread {
			unread++
		}
		if idx == 0 {
			lastStatus = strings.TrimSpace(entry.Status)
		}
	}
	return unread, lastStatus
}

func (s *Server) listAutomations(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListAutomations(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	result := make([]automationRecord, 0, len(items))
	totalUnread := 0
	for _, item := range items {
		entries, inboxErr := s.store.ListAutomationInbox(r.Context(), item.ID)
		if inboxErr != nil {
			writeError(w, inboxErr.Error(), http.StatusInternalServerError)
			return
		}
		record := toAutomationRecord(item)
		record.Unread, record.LastStatus = summarizeInbox(entries)
		totalUnread += record.Unread
		result = append(result, record)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})
	writeJSONStatus(w, automationsListResponse{Automations: result, UnreadCount: totalUnread}, http.StatusOK)
}

func (s *Server) createAutomation(w http.ResponseWriter, r *http.Request) {
	req := automationUpsertRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
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
	timeOfDay, err := normalizeTimeOfDay(req.TimeOfDay)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	now := time.Now().UTC()
	record := automationRecord{
		ID:        uuid.NewString(),
		Name:      name,
		AgentType: req.AgentType,
		Market:    market,
		Days:      normalizeScheduleDays(req.Days),
		TimeOfDay: timeOfDay,
		Timezone:  normalizeTimezone(req.Timezone),
		Enabled:   enabled,
		CreatedAt: now.Format(time.RFC3339),
		UpdatedAt: now.Format(time.RFC3339),
	}
	if enabled {
		if next, nextErr := schedule.NextRun(record.Days, record.TimeOfDay, record.Timezone, now); nextErr == nil {
			record.NextRunAt = next.Format(time.RFC3339)
		}
	}
	if err := s.store.CreateAutomation(r.Context(), toStoreAutomation(record)); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, record, http.StatusCreated)
}

func (s *Server) updateAutomation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, "automation id is required", http.StatusBadRequest)
		return
	}
	req := automationUpsertRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	current, err := s.store.GetAutomation(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if current == nil {
		writeError(w, "automation not found", http.StatusNotFound)
		return
	}
	updated := toAutomationRecord(*current)
	if value := strings.TrimSpace(req.Name); value != "" {
		updated.Name = value
	}
	if value := strings.TrimSpace(req.AgentType); value != "" {
		if !agents.Known(value) {
			writeError(w, "Unknown agent type", http.StatusBadRequest)
			return
		}
		updated.AgentType = value
	}
	if value := strings.TrimSpace(req.Market); value != "" {
		updated.Market = value
	}
	if len(req.Days) > 0 {
		updated.Days = normalizeScheduleDays(req.Days)
	}
	if strings.TrimSpace(req.TimeOfDay) != "" {
		timeOfDay, err := normalizeTimeOfDay(req.TimeOfDay)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		updated.TimeOfDay = timeOfDay
	}
	if strings.TrimSpace(req.Timezone) != "" {
		updated.Timezone = normalizeTimezone(req.Timezone)
	}
	if req.Enabled != nil {
		updated.Enabled = *req.Enabled
	}
	now := time.Now().UTC()
	updated.UpdatedAt = now.Format(time.RFC3339)
	if updated.Enabled {
		if next, nextErr := schedule.NextRun(updated.Days, updated.TimeOfDay, updated.Timezone, now); nextErr == nil {
			updated.NextRunAt = next.Format(time.RFC3339)
		}
	} else {
		updated.NextRunAt = ""
	}
	if err := s.store.UpdateAutomation(r.Context(), toStoreAutomation(updated)); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries, inboxErr := s.store.ListAutomationInbox(r.Context(), id); inboxErr == nil {
		updated.Unread, updated.LastStatus = summarizeInbox(entries)
	}
	writeJSONStatus(w, updated, http.StatusOK)
}

func (s *Server) deleteAutomation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, "automation id is required", http.StatusBadRequest)
		return
	}
	current, err := s.store.GetAutomation(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if current == nil {
		writeError(w, "automation not found", http.StatusNotFound)
		return
	}
	if err := s.store.DeleteAutomation(r.Context(), id); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, map[string]any{"deleted": true}, http.StatusOK)
}

func (s *Server) getAutomationInbox(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, "automation id is required", http.StatusBadRequest)
		return
	}
	automation, err := s.store.GetAutomation(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if automation == nil {
		writeError(w, "automation not found", http.StatusNotFound)
		return
	}
	entries, err := s.store.ListAutomationInbox(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	record := toAutomationRecord(*automation)
	record.Unread, record.LastStatus = summarizeInbox(entries)
	mapped := make([]automationInboxRecord, 0, len(entries))
	for _, entry := range entries {
		mapped = append(mapped, toInboxRecord(entry))
	}
	writeJSONStatus(w, automationDetailResponse{Automation: record, Inbox: mapped, UnreadCount: record.Unread}, http.StatusOK)
}

func (s *Server) markAutomationInboxRead(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	entryID := strings.TrimSpace(chi.URLParam(r, "entryID"))
	if id == "" || entryID == "" {
		writeError(w, "automation id and entry id are required", http.StatusBadRequest)
		return
	}
	if err := s.store.MarkAutomationInboxEntryRead(r.Context(), id, entryID); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, map[string]any{"ok": true}, http.StatusOK)
}

func (s *Server) markAutomationInboxReadAll(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, "automation id is required", http.StatusBadRequest)
		return
	}
	if err := s.store.MarkAutomationInboxReadAll(r.Context(), id); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, map[string]any{"ok": true}, http.StatusOK)
}

// processDueAutomations claims every automation whose next run has arrived
// and launches a scan for each. Claiming happens in the store in one step so
// overlapping callers cannot double-run a schedule.
func (s *Server) processDueAutomations(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)
	claimed, err := s.store.ClaimDueAutomations(r.Context(), now)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	queued := 0
	for _, automation := range claimed {
		if _, launchErr := s.launchAutomationScan(r.Context(), automation, "schedule"); launchErr != nil {
			log.Printf("failed to launch scheduled scan automation_id=%s err=%v", automation.ID, launchErr)
			continue
		}
		queued++
	}
	writeJSONStatus(w, automationProcessResponse{Queued: queued}, http.StatusOK)
}

func (s *Server) runAutomationNow(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, "automation id is required", http.StatusBadRequest)
		return
	}
	automation, err := s.store.GetAutomation(r.Context(), id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if automation == nil {
		writeError(w, "automation not found", http.StatusNotFound)
		return
	}
	if automation.InProgress {
		writeJSONStatus(w, automationQueueResponse{Queued: false, Error: "automation is already running"}, http.StatusConflict)
		return
	}
	if !automation.Enabled {
		writeJSONStatus(w, automationQueueResponse{Queued: false, Error: "automation is disabled"}, http.StatusConflict)
		return
	}

	automation.InProgress = true
	automation.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := s.store.UpdateAutomation(r.Context(), *automation); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	scanID, err := s.launchAutomationScan(r.Context(), *automation, "manual")
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, automationQueueResponse{Queued: true, ScanID: scanID}, http.StatusAccepted)
}

// launchAutomationScan creates the scan row and hands it to temporal, or to
// an inline goroutine that walks the same activities when temporal is not
// configured.
func (s *Server) launchAutomationScan(ctx context.Context, automation store.Automation, trigger string) (string, error) {
	scanID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	scan := store.Scan{
		ID:        scanID,
		AgentType: automation.AgentType,
		Market:    automation.Market,
		Status:    store.ScanRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateScan(ctx, scan); err != nil {
		return "", err
	}

	input := workflows.ScanInput{
		ScanID:       scanID,
		AgentType:    automation.AgentType,
		Market:       automation.Market,
		AutomationID: automation.ID,
		Trigger:      trigger,
		StartedAt:    now,
	}
	if s.workflows != nil {
		if err := s.workflows.StartScan(ctx, input); err != nil {
			return "", err
		}
		return scanID, nil
	}

	go s.runInlineScan(input)
	return scanID, nil
}

func (s *Server) runInlineScan(input workflows.ScanInput) {
	ctx := context.Background()
	out, err := s.runner.RunMarketScan(ctx, workflows.RunScanInput{
		ScanID:    input.ScanID,
		AgentType: input.AgentType,
		Market:    input.Market,
	})
	inbox := workflows.InboxInput{
		AutomationID: input.AutomationID,
		ScanID:       input.ScanID,
		Status:       store.ScanCompleted,
		DealCount:    int64(out.DealCount),
		Trigger:      input.Trigger,
		StartedAt:    input.StartedAt,
	}
	if err != nil {
		log.Printf("inline scan failed scan_id=%s err=%v", input.ScanID, err)
		if failErr := s.runner.HandleScanFailure(ctx, workflows.ScanFailureInput{ScanID: input.ScanID, Error: err.Error()}); failErr != nil {
			log.Printf("failed to persist scan failure scan_id=%s err=%v", input.ScanID, failErr)
		}
		inbox.Status = store.ScanFailed
		inbox.Error = err.Error()
		inbox.DealCount = 0
	}
	if input.AutomationID == "" {
		return
	}
	if inboxErr := s.runner.RecordScanInbox(ctx, inbox); inboxErr != nil {
		log.Printf("failed to record inbox entry automation_id=%s err=%v", input.AutomationID, inboxErr)
	}
}
