package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dealflowhq/dealflow/control-plane/internal/agents"
	"github.com/dealflowhq/dealflow/control-plane/internal/config"
	"github.com/dealflowhq/dealflow/control-plane/internal/deals"
	"github.com/dealflowhq/dealflow/control-plane/internal/engine"
	"github.com/dealflowhq/dealflow/control-plane/internal/events"
	"github.com/dealflowhq/dealflow/control-plane/internal/llm"
	"github.com/dealflowhq/dealflow/control-plane/internal/schedule"
	"github.com/dealflowhq/dealflow/control-plane/internal/store"
)

type RunScanInput struct {
	ScanID    string
	AgentType string
	Market    string
}

type RunScanOutput struct {
	DealCount int    `json:"deal_count"`
	Model     string `json:"model"`
	Stage     string `json:"stage"`
}

type ScanFailureInput struct {
	ScanID string
	Error  string
}

type InboxInput struct {
	AutomationID string
	ScanID       string
	Status       string
	DealCount    int64
	Error        string
	Trigger      string
	StartedAt    string
}

var timeNow = time.Now

// ScanActivities holds the dependencies the scan workflow's activities run
// against. The engine does the provider cascade; the broker carries live
// progress to any SSE subscribers.
type ScanActivities struct {
	engine *engine.Engine
	store  store.Store
	broker *events.Broker
	cfg    config.Config
}

func NewScanActivities(eng *engine.Engine, st store.Store, broker *events.Broker, cfg config.Config) *ScanActivities {
	return &ScanActivities{engine: eng, store: st, broker: broker, cfg: cfg}
}

// RunMarketScan executes the full scan for one market: build the agent
// prompts, run the cascade, extract the deal array, and persist the result.
// A response with no parseable array completes the scan with zero deals and
// the raw text kept for inspection.
func (a *ScanActivities) RunMarketScan(ctx context.Context, input RunScanInput) (RunScanOutput, error) {
	now := timeNow().UTC()
	system, ok := agents.ScanSystemPrompt(input.AgentType, input.Market, now.Year())
	if !ok {
		return RunScanOutput{}, fmt.Errorf("unknown agent type: %s", input.AgentType)
	}
	directive := agents.ScanDirective(input.AgentType, input.Market, now.Year())

	a.emit(input.ScanID, "scan_started", map[string]any{
		"agentType": input.AgentType,
		"market":    input.Market,
	})

	answer := a.engine.Answer(ctx, engine.Request{
		TraceID:     input.ScanID,
		System:      system,
		History:     []llm.Message{{Role: "user", Content: directive}},
		MaxTokens:   a.cfg.ScanMaxTokens,
		Temperature: 0.1,
		Events: func(kind string, payload map[string]any) {
			a.emit(input.ScanID, kind, payload)
		},
	})

	scan, err := a.store.GetScan(ctx, input.ScanID)
	if err != nil {
		return RunScanOutput{}, err
	}
	if scan == nil {
		return RunScanOutput{}, fmt.Errorf("scan %s not found", input.ScanID)
	}

	nowStr := timeNow().UTC().Format(time.RFC3339)
	scan.Status = store.ScanCompleted
	scan.Model = answer.Model
	scan.Stage = answer.Stage
	scan.ScannedAt = nowStr
	scan.UpdatedAt = nowStr

	if records, found := deals.ExtractDealArray(answer.Text); found {
		if input.AgentType == agents.LandAcquisition {
			policy := deals.Policy{MinAcres: a.cfg.MinLandAcres}
			records = policy.FilterRecords(records)
		}
		scan.Deals = records
		scan.RawResponse = ""
	} else {
		scan.Deals = []deals.Record{}
		scan.RawResponse = answer.Text
	}

	if err := a.store.UpdateScan(ctx, *scan); err != nil {
		return RunScanOutput{}, err
	}

	a.emit(input.ScanID, "scan_completed", map[string]any{
		"dealCount": len(scan.Deals),
		"stage":     answer.Stage,
	})
	a.finish(input.ScanID)

	return RunScanOutput{DealCount: len(scan.Deals), Model: answer.Model, Stage: answer.Stage}, nil
}

// HandleScanFailure marks the scan row failed. Missing scans are a no-op so
// a failure for a deleted scan does not itself fail.
func (a *ScanActivities) HandleScanFailure(ctx context.Context, input ScanFailureInput) error {
	scan, err := a.store.GetScan(ctx, input.ScanID)
	if err != nil {
		return err
	}
	if scan == nil {
		return nil
	}

	nowStr := timeNow().UTC().Format(time.RFC3339)
	scan.Status = store.ScanFailed
	scan.Error = input.Error
	scan.UpdatedAt = nowStr
	if err := a.store.UpdateScan(ctx, *scan); err != nil {
		return err
	}

	a.emit(input.ScanID, "scan_failed", map[string]any{"error": input.Error})
	a.finish(input.ScanID)
	return nil
}

// RecordScanInbox writes the run outcome into the automation's inbox and
// releases the automation for its next scheduled run.
func (a *ScanActivities) RecordScanInbox(ctx context.Context, input InboxInput) error {
	nowStr := timeNow().UTC().Format(time.RFC3339)
	entry := store.AutomationInboxEntry{
		ID:           uuid.NewString(),
		AutomationID: input.AutomationID,
		ScanID:       input.ScanID,
		Status:       input.Status,
		DealCount:    input.DealCount,
		Error:        input.Error,
		Unread:       true,
		Trigger:      input.Trigger,
		StartedAt:    input.StartedAt,
		CompletedAt:  nowStr,
		CreatedAt:    nowStr,
		UpdatedAt:    nowStr,
	}
	if entry.Trigger == "" {
		entry.Trigger = "schedule"
	}
	if entry.StartedAt == "" {
		entry.StartedAt = nowStr
	}
	if err := a.store.CreateAutomationInboxEntry(ctx, entry); err != nil {
		return err
	}

	automation, err := a.store.GetAutomation(ctx, input.AutomationID)
	if err != nil {
		return err
	}
	if automation == nil {
		return nil
	}

	nextStr := ""
	if next, err := schedule.NextRun(automation.Days, automation.TimeOfDay, automation.Timezone, timeNow().UTC()); err == nil {
		nextStr = next.Format(time.RFC3339)
	}
	return a.store.FinishAutomationRun(ctx, input.AutomationID, nowStr, nextStr)
}

func (a *ScanActivities) emit(scanID, kind string, payload map[string]any) {
	if a.broker == nil {
		return
	}
	a.broker.Emit(scanID, kind, payload)
}

func (a *ScanActivities) finish(scanID string) {
	if a.broker == nil {
		return
	}
	a.broker.Finish(scanID)
}
