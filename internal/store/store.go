package store

import (
	"context"

	"github.com/dealflowhq/dealflow/control-plane/internal/deals"
)

// Scan statuses.
const (
	ScanRunning   = "running"
	ScanCompleted = "completed"
	ScanFailed    = "failed"
)

type Scan struct {
	ID          string
	AgentType   string
	Market      string
	Status      string
	Model       string
	Stage       string
	Deals       []deals.Record
	RawResponse string
	Error       string
	ScannedAt   string
	CreatedAt   string
	UpdatedAt   string
}

type ScanSummary struct {
	ID        string
	AgentType string
	Market    string
	Status    string
	Stage     string
	DealCount int64
	ScannedAt string
	CreatedAt string
	UpdatedAt string
}

type Automation struct {
	ID         string
	Name       string
	AgentType  string
	Market     string
	Days       []string
	TimeOfDay  string
	Timezone   string
	Enabled    bool
	NextRunAt  string
	LastRunAt  string
	InProgress bool
	CreatedAt  string
	UpdatedAt  string
}

type AutomationInboxEntry struct {
	ID           string
	AutomationID string
	ScanID       string
	Status       string
	DealCount    int64
	Error        string
	Unread       bool
	Trigger      string
	StartedAt    string
	CompletedAt  string
	CreatedAt    string
	UpdatedAt    string
}

type Store interface {
	CreateScan(ctx context.Context, scan Scan) error
	UpdateScan(ctx context.Context, scan Scan) error
	GetScan(ctx context.Context, scanID string) (*Scan, error)
	ListScans(ctx context.Context) ([]ScanSummary, error)
	DeleteScan(ctx context.Context, scanID string) error

	ListAutomations(ctx context.Context) ([]Automation, error)
	GetAutomation(ctx context.Context, automationID string) (*Automation, error)
	CreateAutomation(ctx context.Context, automation Automation) error
	UpdateAutomation(ctx context.Context, automation Automation) error
	DeleteAutomation(ctx context.Context, automationID string) error
	// ClaimDueAutomations marks every enabled, idle automation whose next
	// run is at or before now as in progress and returns them. A claimed
	// automation is skipped by subsequent claims until FinishAutomationRun.
	ClaimDueAutomations(ctx context.Context, now string) ([]Automation, error)
	FinishAutomationRun(ctx context.Context, automationID, lastRunAt, nextRunAt string) error

	ListAutomationInbox(ctx context.Context, automationID string) ([]AutomationInboxEntry, error)
	CreateAutomationInboxEntry(ctx context.Context, entry AutomationInboxEntry) error
	UpdateAutomationInboxEntry(ctx context.Context, entry AutomationInboxEntry) error
	MarkAutomationInboxEntryRead(ctx context.Context, automationID string, entryID string) error
	MarkAutomationInboxReadAll(ctx context.Context, automationID string) error
}
