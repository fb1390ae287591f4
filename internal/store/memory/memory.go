package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dealflowhq/dealflow/control-plane/internal/deals"
	"github.com/dealflowhq/dealflow/control-plane/internal/store"
)

type MemoryStore struct {
	mu          sync.RWMutex
	scans       map[string]store.Scan
	automations map[string]store.Automation
	inbox       map[string][]store.AutomationInboxEntry
}

func New() *MemoryStore {
	return &MemoryStore{
		scans:       map[string]store.Scan{},
		automations: map[string]store.Automation{},
		inbox:       map[string][]store.AutomationInboxEntry{},
	}
}

func (m *MemoryStore) CreateScan(ctx context.Context, scan store.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[scan.ID] = cloneScan(scan)
	return nil
}

func (m *MemoryStore) UpdateScan(ctx context.Context, scan store.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scans[scan.ID]; !ok {
		return nil
	}
	m.scans[scan.ID] = cloneScan(scan)
	return nil
}

func (m *MemoryStore) GetScan(ctx context.Context, scanID string) (*store.Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	scan, ok := m.scans[scanID]
	if !ok {
		return nil, nil
	}
	cloned := cloneScan(scan)
	return &cloned, nil
}

func (m *MemoryStore) ListScans(ctx context.Context) ([]store.ScanSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.ScanSummary, 0, len(m.scans))
	for _, scan := range m.scans {
		results = append(results, store.ScanSummary{
			ID:        scan.ID,
			AgentType: scan.AgentType,
			Market:    scan.Market,
			Status:    scan.Status,
			Stage:     scan.Stage,
			DealCount: int64(len(scan.Deals)),
			ScannedAt: scan.ScannedAt,
			CreatedAt: scan.CreatedAt,
			UpdatedAt: scan.UpdatedAt,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return parseTime(results[i].CreatedAt).After(parseTime(results[j].CreatedAt))
	})
	return results, nil
}

func (m *MemoryStore) DeleteScan(ctx context.Context, scanID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scans, scanID)
	return nil
}

func (m *MemoryStore) ListAutomations(ctx context.Context) ([]store.Automation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Automation, 0, len(m.automations))
	for _, automation := range m.automations {
		results = append(results, cloneAutomation(automation))
	}
	sort.Slice(results, func(i, j int) bool {
		return parseTime(results[i].UpdatedAt).After(parseTime(results[j].UpdatedAt))
	})
	return results, nil
}

func (m *MemoryStore) GetAutomation(ctx context.Context, automationID string) (*store.Automation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	automation, ok := m.automations[automationID]
	if !ok {
		return nil, nil
	}
	cloned := cloneAutomation(automation)
	return &cloned, nil
}

func (m *MemoryStore) CreateAutomation(ctx context.Context, automation store.Automation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.automations[automation.ID] = cloneAutomation(automation)
	if _, ok := m.inbox[automation.ID]; !ok {
		m.inbox[automation.ID] = []store.AutomationInboxEntry{}
	}
	return nil
}

func (m *MemoryStore) UpdateAutomation(ctx context.Context, automation store.Automation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.automations[automation.ID]; !ok {
		return nil
	}
	m.automations[automation.ID] = cloneAutomation(automation)
	return nil
}

func (m *MemoryStore) DeleteAutomation(ctx context.Context, automationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.automations, automationID)
	delete(m.inbox, automationID)
	return nil
}

func (m *MemoryStore) ClaimDueAutomations(ctx context.Context, now string) ([]store.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := parseTime(now)
	claimed := []store.Automation{}
	for id, automation := range m.automations {
		if !automation.Enabled || automation.InProgress || automation.NextRunAt == "" {
			continue
		}
		if parseTime(automation.NextRunAt).After(cutoff) {
			continue
		}
		automation.InProgress = true
		automation.UpdatedAt = now
		m.automations[id] = automation
		claimed = append(claimed, cloneAutomation(automation))
	}
	sort.Slice(claimed, func(i, j int) bool {
		return parseTime(claimed[i].NextRunAt).Before(parseTime(claimed[j].NextRunAt))
	})
	return claimed, nil
}

func (m *MemoryStore) FinishAutomationRun(ctx context.Context, automationID, lastRunAt, nextRunAt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	automation, ok := m.automations[automationID]
	if !ok {
		return nil
	}
	automation.InProgress = false
	automation.LastRunAt = lastRunAt
	automation.NextRunAt = nextRunAt
	automation.UpdatedAt = lastRunAt
	m.automations[automationID] = automation
	return nil
}

func (m *MemoryStore) ListAutomationInbox(ctx context.Context, automationID string) ([]store.AutomationInboxEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.inbox[automationID]
	if entries == nil {
		return []store.AutomationInboxEntry{}, nil
	}
	cloned := make([]store.AutomationInboxEntry, len(entries))
	copy(cloned, entries)
	sort.Slice(cloned, func(i, j int) bool {
		return parseTime(cloned[i].StartedAt).After(parseTime(cloned[j].StartedAt))
	})
	return cloned, nil
}

func (m *MemoryStore) CreateAutomationInboxEntry(ctx context.Context, entry store.AutomationInboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox[entry.AutomationID] = append([]store.AutomationInboxEntry{entry}, m.inbox[entry.AutomationID]...)
	return nil
}

func (m *MemoryStore) UpdateAutomationInboxEntry(ctx context.Context, entry store.AutomationInboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.inbox[entry.AutomationID]
	for idx := range entries {
		if entries[idx].ID != entry.ID {
			continue
		}
		entries[idx] = entry
		m.inbox[entry.AutomationID] = entries
		return nil
	}
	return nil
}

func (m *MemoryStore) MarkAutomationInboxEntryRead(ctx context.Context, automationID string, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.inbox[automationID]
	for idx := range entries {
		if entries[idx].ID == entryID {
			entries[idx].Unread = false
		}
	}
	m.inbox[automationID] = entries
	return nil
}

func (m *MemoryStore) MarkAutomationInboxReadAll(ctx context.Context, automationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.inbox[automationID]
	for idx := range entries {
		entries[idx].Unread = false
	}
	m.inbox[automationID] = entries
	return nil
}

func cloneScan(scan store.Scan) store.Scan {
	cloned := scan
	cloned.Deals = append([]deals.Record{}, scan.Deals...)
	return cloned
}

func cloneAutomation(automation store.Automation) store.Automation {
	cloned := automation
	cloned.Days = append([]string{}, automation.Days...)
	return cloned
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
