package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dealflowhq/dealflow/control-plane/internal/deals"
	"github.com/dealflowhq/dealflow/control-plane/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"scans",
		"automations",
		"automation_inbox",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run infra/migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) CreateScan(ctx context.Context, scan store.Scan) error {
	dealsBytes, err := json.Marshal(scan.Deals)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO scans (
			id,
			agent_type,
			market,
			status,
			model,
			stage,
			deals,
			raw_response,
			error,
			scanned_at,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		scan.ID,
		scan.AgentType,
		scan.Market,
		scan.Status,
		nullString(scan.Model),
		nullString(scan.Stage),
		dealsBytes,
		nullString(scan.RawResponse),
		nullString(scan.Error),
		parseTimestampNull(scan.ScannedAt),
		scan.CreatedAt,
		scan.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) UpdateScan(ctx context.Context, scan store.Scan) error {
	dealsBytes, err := json.Marshal(scan.Deals)
	if err != nil {
		return err
	}
	const query = `
		UPDATE scans
		SET status = $2,
			model = $3,
			stage = $4,
			deals = $5,
			raw_response = $6,
			error = $7,
			scanned_at = $8,
			updated_at = $9
		WHERE id = $1
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		scan.ID,
		scan.Status,
		nullString(scan.Model),
		nullString(scan.Stage),
		dealsBytes,
		nullString(scan.RawResponse),
		nullString(scan.Error),
		parseTimestampNull(scan.ScannedAt),
		scan.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetScan(ctx context.Context, scanID string) (*store.Scan, error) {
	const query = `
		SELECT id, agent_type, market, status, model, stage, deals, raw_response, error, scanned_at, created_at, updated_at
		FROM scans
		WHERE id = $1
	`
	var scan store.Scan
	var model, stage, rawResponse, scanErr sql.NullString
	var scannedAt sql.NullTime
	var dealsBytes []byte
	var createdAt, updatedAt time.Time
	err := p.db.QueryRowContext(ctx, query, scanID).Scan(
		&scan.ID,
		&scan.AgentType,
		&scan.Market,
		&scan.Status,
		&model,
		&stage,
		&dealsBytes,
		&rawResponse,
		&scanErr,
		&scannedAt,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	scan.Model = model.String
	scan.Stage = stage.String
	scan.RawResponse = rawResponse.String
	scan.Error = scanErr.String
	if scannedAt.Valid {
		scan.ScannedAt = scannedAt.Time.UTC().Format(time.RFC3339)
	}
	scan.Deals = decodeDeals(dealsBytes)
	scan.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	scan.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	return &scan, nil
}

func (p *PostgresStore) ListScans(ctx context.Context) ([]store.ScanSummary, error) {
	const query = `
		SELECT id, agent_type, market, status, stage, jsonb_array_length(deals) AS deal_count, scanned_at, created_at, updated_at
		FROM scans
		ORDER BY created_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.ScanSummary{}
	for rows.Next() {
		var summary store.ScanSummary
		var stage sql.NullString
		var scannedAt sql.NullTime
		var createdAt, updatedAt time.Time
		if err := rows.Scan(
			&summary.ID,
			&summary.AgentType,
			&summary.Market,
			&summary.Status,
			&stage,
			&summary.DealCount,
			&scannedAt,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, err
		}
		summary.Stage = stage.String
		if scannedAt.Valid {
			summary.ScannedAt = scannedAt.Time.UTC().Format(time.RFC3339)
		}
		summary.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		summary.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
		results = append(results, summary)
	}
	return results, rows.Err()
}

func (p *PostgresStore) DeleteScan(ctx context.Context, scanID string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM scans WHERE id = $1", scanID)
	return err
}

func (p *PostgresStore) ListAutomations(ctx context.Context) ([]store.Automation, error) {
	const query = `
		SELECT id, name, agent_type, market, days, time_of_day, timezone, enabled, next_run_at, last_run_at, in_progress, created_at, updated_at
		FROM automations
		ORDER BY updated_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Automation{}
	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, automation)
	}
	return results, rows.Err()
}

func (p *PostgresStore) GetAutomation(ctx context.Context, automationID string) (*store.Automation, error) {
	const query = `
		SELECT id, name, agent_type, market, days, time_of_day, timezone, enabled, next_run_at, last_run_at, in_progress, created_at, updated_at
		FROM automations
		WHERE id = $1
	`
	rows, err := p.db.QueryContext(ctx, query, automationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	automation, err := scanAutomation(rows)
	if err != nil {
		return nil, err
	}
	return &automation, nil
}

func (p *PostgresStore) CreateAutomation(ctx context.Context, automation store.Automation) error {
	daysBytes, err := json.Marshal(automation.Days)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO automations (
			id,
			name,
			agent_type,
			market,
			days,
			time_of_day,
			timezone,
			enabled,
			next_run_at,
			last_run_at,
			in_progress,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		automation.ID,
		automation.Name,
		automation.AgentType,
		automation.Market,
		daysBytes,
		automation.TimeOfDay,
		automation.Timezone,
		automation.Enabled,
		parseTimestampNull(automation.NextRunAt),
		parseTimestampNull(automation.LastRunAt),
		automation.InProgress,
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) UpdateAutomation(ctx context.Context, automation store.Automation) error {
	daysBytes, err := json.Marshal(automation.Days)
	if err != nil {
		return err
	}
	const query = `
		UPDATE automations
		SET name = $2,
			agent_type = $3,
			market = $4,
			days = $5,
			time_of_day = $6,
			timezone = $7,
			enabled = $8,
			next_run_at = $9,
			last_run_at = $10,
			in_progress = $11,
			updated_at = $12
		WHERE id = $1
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		automation.ID,
		automation.Name,
		automation.AgentType,
		automation.Market,
		daysBytes,
		automation.TimeOfDay,
		automation.Timezone,
		automation.Enabled,
		parseTimestampNull(automation.NextRunAt),
		parseTimestampNull(automation.LastRunAt),
		automation.InProgress,
		automation.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) DeleteAutomation(ctx context.Context, automationID string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM automations WHERE id = $1", automationID)
	return err
}

func (p *PostgresStore) ClaimDueAutomations(ctx context.Context, now string) ([]store.Automation, error) {
	// The in_progress flip and the read happen in one statement so two
	// schedulers cannot claim the same automation.
	const query = `
		UPDATE automations
		SET in_progress = TRUE, updated_at = $1
		WHERE enabled = TRUE
			AND in_progress = FALSE
			AND next_run_at IS NOT NULL
			AND next_run_at <= $1
		RETURNING id, name, agent_type, market, days, time_of_day, timezone, enabled, next_run_at, last_run_at, in_progress, created_at, updated_at
	`
	rows, err := p.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Automation{}
	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, automation)
	}
	return results, rows.Err()
}

func (p *PostgresStore) FinishAutomationRun(ctx context.Context, automationID, lastRunAt, nextRunAt string) error {
	const query = `
		UPDATE automations
		SET in_progress = FALSE,
			last_run_at = $2,
			next_run_at = $3,
			updated_at = $2
		WHERE id = $1
	`
	_, err := p.db.ExecContext(ctx, query, automationID, lastRunAt, parseTimestampNull(nextRunAt))
	return err
}

func (p *PostgresStore) ListAutomationInbox(ctx context.Context, automationID string) ([]store.AutomationInboxEntry, error) {
	const query = `
		SELECT id, automation_id, scan_id, status, deal_count, error, unread, trigger_source, started_at, completed_at, created_at, updated_at
		FROM automation_inbox
		WHERE automation_id = $1
		ORDER BY started_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query, automationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.AutomationInboxEntry{}
	for rows.Next() {
		var entry store.AutomationInboxEntry
		var scanID, entryErr sql.NullString
		var completedAt sql.NullTime
		var startedAt, createdAt, updatedAt time.Time
		if err := rows.Scan(
			&entry.ID,
			&entry.AutomationID,
			&scanID,
			&entry.Status,
			&entry.DealCount,
			&entryErr,
			&entry.Unread,
			&entry.Trigger,
			&startedAt,
			&completedAt,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, err
		}
		entry.ScanID = scanID.String
		entry.Error = entryErr.String
		if completedAt.Valid {
			entry.CompletedAt = completedAt.Time.UTC().Format(time.RFC3339)
		}
		entry.StartedAt = startedAt.UTC().Format(time.RFC3339)
		entry.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		entry.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
		results = append(results, entry)
	}
	return results, rows.Err()
}

func (p *PostgresStore) CreateAutomationInboxEntry(ctx context.Context, entry store.AutomationInboxEntry) error {
	const query = `
		INSERT INTO automation_inbox (
			id,
			automation_id,
			scan_id,
			status,
			deal_count,
			error,
			unread,
			trigger_source,
			started_at,
			completed_at,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.AutomationID,
		nullString(entry.ScanID),
		entry.Status,
		entry.DealCount,
		nullString(entry.Error),
		entry.Unread,
		entry.Trigger,
		entry.StartedAt,
		parseTimestampNull(entry.CompletedAt),
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) UpdateAutomationInboxEntry(ctx context.Context, entry store.AutomationInboxEntry) error {
	const query = `
		UPDATE automation_inbox
		SET scan_id = $3,
			status = $4,
			deal_count = $5,
			error = $6,
			unread = $7,
			completed_at = $8,
			updated_at = $9
		WHERE automation_id = $1 AND id = $2
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		entry.AutomationID,
		entry.ID,
		nullString(entry.ScanID),
		entry.Status,
		entry.DealCount,
		nullString(entry.Error),
		entry.Unread,
		parseTimestampNull(entry.CompletedAt),
		entry.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) MarkAutomationInboxEntryRead(ctx context.Context, automationID string, entryID string) error {
	_, err := p.db.ExecContext(ctx, "UPDATE automation_inbox SET unread = FALSE WHERE automation_id = $1 AND id = $2", automationID, entryID)
	return err
}

func (p *PostgresStore) MarkAutomationInboxReadAll(ctx context.Context, automationID string) error {
	_, err := p.db.ExecContext(ctx, "UPDATE automation_inbox SET unread = FALSE WHERE automation_id = $1", automationID)
	return err
}

func scanAutomation(rows *sql.Rows) (store.Automation, error) {
	var automation store.Automation
	var daysBytes []byte
	var nextRunAt, lastRunAt sql.NullTime
	var createdAt, updatedAt time.Time
	if err := rows.Scan(
		&automation.ID,
		&automation.Name,
		&automation.AgentType,
		&automation.Market,
		&daysBytes,
		&automation.TimeOfDay,
		&automation.Timezone,
		&automation.Enabled,
		&nextRunAt,
		&lastRunAt,
		&automation.InProgress,
		&createdAt,
		&updatedAt,
	); err != nil {
		return store.Automation{}, err
	}
	if nextRunAt.Valid {
		automation.NextRunAt = nextRunAt.Time.UTC().Format(time.RFC3339)
	}
	if lastRunAt.Valid {
		automation.LastRunAt = lastRunAt.Time.UTC().Format(time.RFC3339)
	}
	automation.Days = decodeStringSlice(daysBytes)
	automation.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	automation.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	return automation, nil
}

func decodeDeals(data []byte) []deals.Record {
	if len(data) == 0 {
		return []deals.Record{}
	}
	var records []deals.Record
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		return []deals.Record{}
	}
	return records
}

func decodeStringSlice(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil || values == nil {
		return []string{}
	}
	return values
}

func nullString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimestampNull(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return parsed.UTC()
}
