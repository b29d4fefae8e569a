package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"inclusiv/internal/domain"
)

// validID keeps malformed ids away from uuid columns, where Postgres would
// answer with a syntax error instead of no rows.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// rowExists separates a missed compare-and-set into not-found and conflict.
func (db *DB) rowExists(ctx context.Context, table, id string) error {
	var ok bool
	if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s %s: %w", table, id, domain.ErrConflict)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// ScanRepository

const scanColumns = `id, url, display_url, domain, status, score, violations, total_issues,
	critical_issues, platform, COALESCE(error, ''), scanned_at, created_at`

func scanScan(row pgx.Row) (domain.ScanResult, error) {
	var s domain.ScanResult
	var violations []byte
	err := row.Scan(&s.ID, &s.URL, &s.DisplayURL, &s.Domain, &s.Status, &s.Score, &violations,
		&s.TotalIssues, &s.CriticalIssues, &s.Platform, &s.Error, &s.ScannedAt, &s.CreatedAt)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(violations, &s.Violations); err != nil {
		return s, fmt.Errorf("decode violations of scan %s: %w", s.ID, err)
	}
	return s, nil
}

func (db *DB) CreateScan(ctx context.Context, scan domain.ScanResult) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO scans (url, display_url, domain, status, platform)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, scan.URL, scan.DisplayURL, scan.Domain, scan.Status, scan.Platform).Scan(&id)
	return id, err
}

func (db *DB) GetScan(ctx context.Context, scanID string) (domain.ScanResult, error) {
	if !validID(scanID) {
		return domain.ScanResult{}, domain.ErrNotFound
	}
	s, err := scanScan(db.Pool.QueryRow(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = $1`, scanID))
	return s, notFound(err)
}

func (db *DB) TransitionScan(ctx context.Context, scanID string, from, to domain.ScanStatus) error {
	if !validID(scanID) {
		return domain.ErrNotFound
	}
	tag, err := db.Pool.Exec(ctx, `UPDATE scans SET status = $3 WHERE id = $1 AND status = $2`, scanID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.rowExists(ctx, "scans", scanID)
	}
	return nil
}

func (db *DB) CompleteScan(ctx context.Context, scan domain.ScanResult) error {
	violations := scan.Violations
	if violations == nil {
		violations = []domain.Violation{}
	}
	payload, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("encode violations: %w", err)
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE scans
		SET status = 'completed', score = $2, violations = $3, total_issues = $4,
			critical_issues = $5, platform = $6, error = NULL, scanned_at = $7
		WHERE id = $1 AND status = 'processing'
	`, scan.ID, scan.Score, payload, scan.TotalIssues, scan.CriticalIssues, scan.Platform, scan.ScannedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.rowExists(ctx, "scans", scan.ID)
	}
	return nil
}

func (db *DB) FailScan(ctx context.Context, scanID, reason string, at time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE scans
		SET status = 'failed', score = NULL, violations = '[]'::jsonb, total_issues = 0,
			critical_issues = 0, error = $2, scanned_at = $3
		WHERE id = $1 AND status = 'processing'
	`, scanID, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.rowExists(ctx, "scans", scanID)
	}
	return nil
}

// LeadRepository

const leadColumns = `id, email, url, source, scan_summary, converted_at, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var summary []byte
	err := row.Scan(&l.ID, &l.Email, &l.URL, &l.Source, &summary, &l.ConvertedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return l, err
	}
	if summary != nil {
		l.ScanSummary = &domain.LeadScanSummary{}
		if err := json.Unmarshal(summary, l.ScanSummary); err != nil {
			return l, fmt.Errorf("decode scan summary of lead %s: %w", l.ID, err)
		}
	}
	return l, nil
}

func (db *DB) UpsertLead(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	var summary []byte
	if lead.ScanSummary != nil {
		b, err := json.Marshal(lead.ScanSummary)
		if err != nil {
			return domain.Lead{}, fmt.Errorf("encode scan summary: %w", err)
		}
		summary = b
	}
	return scanLead(db.Pool.QueryRow(ctx, `
		INSERT INTO leads (email, url, source, scan_summary)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET url = COALESCE(EXCLUDED.url, leads.url),
			scan_summary = COALESCE(EXCLUDED.scan_summary, leads.scan_summary),
			updated_at = now()
		RETURNING `+leadColumns,
		lead.Email, lead.URL, lead.Source, summary))
}

func (db *DB) GetLead(ctx context.Context, leadID string) (domain.Lead, error) {
	if !validID(leadID) {
		return domain.Lead{}, domain.ErrNotFound
	}
	l, err := scanLead(db.Pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, leadID))
	return l, notFound(err)
}

func (db *DB) GetLeadByEmail(ctx context.Context, email string) (domain.Lead, error) {
	l, err := scanLead(db.Pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = $1`, email))
	return l, notFound(err)
}

func (db *DB) MarkLeadConverted(ctx context.Context, leadID string, at time.Time) error {
	if !validID(leadID) {
		return domain.ErrNotFound
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE leads SET converted_at = COALESCE(converted_at, $2), updated_at = now()
		WHERE id = $1
	`, leadID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
