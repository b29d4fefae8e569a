package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"inclusiv/internal/domain"
)

const emailColumns = `id, lead_id, sequence_type, email_number, scheduled_for, status, attempts,
	sent_at, error_message, created_at`

func scanEmail(row pgx.Row) (domain.ScheduledEmail, error) {
	var e domain.ScheduledEmail
	err := row.Scan(&e.ID, &e.LeadID, &e.SequenceType, &e.EmailNumber, &e.ScheduledFor, &e.Status,
		&e.Attempts, &e.SentAt, &e.ErrorMessage, &e.CreatedAt)
	return e, err
}

func collectEmails(rows pgx.Rows) ([]domain.ScheduledEmail, error) {
	defer rows.Close()
	var out []domain.ScheduledEmail
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateSequence inserts the rows in one transaction. The unique
// (lead_id, sequence_type, email_number) key makes a concurrent or repeated
// enrolment insert nothing.
func (db *DB) CreateSequence(ctx context.Context, rows []domain.ScheduledEmail) (created bool, err error) {
	if len(rows) == 0 {
		return false, nil
	}
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var exists bool
	if err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM scheduled_emails WHERE lead_id = $1 AND sequence_type = $2)
	`, rows[0].LeadID, rows[0].SequenceType).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO scheduled_emails (lead_id, sequence_type, email_number, scheduled_for, status)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (lead_id, sequence_type, email_number) DO NOTHING
		`, r.LeadID, r.SequenceType, r.EmailNumber, r.ScheduledFor, r.Status)
	}
	results := tx.SendBatch(ctx, batch)
	inserted := int64(0)
	for range rows {
		tag, execErr := results.Exec()
		if execErr != nil {
			_ = results.Close()
			err = fmt.Errorf("insert scheduled email: %w", execErr)
			return false, err
		}
		inserted += tag.RowsAffected()
	}
	if err = results.Close(); err != nil {
		return false, err
	}
	return inserted > 0, nil
}

func (db *DB) ListEmailsByLead(ctx context.Context, leadID string) ([]domain.ScheduledEmail, error) {
	if !validID(leadID) {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT `+emailColumns+` FROM scheduled_emails
		WHERE lead_id = $1
		ORDER BY sequence_type, email_number
	`, leadID)
	if err != nil {
		return nil, err
	}
	return collectEmails(rows)
}

// ClaimDueEmails moves due pending rows to sending in one statement. SKIP
// LOCKED keeps concurrent sweeps from claiming the same row.
func (db *DB) ClaimDueEmails(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledEmail, error) {
	rows, err := db.Pool.Query(ctx, `
		UPDATE scheduled_emails
		SET status = 'sending', attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM scheduled_emails
			WHERE status = 'pending' AND scheduled_for <= $1
			ORDER BY scheduled_for
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+emailColumns,
		now, limit)
	if err != nil {
		return nil, err
	}
	out, err := collectEmails(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (db *DB) MarkEmailSent(ctx context.Context, emailID string, at time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE scheduled_emails SET status = 'sent', sent_at = $2, error_message = NULL
		WHERE id = $1 AND status = 'sending'
	`, emailID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.rowExists(ctx, "scheduled_emails", emailID)
	}
	return nil
}

func (db *DB) MarkEmailFailed(ctx context.Context, emailID, reason string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE scheduled_emails SET status = 'failed', error_message = $2
		WHERE id = $1 AND status = 'sending'
	`, emailID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.rowExists(ctx, "scheduled_emails", emailID)
	}
	return nil
}

func (db *DB) ReleaseEmail(ctx context.Context, emailID string) error {
	if !validID(emailID) {
		return domain.ErrNotFound
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE scheduled_emails SET status = 'pending', attempts = GREATEST(attempts - 1, 0)
		WHERE id = $1 AND status = 'sending'
	`, emailID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.rowExists(ctx, "scheduled_emails", emailID)
	}
	return nil
}

func (db *DB) CancelPendingEmails(ctx context.Context, leadID string) (int, error) {
	if !validID(leadID) {
		return 0, nil
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE scheduled_emails SET status = 'cancelled'
		WHERE lead_id = $1 AND status = 'pending'
	`, leadID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (db *DB) ResetEmail(ctx context.Context, emailID string, maxAttempts int) (domain.ScheduledEmail, error) {
	if !validID(emailID) {
		return domain.ScheduledEmail{}, domain.ErrNotFound
	}
	e, err := scanEmail(db.Pool.QueryRow(ctx, `
		UPDATE scheduled_emails SET status = 'pending', error_message = NULL
		WHERE id = $1 AND status = 'failed' AND attempts < $2
		RETURNING `+emailColumns,
		emailID, maxAttempts))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return e, err
	}

	cur, err := scanEmail(db.Pool.QueryRow(ctx, `SELECT `+emailColumns+` FROM scheduled_emails WHERE id = $1`, emailID))
	if err != nil {
		return cur, notFound(err)
	}
	if cur.Status != domain.EmailFailed {
		return cur, fmt.Errorf("email %s is %s, want %s: %w", emailID, cur.Status, domain.EmailFailed, domain.ErrConflict)
	}
	return cur, domain.ErrRetryExhausted
}
