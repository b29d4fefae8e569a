package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ClaimNextScan locks the oldest pending scan with SKIP LOCKED and marks it
// processing.
func (db *DB) ClaimNextScan(ctx context.Context) (scanID string, found bool, err error) {
	// Use explicit transaction to safely lock and transition state
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id FROM scans
		WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&scanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if _, err = tx.Exec(ctx, `UPDATE scans SET status = 'processing' WHERE id = $1`, scanID); err != nil {
		return "", false, err
	}
	return scanID, true, nil
}
