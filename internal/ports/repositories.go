package ports

import (
	"context"
	"time"

	"inclusiv/internal/domain"
)

// ScanRepository persists scan results. Status changes are compare-and-set:
// implementations return domain.ErrConflict when the row is not in the
// expected state and domain.ErrNotFound when it does not exist.
type ScanRepository interface {
	CreateScan(ctx context.Context, scan domain.ScanResult) (scanID string, err error)
	GetScan(ctx context.Context, scanID string) (domain.ScanResult, error)
	TransitionScan(ctx context.Context, scanID string, from, to domain.ScanStatus) error
	// CompleteScan moves a processing scan to completed with all result fields.
	CompleteScan(ctx context.Context, scan domain.ScanResult) error
	// FailScan moves a processing scan to failed, clearing score and violations.
	FailScan(ctx context.Context, scanID string, reason string, at time.Time) error
}

// LeadRepository stores leads keyed by normalised email.
type LeadRepository interface {
	// UpsertLead inserts a new lead or updates the existing row with the same
	// email. URL and scan summary are only overwritten when provided.
	UpsertLead(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	GetLead(ctx context.Context, leadID string) (domain.Lead, error)
	GetLeadByEmail(ctx context.Context, email string) (domain.Lead, error)
	MarkLeadConverted(ctx context.Context, leadID string, at time.Time) error
}

// EmailRepository stores drip sequence rows.
type EmailRepository interface {
	// CreateSequence inserts all rows of one (lead, sequence) atomically.
	// It returns created=false without writing if the pair already has rows.
	CreateSequence(ctx context.Context, rows []domain.ScheduledEmail) (created bool, err error)
	ListEmailsByLead(ctx context.Context, leadID string) ([]domain.ScheduledEmail, error)
	// ClaimDueEmails atomically moves up to limit pending rows with
	// scheduled_for <= now to sending and returns them. A row is returned by
	// at most one concurrent caller.
	ClaimDueEmails(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledEmail, error)
	MarkEmailSent(ctx context.Context, emailID string, at time.Time) error
	MarkEmailFailed(ctx context.Context, emailID string, reason string) error
	// ReleaseEmail hands a claimed row that was never attempted back to
	// pending and undoes the claim's attempt increment.
	ReleaseEmail(ctx context.Context, emailID string) error
	// CancelPendingEmails cancels the lead's pending rows and returns how many.
	CancelPendingEmails(ctx context.Context, leadID string) (int, error)
	// ResetEmail moves a failed row back to pending while attempts < maxAttempts.
	ResetEmail(ctx context.Context, emailID string, maxAttempts int) (domain.ScheduledEmail, error)
}
