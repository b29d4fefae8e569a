package ports

import (
	"context"
	"time"

	"inclusiv/internal/domain"
)

// Scanner runs and tracks scans.
type Scanner interface {
	RunScan(ctx context.Context, url string) (domain.ScanResult, error)
	Enqueue(ctx context.Context, url string) (domain.ScanResult, error)
	Get(ctx context.Context, scanID string) (domain.ScanResult, error)
}

type CaptureInput struct {
	Email       string
	URL         string
	Source      string
	Sequence    domain.SequenceType
	ScanSummary *domain.LeadScanSummary
}

// Leads captures prospects and tracks conversion.
type Leads interface {
	Capture(ctx context.Context, in CaptureInput) (domain.Lead, []domain.ScheduledEmail, error)
	Convert(ctx context.Context, leadID string) (cancelled int, err error)
	Get(ctx context.Context, leadID string) (domain.Lead, error)
}

type SweepReport struct {
	Claimed int
	Sent    int
	Failed  int
	// Released rows were claimed but handed back untouched because the
	// sweep was cancelled.
	Released int
}

// Outreach schedules and delivers drip sequences.
type Outreach interface {
	Enroll(ctx context.Context, lead domain.Lead, seq domain.SequenceType) ([]domain.ScheduledEmail, error)
	Sweep(ctx context.Context, now time.Time) (SweepReport, error)
	CancelPending(ctx context.Context, leadID string) (int, error)
	Reset(ctx context.Context, emailID string) (domain.ScheduledEmail, error)
	Emails(ctx context.Context, leadID string) ([]domain.ScheduledEmail, error)
}
