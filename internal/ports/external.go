package ports

import (
	"context"
	"time"

	"inclusiv/internal/domain"
	"inclusiv/internal/platform"
	"inclusiv/internal/scoring"
)

// AuditReport is what a page auditor returns for one URL.
type AuditReport struct {
	Findings []scoring.RawFinding
	Page     platform.Page
}

// PageAuditor loads a page and runs the accessibility rule engine on it. It
// must honour ctx cancellation.
type PageAuditor interface {
	Audit(ctx context.Context, url string) (AuditReport, error)
}

type Message struct {
	To      string
	Subject string
	HTML    string
	Tags    map[string]string
}

// EmailSender delivers one message; a nil error means accepted by the provider.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

type ScanCompletedEvent struct {
	ScanID         string          `json:"scan_id"`
	URL            string          `json:"url"`
	Domain         string          `json:"domain"`
	Score          int             `json:"score"`
	TotalIssues    int             `json:"total_issues"`
	CriticalIssues int             `json:"critical_issues"`
	Platform       domain.Platform `json:"platform"`
	ScannedAt      time.Time       `json:"scanned_at"`
}

type EventPublisher interface {
	PublishScanCompleted(ctx context.Context, ev ScanCompletedEvent) error
}
