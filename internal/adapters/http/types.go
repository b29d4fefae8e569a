package httpadapter

import (
	"time"

	"inclusiv/internal/domain"
)

// Failed scans never expose the internal reason.
const scanFailedMessage = "scan failed, please retry"

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type scanRequest struct {
	URL string `json:"url"`
}

type scanAccepted struct {
	ScanID string            `json:"scan_id"`
	Status domain.ScanStatus `json:"status"`
}

type scanResponse struct {
	ID             string             `json:"id"`
	URL            string             `json:"url"`
	DisplayURL     string             `json:"display_url"`
	Domain         string             `json:"domain"`
	Status         domain.ScanStatus  `json:"status"`
	Score          *int               `json:"score"`
	TotalIssues    int                `json:"total_issues"`
	CriticalIssues int                `json:"critical_issues"`
	Platform       domain.Platform    `json:"platform"`
	Violations     []domain.Violation `json:"violations"`
	Message        string             `json:"message,omitempty"`
	ScannedAt      *time.Time         `json:"scanned_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func newScanResponse(s domain.ScanResult) scanResponse {
	out := scanResponse{
		ID:             s.ID,
		URL:            s.URL,
		DisplayURL:     s.DisplayURL,
		Domain:         s.Domain,
		Status:         s.Status,
		Score:          s.Score,
		TotalIssues:    s.TotalIssues,
		CriticalIssues: s.CriticalIssues,
		Platform:       s.Platform,
		Violations:     s.Violations,
		ScannedAt:      s.ScannedAt,
		CreatedAt:      s.CreatedAt,
	}
	if out.Violations == nil {
		out.Violations = []domain.Violation{}
	}
	if s.Status == domain.ScanFailed {
		out.Message = scanFailedMessage
	}
	return out
}

type leadRequest struct {
	Email    string `json:"email"`
	URL      string `json:"url,omitempty"`
	Source   string `json:"source,omitempty"`
	Sequence string `json:"sequence,omitempty"`
	// ScanID attaches a completed scan's summary to the lead.
	ScanID string `json:"scan_id,omitempty"`
}

type leadBody struct {
	ID          string                  `json:"id"`
	Email       string                  `json:"email"`
	URL         *string                 `json:"url,omitempty"`
	Source      string                  `json:"source"`
	ScanSummary *domain.LeadScanSummary `json:"scan_summary,omitempty"`
	ConvertedAt *time.Time              `json:"converted_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

func newLeadBody(l domain.Lead) leadBody {
	return leadBody{
		ID:          l.ID,
		Email:       l.Email,
		URL:         l.URL,
		Source:      l.Source,
		ScanSummary: l.ScanSummary,
		ConvertedAt: l.ConvertedAt,
		CreatedAt:   l.CreatedAt,
	}
}

type emailBody struct {
	ID           string              `json:"id"`
	LeadID       string              `json:"lead_id"`
	SequenceType domain.SequenceType `json:"sequence_type"`
	EmailNumber  int                 `json:"email_number"`
	ScheduledFor time.Time           `json:"scheduled_for"`
	Status       domain.EmailStatus  `json:"status"`
	Attempts     int                 `json:"attempts"`
	SentAt       *time.Time          `json:"sent_at,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
}

func newEmailBody(e domain.ScheduledEmail) emailBody {
	return emailBody{
		ID:           e.ID,
		LeadID:       e.LeadID,
		SequenceType: e.SequenceType,
		EmailNumber:  e.EmailNumber,
		ScheduledFor: e.ScheduledFor,
		Status:       e.Status,
		Attempts:     e.Attempts,
		SentAt:       e.SentAt,
		ErrorMessage: e.ErrorMessage,
	}
}

func newEmailBodies(in []domain.ScheduledEmail) []emailBody {
	out := make([]emailBody, 0, len(in))
	for _, e := range in {
		out = append(out, newEmailBody(e))
	}
	return out
}

type leadResponse struct {
	Lead   leadBody    `json:"lead"`
	Emails []emailBody `json:"emails"`
}

type convertResponse struct {
	LeadID    string `json:"lead_id"`
	Cancelled int    `json:"cancelled"`
}

type emailsResponse struct {
	Emails []emailBody `json:"emails"`
}

type sweepResponse struct {
	Claimed  int `json:"claimed"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Released int `json:"released"`
}
