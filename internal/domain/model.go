package domain

import "time"

// Core domain models used internally. HTTP request/response shapes live in
// internal/adapters/http; keep these decoupled from transport.

// Impact is the severity the audit engine assigned to a rule failure.
type Impact string

const (
	ImpactCritical Impact = "critical"
	ImpactSerious  Impact = "serious"
	ImpactModerate Impact = "moderate"
	ImpactMinor    Impact = "minor"
)

// Rank orders impacts from most (4) to least (1) severe. Unknown values rank
// as minor.
func (i Impact) Rank() int {
	switch i {
	case ImpactCritical:
		return 4
	case ImpactSerious:
		return 3
	case ImpactModerate:
		return 2
	default:
		return 1
	}
}

// ParseImpact maps an auditor impact string onto the enum. Missing or
// unrecognised values become minor.
func ParseImpact(s string) Impact {
	switch Impact(s) {
	case ImpactCritical, ImpactSerious, ImpactModerate, ImpactMinor:
		return Impact(s)
	}
	return ImpactMinor
}

// Platform is the commerce/CMS platform detected behind a scanned site.
type Platform string

const (
	PlatformShopify     Platform = "shopify"
	PlatformWordPress   Platform = "wordpress"
	PlatformMagento     Platform = "magento"
	PlatformBigCommerce Platform = "bigcommerce"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformWix         Platform = "wix"
	PlatformSquarespace Platform = "squarespace"
	PlatformWebflow     Platform = "webflow"
	PlatformUnknown     Platform = "unknown"
)

// Remediation is human-readable fix guidance for one rule.
type Remediation struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Steps   []string `json:"steps,omitempty"`
	HelpURL string   `json:"help_url,omitempty"`
}

// Violation is one distinct rule failure on a page.
type Violation struct {
	RuleID      string       `json:"rule_id"`
	Impact      Impact       `json:"impact"`
	Description string       `json:"description"`
	Occurrences int          `json:"occurrences"`
	Remediation *Remediation `json:"remediation,omitempty"`
}

type ScanStatus string

const (
	ScanPending    ScanStatus = "pending"
	ScanProcessing ScanStatus = "processing"
	ScanCompleted  ScanStatus = "completed"
	ScanFailed     ScanStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

type ScanResult struct {
	ID             string
	URL            string // as fetched, scheme included
	DisplayURL     string
	Domain         string // registrable domain (eTLD+1)
	Score          *int
	Violations     []Violation
	TotalIssues    int
	CriticalIssues int
	Platform       Platform
	Status         ScanStatus
	Error          string // operator-facing only
	ScannedAt      *time.Time
	CreatedAt      time.Time
}

// LeadScanSummary is the slice of a ScanResult used to personalise outreach.
type LeadScanSummary struct {
	ScanID         string   `json:"scan_id,omitempty"`
	Score          int      `json:"score"`
	TotalIssues    int      `json:"total_issues"`
	CriticalIssues int      `json:"critical_issues"`
	Platform       Platform `json:"platform"`
}

type Lead struct {
	ID          string
	Email       string
	URL         *string
	Source      string
	ScanSummary *LeadScanSummary
	ConvertedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SequenceType string

const (
	SequenceWelcome  SequenceType = "welcome"
	SequenceColdLead SequenceType = "cold_lead"
)

func (t SequenceType) Known() bool {
	return t == SequenceWelcome || t == SequenceColdLead
}

type EmailStatus string

const (
	EmailPending   EmailStatus = "pending"
	EmailSending   EmailStatus = "sending" // claimed by a sweep, delivery in flight
	EmailSent      EmailStatus = "sent"
	EmailFailed    EmailStatus = "failed"
	EmailCancelled EmailStatus = "cancelled"
)

type ScheduledEmail struct {
	ID           string
	LeadID       string
	SequenceType SequenceType
	EmailNumber  int
	ScheduledFor time.Time
	Status       EmailStatus
	Attempts     int
	SentAt       *time.Time
	ErrorMessage *string
	CreatedAt    time.Time
}
