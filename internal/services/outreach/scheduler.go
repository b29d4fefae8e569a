package outreach

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inclusiv/internal/domain"
	"inclusiv/internal/metrics"
	"inclusiv/internal/ports"
)

const (
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 3
)

type Deps struct {
	Emails  ports.EmailRepository
	Leads   ports.LeadRepository
	Sender  ports.EmailSender
	Catalog Catalog
	// BatchSize caps how many rows one sweep claims.
	BatchSize int
	// MaxAttempts bounds operator resets of failed rows.
	MaxAttempts int
	Metrics     *metrics.Metrics // optional
	Logger      *zap.Logger
	Now         func() time.Time
}

// Scheduler enrolls leads into drip sequences and delivers due emails.
type Scheduler struct {
	emails      ports.EmailRepository
	leads       ports.LeadRepository
	sender      ports.EmailSender
	catalog     Catalog
	batch       int
	maxAttempts int
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time
}

var _ ports.Outreach = (*Scheduler)(nil)

func New(d Deps) *Scheduler {
	if d.Catalog == nil {
		d.Catalog = DefaultCatalog()
	}
	if d.BatchSize <= 0 {
		d.BatchSize = DefaultBatchSize
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = DefaultMaxAttempts
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Scheduler{
		emails:      d.Emails,
		leads:       d.Leads,
		sender:      d.Sender,
		catalog:     d.Catalog,
		batch:       d.BatchSize,
		maxAttempts: d.MaxAttempts,
		metrics:     d.Metrics,
		log:         d.Logger.Named("outreach"),
		now:         d.Now,
	}
}

// Enroll schedules every step of seq for lead, relative to now. Enrolling the
// same lead into the same sequence again returns the existing rows.
func (s *Scheduler) Enroll(ctx context.Context, lead domain.Lead, seq domain.SequenceType) ([]domain.ScheduledEmail, error) {
	def, err := s.catalog.Lookup(seq)
	if err != nil {
		return nil, err
	}
	base := s.now()
	rows := make([]domain.ScheduledEmail, 0, len(def.Steps))
	for _, st := range def.Steps {
		rows = append(rows, domain.ScheduledEmail{
			LeadID:       lead.ID,
			SequenceType: seq,
			EmailNumber:  st.Number,
			ScheduledFor: base.Add(st.Delay),
			Status:       domain.EmailPending,
		})
	}
	created, err := s.emails.CreateSequence(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("enroll lead %s in %s: %w", lead.ID, seq, err)
	}
	if created {
		s.log.Info("lead enrolled",
			zap.String("lead_id", lead.ID),
			zap.String("sequence", string(seq)),
			zap.Int("emails", len(rows)),
		)
	}
	all, err := s.emails.ListEmailsByLead(ctx, lead.ID)
	if err != nil {
		return nil, fmt.Errorf("list emails for lead %s: %w", lead.ID, err)
	}
	out := make([]domain.ScheduledEmail, 0, len(def.Steps))
	for _, e := range all {
		if e.SequenceType == seq {
			out = append(out, e)
		}
	}
	return out, nil
}

// CancelPending cancels the lead's not-yet-sent emails. Sent, failed and
// in-flight rows are left as they are.
func (s *Scheduler) CancelPending(ctx context.Context, leadID string) (int, error) {
	n, err := s.emails.CancelPendingEmails(ctx, leadID)
	if err != nil {
		return 0, fmt.Errorf("cancel emails for lead %s: %w", leadID, err)
	}
	if n > 0 {
		s.log.Info("pending emails cancelled", zap.String("lead_id", leadID), zap.Int("count", n))
	}
	return n, nil
}

// Reset puts a failed email back in the queue while it has attempts left.
func (s *Scheduler) Reset(ctx context.Context, emailID string) (domain.ScheduledEmail, error) {
	e, err := s.emails.ResetEmail(ctx, emailID, s.maxAttempts)
	if err != nil {
		return e, fmt.Errorf("reset email %s: %w", emailID, err)
	}
	s.log.Info("email reset", zap.String("email_id", emailID), zap.Int("attempts", e.Attempts))
	return e, nil
}

func (s *Scheduler) Emails(ctx context.Context, leadID string) ([]domain.ScheduledEmail, error) {
	if _, err := s.leads.GetLead(ctx, leadID); err != nil {
		return nil, fmt.Errorf("load lead %s: %w", leadID, err)
	}
	return s.emails.ListEmailsByLead(ctx, leadID)
}
