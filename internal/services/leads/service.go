package leads

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"inclusiv/internal/domain"
	"inclusiv/internal/ports"
	"inclusiv/internal/services/scanner"
)

const DefaultSource = "website"

type Service struct {
	leads    ports.LeadRepository
	outreach ports.Outreach
	log      *zap.Logger
	now      func() time.Time
}

var _ ports.Leads = (*Service)(nil)

func New(repo ports.LeadRepository, outreach ports.Outreach, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{leads: repo, outreach: outreach, log: log.Named("leads"), now: time.Now}
}

// WithClock overrides the conversion timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Capture stores the lead keyed by its normalised email and enrolls it into
// the requested sequence (welcome by default). Converted leads are updated
// but not enrolled again.
func (s *Service) Capture(ctx context.Context, in ports.CaptureInput) (domain.Lead, []domain.ScheduledEmail, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return domain.Lead{}, nil, err
	}
	seq := in.Sequence
	if seq == "" {
		seq = domain.SequenceWelcome
	}
	if !seq.Known() {
		return domain.Lead{}, nil, fmt.Errorf("sequence %q: %w", seq, domain.ErrUnknownSequence)
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = DefaultSource
	}
	lead := domain.Lead{Email: email, Source: source, ScanSummary: in.ScanSummary}
	if raw := strings.TrimSpace(in.URL); raw != "" {
		target, err := scanner.ParseTarget(raw)
		if err != nil {
			return domain.Lead{}, nil, err
		}
		lead.URL = &target.URL
	}

	lead, err = s.leads.UpsertLead(ctx, lead)
	if err != nil {
		return domain.Lead{}, nil, fmt.Errorf("upsert lead: %w", err)
	}
	if lead.ConvertedAt != nil {
		s.log.Info("converted lead captured again", zap.String("lead_id", lead.ID))
		return lead, nil, nil
	}
	emails, err := s.outreach.Enroll(ctx, lead, seq)
	if err != nil {
		return lead, nil, err
	}
	return lead, emails, nil
}

// Convert marks the lead as a customer and cancels its pending outreach.
func (s *Service) Convert(ctx context.Context, leadID string) (int, error) {
	if err := s.leads.MarkLeadConverted(ctx, leadID, s.now()); err != nil {
		return 0, fmt.Errorf("convert lead %s: %w", leadID, err)
	}
	n, err := s.outreach.CancelPending(ctx, leadID)
	if err != nil {
		return 0, err
	}
	s.log.Info("lead converted", zap.String("lead_id", leadID), zap.Int("cancelled", n))
	return n, nil
}

func (s *Service) Get(ctx context.Context, leadID string) (domain.Lead, error) {
	return s.leads.GetLead(ctx, leadID)
}

// NormalizeEmail trims and lowercases raw and checks it is a bare address
// with a dotted domain.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidEmail)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidEmail, raw)
	}
	at := strings.LastIndexByte(email, '@')
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidEmail, raw)
	}
	return email, nil
}
