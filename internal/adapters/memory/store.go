// Package memory is an in-process implementation of the repository ports.
// It backs local runs without DATABASE_URL and the service tests; status
// transitions are compare-and-set under a single mutex.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"inclusiv/internal/domain"
)

type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	scans  map[string]domain.ScanResult
	order  []string // scan ids in creation order
	leads  map[string]domain.Lead
	emails map[string]domain.ScheduledEmail
}

func New() *Store {
	return &Store{
		now:    time.Now,
		scans:  map[string]domain.ScanResult{},
		leads:  map[string]domain.Lead{},
		emails: map[string]domain.ScheduledEmail{},
	}
}

// WithClock replaces the clock used for created/updated timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// Scans

func (s *Store) CreateScan(_ context.Context, scan domain.ScanResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan.ID = uuid.NewString()
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = s.now()
	}
	s.scans[scan.ID] = cloneScan(scan)
	s.order = append(s.order, scan.ID)
	return scan.ID, nil
}

func (s *Store) GetScan(_ context.Context, scanID string) (domain.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan, ok := s.scans[scanID]
	if !ok {
		return domain.ScanResult{}, domain.ErrNotFound
	}
	return cloneScan(scan), nil
}

func (s *Store) TransitionScan(_ context.Context, scanID string, from, to domain.ScanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan, ok := s.scans[scanID]
	if !ok {
		return domain.ErrNotFound
	}
	if scan.Status != from {
		return fmt.Errorf("scan %s is %s, want %s: %w", scanID, scan.Status, from, domain.ErrConflict)
	}
	scan.Status = to
	s.scans[scanID] = scan
	return nil
}

func (s *Store) CompleteScan(_ context.Context, result domain.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan, ok := s.scans[result.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if scan.Status != domain.ScanProcessing {
		return fmt.Errorf("scan %s is %s: %w", result.ID, scan.Status, domain.ErrConflict)
	}
	result.Status = domain.ScanCompleted
	result.CreatedAt = scan.CreatedAt
	s.scans[result.ID] = cloneScan(result)
	return nil
}

func (s *Store) FailScan(_ context.Context, scanID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scan, ok := s.scans[scanID]
	if !ok {
		return domain.ErrNotFound
	}
	if scan.Status != domain.ScanProcessing {
		return fmt.Errorf("scan %s is %s: %w", scanID, scan.Status, domain.ErrConflict)
	}
	scan.Status = domain.ScanFailed
	scan.Error = reason
	scan.Score = nil
	scan.Violations = nil
	scan.TotalIssues, scan.CriticalIssues = 0, 0
	scan.ScannedAt = &at
	s.scans[scanID] = scan
	return nil
}

// ClaimNextScan implements ports.ScanQueue.
func (s *Store) ClaimNextScan(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		scan := s.scans[id]
		if scan.Status == domain.ScanPending {
			scan.Status = domain.ScanProcessing
			s.scans[id] = scan
			return id, true, nil
		}
	}
	return "", false, nil
}

// Leads

func (s *Store) UpsertLead(_ context.Context, lead domain.Lead) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, existing := range s.leads {
		if existing.Email != lead.Email {
			continue
		}
		if lead.URL != nil {
			existing.URL = lead.URL
		}
		if lead.ScanSummary != nil {
			existing.ScanSummary = lead.ScanSummary
		}
		existing.UpdatedAt = now
		s.leads[id] = existing
		return existing, nil
	}
	lead.ID = uuid.NewString()
	lead.CreatedAt, lead.UpdatedAt = now, now
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *Store) GetLead(_ context.Context, leadID string) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.Lead{}, domain.ErrNotFound
	}
	return lead, nil
}

func (s *Store) GetLeadByEmail(_ context.Context, email string) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lead := range s.leads {
		if lead.Email == email {
			return lead, nil
		}
	}
	return domain.Lead{}, domain.ErrNotFound
}

func (s *Store) MarkLeadConverted(_ context.Context, leadID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return domain.ErrNotFound
	}
	if lead.ConvertedAt == nil {
		lead.ConvertedAt = &at
		lead.UpdatedAt = at
		s.leads[leadID] = lead
	}
	return nil
}

// Scheduled emails

func (s *Store) CreateSequence(_ context.Context, rows []domain.ScheduledEmail) (bool, error) {
	if len(rows) == 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, seq := rows[0].LeadID, rows[0].SequenceType
	for _, e := range s.emails {
		if e.LeadID == lead && e.SequenceType == seq {
			return false, nil
		}
	}
	now := s.now()
	for _, r := range rows {
		r.ID = uuid.NewString()
		r.CreatedAt = now
		s.emails[r.ID] = r
	}
	return true, nil
}

func (s *Store) ListEmailsByLead(_ context.Context, leadID string) ([]domain.ScheduledEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScheduledEmail
	for _, e := range s.emails {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SequenceType != out[j].SequenceType {
			return out[i].SequenceType < out[j].SequenceType
		}
		return out[i].EmailNumber < out[j].EmailNumber
	})
	return out, nil
}

func (s *Store) ClaimDueEmails(_ context.Context, now time.Time, limit int) ([]domain.ScheduledEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.ScheduledEmail
	for _, e := range s.emails {
		if e.Status == domain.EmailPending && !e.ScheduledFor.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].Status = domain.EmailSending
		due[i].Attempts++
		s.emails[due[i].ID] = due[i]
	}
	return due, nil
}

func (s *Store) MarkEmailSent(_ context.Context, emailID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.inStatus(emailID, domain.EmailSending)
	if err != nil {
		return err
	}
	e.Status = domain.EmailSent
	e.SentAt = &at
	e.ErrorMessage = nil
	s.emails[emailID] = e
	return nil
}

func (s *Store) MarkEmailFailed(_ context.Context, emailID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.inStatus(emailID, domain.EmailSending)
	if err != nil {
		return err
	}
	e.Status = domain.EmailFailed
	e.ErrorMessage = &reason
	s.emails[emailID] = e
	return nil
}

func (s *Store) ReleaseEmail(_ context.Context, emailID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.inStatus(emailID, domain.EmailSending)
	if err != nil {
		return err
	}
	e.Status = domain.EmailPending
	if e.Attempts > 0 {
		e.Attempts--
	}
	s.emails[emailID] = e
	return nil
}

func (s *Store) CancelPendingEmails(_ context.Context, leadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.emails {
		if e.LeadID == leadID && e.Status == domain.EmailPending {
			e.Status = domain.EmailCancelled
			s.emails[id] = e
			n++
		}
	}
	return n, nil
}

func (s *Store) ResetEmail(_ context.Context, emailID string, maxAttempts int) (domain.ScheduledEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.inStatus(emailID, domain.EmailFailed)
	if err != nil {
		return domain.ScheduledEmail{}, err
	}
	if e.Attempts >= maxAttempts {
		return e, domain.ErrRetryExhausted
	}
	e.Status = domain.EmailPending
	e.ErrorMessage = nil
	s.emails[emailID] = e
	return e, nil
}

func (s *Store) inStatus(emailID string, want domain.EmailStatus) (domain.ScheduledEmail, error) {
	e, ok := s.emails[emailID]
	if !ok {
		return e, domain.ErrNotFound
	}
	if e.Status != want {
		return e, fmt.Errorf("email %s is %s, want %s: %w", emailID, e.Status, want, domain.ErrConflict)
	}
	return e, nil
}

func cloneScan(s domain.ScanResult) domain.ScanResult {
	if s.Violations != nil {
		s.Violations = append([]domain.Violation(nil), s.Violations...)
	}
	return s
}
