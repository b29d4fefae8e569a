package outreach

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"inclusiv/internal/domain"
	"inclusiv/internal/ports"
)

const markTimeout = 5 * time.Second

// Sweep claims due emails batch by batch until none are left and delivers
// them one by one. A delivered row ends sent or failed; failures are not
// retried automatically. Once ctx is done, claimed rows that were never
// attempted go back to pending. Only a failed claim is returned as an error.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (ports.SweepReport, error) {
	var rep ports.SweepReport
	started := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SweepDuration.Observe(s.now().Sub(started).Seconds())
		}
		if rep.Claimed > 0 {
			s.log.Info("sweep finished",
				zap.Int("claimed", rep.Claimed),
				zap.Int("sent", rep.Sent),
				zap.Int("failed", rep.Failed),
				zap.Int("released", rep.Released),
			)
		}
	}()

	for ctx.Err() == nil {
		due, err := s.emails.ClaimDueEmails(ctx, now, s.batch)
		if err != nil {
			return rep, fmt.Errorf("claim due emails: %w", err)
		}
		rep.Claimed += len(due)

		for i, e := range due {
			if ctx.Err() != nil {
				for _, rest := range due[i:] {
					s.release(ctx, rest)
					rep.Released++
				}
				break
			}
			switch s.deliver(ctx, e) {
			case domain.EmailSent:
				rep.Sent++
			case domain.EmailFailed:
				rep.Failed++
			default:
				rep.Released++
			}
		}
		if len(due) < s.batch {
			break
		}
	}
	return rep, nil
}

// deliver sends one claimed row and records the outcome: sent, failed, or
// pending when the sweep was cancelled before anything reached the provider.
func (s *Scheduler) deliver(ctx context.Context, e domain.ScheduledEmail) domain.EmailStatus {
	log := s.emailLogger(e)
	// Outcomes are written even when the sweep's context is gone so the row
	// never stays in sending.
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()

	msg, err := s.compose(ctx, e)
	if err != nil && ctx.Err() != nil {
		s.release(ctx, e)
		return domain.EmailPending
	}
	if err == nil {
		err = s.sender.Send(ctx, msg)
	}
	if err != nil {
		log.Warn("email delivery failed", zap.Error(err))
		if merr := s.emails.MarkEmailFailed(mctx, e.ID, err.Error()); merr != nil {
			log.Error("record email failure", zap.Error(merr))
		}
		s.observe(e, domain.EmailFailed)
		return domain.EmailFailed
	}
	if err := s.emails.MarkEmailSent(mctx, e.ID, s.now()); err != nil {
		// The provider accepted it; leaving it unmarked must not cause a resend.
		log.Error("record email sent", zap.Error(err))
	}
	s.observe(e, domain.EmailSent)
	return domain.EmailSent
}

// release returns an unattempted claimed row to pending.
func (s *Scheduler) release(ctx context.Context, e domain.ScheduledEmail) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	if err := s.emails.ReleaseEmail(rctx, e.ID); err != nil {
		s.emailLogger(e).Error("release claimed email", zap.Error(err))
	}
}

func (s *Scheduler) emailLogger(e domain.ScheduledEmail) *zap.Logger {
	return s.log.With(
		zap.String("email_id", e.ID),
		zap.String("lead_id", e.LeadID),
		zap.String("sequence", string(e.SequenceType)),
		zap.Int("email_number", e.EmailNumber),
	)
}

// compose builds the message for one row without contacting the provider.
func (s *Scheduler) compose(ctx context.Context, e domain.ScheduledEmail) (ports.Message, error) {
	st, err := s.catalog.Step(e.SequenceType, e.EmailNumber)
	if err != nil {
		return ports.Message{}, err
	}
	lead, err := s.leads.GetLead(ctx, e.LeadID)
	if err != nil {
		return ports.Message{}, fmt.Errorf("load lead: %w", err)
	}
	body, err := st.Render(lead)
	if err != nil {
		return ports.Message{}, err
	}
	return ports.Message{
		To:      lead.Email,
		Subject: st.Subject,
		HTML:    body,
		Tags: map[string]string{
			"sequence":     string(e.SequenceType),
			"email_number": strconv.Itoa(e.EmailNumber),
		},
	}, nil
}

func (s *Scheduler) observe(e domain.ScheduledEmail, status domain.EmailStatus) {
	if s.metrics != nil {
		s.metrics.EmailsTotal.WithLabelValues(string(e.SequenceType), string(status)).Inc()
	}
}
