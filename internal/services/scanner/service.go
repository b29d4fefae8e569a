package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inclusiv/internal/domain"
	"inclusiv/internal/metrics"
	"inclusiv/internal/platform"
	"inclusiv/internal/ports"
	"inclusiv/internal/remediation"
	"inclusiv/internal/scoring"
)

// persistTimeout bounds terminal writes, which run detached from the
// caller's context so a cancelled request still leaves a terminal row.
const persistTimeout = 5 * time.Second

type Deps struct {
	Scans    ports.ScanRepository
	Auditor  ports.PageAuditor
	Detector *platform.Detector
	Resolver *remediation.Resolver
	Events   ports.EventPublisher // optional
	Metrics  *metrics.Metrics     // optional
	Logger   *zap.Logger
	// AuditTimeout bounds one auditor call. Required.
	AuditTimeout time.Duration
	Now          func() time.Time
}

// Service drives scans through pending -> processing -> completed|failed.
type Service struct {
	scans    ports.ScanRepository
	auditor  ports.PageAuditor
	detector *platform.Detector
	resolver *remediation.Resolver
	events   ports.EventPublisher
	metrics  *metrics.Metrics
	log      *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Detector == nil {
		d.Detector = platform.NewDetector(platform.DefaultSignatures())
	}
	if d.Resolver == nil {
		d.Resolver = remediation.NewResolver(remediation.DefaultTable())
	}
	return &Service{
		scans:    d.Scans,
		auditor:  d.Auditor,
		detector: d.Detector,
		resolver: d.Resolver,
		events:   d.Events,
		metrics:  d.Metrics,
		log:      d.Logger.Named("scanner"),
		timeout:  d.AuditTimeout,
		now:      d.Now,
	}
}

// RunScan validates rawurl, persists a pending scan and runs it to a
// terminal state. A malformed URL yields a failed, unpersisted result and
// an error wrapping domain.ErrInvalidURL. Auditor failures are recorded on
// the row and never returned; only persistence errors are.
func (s *Service) RunScan(ctx context.Context, rawurl string) (domain.ScanResult, error) {
	target, err := ParseTarget(rawurl)
	if err != nil {
		s.observe(domain.ScanFailed)
		return domain.ScanResult{
			URL:       rawurl,
			Platform:  domain.PlatformUnknown,
			Status:    domain.ScanFailed,
			Error:     err.Error(),
			CreatedAt: s.now(),
		}, err
	}
	scan, err := s.create(ctx, target)
	if err != nil {
		return scan, err
	}
	if err := s.scans.TransitionScan(ctx, scan.ID, domain.ScanPending, domain.ScanProcessing); err != nil {
		s.abandon(ctx, scan.ID, err)
		return scan, fmt.Errorf("start scan %s: %w", scan.ID, err)
	}
	scan.Status = domain.ScanProcessing
	return s.execute(ctx, scan)
}

// Enqueue persists a pending scan for the background workers.
func (s *Service) Enqueue(ctx context.Context, rawurl string) (domain.ScanResult, error) {
	target, err := ParseTarget(rawurl)
	if err != nil {
		return domain.ScanResult{}, err
	}
	return s.create(ctx, target)
}

// Process runs a scan that a worker already claimed (status processing).
func (s *Service) Process(ctx context.Context, scanID string) error {
	scan, err := s.scans.GetScan(ctx, scanID)
	if err != nil {
		return fmt.Errorf("load scan %s: %w", scanID, err)
	}
	if scan.Status != domain.ScanProcessing {
		return fmt.Errorf("scan %s is %s: %w", scanID, scan.Status, domain.ErrConflict)
	}
	_, err = s.execute(ctx, scan)
	return err
}

func (s *Service) Get(ctx context.Context, scanID string) (domain.ScanResult, error) {
	return s.scans.GetScan(ctx, scanID)
}

func (s *Service) create(ctx context.Context, t Target) (domain.ScanResult, error) {
	scan := domain.ScanResult{
		URL:        t.URL,
		DisplayURL: t.Display,
		Domain:     t.Domain,
		Platform:   domain.PlatformUnknown,
		Status:     domain.ScanPending,
		CreatedAt:  s.now(),
	}
	id, err := s.scans.CreateScan(ctx, scan)
	if err != nil {
		return scan, fmt.Errorf("create scan: %w", err)
	}
	scan.ID = id
	return scan, nil
}

func (s *Service) execute(ctx context.Context, scan domain.ScanResult) (domain.ScanResult, error) {
	log := s.log.With(zap.String("scan_id", scan.ID), zap.String("url", scan.URL))
	started := s.now()

	report, err := s.audit(ctx, scan.URL)
	if s.metrics != nil {
		s.metrics.ScanDuration.Observe(s.now().Sub(started).Seconds())
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("audit timed out after %s", s.timeout)
		}
		log.Warn("scan failed", zap.String("reason", reason))
		at := s.now()
		if ferr := s.scans.FailScan(pctx, scan.ID, reason, at); ferr != nil {
			return scan, fmt.Errorf("record failed scan %s: %w", scan.ID, ferr)
		}
		s.observe(domain.ScanFailed)
		scan.Status = domain.ScanFailed
		scan.Error = reason
		scan.ScannedAt = &at
		return scan, nil
	}

	violations := scoring.Normalize(report.Findings)
	scoring.Sort(violations)
	summary := scoring.Summarize(violations)
	detected := s.detector.Detect(report.Page)
	s.resolver.Apply(violations, detected)

	at := s.now()
	score := summary.Score
	scan.Score = &score
	scan.Violations = violations
	scan.TotalIssues = summary.TotalIssues
	scan.CriticalIssues = summary.CriticalIssues
	scan.Platform = detected
	scan.ScannedAt = &at
	scan.Error = ""

	if err := s.scans.CompleteScan(pctx, scan); err != nil {
		log.Error("record completed scan", zap.Error(err))
		if ferr := s.scans.FailScan(pctx, scan.ID, "record result: "+err.Error(), at); ferr != nil {
			log.Error("record failed scan", zap.Error(ferr))
		} else {
			s.observe(domain.ScanFailed)
			scan.Status = domain.ScanFailed
			scan.Score = nil
			scan.Violations = nil
			scan.TotalIssues, scan.CriticalIssues = 0, 0
		}
		return scan, fmt.Errorf("record completed scan %s: %w", scan.ID, err)
	}
	scan.Status = domain.ScanCompleted
	s.observe(domain.ScanCompleted)
	if s.metrics != nil {
		s.metrics.ScanScore.Observe(float64(score))
	}
	log.Info("scan completed",
		zap.Int("score", score),
		zap.Int("issues", summary.TotalIssues),
		zap.Int("critical", summary.CriticalIssues),
		zap.String("platform", string(detected)),
	)

	if s.events != nil {
		ev := ports.ScanCompletedEvent{
			ScanID:         scan.ID,
			URL:            scan.URL,
			Domain:         scan.Domain,
			Score:          score,
			TotalIssues:    scan.TotalIssues,
			CriticalIssues: scan.CriticalIssues,
			Platform:       detected,
			ScannedAt:      at,
		}
		if err := s.events.PublishScanCompleted(pctx, ev); err != nil {
			log.Error("publish scan completed", zap.Error(err))
		}
	}
	return scan, nil
}

// abandon fails a pending scan whose start could not be recorded, so no worker
// audits it after the caller got an error. A row another worker already
// claimed is left to that worker.
func (s *Service) abandon(ctx context.Context, scanID string, cause error) {
	log := s.log.With(zap.String("scan_id", scanID))
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.scans.TransitionScan(pctx, scanID, domain.ScanPending, domain.ScanProcessing); err != nil {
		log.Warn("abandon scan", zap.Error(err))
		return
	}
	if err := s.scans.FailScan(pctx, scanID, "not started: "+cause.Error(), s.now()); err != nil {
		log.Error("record failed scan", zap.Error(err))
		return
	}
	s.observe(domain.ScanFailed)
}

type auditOutcome struct {
	report ports.AuditReport
	err    error
}

// audit calls the auditor under the timeout. The select returns on deadline
// even when the auditor ignores ctx; a panic in the auditor becomes an error.
func (s *Service) audit(ctx context.Context, url string) (ports.AuditReport, error) {
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan auditOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- auditOutcome{err: fmt.Errorf("auditor panic: %v", r)}
			}
		}()
		rep, err := s.auditor.Audit(actx, url)
		done <- auditOutcome{report: rep, err: err}
	}()

	select {
	case out := <-done:
		return out.report, out.err
	case <-actx.Done():
		return ports.AuditReport{}, actx.Err()
	}
}

func (s *Service) observe(status domain.ScanStatus) {
	if s.metrics != nil {
		s.metrics.ScansTotal.WithLabelValues(string(status)).Inc()
	}
}
