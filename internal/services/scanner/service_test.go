package scanner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inclusiv/internal/adapters/memory"
	"inclusiv/internal/domain"
	"inclusiv/internal/metrics"
	"inclusiv/internal/platform"
	"inclusiv/internal/ports"
	"inclusiv/internal/scoring"
	"inclusiv/internal/services/scanner"
)

type fakeAuditor struct {
	calls  atomic.Int32
	report ports.AuditReport
	err    error
	hang   bool
	panic  bool
}

func (f *fakeAuditor) Audit(ctx context.Context, _ string) (ports.AuditReport, error) {
	f.calls.Add(1)
	if f.panic {
		panic("browser crashed")
	}
	if f.hang {
		// ignores ctx on purpose
		time.Sleep(2 * time.Second)
	}
	return f.report, f.err
}

type recordingEvents struct {
	mu     sync.Mutex
	events []ports.ScanCompletedEvent
}

func (r *recordingEvents) PublishScanCompleted(_ context.Context, ev ports.ScanCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func newService(t *testing.T, a ports.PageAuditor) (*scanner.Service, *memory.Store, *recordingEvents) {
	t.Helper()
	store := memory.New()
	events := &recordingEvents{}
	svc := scanner.New(scanner.Deps{
		Scans:        store,
		Auditor:      a,
		Events:       events,
		Metrics:      metrics.New(),
		AuditTimeout: 100 * time.Millisecond,
	})
	return svc, store, events
}

func raw(fs ...scoring.Finding) []scoring.RawFinding {
	out := make([]scoring.RawFinding, len(fs))
	for i := range fs {
		out[i] = fs[i]
	}
	return out
}

func TestRunScan_EmptyFindings(t *testing.T) {
	svc, store, events := newService(t, &fakeAuditor{})

	res, err := svc.RunScan(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanCompleted, res.Status)
	require.NotNil(t, res.Score)
	assert.Equal(t, 100, *res.Score)
	assert.Equal(t, 0, res.TotalIssues)
	assert.Equal(t, 0, res.CriticalIssues)
	assert.Empty(t, res.Violations)
	assert.Equal(t, domain.PlatformUnknown, res.Platform)

	stored, err := store.GetScan(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanCompleted, stored.Status)
	assert.Len(t, events.events, 1)
}

func TestRunScan_ScoresSortsAndResolves(t *testing.T) {
	a := &fakeAuditor{report: ports.AuditReport{
		Findings: raw(
			scoring.Finding{Rule: "region", Level: "moderate", Text: "Content in landmarks", Nodes: 30},
			scoring.Finding{Rule: "image-alt", Level: "critical", Text: "Images need alt", Nodes: 12},
			scoring.Finding{Rule: "image-alt", Level: "critical", Nodes: 3},
			scoring.Finding{Rule: "color-contrast", Level: "serious", Nodes: 8},
			scoring.Finding{Rule: "custom-rule", Level: "minor", Nodes: 1},
		),
		Page: platform.Page{Cookies: []string{"_shopify_y"}},
	}}
	svc, _, events := newService(t, a)

	res, err := svc.RunScan(context.Background(), "shop.example.co.uk/collections/")
	require.NoError(t, err)
	require.Equal(t, domain.ScanCompleted, res.Status)

	assert.Equal(t, "https://shop.example.co.uk/collections/", res.URL)
	assert.Equal(t, "shop.example.co.uk/collections", res.DisplayURL)
	assert.Equal(t, "example.co.uk", res.Domain)
	assert.Equal(t, 84, *res.Score)
	assert.Equal(t, 4, res.TotalIssues)
	assert.Equal(t, 1, res.CriticalIssues)
	assert.Equal(t, domain.PlatformShopify, res.Platform)

	require.Len(t, res.Violations, 4)
	assert.Equal(t, "image-alt", res.Violations[0].RuleID)
	assert.Equal(t, 15, res.Violations[0].Occurrences)
	assert.Equal(t, "color-contrast", res.Violations[1].RuleID)
	assert.Equal(t, "region", res.Violations[2].RuleID)
	assert.Equal(t, "custom-rule", res.Violations[3].RuleID)

	require.NotNil(t, res.Violations[0].Remediation)
	assert.Contains(t, res.Violations[0].Remediation.Title, "product")
	assert.Nil(t, res.Violations[3].Remediation)

	require.Len(t, events.events, 1)
	assert.Equal(t, 84, events.events[0].Score)
	assert.Equal(t, domain.PlatformShopify, events.events[0].Platform)
}

func TestRunScan_InvalidURL(t *testing.T) {
	a := &fakeAuditor{}
	svc, store, events := newService(t, a)

	for _, in := range []string{"", "   ", "ftp://example.com", "not a url", "javascript:alert(1)", "intranet"} {
		res, err := svc.RunScan(context.Background(), in)
		require.ErrorIs(t, err, domain.ErrInvalidURL, in)
		assert.Equal(t, domain.ScanFailed, res.Status)
		assert.Nil(t, res.Score)
		assert.Empty(t, res.ID)
	}
	assert.Equal(t, int32(0), a.calls.Load())
	assert.Empty(t, events.events)

	_, found, err := store.ClaimNextScan(context.Background())
	require.NoError(t, err)
	assert.False(t, found, "invalid input must not persist a row")
}

func TestRunScan_AuditorError(t *testing.T) {
	a := &fakeAuditor{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	svc, store, events := newService(t, a)

	res, err := svc.RunScan(context.Background(), "https://nowhere.example")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanFailed, res.Status)
	assert.Nil(t, res.Score)
	assert.Empty(t, res.Violations)

	stored, err := store.GetScan(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanFailed, stored.Status)
	assert.Contains(t, stored.Error, "ERR_NAME_NOT_RESOLVED")
	assert.Nil(t, stored.Score)
	assert.Empty(t, events.events)
	assert.Equal(t, int32(1), a.calls.Load(), "no automatic retry")
}

func TestRunScan_AuditorHangsIsBounded(t *testing.T) {
	svc, _, _ := newService(t, &fakeAuditor{hang: true})

	start := time.Now()
	res, err := svc.RunScan(context.Background(), "https://slow.example.com")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.ScanFailed, res.Status)
	assert.Contains(t, res.Error, "timed out")
}

func TestRunScan_AuditorPanic(t *testing.T) {
	svc, _, _ := newService(t, &fakeAuditor{panic: true})

	res, err := svc.RunScan(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanFailed, res.Status)
	assert.Contains(t, res.Error, "browser crashed")
}

func TestEnqueueAndProcess(t *testing.T) {
	svc, store, _ := newService(t, &fakeAuditor{report: ports.AuditReport{
		Findings: raw(scoring.Finding{Rule: "label", Level: "critical", Nodes: 2}),
	}})
	ctx := context.Background()

	queued, err := svc.Enqueue(ctx, "example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanPending, queued.Status)

	err = svc.Process(ctx, queued.ID)
	require.ErrorIs(t, err, domain.ErrConflict, "pending scans must be claimed first")

	id, found, err := store.ClaimNextScan(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, queued.ID, id)

	require.NoError(t, svc.Process(ctx, id))
	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanCompleted, got.Status)
	assert.Equal(t, 96, *got.Score)

	err = svc.Process(ctx, id)
	require.ErrorIs(t, err, domain.ErrConflict, "terminal scans are final")
}

func TestEnqueue_InvalidURL(t *testing.T) {
	svc, _, _ := newService(t, &fakeAuditor{})
	_, err := svc.Enqueue(context.Background(), "gopher://example.com")
	require.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestRunScan_ParallelScansAreIndependent(t *testing.T) {
	svc, _, events := newService(t, &fakeAuditor{})

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.RunScan(context.Background(), "https://example.com")
			assert.NoError(t, err)
			ids[i] = res.ID
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, events.events, 8)
}

// flakyScans fails selected writes with a transient store error.
type flakyScans struct {
	*memory.Store
	failStart    atomic.Bool
	failComplete atomic.Bool
}

var errStoreDown = errors.New("connection reset by peer")

func (f *flakyScans) TransitionScan(ctx context.Context, id string, from, to domain.ScanStatus) error {
	if f.failStart.CompareAndSwap(true, false) {
		return errStoreDown
	}
	return f.Store.TransitionScan(ctx, id, from, to)
}

func (f *flakyScans) CompleteScan(ctx context.Context, scan domain.ScanResult) error {
	if f.failComplete.Load() {
		return errStoreDown
	}
	return f.Store.CompleteScan(ctx, scan)
}

func newFlakyService(t *testing.T, a ports.PageAuditor) (*scanner.Service, *flakyScans, *recordingEvents) {
	t.Helper()
	store := &flakyScans{Store: memory.New()}
	events := &recordingEvents{}
	svc := scanner.New(scanner.Deps{
		Scans:        store,
		Auditor:      a,
		Events:       events,
		AuditTimeout: 100 * time.Millisecond,
	})
	return svc, store, events
}

func TestRunScan_CompleteWriteFailsLeavesTerminalRow(t *testing.T) {
	auditor := &fakeAuditor{report: ports.AuditReport{Findings: raw(
		scoring.Finding{Rule: "image-alt", Level: "critical", Nodes: 1},
	)}}
	svc, store, events := newFlakyService(t, auditor)
	store.failComplete.Store(true)

	res, err := svc.RunScan(context.Background(), "https://example.com")
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, domain.ScanFailed, res.Status)

	stored, err := store.GetScan(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanFailed, stored.Status)
	assert.Nil(t, stored.Score)
	assert.Contains(t, stored.Error, "connection reset")
	assert.Empty(t, events.events)
}

func TestRunScan_StartWriteFailsIsNotQueued(t *testing.T) {
	auditor := &fakeAuditor{}
	svc, store, _ := newFlakyService(t, auditor)
	store.failStart.Store(true)

	res, err := svc.RunScan(context.Background(), "https://example.com")
	require.ErrorIs(t, err, errStoreDown)
	require.NotEmpty(t, res.ID)
	assert.Equal(t, int32(0), auditor.calls.Load())

	stored, err := store.GetScan(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanFailed, stored.Status)
	assert.Contains(t, stored.Error, "not started")

	// Background workers find nothing to pick up.
	_, found, err := store.ClaimNextScan(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}
