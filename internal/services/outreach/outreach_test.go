package outreach_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inclusiv/internal/adapters/memory"
	"inclusiv/internal/domain"
	"inclusiv/internal/ports"
	"inclusiv/internal/services/outreach"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeSender struct {
	mu   sync.Mutex
	sent []ports.Message
	fail map[string]error // by recipient
}

func (f *fakeSender) Send(_ context.Context, msg ports.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	store  *memory.Store
	sender *fakeSender
	sched  *outreach.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New().WithClock(func() time.Time { return t0 })
	sender := &fakeSender{fail: map[string]error{}}
	sched := outreach.New(outreach.Deps{
		Emails:      store,
		Leads:       store,
		Sender:      sender,
		MaxAttempts: 2,
		Now:         func() time.Time { return t0 },
	})
	return &fixture{store: store, sender: sender, sched: sched}
}

func (f *fixture) lead(t *testing.T, email string) domain.Lead {
	t.Helper()
	site := "https://" + strings.Split(email, "@")[1]
	lead, err := f.store.UpsertLead(context.Background(), domain.Lead{
		Email:  email,
		URL:    &site,
		Source: "scan",
		ScanSummary: &domain.LeadScanSummary{
			Score: 72, TotalIssues: 7, CriticalIssues: 2, Platform: domain.PlatformShopify,
		},
	})
	require.NoError(t, err)
	return lead
}

func TestEnroll_SchedulesWelcome(t *testing.T) {
	f := newFixture(t)
	lead := f.lead(t, "ann@shop.example")

	rows, err := f.sched.Enroll(context.Background(), lead, domain.SequenceWelcome)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	days := []int{0, 2, 5, 10}
	for i, r := range rows {
		assert.Equal(t, i+1, r.EmailNumber)
		assert.Equal(t, domain.EmailPending, r.Status)
		assert.Equal(t, t0.Add(time.Duration(days[i])*24*time.Hour), r.ScheduledFor)
		assert.Zero(t, r.Attempts)
	}
}

func TestEnroll_ColdLeadOffsets(t *testing.T) {
	f := newFixture(t)
	lead := f.lead(t, "bob@store.example")

	rows, err := f.sched.Enroll(context.Background(), lead, domain.SequenceColdLead)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, t0.Add(14*24*time.Hour), rows[3].ScheduledFor)
}

func TestEnroll_Idempotent(t *testing.T) {
	f := newFixture(t)
	lead := f.lead(t, "ann@shop.example")
	ctx := context.Background()

	first, err := f.sched.Enroll(ctx, lead, domain.SequenceWelcome)
	require.NoError(t, err)
	second, err := f.sched.Enroll(ctx, lead, domain.SequenceWelcome)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	all, err := f.sched.Emails(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = f.sched.Enroll(ctx, lead, domain.SequenceColdLead)
	require.NoError(t, err)
	all, err = f.sched.Emails(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, all, 8, "different sequences are enrolled independently")
}

func TestEnroll_UnknownSequence(t *testing.T) {
	f := newFixture(t)
	_, err := f.sched.Enroll(context.Background(), f.lead(t, "a@b.example"), "newsletter")
	require.ErrorIs(t, err, domain.ErrUnknownSequence)
}

func TestSweep_SendsOnlyDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.lead(t, "ann@shop.example")
	_, err := f.sched.Enroll(ctx, lead, domain.SequenceWelcome)
	require.NoError(t, err)

	rep, err := f.sched.Sweep(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ports.SweepReport{Claimed: 1, Sent: 1}, rep)

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, "ann@shop.example", msg.To)
	assert.Equal(t, "Your accessibility report is ready", msg.Subject)
	assert.Contains(t, msg.HTML, "72/100")
	assert.Contains(t, msg.HTML, "2 of them critical")
	assert.Contains(t, msg.HTML, "shopify")
	assert.Equal(t, "1", msg.Tags["email_number"])

	rows, err := f.sched.Emails(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailSent, rows[0].Status)
	require.NotNil(t, rows[0].SentAt)
	assert.Equal(t, 1, rows[0].Attempts)
	for _, r := range rows[1:] {
		assert.Equal(t, domain.EmailPending, r.Status)
	}

	rep, err = f.sched.Sweep(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, rep.Claimed, "sent rows are not delivered twice")

	rep, err = f.sched.Sweep(ctx, t0.Add(6*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Sent)
}

func TestSweep_FailureRecordedNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good := f.lead(t, "ann@shop.example")
	bad := f.lead(t, "bounce@dead.example")
	f.sender.fail[bad.Email] = errors.New("422 invalid recipient")

	for _, l := range []domain.Lead{good, bad} {
		_, err := f.sched.Enroll(ctx, l, domain.SequenceWelcome)
		require.NoError(t, err)
	}

	rep, err := f.sched.Sweep(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, ports.SweepReport{Claimed: 2, Sent: 1, Failed: 1}, rep)

	rows, err := f.sched.Emails(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailFailed, rows[0].Status)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Contains(t, *rows[0].ErrorMessage, "invalid recipient")

	rep, err = f.sched.Sweep(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, rep.Claimed)
	assert.Equal(t, 1, f.sender.count())
}

func TestSweep_ConcurrentSweepsDeliverOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const leads = 20
	for i := 0; i < leads; i++ {
		lead := f.lead(t, "user"+string(rune('a'+i))+"@site.example")
		_, err := f.sched.Enroll(ctx, lead, domain.SequenceWelcome)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	reports := make([]ports.SweepReport, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := f.sched.Sweep(ctx, t0)
			assert.NoError(t, err)
			reports[i] = rep
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range reports {
		total += r.Sent
	}
	assert.Equal(t, leads, total)
	assert.Equal(t, leads, f.sender.count())

	seen := map[string]int{}
	for _, m := range f.sender.sent {
		seen[m.To]++
	}
	for to, n := range seen {
		assert.Equal(t, 1, n, to)
	}
}

// claimRecorder records the size of every claim.
type claimRecorder struct {
	*memory.Store
	mu     sync.Mutex
	claims []int
}

func (c *claimRecorder) ClaimDueEmails(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledEmail, error) {
	due, err := c.Store.ClaimDueEmails(ctx, now, limit)
	c.mu.Lock()
	c.claims = append(c.claims, len(due))
	c.mu.Unlock()
	return due, err
}

func TestSweep_DrainsBacklogInBatches(t *testing.T) {
	store := &claimRecorder{Store: memory.New()}
	sender := &fakeSender{}
	sched := outreach.New(outreach.Deps{Emails: store, Leads: store, Sender: sender, BatchSize: 3, Now: func() time.Time { return t0 }})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		lead, err := store.UpsertLead(ctx, domain.Lead{Email: "u" + string(rune('0'+i)) + "@x.example"})
		require.NoError(t, err)
		_, err = sched.Enroll(ctx, lead, domain.SequenceColdLead)
		require.NoError(t, err)
	}

	rep, err := sched.Sweep(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, ports.SweepReport{Claimed: 5, Sent: 5}, rep)
	assert.Equal(t, []int{3, 2}, store.claims)
	assert.Equal(t, 5, sender.count())

	rep, err = sched.Sweep(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Claimed)
}

// cancellingSender cancels the sweep after its first successful send.
type cancellingSender struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	sent   []string
}

func (c *cancellingSender) Send(_ context.Context, msg ports.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg.To)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return nil
}

func TestSweep_CancelledMidBatchReleasesUnattempted(t *testing.T) {
	store := memory.New()
	sender := &cancellingSender{}
	sched := outreach.New(outreach.Deps{Emails: store, Leads: store, Sender: sender, Now: func() time.Time { return t0 }})
	bg := context.Background()

	var leads []domain.Lead
	for _, email := range []string{"a@x.example", "b@x.example", "c@x.example"} {
		lead, err := store.UpsertLead(bg, domain.Lead{Email: email})
		require.NoError(t, err)
		_, err = sched.Enroll(bg, lead, domain.SequenceWelcome)
		require.NoError(t, err)
		leads = append(leads, lead)
	}

	ctx, cancel := context.WithCancel(bg)
	defer cancel()
	sender.cancel = cancel

	rep, err := sched.Sweep(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, ports.SweepReport{Claimed: 3, Sent: 1, Released: 2}, rep)
	require.Len(t, sender.sent, 1)

	pending := 0
	for _, lead := range leads {
		rows, err := store.ListEmailsByLead(bg, lead.ID)
		require.NoError(t, err)
		first := rows[0]
		require.Equal(t, 1, first.EmailNumber)
		if lead.Email == sender.sent[0] {
			assert.Equal(t, domain.EmailSent, first.Status)
			continue
		}
		assert.Equal(t, domain.EmailPending, first.Status)
		assert.Equal(t, 0, first.Attempts)
		assert.Nil(t, first.ErrorMessage)
		pending++
	}
	assert.Equal(t, 2, pending)

	rep, err = sched.Sweep(bg, t0)
	require.NoError(t, err)
	assert.Equal(t, ports.SweepReport{Claimed: 2, Sent: 2}, rep)
	assert.Len(t, sender.sent, 3)
}

func TestCancelPending_LeavesDeliveredRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.lead(t, "ann@shop.example")
	_, err := f.sched.Enroll(ctx, lead, domain.SequenceWelcome)
	require.NoError(t, err)
	_, err = f.sched.Sweep(ctx, t0)
	require.NoError(t, err)

	n, err := f.sched.CancelPending(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := f.sched.Emails(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailSent, rows[0].Status)
	for _, r := range rows[1:] {
		assert.Equal(t, domain.EmailCancelled, r.Status)
	}

	rep, err := f.sched.Sweep(ctx, t0.Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, rep.Claimed, "cancelled rows are never sent")

	n, err = f.sched.CancelPending(ctx, lead.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReset_BoundedByMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.lead(t, "bounce@dead.example")
	f.sender.fail[lead.Email] = errors.New("mailbox full")
	rows, err := f.sched.Enroll(ctx, lead, domain.SequenceWelcome)
	require.NoError(t, err)
	first := rows[0].ID

	_, err = f.sched.Sweep(ctx, t0)
	require.NoError(t, err)

	_, err = f.sched.Reset(ctx, rows[1].ID)
	require.ErrorIs(t, err, domain.ErrConflict, "only failed rows can be reset")

	e, err := f.sched.Reset(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, domain.EmailPending, e.Status)
	assert.Nil(t, e.ErrorMessage)

	rep, err := f.sched.Sweep(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)

	_, err = f.sched.Reset(ctx, first)
	require.ErrorIs(t, err, domain.ErrRetryExhausted)

	_, err = f.sched.Reset(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmails_UnknownLead(t *testing.T) {
	f := newFixture(t)
	_, err := f.sched.Emails(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
