package leads_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inclusiv/internal/adapters/memory"
	"inclusiv/internal/domain"
	"inclusiv/internal/ports"
	"inclusiv/internal/services/leads"
	"inclusiv/internal/services/outreach"
)

type nopSender struct{}

func (nopSender) Send(context.Context, ports.Message) error { return nil }

func newService(t *testing.T) (*leads.Service, *outreach.Scheduler) {
	t.Helper()
	store := memory.New()
	sched := outreach.New(outreach.Deps{Emails: store, Leads: store, Sender: nopSender{}})
	return leads.New(store, sched, nil), sched
}

func TestCapture_NormalisesAndEnrolls(t *testing.T) {
	svc, _ := newService(t)

	lead, emails, err := svc.Capture(context.Background(), ports.CaptureInput{
		Email: "  Ann@Shop.Example ",
		URL:   "shop.example",
		ScanSummary: &domain.LeadScanSummary{
			ScanID: "s1", Score: 80, TotalIssues: 5, Platform: domain.PlatformWix,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@shop.example", lead.Email)
	assert.Equal(t, leads.DefaultSource, lead.Source)
	require.NotNil(t, lead.URL)
	assert.Equal(t, "https://shop.example", *lead.URL)
	require.Len(t, emails, 4)
	for _, e := range emails {
		assert.Equal(t, domain.SequenceWelcome, e.SequenceType)
	}
}

func TestCapture_SameEmailUpdatesLead(t *testing.T) {
	svc, sched := newService(t)
	ctx := context.Background()

	first, _, err := svc.Capture(ctx, ports.CaptureInput{Email: "a@x.com", Source: "footer"})
	require.NoError(t, err)
	second, emails, err := svc.Capture(ctx, ports.CaptureInput{
		Email:       "A@X.com",
		Source:      "scan",
		ScanSummary: &domain.LeadScanSummary{Score: 64},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "footer", second.Source, "original source is kept")
	require.NotNil(t, second.ScanSummary)
	assert.Equal(t, 64, second.ScanSummary.Score)
	assert.Len(t, emails, 4)

	all, err := sched.Emails(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4, "recapture does not enroll twice")
}

func TestCapture_ColdLead(t *testing.T) {
	svc, _ := newService(t)
	_, emails, err := svc.Capture(context.Background(), ports.CaptureInput{
		Email: "buyer@store.example", Sequence: domain.SequenceColdLead, Source: "outbound",
	})
	require.NoError(t, err)
	require.Len(t, emails, 4)
	assert.Equal(t, domain.SequenceColdLead, emails[0].SequenceType)
}

func TestCapture_Rejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, email := range []string{"", "   ", "not-an-email", "a@localhost", "Ann <ann@x.com>", "@x.com"} {
		_, _, err := svc.Capture(ctx, ports.CaptureInput{Email: email})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, email)
	}

	_, _, err := svc.Capture(ctx, ports.CaptureInput{Email: "a@x.com", URL: "ftp://x.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidURL)

	_, _, err = svc.Capture(ctx, ports.CaptureInput{Email: "a@x.com", Sequence: "newsletter"})
	assert.ErrorIs(t, err, domain.ErrUnknownSequence)
}

func TestConvert_CancelsPending(t *testing.T) {
	svc, sched := newService(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return at })

	lead, _, err := svc.Capture(ctx, ports.CaptureInput{Email: "a@x.com"})
	require.NoError(t, err)
	_, err = sched.Sweep(ctx, time.Now())
	require.NoError(t, err)

	n, err := svc.Convert(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ConvertedAt)
	assert.Equal(t, at, *got.ConvertedAt)

	_, emails, err := svc.Capture(ctx, ports.CaptureInput{Email: "a@x.com", Sequence: domain.SequenceColdLead})
	require.NoError(t, err)
	assert.Empty(t, emails, "converted leads are not enrolled again")

	_, err = svc.Convert(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
