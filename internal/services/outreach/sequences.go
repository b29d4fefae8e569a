package outreach

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"inclusiv/internal/domain"
)

const day = 24 * time.Hour

// Step is one email of a drip sequence, sent Delay after enrolment.
type Step struct {
	Number  int
	Delay   time.Duration
	Subject string
	Body    *template.Template
}

type Sequence struct {
	Type  domain.SequenceType
	Steps []Step
}

// Catalog maps sequence types to their static definitions.
type Catalog map[domain.SequenceType]Sequence

func (c Catalog) Lookup(t domain.SequenceType) (Sequence, error) {
	seq, ok := c[t]
	if !ok {
		return Sequence{}, fmt.Errorf("sequence %q: %w", t, domain.ErrUnknownSequence)
	}
	return seq, nil
}

// Step returns the numbered step of sequence t.
func (c Catalog) Step(t domain.SequenceType, number int) (Step, error) {
	seq, err := c.Lookup(t)
	if err != nil {
		return Step{}, err
	}
	for _, st := range seq.Steps {
		if st.Number == number {
			return st, nil
		}
	}
	return Step{}, fmt.Errorf("sequence %q has no email %d: %w", t, number, domain.ErrUnknownSequence)
}

// templateData is what step bodies are rendered with.
type templateData struct {
	Email          string
	Site           string
	HasScan        bool
	Score          int
	TotalIssues    int
	CriticalIssues int
	Platform       string
}

func newTemplateData(lead domain.Lead) templateData {
	d := templateData{Email: lead.Email}
	if lead.URL != nil {
		d.Site = *lead.URL
	}
	if s := lead.ScanSummary; s != nil {
		d.HasScan = true
		d.Score = s.Score
		d.TotalIssues = s.TotalIssues
		d.CriticalIssues = s.CriticalIssues
		if s.Platform != domain.PlatformUnknown {
			d.Platform = string(s.Platform)
		}
	}
	return d
}

// Render produces the HTML body of st for lead.
func (st Step) Render(lead domain.Lead) (string, error) {
	var buf bytes.Buffer
	if err := st.Body.ExecuteTemplate(&buf, "layout", newTemplateData(lead)); err != nil {
		return "", fmt.Errorf("render email %d: %w", st.Number, err)
	}
	return buf.String(), nil
}

const layout = `{{define "layout"}}<!doctype html>
<html lang="en"><body style="font-family:sans-serif;line-height:1.5;max-width:560px">
{{template "content" .}}
<p style="color:#666;font-size:12px">You are receiving this because {{.Email}} requested an accessibility scan on Inclusiv.</p>
</body></html>{{end}}`

const scanBlock = `{{define "scan"}}{{if .HasScan}}<p>Your last scan{{if .Site}} of <strong>{{.Site}}</strong>{{end}} scored <strong>{{.Score}}/100</strong> with {{.TotalIssues}} distinct issues{{if .CriticalIssues}}, {{.CriticalIssues}} of them critical{{end}}.</p>{{end}}{{end}}`

func step(number, days int, subject, content string) Step {
	t := template.Must(template.New("layout").Parse(layout))
	template.Must(t.Parse(scanBlock))
	template.Must(t.New("content").Parse(content))
	return Step{Number: number, Delay: time.Duration(days) * day, Subject: subject, Body: t}
}

// DefaultCatalog returns the built-in welcome and cold_lead sequences.
func DefaultCatalog() Catalog {
	return Catalog{
		domain.SequenceWelcome: {
			Type: domain.SequenceWelcome,
			Steps: []Step{
				step(1, 0, "Your accessibility report is ready",
					`<p>Hi,</p>{{template "scan" .}}<p>Each issue in the report comes with step-by-step fix guidance{{if .Platform}} written for {{.Platform}}{{end}}.</p>`),
				step(2, 2, "Start with the critical issues",
					`<p>Critical issues block screen reader and keyboard users completely.</p>{{template "scan" .}}<p>Fixing those first gives the largest improvement for the least work.</p>`),
				step(3, 5, "How accessible stores convert better",
					`<p>Missing alt text, low contrast and unlabeled buttons turn away real shoppers.</p><p>Stores that fix them see fewer abandoned carts from assistive technology users.</p>`),
				step(4, 10, "Re-scan and track your progress",
					`<p>Made some fixes? Run a new scan to see your score move.</p>{{template "scan" .}}`),
			},
		},
		domain.SequenceColdLead: {
			Type: domain.SequenceColdLead,
			Steps: []Step{
				step(1, 0, "We scanned your site for accessibility issues",
					`<p>Hello,</p>{{template "scan" .}}<p>Reply to this email and we will walk you through the report.</p>`),
				step(2, 3, "Accessibility lawsuits are rising",
					`<p>Web accessibility complaints against online stores grow every year.</p><p>A short audit now avoids a costly demand letter later.</p>`),
				step(3, 7, "A quick win for your store",
					`<p>Most sites can fix image alt text and form labels in an afternoon.</p>{{template "scan" .}}`),
				step(4, 14, "Last note from Inclusiv",
					`<p>This is our last email about your accessibility scan. Your report stays available whenever you need it.</p>`),
			},
		},
	}
}
