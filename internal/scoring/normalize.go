// Package scoring turns raw audit findings into a deduplicated violation list
// and a stable 0-100 score. Everything here is pure.
package scoring

import (
	"strings"

	"inclusiv/internal/domain"
)

// RawFinding is the minimum the normalizer needs from an auditor result.
type RawFinding interface {
	RuleID() string
	Impact() string
	Description() string
	NodeCount() int
}

// Finding is a plain RawFinding, handy for auditors that already decoded
// their output and for tests.
type Finding struct {
	Rule  string
	Level string
	Text  string
	Nodes int
}

func (f Finding) RuleID() string      { return f.Rule }
func (f Finding) Impact() string      { return f.Level }
func (f Finding) Description() string { return f.Text }
func (f Finding) NodeCount() int      { return f.Nodes }

// Normalize groups findings by rule id. Occurrences are summed (each finding
// counts at least once), the most severe impact wins and the first non-empty
// description is kept. Findings without a rule id are dropped. Output keeps
// first-seen order.
func Normalize(findings []RawFinding) []domain.Violation {
	out := make([]domain.Violation, 0, len(findings))
	index := make(map[string]int, len(findings))

	for _, f := range findings {
		if f == nil {
			continue
		}
		rule := strings.TrimSpace(f.RuleID())
		if rule == "" {
			continue
		}
		count := f.NodeCount()
		if count < 1 {
			count = 1
		}
		impact := domain.ParseImpact(strings.ToLower(strings.TrimSpace(f.Impact())))
		desc := strings.TrimSpace(f.Description())

		i, seen := index[rule]
		if !seen {
			index[rule] = len(out)
			out = append(out, domain.Violation{
				RuleID:      rule,
				Impact:      impact,
				Description: desc,
				Occurrences: count,
			})
			continue
		}
		v := &out[i]
		v.Occurrences += count
		if impact.Rank() > v.Impact.Rank() {
			v.Impact = impact
		}
		if v.Description == "" {
			v.Description = desc
		}
	}
	return out
}
