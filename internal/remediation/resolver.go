// Package remediation maps audit rule ids to fix guidance, optionally
// tailored to the detected platform.
package remediation

import "inclusiv/internal/domain"

// Entry holds the generic guidance for a rule plus per-platform overrides.
type Entry struct {
	Generic   domain.Remediation
	Platforms map[domain.Platform]domain.Remediation
}

// Table is keyed by rule id.
type Table map[string]Entry

type Resolver struct {
	table Table
}

func NewResolver(t Table) *Resolver {
	return &Resolver{table: t}
}

// Resolve returns the platform override if one exists, otherwise the generic
// guidance, or nil when the rule is unknown.
func (r *Resolver) Resolve(ruleID string, p domain.Platform) *domain.Remediation {
	e, ok := r.table[ruleID]
	if !ok {
		return nil
	}
	g := e.Generic
	if o, ok := e.Platforms[p]; ok {
		g = o
		if g.HelpURL == "" {
			g.HelpURL = e.Generic.HelpURL
		}
	}
	g.Steps = append([]string(nil), g.Steps...)
	return &g
}

// Apply fills in Remediation for each violation in place.
func (r *Resolver) Apply(violations []domain.Violation, p domain.Platform) {
	for i := range violations {
		violations[i].Remediation = r.Resolve(violations[i].RuleID, p)
	}
}
