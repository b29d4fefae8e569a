package scoring

import (
	"sort"

	"inclusiv/internal/domain"
)

const (
	MaxScore = 100
	// PenaltyPerRule is deducted once per distinct rule. Severity is
	// deliberately not weighted: leaderboard ranks and score deltas depend on
	// this exact formula.
	PenaltyPerRule = 4
)

// Score returns 100 minus 4 per distinct violation, clamped to [0, 100].
func Score(violations []domain.Violation) int {
	distinct := make(map[string]struct{}, len(violations))
	for _, v := range violations {
		distinct[v.RuleID] = struct{}{}
	}
	s := MaxScore - PenaltyPerRule*len(distinct)
	if s < 0 {
		return 0
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

// Sort orders violations in place: impact descending, then occurrences
// descending, then rule id so equal entries keep a stable order.
func Sort(violations []domain.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.Impact.Rank() != b.Impact.Rank() {
			return a.Impact.Rank() > b.Impact.Rank()
		}
		if a.Occurrences != b.Occurrences {
			return a.Occurrences > b.Occurrences
		}
		return a.RuleID < b.RuleID
	})
}

// Summary is the aggregate view persisted on a completed scan.
type Summary struct {
	Score          int
	TotalIssues    int
	CriticalIssues int
	ByImpact       map[domain.Impact]int
}

func Summarize(violations []domain.Violation) Summary {
	s := Summary{
		Score:       Score(violations),
		TotalIssues: len(violations),
		ByImpact:    make(map[domain.Impact]int, 4),
	}
	for _, v := range violations {
		s.ByImpact[v.Impact]++
		if v.Impact == domain.ImpactCritical {
			s.CriticalIssues++
		}
	}
	return s
}
