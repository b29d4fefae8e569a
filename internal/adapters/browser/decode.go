package browser

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"inclusiv/internal/scoring"
)

// axeViolation is the trimmed shape axeRun serialises.
type axeViolation struct {
	ID          string  `json:"id"`
	Impact      *string `json:"impact"`
	Description string  `json:"description"`
	Nodes       int     `json:"nodes"`
}

func decodeFindings(payload string) ([]scoring.RawFinding, error) {
	var raw []axeViolation
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("browser: decode axe result: %w", err)
	}
	out := make([]scoring.RawFinding, 0, len(raw))
	for _, v := range raw {
		f := scoring.Finding{Rule: v.ID, Text: v.Description, Nodes: v.Nodes}
		if v.Impact != nil {
			f.Level = *v.Impact
		}
		out = append(out, f)
	}
	return out, nil
}

// headersFromCDP converts DevTools headers. Chrome joins repeated headers
// such as Set-Cookie with newlines.
func headersFromCDP(in proto.NetworkHeaders) http.Header {
	h := make(http.Header, len(in))
	for name, v := range in {
		for _, line := range strings.Split(v.Str(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				h.Add(name, line)
			}
		}
	}
	return h
}
