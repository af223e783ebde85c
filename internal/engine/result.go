package engine

import "bugscan/internal/rules"

// Classification is the per-file verdict.
type Classification string

const (
	ClassClean   Classification = "clean"
	ClassBuggy   Classification = "buggy"
	ClassUnknown Classification = "unknown"
)

// ScanResult is the terminal artifact of one scan. Treated as immutable by
// every consumer once returned.
type ScanResult struct {
	Path           string          `json:"file"`
	Language       string          `json:"language,omitempty"`
	Findings       []rules.Finding `json:"findings"`
	Classification Classification  `json:"classification"`
	Error          string          `json:"error,omitempty"`
	Err            error           `json:"-"`
}

// Counts tallies findings by severity.
func (r *ScanResult) Counts() (errors, warnings, infos int) {
	for _, f := range r.Findings {
		switch f.Severity {
		case rules.SeverityError:
			errors++
		case rules.SeverityWarning:
			warnings++
		case rules.SeverityInfo:
			infos++
		}
	}
	return
}
