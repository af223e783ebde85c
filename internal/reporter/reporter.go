// Package reporter formats scan results for humans and for the test
// harness. It owns no analysis; everything it prints comes off ScanResults.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"bugscan/internal/engine"
	"bugscan/internal/rules"
	"bugscan/internal/scanner"
)

// Reporter formats and outputs scan results.
type Reporter struct {
	output io.Writer
	json   bool
}

func New(output io.Writer, jsonOutput bool) *Reporter {
	return &Reporter{output: output, json: jsonOutput}
}

// Report outputs all results. Results are assumed already ordered (the
// scanner returns them in sorted file order).
func (r *Reporter) Report(results []*engine.ScanResult) error {
	if r.json {
		return r.reportJSON(results)
	}
	return r.reportConsole(results)
}

func (r *Reporter) reportConsole(results []*engine.ScanResult) error {
	totalFindings := 0
	for _, res := range results {
		if len(res.Findings) == 0 && res.Error == "" {
			continue
		}
		fmt.Fprintf(r.output, "\n%s (%s):\n", res.Path, res.Classification)
		if res.Error != "" {
			fmt.Fprintf(r.output, "  [NOTE]  %s\n", res.Error)
		}
		for _, f := range res.Findings {
			totalFindings++
			fmt.Fprintf(r.output, "  %s Line %d [%s] %s: %s\n",
				icon(f.Severity), f.Line, f.ID, f.RuleID, f.Message)
		}
	}

	summary := Summarize(results)
	if totalFindings == 0 {
		fmt.Fprintln(r.output, "[OK] No defect patterns detected.")
	}
	fmt.Fprintf(r.output, "\nSummary: %d file(s) scanned, %d buggy, %d clean, %d unknown; %d error(s), %d warning(s), %d info\n",
		summary.Files, summary.Buggy, summary.Clean, summary.Unknown,
		summary.Errors, summary.Warnings, summary.Infos)
	return nil
}

func icon(s rules.Severity) string {
	switch s {
	case rules.SeverityError:
		return "[ERROR]"
	case rules.SeverityWarning:
		return "[WARN] "
	default:
		return "[INFO] "
	}
}

// Envelope is the JSON report shape. The run id and timestamp describe the
// run, never a file: per-file results stay deterministic.
type Envelope struct {
	RunID     string               `json:"run_id"`
	Generated time.Time            `json:"generated"`
	Results   []*engine.ScanResult `json:"results"`
	Summary   Summary              `json:"summary"`
}

type Summary struct {
	Files    int `json:"files"`
	Buggy    int `json:"buggy"`
	Clean    int `json:"clean"`
	Unknown  int `json:"unknown"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

func Summarize(results []*engine.ScanResult) Summary {
	s := Summary{Files: len(results)}
	for _, res := range results {
		switch res.Classification {
		case engine.ClassBuggy:
			s.Buggy++
		case engine.ClassClean:
			s.Clean++
		default:
			s.Unknown++
		}
		e, w, i := res.Counts()
		s.Errors += e
		s.Warnings += w
		s.Infos += i
	}
	return s
}

func (r *Reporter) reportJSON(results []*engine.ScanResult) error {
	if results == nil {
		results = []*engine.ScanResult{}
	}
	env := Envelope{
		RunID:     uuid.NewString(),
		Generated: time.Now().UTC(),
		Results:   results,
		Summary:   Summarize(results),
	}
	encoder := json.NewEncoder(r.output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(env)
}

// ReportFixtures prints fixture verdicts in the tab-separated
// path/expected/actual form the harness consumes.
func ReportFixtures(w io.Writer, verdicts []scanner.Verdict) {
	for _, v := range verdicts {
		status := "PASS"
		if !v.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%s\texpected=%s\tactual=%s\n", status, v.Path, v.Expected, v.Actual)
	}
}
