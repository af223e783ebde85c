package engine

import (
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"bugscan/internal/rules"
)

// aggregate dedupes and orders findings, assigns sequence-stable ids, and
// classifies the file. Scanning identical content twice yields an identical
// result, ids included.
func aggregate(path, tag string, findings []rules.Finding) *ScanResult {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].RuleID < findings[j].RuleID
	})

	deduped := findings[:0]
	seen := make(map[string]bool, len(findings))
	for _, f := range findings {
		key := fmt.Sprintf("%s|%d|%s", f.RuleID, f.Line, f.Binding)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, f)
	}

	for i := range deduped {
		deduped[i].ID = findingID(path, deduped[i], i)
	}
	if deduped == nil {
		deduped = []rules.Finding{}
	}

	class := ClassClean
	if len(deduped) > 0 {
		class = ClassBuggy
	}

	return &ScanResult{
		Path:           path,
		Language:       tag,
		Findings:       deduped,
		Classification: class,
	}
}

// findingID hashes the finding's stable coordinates; the sequence number
// keeps ids unique when one line trips the same rule through two bindings.
func findingID(path string, f rules.Finding, seq int) string {
	sum := blake3.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s|%d", path, f.RuleID, f.Line, f.Binding, seq)))
	return fmt.Sprintf("%x", sum[:8])
}
