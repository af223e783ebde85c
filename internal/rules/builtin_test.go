package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugscan/internal/construct"
	"bugscan/internal/lifetime"
	"bugscan/internal/rules"
)

func copyConstruct(dest, source string, lit bool) construct.Construct {
	return construct.Construct{
		Kind:      construct.UnboundedCopy,
		Binding:   dest,
		Source:    source,
		SourceLit: lit,
		Line:      10,
	}
}

func ruleIDs(findings []rules.Finding) []string {
	var ids []string
	for _, f := range findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestDefaultSetIsOpenForRegistration(t *testing.T) {
	s := rules.Default()
	assert.Equal(t, 5, s.Len())
	// Callers may still add project rules before the engine freezes the set.
	assert.NoError(t, s.Register(rules.Rule{ID: "custom"}))
}

func TestDefaultLeakSeverities(t *testing.T) {
	s := rules.Default()

	findings := s.EvalLeak(leakEvent(lifetime.HeapAllocation, "p", 2), "a.c")
	require.Len(t, findings, 1)
	assert.Equal(t, rules.RuleHeapLeak, findings[0].RuleID)
	assert.Equal(t, rules.SeverityError, findings[0].Severity)

	findings = s.EvalLeak(leakEvent(lifetime.ThreadOrHandle, "t", 3), "a.c")
	require.Len(t, findings, 1)
	assert.Equal(t, rules.RuleHandleLeak, findings[0].RuleID)
	assert.Equal(t, rules.SeverityWarning, findings[0].Severity)
}

func TestBoundedAccessCapacityPolicy(t *testing.T) {
	fixed8 := &lifetime.Resource{Kind: lifetime.RawBuffer, Binding: "buf", Capacity: 8}
	heapSized := &lifetime.Resource{
		Kind: lifetime.HeapAllocation, Binding: "buf",
		SizeHints: []string{"strlen", "name"},
	}
	heapOpaque := &lifetime.Resource{Kind: lifetime.HeapAllocation, Binding: "buf"}

	tests := []struct {
		name string
		c    construct.Construct
		dest *lifetime.Resource
		want []string
	}{
		{
			name: "literal exceeds declared capacity",
			c:    copyConstruct("buf", "definitely too long", true),
			dest: fixed8,
			want: []string{rules.RuleCopyOverflow},
		},
		{
			name: "literal fits declared capacity",
			c:    copyConstruct("buf", "short", true),
			dest: fixed8,
			want: nil,
		},
		{
			name: "literal exactly fills capacity with terminator",
			c:    copyConstruct("buf", "abcdefg", true),
			dest: fixed8,
			want: nil,
		},
		{
			name: "unverifiable source into declared capacity",
			c:    copyConstruct("buf", "name", false),
			dest: fixed8,
			want: []string{rules.RuleCopyUnchecked},
		},
		{
			name: "no capacity evidence at all",
			c:    copyConstruct("dest", "", false),
			dest: nil,
			want: []string{rules.RuleCopyOpaque},
		},
		{
			name: "heap destination sized from the source",
			c:    copyConstruct("buf", "name", false),
			dest: heapSized,
			want: nil,
		},
		{
			name: "heap destination sized from something else",
			c:    copyConstruct("buf", "other", false),
			dest: heapSized,
			want: []string{rules.RuleCopyOpaque},
		},
		{
			name: "heap destination with no size hints",
			c:    copyConstruct("buf", "name", false),
			dest: heapOpaque,
			want: []string{rules.RuleCopyOpaque},
		},
	}

	s := rules.Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := s.EvalConstruct(tt.c, stubLookup{res: tt.dest}, "a.c")
			assert.Equal(t, tt.want, ruleIDs(findings))
		})
	}
}

func TestBoundedCopyNeverFires(t *testing.T) {
	s := rules.Default()
	c := construct.Construct{Kind: construct.BoundedCopy, Binding: "buf", Source: "src"}
	assert.Empty(t, s.EvalConstruct(c, stubLookup{}, "a.c"))
}
