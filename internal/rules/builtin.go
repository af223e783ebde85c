package rules

import (
	"bugscan/internal/construct"
	"bugscan/internal/lifetime"
)

// Builtin rule ids.
const (
	RuleHeapLeak      = "heap-leak"
	RuleHandleLeak    = "handle-leak"
	RuleCopyOverflow  = "copy-overflow"
	RuleCopyUnchecked = "copy-unchecked"
	RuleCopyOpaque    = "copy-opaque-dest"
)

// Default returns the builtin rule set: the two resource-lifecycle rules and
// the three bounded-access rules. The bounded-access split encodes the
// capacity policy: a statically too-small destination is an error, a
// destination with capacity but an unmeasurable source is a warning, and a
// destination with no capacity evidence at all is only reported at info.
func Default() *Set {
	s := NewSet()
	mustRegister(s, Rule{
		ID:       RuleHeapLeak,
		Trigger:  TriggerLeak,
		Resource: lifetime.HeapAllocation,
		Severity: SeverityError,
		Message:  "heap allocation {binding} is never freed before its scope closes",
	})
	mustRegister(s, Rule{
		ID:       RuleHandleLeak,
		Trigger:  TriggerLeak,
		Resource: lifetime.ThreadOrHandle,
		Severity: SeverityWarning,
		Message:  "handle {binding} is never closed, joined, or detached",
	})
	mustRegister(s, Rule{
		ID:        RuleCopyOverflow,
		Trigger:   TriggerConstruct,
		Construct: construct.UnboundedCopy,
		Severity:  SeverityError,
		Message:   "unbounded copy into {binding} exceeds its declared capacity",
		Suppress: func(ctx Context) bool {
			capacity, known := destCapacity(ctx)
			if !known || !ctx.Construct.SourceLit {
				return true
			}
			return len(ctx.Construct.Source)+1 <= capacity
		},
	})
	mustRegister(s, Rule{
		ID:        RuleCopyUnchecked,
		Trigger:   TriggerConstruct,
		Construct: construct.UnboundedCopy,
		Severity:  SeverityWarning,
		Message:   "unbounded copy into {binding}: source length is not verifiably within capacity",
		Suppress: func(ctx Context) bool {
			if _, known := destCapacity(ctx); !known {
				return true // the opaque-dest rule owns this case
			}
			if ctx.Construct.SourceLit {
				// Literal sources are decided exactly by copy-overflow.
				return true
			}
			return sizedFromSource(ctx)
		},
	})
	mustRegister(s, Rule{
		ID:        RuleCopyOpaque,
		Trigger:   TriggerConstruct,
		Construct: construct.UnboundedCopy,
		Severity:  SeverityInfo,
		Message:   "unbounded copy into {binding} with no capacity evidence for the destination",
		Suppress: func(ctx Context) bool {
			if _, known := destCapacity(ctx); known {
				return true
			}
			return sizedFromSource(ctx)
		},
	})
	return s
}

// destCapacity reports the destination's statically declared capacity.
func destCapacity(ctx Context) (int, bool) {
	if ctx.Dest != nil && ctx.Dest.Kind == lifetime.RawBuffer && ctx.Dest.Capacity > 0 {
		return ctx.Dest.Capacity, true
	}
	return 0, false
}

// sizedFromSource reports whether the destination is a heap buffer whose
// size expression references the copy source, the explicit capacity evidence
// that makes a dynamically sized destination safe.
func sizedFromSource(ctx Context) bool {
	if ctx.Dest == nil || ctx.Dest.Kind != lifetime.HeapAllocation {
		return false
	}
	if ctx.Construct.SourceLit || ctx.Construct.Source == "" {
		return false
	}
	for _, hint := range ctx.Dest.SizeHints {
		if hint == ctx.Construct.Source {
			return true
		}
	}
	return false
}

func mustRegister(s *Set, r Rule) {
	if err := s.Register(r); err != nil {
		panic(err)
	}
}
