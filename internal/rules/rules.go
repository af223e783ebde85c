// Package rules evaluates defect rules against the construct stream and the
// lifetime tracker's events. Rules are data: a trigger, a suppression
// predicate, a severity, and a message template. One generic engine evaluates
// all of them; adding a defect class is a registration, not a code path.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"bugscan/internal/construct"
	"bugscan/internal/lifetime"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one rule violation. ID is assigned by the aggregator.
type Finding struct {
	ID       string   `json:"id"`
	RuleID   string   `json:"rule"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Binding  string   `json:"binding,omitempty"`
}

// TriggerKind selects which event stream a rule listens to.
type TriggerKind int

const (
	// TriggerLeak fires when the lifetime tracker marks a resource leaked.
	TriggerLeak TriggerKind = iota
	// TriggerConstruct fires on a matching construct as it streams past.
	TriggerConstruct
)

// Context carries the evidence a suppression predicate may consult.
type Context struct {
	Construct *construct.Construct
	Resource  *lifetime.Resource
	// Dest is capacity evidence for the copy destination, when any exists.
	Dest *lifetime.Resource
}

// Rule is one defect rule. Message supports the {binding} placeholder.
type Rule struct {
	ID        string
	Trigger   TriggerKind
	Resource  lifetime.ResourceKind // TriggerLeak: resource kind to match
	Construct construct.Kind        // TriggerConstruct: construct kind to match
	Severity  Severity
	Message   string
	// Suppress, when non-nil, returning true prevents the rule from firing.
	Suppress func(Context) bool
}

// Set is a registry of rules. Frozen after the first scan; reads are then
// safe from any number of concurrent scans.
type Set struct {
	rules  []Rule
	byID   map[string]struct{}
	frozen atomic.Bool
}

func NewSet() *Set {
	return &Set{byID: make(map[string]struct{})}
}

var ErrFrozen = errors.New("rule set is frozen")

// Register adds a rule. Registration only happens during initialization;
// after Freeze it fails.
func (s *Set) Register(r Rule) error {
	if s.frozen.Load() {
		return ErrFrozen
	}
	if r.ID == "" {
		return errors.New("rule id must not be empty")
	}
	if _, dup := s.byID[r.ID]; dup {
		return fmt.Errorf("duplicate rule id %q", r.ID)
	}
	s.byID[r.ID] = struct{}{}
	s.rules = append(s.rules, r)
	// Deterministic tie-break: rules evaluated in id order.
	sort.SliceStable(s.rules, func(i, j int) bool { return s.rules[i].ID < s.rules[j].ID })
	return nil
}

// Freeze marks the set immutable. Called by the engine before its first scan.
func (s *Set) Freeze() { s.frozen.Store(true) }

func (s *Set) Len() int { return len(s.rules) }

// Rules returns the registered rules in id order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// EvalLeak produces findings for one leak event. At most one finding per
// (rule, resource) pair by construction: each event is evaluated once.
func (s *Set) EvalLeak(ev lifetime.Event, file string) []Finding {
	var out []Finding
	for i := range s.rules {
		r := &s.rules[i]
		if r.Trigger != TriggerLeak || r.Resource != ev.Resource.Kind {
			continue
		}
		ctx := Context{Resource: ev.Resource}
		if r.Suppress != nil && r.Suppress(ctx) {
			continue
		}
		out = append(out, Finding{
			RuleID:   r.ID,
			File:     file,
			Line:     ev.Resource.Line,
			Severity: r.Severity,
			Message:  expand(r.Message, ev.Resource.Binding),
			Binding:  ev.Resource.Binding,
		})
	}
	return out
}

// BufferLookup resolves a copy destination to its capacity evidence.
type BufferLookup interface {
	LookupBuffer(binding string) (*lifetime.Resource, bool)
}

// EvalConstruct produces findings for one construct as it streams past.
func (s *Set) EvalConstruct(c construct.Construct, look BufferLookup, file string) []Finding {
	var out []Finding
	for i := range s.rules {
		r := &s.rules[i]
		if r.Trigger != TriggerConstruct || r.Construct != c.Kind {
			continue
		}
		ctx := Context{Construct: &c}
		if look != nil {
			if dest, ok := look.LookupBuffer(c.Binding); ok {
				ctx.Dest = dest
			}
		}
		if r.Suppress != nil && r.Suppress(ctx) {
			continue
		}
		out = append(out, Finding{
			RuleID:   r.ID,
			File:     file,
			Line:     c.Line,
			Severity: r.Severity,
			Message:  expand(r.Message, c.Binding),
			Binding:  c.Binding,
		})
	}
	return out
}

func expand(template, binding string) string {
	subject := binding
	if subject == "" {
		subject = "resource"
	}
	return strings.ReplaceAll(template, "{binding}", subject)
}
