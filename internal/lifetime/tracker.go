// Package lifetime tracks acquired resources against the lexical scope that
// created them. It consumes the construct stream in file order and emits an
// event whenever a scope closes over a still-unresolved resource.
package lifetime

import "bugscan/internal/construct"

type Status int

const (
	Unresolved Status = iota
	Released
	Transferred
	Suppressed
	Leaked
)

func (s Status) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Released:
		return "released"
	case Transferred:
		return "transferred"
	case Suppressed:
		return "suppressed"
	case Leaked:
		return "leaked"
	}
	return "unknown"
}

type ResourceKind int

const (
	HeapAllocation ResourceKind = iota
	ThreadOrHandle
	RawBuffer
)

func (k ResourceKind) String() string {
	switch k {
	case HeapAllocation:
		return "heap-allocation"
	case ThreadOrHandle:
		return "thread-or-handle"
	case RawBuffer:
		return "raw-buffer"
	}
	return "unknown"
}

// Resource is one tracked acquisition. Status only ever moves away from
// Unresolved and never reverts.
type Resource struct {
	Kind      ResourceKind
	Binding   string
	Scope     int
	Line      int
	Status    Status
	Capacity  int      // raw buffers: declared element capacity
	SizeHints []string // heap buffers: identifiers from the size expression
}

// Event is a scope-close obligation violation handed to the rule engine.
type Event struct {
	Resource *Resource
}

type frame struct {
	scope     int
	ordered   []*Resource
	byBinding map[string][]*Resource
}

func newFrame(scope int) *frame {
	return &frame{scope: scope, byBinding: make(map[string][]*Resource)}
}

// Tracker holds the scope stack for a single file scan. Not safe for
// concurrent use; each scan owns its own Tracker.
type Tracker struct {
	stack     []*frame
	wrapLines map[int]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		stack:     []*frame{newFrame(0)},
		wrapLines: make(map[int]bool),
	}
}

// Apply feeds one construct through the tracker, returning any leak events
// produced by a closing scope.
func (t *Tracker) Apply(c construct.Construct) []Event {
	switch c.Kind {
	case construct.ScopeEnter:
		t.stack = append(t.stack, newFrame(c.Scope))
	case construct.ScopeExit:
		return t.popFrame()
	case construct.AcquireHeap:
		t.acquire(c, HeapAllocation)
	case construct.AcquireHandle:
		t.acquire(c, ThreadOrHandle)
	case construct.DeclareBuffer:
		// Fixed buffers never leak; they only carry capacity evidence.
		res := &Resource{
			Kind:     RawBuffer,
			Binding:  c.Binding,
			Scope:    t.current().scope,
			Line:     c.Line,
			Status:   Suppressed,
			Capacity: c.Capacity,
		}
		t.insert(res)
	case construct.ReleaseHeap:
		t.resolve(c.Binding, HeapAllocation, Released)
	case construct.ReleaseHandle:
		t.resolve(c.Binding, ThreadOrHandle, Released)
	case construct.JoinOrDetachHandle:
		t.resolve(c.Binding, ThreadOrHandle, Transferred)
	case construct.OwnershipWrap:
		t.wrapLines[c.Line] = true
		if c.Binding != "" {
			t.resolve(c.Binding, -1, Suppressed)
		}
	}
	return nil
}

// Finish closes every open scope (files may end before their braces do) and
// returns the remaining leak events.
func (t *Tracker) Finish() []Event {
	var events []Event
	for len(t.stack) > 0 {
		events = append(events, t.popFrame()...)
	}
	return events
}

func (t *Tracker) acquire(c construct.Construct, kind ResourceKind) {
	status := Unresolved
	// An ownership wrap on the same line claims the acquisition
	// (unique_ptr<T> p(new T), with open(...) as f).
	if t.wrapLines[c.Line] {
		status = Suppressed
	}
	res := &Resource{
		Kind:      kind,
		Binding:   c.Binding,
		Scope:     t.current().scope,
		Line:      c.Line,
		Status:    status,
		SizeHints: c.SizeHints,
	}
	t.insert(res)
}

func (t *Tracker) insert(res *Resource) {
	f := t.current()
	f.ordered = append(f.ordered, res)
	if res.Binding != "" {
		f.byBinding[res.Binding] = append(f.byBinding[res.Binding], res)
	}
}

// resolve walks outward from the innermost scope and marks the most recent
// matching unresolved resource. Shadowed bindings resolve innermost-first;
// rebound names resolve the latest acquisition. kind -1 matches any kind.
func (t *Tracker) resolve(binding string, kind ResourceKind, to Status) {
	if binding == "" {
		return
	}
	for i := len(t.stack) - 1; i >= 0; i-- {
		entries := t.stack[i].byBinding[binding]
		for j := len(entries) - 1; j >= 0; j-- {
			res := entries[j]
			if res.Status != Unresolved {
				continue
			}
			if kind >= 0 && res.Kind != kind {
				continue
			}
			res.Status = to
			return
		}
	}
}

// LookupBuffer finds capacity evidence for a copy destination: the innermost
// declared buffer or heap allocation bound to the name, regardless of status.
func (t *Tracker) LookupBuffer(binding string) (*Resource, bool) {
	if binding == "" {
		return nil, false
	}
	for i := len(t.stack) - 1; i >= 0; i-- {
		entries := t.stack[i].byBinding[binding]
		for j := len(entries) - 1; j >= 0; j-- {
			res := entries[j]
			if res.Kind == RawBuffer || res.Kind == HeapAllocation {
				return res, true
			}
		}
	}
	return nil, false
}

func (t *Tracker) popFrame() []Event {
	f := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	var events []Event
	for _, res := range f.ordered {
		if res.Status == Unresolved {
			res.Status = Leaked
			events = append(events, Event{Resource: res})
		}
	}
	return events
}

func (t *Tracker) current() *frame {
	return t.stack[len(t.stack)-1]
}
