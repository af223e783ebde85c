// Package construct turns a token stream into the ordered construct sequence
// the rest of the engine consumes. Everything language-specific lives in a
// Table; the recognizer itself is language-agnostic.
package construct

// Kind enumerates the source patterns the engine recognizes. Calls that match
// nothing in a language table produce no construct at all.
type Kind int

const (
	AcquireHeap Kind = iota
	ReleaseHeap
	AcquireHandle
	JoinOrDetachHandle
	ReleaseHandle
	OwnershipWrap
	UnboundedCopy
	BoundedCopy
	DeclareBuffer
	ScopeEnter
	ScopeExit
)

var kindNames = map[Kind]string{
	AcquireHeap:        "acquire-heap",
	ReleaseHeap:        "release-heap",
	AcquireHandle:      "acquire-handle",
	JoinOrDetachHandle: "join-or-detach",
	ReleaseHandle:      "release-handle",
	OwnershipWrap:      "ownership-wrap",
	UnboundedCopy:      "unbounded-copy",
	BoundedCopy:        "bounded-copy",
	DeclareBuffer:      "declare-buffer",
	ScopeEnter:         "scope-enter",
	ScopeExit:          "scope-exit",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Construct is one recognized pattern. Insertion order equals source order.
type Construct struct {
	Kind    Kind
	Scope   int
	Line    int
	Callee  string
	Binding string // variable operand (acquired, released, or copy destination)

	// Bounded-access operands.
	Source    string // copy source binding, or literal text when SourceLit
	SourceLit bool

	// DeclareBuffer capacity; 0 when not applicable or not determinable.
	Capacity int

	// Identifiers inside an allocation's size expression, capacity evidence
	// for heap-sized destinations (malloc(strlen(s)+1) records "strlen", "s").
	SizeHints []string
}

// Scope is one node in the per-file scope tree. Root (id 0) is the file
// scope. CloseLine 0 means the file ended before the scope closed.
type Scope struct {
	ID        int
	Parent    int
	OpenLine  int
	CloseLine int
}

// OperandPolicy says where a matched call finds its variable operand.
type OperandPolicy int

const (
	OperandAssign     OperandPolicy = iota // first variable of the enclosing assignment
	OperandAssignLast                      // last variable (Go's ctx, cancel := ...)
	OperandArg0                            // first call argument
	OperandDecl                            // declared variable following the type name
	OperandRecv                            // method receiver
)

// Entry is one call-name → construct mapping.
type Entry struct {
	Kind    Kind
	Operand OperandPolicy
	// Dest/Src argument positions for copy constructs. Src -1 means the
	// source is the last argument; Src -2 means there is none.
	Dest, Src int
}

// Table is a language's construct vocabulary. Calls are keyed by qualified
// name (longest match wins), Methods by the trailing segment after . or ->,
// Keywords by bare keyword.
type Table struct {
	Calls    map[string]Entry
	Methods  map[string]Entry
	Keywords map[string]Kind

	// IndentScopes switches scope tracking from braces to indentation.
	IndentScopes bool
}

// Src sentinel values for copy entries.
const (
	SrcLast = -1
	SrcNone = -2
)

// ParseKind maps a kind's string form back to the Kind, for tables loaded
// from configuration.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}
