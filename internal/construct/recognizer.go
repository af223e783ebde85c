package construct

import (
	"strconv"
	"strings"

	"bugscan/internal/lexer"
)

// Result is the recognizer's output for one file: the ordered construct
// stream and the scope tree it references.
type Result struct {
	Constructs []Construct
	Scopes     []Scope
}

type recognizer struct {
	tokens []lexer.Token
	pos    int
	table  Table

	scopes     []Scope
	scopeStack []int
	out        []Construct

	// Indent tracking (IndentScopes languages).
	indentStack []int
	curLine     int
}

// Recognize consumes the token stream once, left to right, and emits a
// construct for each pattern the table recognizes. Unmatched calls emit
// nothing.
func Recognize(tokens []lexer.Token, table Table) Result {
	r := &recognizer{
		tokens: tokens,
		table:  table,
		scopes: []Scope{{ID: 0, Parent: -1, OpenLine: 1}},
	}
	r.scopeStack = []int{0}
	r.run()
	return Result{Constructs: r.out, Scopes: r.scopes}
}

func (r *recognizer) run() {
	for !r.isAtEnd() {
		tok := r.current()

		if r.table.IndentScopes {
			r.trackIndent(tok)
		}

		switch {
		case !r.table.IndentScopes && tok.Value == "{" && tok.Type == lexer.TokenPunctuation:
			r.enterScope(tok.Line)
			r.advance()
		case !r.table.IndentScopes && tok.Value == "}" && tok.Type == lexer.TokenPunctuation:
			r.exitScope(tok.Line)
			r.advance()
		case tok.Type == lexer.TokenKeyword && r.table.Keywords != nil:
			if kind, ok := r.table.Keywords[tok.Value]; ok {
				r.handleKeyword(tok, kind)
				continue
			}
			r.advance()
		case tok.Type == lexer.TokenIdent:
			r.handleIdentifier()
		default:
			r.advance()
		}
	}
	r.closeDanglingScopes()
}

// trackIndent opens and closes scopes from column changes at line starts.
func (r *recognizer) trackIndent(tok lexer.Token) {
	if tok.Line == r.curLine {
		return
	}
	r.curLine = tok.Line
	if len(r.indentStack) == 0 {
		r.indentStack = []int{tok.Column}
		return
	}
	top := r.indentStack[len(r.indentStack)-1]
	if tok.Column > top {
		r.indentStack = append(r.indentStack, tok.Column)
		r.enterScope(tok.Line)
		return
	}
	for len(r.indentStack) > 1 && tok.Column < r.indentStack[len(r.indentStack)-1] {
		r.indentStack = r.indentStack[:len(r.indentStack)-1]
		r.exitScope(tok.Line)
	}
}

func (r *recognizer) enterScope(line int) {
	id := len(r.scopes)
	r.scopes = append(r.scopes, Scope{ID: id, Parent: r.currentScope(), OpenLine: line})
	r.scopeStack = append(r.scopeStack, id)
	r.emit(Construct{Kind: ScopeEnter, Scope: id, Line: line})
}

func (r *recognizer) exitScope(line int) {
	if len(r.scopeStack) == 1 {
		return // stray closer at file scope
	}
	id := r.scopeStack[len(r.scopeStack)-1]
	r.scopeStack = r.scopeStack[:len(r.scopeStack)-1]
	r.scopes[id].CloseLine = line
	r.emit(Construct{Kind: ScopeExit, Scope: id, Line: line})
}

// closeDanglingScopes emits exits for scopes left open at end of file. The
// Scope records keep CloseLine 0 to mark them unterminated.
func (r *recognizer) closeDanglingScopes() {
	last := 0
	if n := len(r.tokens); n > 0 {
		last = r.tokens[n-1].Line
	}
	for len(r.scopeStack) > 1 {
		id := r.scopeStack[len(r.scopeStack)-1]
		r.scopeStack = r.scopeStack[:len(r.scopeStack)-1]
		r.emit(Construct{Kind: ScopeExit, Scope: id, Line: last})
	}
}

func (r *recognizer) handleKeyword(tok lexer.Token, kind Kind) {
	switch kind {
	case AcquireHeap:
		// C++ `new`: the acquired binding is the assignment target.
		binding := r.assignTargetBefore(r.pos, OperandAssign)
		r.advance()
		r.emit(Construct{Kind: AcquireHeap, Scope: r.currentScope(), Line: tok.Line, Callee: tok.Value, Binding: binding})
	case ReleaseHeap:
		// C++ `delete` / `delete[]`, optionally through this->.
		r.advance()
		for r.checkValue("[") || r.checkValue("]") {
			r.advance()
		}
		if r.checkValue("this") {
			r.advance()
			if r.checkValue("->") || r.checkValue(".") {
				r.advance()
			}
		}
		if r.check(lexer.TokenIdent) {
			r.emit(Construct{Kind: ReleaseHeap, Scope: r.currentScope(), Line: tok.Line, Callee: tok.Value, Binding: r.current().Value})
			r.advance()
		}
	case OwnershipWrap:
		// Python `with`: acquisitions on this line are wrapped. The binding
		// is the `as` name when present, or the context expression itself
		// when it is a bare already-bound name (`with f:`). Lookahead only;
		// call recognition stays with the main loop.
		r.advance()
		binding := ""
		for j := r.pos; j < len(r.tokens) && r.tokens[j].Line == tok.Line; j++ {
			if r.tokens[j].Value == "as" && j+1 < len(r.tokens) && r.tokens[j+1].Type == lexer.TokenIdent {
				binding = r.tokens[j+1].Value
				break
			}
		}
		if binding == "" && r.check(lexer.TokenIdent) &&
			r.pos+1 < len(r.tokens) && r.tokens[r.pos+1].Value == ":" {
			binding = r.current().Value
		}
		r.emit(Construct{Kind: OwnershipWrap, Scope: r.currentScope(), Line: tok.Line, Callee: tok.Value, Binding: binding})
	default:
		r.advance()
		r.emit(Construct{Kind: kind, Scope: r.currentScope(), Line: tok.Line, Callee: tok.Value})
	}
}

// handleIdentifier assembles the maximal qualified name at the cursor and
// matches it against the table.
func (r *recognizer) handleIdentifier() {
	start := r.pos
	startTok := r.current()
	parts := []string{startTok.Value}
	var seps []string
	r.advance()

	for r.pos+1 < len(r.tokens) {
		sep := r.current().Value
		if sep != "::" && sep != "." && sep != "->" {
			break
		}
		next := r.tokens[r.pos+1]
		if next.Type != lexer.TokenIdent && next.Type != lexer.TokenKeyword {
			break
		}
		if sep == "->" {
			sep = "."
		}
		seps = append(seps, sep)
		r.advance()
		parts = append(parts, r.current().Value)
		r.advance()
	}

	qualified := joinQualified(parts, seps)

	// Longest qualified match wins: try the full chain, then shorter
	// suffixes, against the call table.
	if entry, matched, ok := r.lookupCall(parts, seps); ok {
		if r.dispatchCall(entry, matched, startTok, start) {
			return
		}
	}

	// Method form: receiver.method(...). A bare name call (Go's cancel())
	// is its own receiver.
	if r.checkValue("(") && r.table.Methods != nil {
		if entry, ok := r.table.Methods[parts[len(parts)-1]]; ok {
			recv := receiverBinding(parts)
			r.parseArgs(r.pos)
			r.emit(Construct{Kind: entry.Kind, Scope: r.currentScope(), Line: startTok.Line, Callee: qualified, Binding: recv})
			return
		}
	}

	// Fixed-size buffer declaration: Type name[N]
	if len(parts) == 1 && r.checkValue("[") && start > 0 {
		prev := r.tokens[start-1]
		if (prev.Type == lexer.TokenIdent || prev.Type == lexer.TokenKeyword) &&
			r.pos+2 < len(r.tokens) &&
			r.tokens[r.pos+1].Type == lexer.TokenNumber &&
			r.tokens[r.pos+2].Value == "]" {
			cap, err := strconv.Atoi(r.tokens[r.pos+1].Value)
			if err == nil && cap > 0 {
				r.emit(Construct{Kind: DeclareBuffer, Scope: r.currentScope(), Line: startTok.Line, Binding: parts[0], Capacity: cap})
			}
			r.pos += 3
			return
		}
	}
}

// lookupCall returns the table entry for the longest matching suffix of the
// qualified chain. A single-name suffix is only tried when it is joined by
// "::" (namespace qualification) — `sock.close()` is a method call on sock,
// not the bare `close` table entry, and belongs to the method table instead.
func (r *recognizer) lookupCall(parts []string, seps []string) (Entry, string, bool) {
	if r.table.Calls == nil {
		return Entry{}, "", false
	}
	for i := 0; i < len(parts); i++ {
		if i > 0 && len(parts)-i == 1 && seps[i-1] != "::" {
			break
		}
		name := joinQualified(parts[i:], seps[i:])
		if e, ok := r.table.Calls[name]; ok {
			return e, name, true
		}
	}
	return Entry{}, "", false
}

// dispatchCall emits the construct for a matched call or declaration form.
// Returns false when the surrounding tokens rule the match out.
func (r *recognizer) dispatchCall(entry Entry, callee string, startTok lexer.Token, start int) bool {
	save := r.pos
	r.skipTemplateArgs()

	if entry.Operand == OperandDecl {
		// Declaration form: WrapType<...> name(init) or WrapType name;
		if r.check(lexer.TokenIdent) {
			binding := r.current().Value
			r.advance()
			r.emit(Construct{Kind: entry.Kind, Scope: r.currentScope(), Line: startTok.Line, Callee: callee, Binding: binding})
			if entry.Kind == OwnershipWrap && r.checkValue("(") {
				// Lookahead only: the initializer tokens stay with the
				// main loop (unique_ptr<T> p(new T) still emits the
				// acquisition).
				mark := r.pos
				if args, ok := r.parseArgs(r.pos); ok {
					r.emitAdoptedArgs(args, callee, startTok.Line)
				}
				r.pos = mark
			}
			return true
		}
		// Fall through to call form (temporary construction).
	}

	if !r.checkValue("(") {
		r.pos = save
		return false
	}

	args, ok := r.parseArgs(r.pos)
	if !ok {
		r.pos = save
		return false
	}

	c := Construct{Kind: entry.Kind, Scope: r.currentScope(), Line: startTok.Line, Callee: callee}

	switch entry.Kind {
	case UnboundedCopy, BoundedCopy:
		if entry.Dest < len(args) {
			c.Binding = argBinding(args[entry.Dest])
		}
		srcIdx := entry.Src
		if srcIdx == SrcLast {
			srcIdx = len(args) - 1
		}
		if srcIdx != SrcNone && srcIdx >= 0 && srcIdx < len(args) && srcIdx != entry.Dest {
			if lit, ok := argLiteral(args[srcIdx]); ok {
				c.Source, c.SourceLit = lit, true
			} else {
				c.Source = argBinding(args[srcIdx])
			}
		}
	default:
		switch entry.Operand {
		case OperandArg0:
			if len(args) > 0 {
				c.Binding = argBinding(args[0])
			}
		default:
			c.Binding = r.assignTargetBefore(start, entry.Operand)
		}
		if entry.Kind == AcquireHeap {
			c.SizeHints = argIdents(args)
		}
	}

	r.emit(c)
	if entry.Kind == OwnershipWrap {
		r.emitAdoptedArgs(args, callee, startTok.Line)
	}
	return true
}

// emitAdoptedArgs emits a wrap for every bare-identifier constructor
// argument: std::unique_ptr<char, decltype(&free)> up(p, free) takes
// ownership of p, resolving its earlier acquisition.
func (r *recognizer) emitAdoptedArgs(args [][]lexer.Token, callee string, line int) {
	for _, arg := range args {
		if len(arg) == 1 && arg[0].Type == lexer.TokenIdent {
			r.emit(Construct{
				Kind:    OwnershipWrap,
				Scope:   r.currentScope(),
				Line:    line,
				Callee:  callee,
				Binding: arg[0].Value,
			})
		}
	}
}

// skipTemplateArgs advances over a balanced <...> group if one follows.
func (r *recognizer) skipTemplateArgs() {
	if !r.checkValue("<") {
		return
	}
	depth := 0
	for !r.isAtEnd() {
		switch r.current().Value {
		case "<":
			depth++
		case ">":
			depth--
			if depth == 0 {
				r.advance()
				return
			}
		case ";", "{", "}":
			return // not a template argument list after all
		}
		r.advance()
	}
}

// parseArgs splits a call's top-level arguments. The cursor must be on the
// opening parenthesis; on success it ends just past the closing one.
func (r *recognizer) parseArgs(open int) ([][]lexer.Token, bool) {
	if !r.checkValue("(") {
		return nil, false
	}
	r.advance()
	depth := 1
	var args [][]lexer.Token
	var cur []lexer.Token

	for !r.isAtEnd() {
		tok := r.current()
		switch tok.Value {
		case "(", "[":
			depth++
			cur = append(cur, tok)
		case ")", "]":
			depth--
			if depth == 0 {
				if len(cur) > 0 || len(args) > 0 {
					args = append(args, cur)
				}
				r.advance()
				return args, true
			}
			cur = append(cur, tok)
		case ",":
			if depth == 1 {
				args = append(args, cur)
				cur = nil
			} else {
				cur = append(cur, tok)
			}
		case ";", "{", "}":
			return args, false // malformed call, bail out
		default:
			cur = append(cur, tok)
		}
		r.advance()
	}
	return args, false
}

// assignTargetBefore finds the variable bound by the assignment preceding
// the call on the same line, crossing casts: `p = (char*)malloc(...)`,
// `this->p = new T`. Multi-value left-hand sides (`f, err := os.Open(...)`)
// yield the first name, or the last under OperandAssignLast
// (`ctx, cancel := context.WithCancel(...)`).
func (r *recognizer) assignTargetBefore(from int, policy OperandPolicy) string {
	if from == 0 {
		return ""
	}
	line := r.tokens[from].Line
	eq := -1
	for i := from - 1; i >= 0 && r.tokens[i].Line == line; i-- {
		v := r.tokens[i].Value
		if v == ";" || v == "{" || v == "}" {
			break
		}
		if v == "=" {
			eq = i
			break
		}
	}
	if eq < 0 {
		return ""
	}
	var names []string
	for i := eq - 1; i >= 0 && r.tokens[i].Line == line; i-- {
		tok := r.tokens[i]
		if tok.Value == ";" || tok.Value == "{" || tok.Value == "}" || tok.Value == ")" {
			break
		}
		if tok.Type == lexer.TokenIdent && tok.Value != "this" {
			names = append(names, tok.Value)
		}
	}
	if len(names) == 0 {
		return ""
	}
	// names are collected right to left
	if policy == OperandAssignLast {
		return names[0]
	}
	return names[len(names)-1]
}

func receiverBinding(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	recv := parts[:len(parts)-1]
	for len(recv) > 1 && recv[0] == "this" {
		recv = recv[1:]
	}
	return recv[len(recv)-1]
}

func argBinding(arg []lexer.Token) string {
	for _, tok := range arg {
		if tok.Type == lexer.TokenIdent && tok.Value != "this" {
			return tok.Value
		}
	}
	return ""
}

func argLiteral(arg []lexer.Token) (string, bool) {
	for _, tok := range arg {
		switch tok.Type {
		case lexer.TokenString:
			return strings.Trim(tok.Value, `"'`), true
		case lexer.TokenIdent:
			return "", false
		}
	}
	return "", false
}

func argIdents(args [][]lexer.Token) []string {
	var ids []string
	for _, arg := range args {
		for _, tok := range arg {
			if tok.Type == lexer.TokenIdent {
				ids = append(ids, tok.Value)
			}
		}
	}
	return ids
}

func joinQualified(parts []string, seps []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	var sb strings.Builder
	sb.WriteString(parts[0])
	for i := 1; i < len(parts) && i-1 < len(seps); i++ {
		sb.WriteString(seps[i-1])
		sb.WriteString(parts[i])
	}
	return sb.String()
}

func (r *recognizer) emit(c Construct) {
	r.out = append(r.out, c)
}

func (r *recognizer) currentScope() int {
	return r.scopeStack[len(r.scopeStack)-1]
}

// Token navigation helpers
func (r *recognizer) current() lexer.Token {
	if r.pos < len(r.tokens) {
		return r.tokens[r.pos]
	}
	return lexer.Token{Type: lexer.TokenEOF}
}

func (r *recognizer) advance() {
	if r.pos < len(r.tokens) {
		r.pos++
	}
}

func (r *recognizer) isAtEnd() bool {
	return r.pos >= len(r.tokens) || r.tokens[r.pos].Type == lexer.TokenEOF
}

func (r *recognizer) check(t lexer.TokenType) bool {
	return !r.isAtEnd() && r.current().Type == t
}

func (r *recognizer) checkValue(v string) bool {
	return !r.isAtEnd() && r.current().Value == v
}
