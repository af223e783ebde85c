// Package engine wires the pipeline together: tokenizer → construct
// recognizer → lifetime tracker + rule engine → finding aggregator. One Scan
// call is a single forward pass over one file; concurrent scans share only
// the immutable rule set and language registry.
package engine

import (
	"errors"
	"fmt"
	"time"

	"bugscan/internal/construct"
	"bugscan/internal/lang"
	"bugscan/internal/lexer"
	"bugscan/internal/lifetime"
	"bugscan/internal/rules"
)

var (
	// ErrEngineInit is fatal: the engine cannot be built without at least
	// one language front-end and one rule.
	ErrEngineInit = errors.New("engine initialization failed")
	// ErrScanTimeout marks a scan abandoned by the timeout policy.
	ErrScanTimeout = errors.New("scan timed out")
)

type Engine struct {
	langs   *lang.Registry
	rules   *rules.Set
	timeout time.Duration
}

type Option func(*Engine)

// WithTimeout bounds a single file's scan. Zero disables the policy.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// New builds an engine over a language registry and rule set. Both are
// frozen here and never mutated by a scan.
func New(registry *lang.Registry, set *rules.Set, opts ...Option) (*Engine, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("%w: no language front-ends registered", ErrEngineInit)
	}
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("%w: no rules registered", ErrEngineInit)
	}
	set.Freeze()
	e := &Engine{langs: registry, rules: set}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Languages exposes the registry for callers that filter files up front.
func (e *Engine) Languages() *lang.Registry { return e.langs }

// Rules exposes the frozen rule set, for reporting.
func (e *Engine) Rules() *rules.Set { return e.rules }

// Scan analyzes one file. The result is never nil and Scan never panics on
// arbitrary input; recoverable errors are attached to the result and the
// classification degrades to unknown.
func (e *Engine) Scan(path string, content []byte) *ScanResult {
	language, err := e.langs.Resolve(path, content)
	if err != nil {
		return inconclusive(path, "", err)
	}

	if e.timeout <= 0 {
		return e.scanFile(path, content, language)
	}

	done := make(chan *ScanResult, 1)
	go func() {
		done <- e.scanFile(path, content, language)
	}()
	select {
	case res := <-done:
		return res
	case <-time.After(e.timeout):
		return inconclusive(path, language.Tag, fmt.Errorf("%w after %s: %s", ErrScanTimeout, e.timeout, path))
	}
}

// scanFile is the single forward pass: no backtracking, tracker and rules
// consuming the construct stream together.
func (e *Engine) scanFile(path string, content []byte, language *lang.Language) *ScanResult {
	tokens, lexErr := lexer.New(content, language.Lexer).Tokenize()

	rec := construct.Recognize(tokens, language.Table)
	tracker := lifetime.NewTracker()

	var findings []rules.Finding
	for _, c := range rec.Constructs {
		switch c.Kind {
		case construct.ScopeEnter, construct.ScopeExit:
			// scope bookkeeping only
		default:
			// Rules see each construct before the tracker applies it,
			// while the scope stack still holds prior declarations.
			findings = append(findings, e.rules.EvalConstruct(c, tracker, path)...)
		}
		for _, ev := range tracker.Apply(c) {
			findings = append(findings, e.rules.EvalLeak(ev, path)...)
		}
	}
	for _, ev := range tracker.Finish() {
		findings = append(findings, e.rules.EvalLeak(ev, path)...)
	}

	res := aggregate(path, language.Tag, findings)
	if lexErr != nil {
		// Partial scan: findings stand, the malformed-input error rides
		// along so no caller can miss it.
		res.Err = lexErr
		res.Error = lexErr.Error()
	}
	return res
}

func inconclusive(path, tag string, err error) *ScanResult {
	return &ScanResult{
		Path:           path,
		Language:       tag,
		Findings:       []rules.Finding{},
		Classification: ClassUnknown,
		Err:            err,
		Error:          err.Error(),
	}
}
