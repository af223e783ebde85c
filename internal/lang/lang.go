// Package lang maps files to language front-ends. A front-end is data — a
// lexer config plus a construct table — so adding a language is a
// registration, never a new code path in the engine.
package lang

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"bugscan/internal/construct"
	"bugscan/internal/lexer"
)

// ErrUnsupportedLanguage is returned when no registered front-end matches a
// file. Per-file and non-fatal; the caller decides whether to skip or report.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language is one pluggable front-end.
type Language struct {
	Tag        string
	Extensions []string
	Lexer      lexer.Config
	Table      construct.Table
	// Shebang substrings that identify the language when the extension
	// gives nothing away.
	ShebangHints []string
}

// Registry resolves files to front-ends. Immutable after initialization;
// safe for concurrent reads from any number of scans.
type Registry struct {
	byExt map[string]*Language
	byTag map[string]*Language
	order []*Language
}

func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]*Language),
		byTag: make(map[string]*Language),
	}
}

// Register adds a front-end. Called during initialization only.
func (r *Registry) Register(l *Language) error {
	if l.Tag == "" {
		return errors.New("language tag must not be empty")
	}
	if _, dup := r.byTag[l.Tag]; dup {
		return fmt.Errorf("language %q already registered", l.Tag)
	}
	r.byTag[l.Tag] = l
	r.order = append(r.order, l)
	for _, ext := range l.Extensions {
		r.byExt[strings.ToLower(ext)] = l
	}
	return nil
}

func (r *Registry) Len() int { return len(r.order) }

// Tags returns the registered language tags in registration order.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.order))
	for _, l := range r.order {
		tags = append(tags, l.Tag)
	}
	return tags
}

// Resolve picks the front-end for a file from its extension, falling back to
// a shebang sniff of the content.
func (r *Registry) Resolve(path string, content []byte) (*Language, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := r.byExt[ext]; ok {
		return l, nil
	}
	if l := r.sniff(content); l != nil {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
}

// Supported reports whether the path's extension maps to a front-end,
// without reading content. Used by file discovery.
func (r *Registry) Supported(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (r *Registry) sniff(content []byte) *Language {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return nil
	}
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	for _, l := range r.order {
		for _, hint := range l.ShebangHints {
			if hint != "" && bytes.Contains(line, []byte(hint)) {
				return l
			}
		}
	}
	return nil
}
