package lang

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bugscan/internal/construct"
	"bugscan/internal/lexer"
)

// languageDoc is the YAML shape for a user-supplied front-end.
type languageDoc struct {
	Tag          string   `yaml:"tag"`
	Extensions   []string `yaml:"extensions"`
	ShebangHints []string `yaml:"shebang_hints"`
	Lexer        struct {
		LineComment  string    `yaml:"line_comment"`
		BlockComment [2]string `yaml:"block_comment"`
		Quotes       string    `yaml:"quotes"`
		TripleQuotes bool      `yaml:"triple_quotes"`
		Preprocessor bool      `yaml:"preprocessor"`
		Keywords     []string  `yaml:"keywords"`
	} `yaml:"lexer"`
	Table struct {
		IndentScopes bool       `yaml:"indent_scopes"`
		Calls        []entryDoc `yaml:"calls"`
		Methods      []entryDoc `yaml:"methods"`
		Keywords     []entryDoc `yaml:"keywords"`
	} `yaml:"table"`
}

type entryDoc struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Operand string `yaml:"operand"`
	Dest    int    `yaml:"dest"`
	Src     *int   `yaml:"src"`
}

// LoadYAML parses a front-end definition, so new languages ship as data
// files rather than code.
func LoadYAML(data []byte) (*Language, error) {
	var doc languageDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing language definition: %w", err)
	}
	if doc.Tag == "" {
		return nil, fmt.Errorf("language definition has no tag")
	}

	l := &Language{
		Tag:          doc.Tag,
		Extensions:   doc.Extensions,
		ShebangHints: doc.ShebangHints,
		Lexer: lexer.Config{
			LineComment:  doc.Lexer.LineComment,
			BlockComment: doc.Lexer.BlockComment,
			Quotes:       []byte(doc.Lexer.Quotes),
			TripleQuotes: doc.Lexer.TripleQuotes,
			Preprocessor: doc.Lexer.Preprocessor,
			Keywords:     keywordSet(doc.Lexer.Keywords...),
		},
		Table: construct.Table{IndentScopes: doc.Table.IndentScopes},
	}

	if len(doc.Table.Calls) > 0 {
		l.Table.Calls = make(map[string]construct.Entry)
		for _, e := range doc.Table.Calls {
			entry, err := e.toEntry()
			if err != nil {
				return nil, err
			}
			l.Table.Calls[e.Name] = entry
		}
	}
	if len(doc.Table.Methods) > 0 {
		l.Table.Methods = make(map[string]construct.Entry)
		for _, e := range doc.Table.Methods {
			entry, err := e.toEntry()
			if err != nil {
				return nil, err
			}
			entry.Operand = construct.OperandRecv
			l.Table.Methods[e.Name] = entry
		}
	}
	if len(doc.Table.Keywords) > 0 {
		l.Table.Keywords = make(map[string]construct.Kind)
		for _, e := range doc.Table.Keywords {
			kind, ok := construct.ParseKind(e.Kind)
			if !ok {
				return nil, fmt.Errorf("keyword %q: unknown construct kind %q", e.Name, e.Kind)
			}
			l.Table.Keywords[e.Name] = kind
		}
	}
	return l, nil
}

// LoadYAMLFile reads and parses one front-end definition file.
func LoadYAMLFile(path string) (*Language, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading language definition: %w", err)
	}
	return LoadYAML(data)
}

func (e entryDoc) toEntry() (construct.Entry, error) {
	kind, ok := construct.ParseKind(e.Kind)
	if !ok {
		return construct.Entry{}, fmt.Errorf("call %q: unknown construct kind %q", e.Name, e.Kind)
	}
	entry := construct.Entry{Kind: kind, Dest: e.Dest}
	switch e.Operand {
	case "", "assign":
		entry.Operand = construct.OperandAssign
	case "assign-last":
		entry.Operand = construct.OperandAssignLast
	case "arg0":
		entry.Operand = construct.OperandArg0
	case "decl":
		entry.Operand = construct.OperandDecl
	case "recv":
		entry.Operand = construct.OperandRecv
	default:
		return construct.Entry{}, fmt.Errorf("call %q: unknown operand policy %q", e.Name, e.Operand)
	}
	if e.Src != nil {
		entry.Src = *e.Src
	} else {
		entry.Src = construct.SrcNone
	}
	return entry, nil
}
