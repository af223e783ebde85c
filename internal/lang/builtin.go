package lang

import (
	"bugscan/internal/construct"
	"bugscan/internal/lexer"
)

// Builtin returns a registry with the stock front-ends: C, C++, Python, Go,
// and JavaScript.
func Builtin() *Registry {
	r := NewRegistry()
	for _, l := range []*Language{CPP(), C(), Python(), Go(), JavaScript()} {
		if err := r.Register(l); err != nil {
			panic(err)
		}
	}
	return r
}

func call(kind construct.Kind, op construct.OperandPolicy) construct.Entry {
	return construct.Entry{Kind: kind, Operand: op}
}

func copyCall(kind construct.Kind, dest, src int) construct.Entry {
	return construct.Entry{Kind: kind, Dest: dest, Src: src}
}

func keywordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// cCalls is the shared C construct vocabulary; the C++ table extends it.
func cCalls() map[string]construct.Entry {
	return map[string]construct.Entry{
		"malloc":  call(construct.AcquireHeap, construct.OperandAssign),
		"calloc":  call(construct.AcquireHeap, construct.OperandAssign),
		"realloc": call(construct.AcquireHeap, construct.OperandAssign),
		"strdup":  call(construct.AcquireHeap, construct.OperandAssign),
		"free":    call(construct.ReleaseHeap, construct.OperandArg0),

		"fopen":  call(construct.AcquireHandle, construct.OperandAssign),
		"open":   call(construct.AcquireHandle, construct.OperandAssign),
		"socket": call(construct.AcquireHandle, construct.OperandAssign),
		"accept": call(construct.AcquireHandle, construct.OperandAssign),

		"pthread_create":       call(construct.AcquireHandle, construct.OperandArg0),
		"pthread_mutex_lock":   call(construct.AcquireHandle, construct.OperandArg0),
		"pthread_mutex_unlock": call(construct.ReleaseHandle, construct.OperandArg0),
		"pthread_join":         call(construct.JoinOrDetachHandle, construct.OperandArg0),
		"pthread_detach":       call(construct.JoinOrDetachHandle, construct.OperandArg0),

		"fclose":      call(construct.ReleaseHandle, construct.OperandArg0),
		"close":       call(construct.ReleaseHandle, construct.OperandArg0),
		"closesocket": call(construct.ReleaseHandle, construct.OperandArg0),

		"strcpy":   copyCall(construct.UnboundedCopy, 0, 1),
		"strcat":   copyCall(construct.UnboundedCopy, 0, 1),
		"sprintf":  copyCall(construct.UnboundedCopy, 0, construct.SrcLast),
		"vsprintf": copyCall(construct.UnboundedCopy, 0, construct.SrcLast),
		"gets":     copyCall(construct.UnboundedCopy, 0, construct.SrcNone),

		"strncpy":  copyCall(construct.BoundedCopy, 0, 1),
		"strncat":  copyCall(construct.BoundedCopy, 0, 1),
		"strlcpy":  copyCall(construct.BoundedCopy, 0, 1),
		"snprintf": copyCall(construct.BoundedCopy, 0, construct.SrcLast),
		"vsnprintf": copyCall(construct.BoundedCopy, 0,
			construct.SrcLast),
		"fgets": copyCall(construct.BoundedCopy, 0, construct.SrcNone),
	}
}

var cKeywords = []string{
	"auto", "break", "case", "char", "const", "continue", "default", "do",
	"double", "else", "enum", "extern", "float", "for", "goto", "if", "int",
	"long", "register", "return", "short", "signed", "sizeof", "static",
	"struct", "switch", "typedef", "union", "unsigned", "void", "volatile",
	"while", "NULL",
}

// C front-end.
func C() *Language {
	return &Language{
		Tag:        "c",
		Extensions: []string{".c"},
		Lexer: lexer.Config{
			LineComment:  "//",
			BlockComment: [2]string{"/*", "*/"},
			Quotes:       []byte{'"', '\''},
			Preprocessor: true,
			Keywords:     keywordSet(cKeywords...),
		},
		Table: construct.Table{Calls: cCalls()},
	}
}

// CPP front-end: the C vocabulary plus new/delete, std::thread, and the RAII
// wrapper types whose construction suppresses obligations.
func CPP() *Language {
	calls := cCalls()

	calls["std::thread"] = call(construct.AcquireHandle, construct.OperandDecl)
	calls["thread"] = call(construct.AcquireHandle, construct.OperandDecl)

	wraps := []string{
		"std::unique_ptr", "unique_ptr",
		"std::shared_ptr", "shared_ptr",
		"std::lock_guard", "lock_guard",
		"std::unique_lock", "unique_lock",
		"std::scoped_lock", "scoped_lock",
		"std::jthread", "jthread",
		"std::fstream", "std::ifstream", "std::ofstream",
	}
	for _, w := range wraps {
		calls[w] = call(construct.OwnershipWrap, construct.OperandDecl)
	}
	calls["std::make_unique"] = call(construct.OwnershipWrap, construct.OperandAssign)
	calls["make_unique"] = call(construct.OwnershipWrap, construct.OperandAssign)
	calls["std::make_shared"] = call(construct.OwnershipWrap, construct.OperandAssign)
	calls["make_shared"] = call(construct.OwnershipWrap, construct.OperandAssign)

	cppKeywords := append([]string{
		"class", "public", "private", "protected", "new", "delete",
		"virtual", "nullptr", "this", "template", "typename", "namespace",
		"using", "try", "catch", "throw", "bool", "true", "false",
	}, cKeywords...)

	return &Language{
		Tag: "cpp",
		Extensions: []string{
			".cpp", ".cc", ".cxx", ".h", ".hpp", ".hxx",
		},
		Lexer: lexer.Config{
			LineComment:  "//",
			BlockComment: [2]string{"/*", "*/"},
			Quotes:       []byte{'"', '\''},
			Preprocessor: true,
			Keywords:     keywordSet(cppKeywords...),
		},
		Table: construct.Table{
			Calls: calls,
			Methods: map[string]construct.Entry{
				"join":   call(construct.JoinOrDetachHandle, construct.OperandRecv),
				"detach": call(construct.JoinOrDetachHandle, construct.OperandRecv),
				"close":  call(construct.ReleaseHandle, construct.OperandRecv),
			},
			Keywords: map[string]construct.Kind{
				"new":    construct.AcquireHeap,
				"delete": construct.ReleaseHeap,
			},
		},
	}
}

// Python front-end, indent-scoped. Vocabulary follows the usual handle
// lifecycles: open/close, socket, Popen/wait, Thread/join, task/cancel.
func Python() *Language {
	return &Language{
		Tag:          "python",
		Extensions:   []string{".py"},
		ShebangHints: []string{"python"},
		Lexer: lexer.Config{
			LineComment:  "#",
			Quotes:       []byte{'"', '\''},
			TripleQuotes: true,
			Keywords: keywordSet(
				"def", "class", "with", "as", "return", "if", "elif", "else",
				"for", "while", "import", "from", "lambda", "try", "except",
				"finally", "pass", "raise", "in", "is", "not", "and", "or",
				"None", "True", "False", "global", "nonlocal", "del",
				"yield", "async", "await",
			),
		},
		Table: construct.Table{
			IndentScopes: true,
			Calls: map[string]construct.Entry{
				"open":                        call(construct.AcquireHandle, construct.OperandAssign),
				"socket.socket":               call(construct.AcquireHandle, construct.OperandAssign),
				"socket.create_connection":    call(construct.AcquireHandle, construct.OperandAssign),
				"subprocess.Popen":            call(construct.AcquireHandle, construct.OperandAssign),
				"threading.Thread":            call(construct.AcquireHandle, construct.OperandAssign),
				"tempfile.NamedTemporaryFile": call(construct.AcquireHandle, construct.OperandAssign),
				"tempfile.TemporaryFile":      call(construct.AcquireHandle, construct.OperandAssign),
				"asyncio.create_task":         call(construct.AcquireHandle, construct.OperandAssign),
			},
			Methods: map[string]construct.Entry{
				"close":       call(construct.ReleaseHandle, construct.OperandRecv),
				"shutdown":    call(construct.ReleaseHandle, construct.OperandRecv),
				"wait":        call(construct.ReleaseHandle, construct.OperandRecv),
				"communicate": call(construct.ReleaseHandle, construct.OperandRecv),
				"terminate":   call(construct.ReleaseHandle, construct.OperandRecv),
				"kill":        call(construct.ReleaseHandle, construct.OperandRecv),
				"cancel":      call(construct.ReleaseHandle, construct.OperandRecv),
				"join":        call(construct.JoinOrDetachHandle, construct.OperandRecv),
			},
			Keywords: map[string]construct.Kind{
				"with": construct.OwnershipWrap,
			},
		},
	}
}

// Go front-end. defer x.Close() resolves like any other release — reaching
// the deferred call in source order is the evidence the obligation wants.
func Go() *Language {
	return &Language{
		Tag:        "go",
		Extensions: []string{".go"},
		Lexer: lexer.Config{
			LineComment:  "//",
			BlockComment: [2]string{"/*", "*/"},
			Quotes:       []byte{'"', '\'', '`'},
			Keywords: keywordSet(
				"func", "go", "defer", "return", "if", "else", "for",
				"range", "var", "const", "type", "struct", "interface",
				"map", "chan", "package", "import", "switch", "case",
				"select", "break", "continue", "fallthrough", "goto",
				"nil", "true", "false",
			),
		},
		Table: construct.Table{
			Calls: map[string]construct.Entry{
				"os.Open":              call(construct.AcquireHandle, construct.OperandAssign),
				"os.OpenFile":          call(construct.AcquireHandle, construct.OperandAssign),
				"os.Create":            call(construct.AcquireHandle, construct.OperandAssign),
				"os.CreateTemp":        call(construct.AcquireHandle, construct.OperandAssign),
				"net.Listen":           call(construct.AcquireHandle, construct.OperandAssign),
				"net.Dial":             call(construct.AcquireHandle, construct.OperandAssign),
				"sql.Open":             call(construct.AcquireHandle, construct.OperandAssign),
				"time.NewTicker":       call(construct.AcquireHandle, construct.OperandAssign),
				"time.NewTimer":        call(construct.AcquireHandle, construct.OperandAssign),
				// ctx, cancel := ...; the obligation lives on cancel.
				"context.WithCancel":   call(construct.AcquireHandle, construct.OperandAssignLast),
				"context.WithTimeout":  call(construct.AcquireHandle, construct.OperandAssignLast),
				"context.WithDeadline": call(construct.AcquireHandle, construct.OperandAssignLast),
			},
			Methods: map[string]construct.Entry{
				"Close":  call(construct.ReleaseHandle, construct.OperandRecv),
				"Stop":   call(construct.ReleaseHandle, construct.OperandRecv),
				"cancel": call(construct.ReleaseHandle, construct.OperandRecv),
			},
		},
	}
}

// JavaScript front-end.
func JavaScript() *Language {
	return &Language{
		Tag:          "javascript",
		Extensions:   []string{".js", ".mjs", ".cjs", ".ts"},
		ShebangHints: []string{"node"},
		Lexer: lexer.Config{
			LineComment:  "//",
			BlockComment: [2]string{"/*", "*/"},
			Quotes:       []byte{'"', '\'', '`'},
			Keywords: keywordSet(
				"function", "var", "let", "const", "if", "else", "return",
				"for", "while", "class", "new", "this", "try", "catch",
				"finally", "throw", "typeof", "instanceof", "null",
				"undefined", "true", "false", "async", "await", "import",
				"export",
			),
		},
		Table: construct.Table{
			Calls: map[string]construct.Entry{
				"fs.openSync":   call(construct.AcquireHandle, construct.OperandAssign),
				"setInterval":   call(construct.AcquireHandle, construct.OperandAssign),
				"fs.closeSync":  call(construct.ReleaseHandle, construct.OperandArg0),
				"clearInterval": call(construct.ReleaseHandle, construct.OperandArg0),
			},
			Methods: map[string]construct.Entry{
				"close": call(construct.ReleaseHandle, construct.OperandRecv),
			},
		},
	}
}
