package lang_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugscan/internal/construct"
	"bugscan/internal/lang"
)

func TestRegisterValidation(t *testing.T) {
	r := lang.NewRegistry()
	require.NoError(t, r.Register(&lang.Language{Tag: "c", Extensions: []string{".c"}}))

	assert.Error(t, r.Register(&lang.Language{Tag: ""}))
	assert.ErrorContains(t, r.Register(&lang.Language{Tag: "c"}), "already registered")
	assert.Equal(t, 1, r.Len())
}

func TestResolveByExtension(t *testing.T) {
	r := lang.NewRegistry()
	require.NoError(t, r.Register(&lang.Language{Tag: "cpp", Extensions: []string{".cpp", ".cc"}}))

	l, err := r.Resolve("src/widget.cpp", nil)
	require.NoError(t, err)
	assert.Equal(t, "cpp", l.Tag)

	// Extension matching is case-insensitive.
	l, err = r.Resolve("LEGACY.CC", nil)
	require.NoError(t, err)
	assert.Equal(t, "cpp", l.Tag)
}

func TestResolveByShebang(t *testing.T) {
	r := lang.NewRegistry()
	require.NoError(t, r.Register(&lang.Language{
		Tag: "python", Extensions: []string{".py"}, ShebangHints: []string{"python"},
	}))

	l, err := r.Resolve("deploy", []byte("#!/usr/bin/env python3\nprint('hi')\n"))
	require.NoError(t, err)
	assert.Equal(t, "python", l.Tag)

	// The sniff only reads the first line.
	_, err = r.Resolve("deploy", []byte("#!/bin/sh\n# python helper\n"))
	assert.ErrorIs(t, err, lang.ErrUnsupportedLanguage)
}

func TestResolveUnsupported(t *testing.T) {
	r := lang.NewRegistry()
	require.NoError(t, r.Register(&lang.Language{Tag: "c", Extensions: []string{".c"}}))

	_, err := r.Resolve("notes.txt", []byte("plain text"))
	assert.ErrorIs(t, err, lang.ErrUnsupportedLanguage)
}

func TestSupported(t *testing.T) {
	r := lang.NewRegistry()
	require.NoError(t, r.Register(&lang.Language{Tag: "go", Extensions: []string{".go"}}))

	assert.True(t, r.Supported("pkg/main.go"))
	assert.False(t, r.Supported("pkg/main.rs"))
}

func TestBuiltinRegistry(t *testing.T) {
	r := lang.Builtin()
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, []string{"cpp", "c", "python", "go", "javascript"}, r.Tags())

	for path, tag := range map[string]string{
		"a.cpp": "cpp",
		"a.hpp": "cpp",
		"a.c":   "c",
		"a.py":  "python",
		"a.go":  "go",
		"a.js":  "javascript",
		"a.ts":  "javascript",
	} {
		l, err := r.Resolve(path, nil)
		require.NoError(t, err, path)
		assert.Equal(t, tag, l.Tag, path)
	}
}

func TestBuiltinTableShapes(t *testing.T) {
	cpp := lang.CPP()
	assert.Equal(t, construct.AcquireHeap, cpp.Table.Calls["malloc"].Kind)
	assert.Equal(t, construct.OwnershipWrap, cpp.Table.Calls["std::unique_ptr"].Kind)
	assert.Equal(t, construct.AcquireHeap, cpp.Table.Keywords["new"])
	assert.False(t, cpp.Table.IndentScopes)

	py := lang.Python()
	assert.True(t, py.Table.IndentScopes)
	assert.Equal(t, construct.OwnershipWrap, py.Table.Keywords["with"])
	assert.Equal(t, construct.JoinOrDetachHandle, py.Table.Methods["join"].Kind)

	golang := lang.Go()
	assert.Equal(t, construct.OperandAssignLast, golang.Table.Calls["context.WithCancel"].Operand)
	assert.Nil(t, golang.Table.Keywords)
}
