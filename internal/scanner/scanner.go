// Package scanner walks fixture trees and fans files out to the engine. It
// is a thin caller of the engine API: discovery, parallelism, and the
// buggy/clean expectation check live here, never inside the engine.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang/glog"

	"bugscan/internal/engine"
)

// Scanner discovers scannable files under one or more roots.
type Scanner struct {
	Registry interface{ Supported(path string) bool }
	Excludes []string // doublestar patterns matched against slash paths
}

func New(registry interface{ Supported(path string) bool }, excludes []string) *Scanner {
	return &Scanner{Registry: registry, Excludes: excludes}
}

// Walk returns the deduplicated, sorted absolute paths of supported files
// under the given paths. Unreadable entries are skipped with a warning.
func (s *Scanner) Walk(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			s.collect(path, seen, &files)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				glog.Warningf("skipping %s: %v", p, err)
				return nil
			}
			if d.IsDir() {
				if s.excluded(p) {
					return filepath.SkipDir
				}
				return nil
			}
			s.collect(p, seen, &files)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func (s *Scanner) collect(path string, seen map[string]bool, files *[]string) {
	if s.excluded(path) || !s.Registry.Supported(path) {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if !seen[abs] {
		seen[abs] = true
		*files = append(*files, abs)
	}
}

func (s *Scanner) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range s.Excludes {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// Run scans files concurrently. Scans are independent and share only the
// engine's immutable registries, so the fan-out needs no locking beyond
// index-addressed result slots. Results come back in input order.
func Run(eng *engine.Engine, files []string, workers int) []*engine.ScanResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]*engine.ScanResult, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = scanOne(eng, files[i])
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func scanOne(eng *engine.Engine, path string) *engine.ScanResult {
	content, err := os.ReadFile(path)
	if err != nil {
		glog.Warningf("reading %s: %v", path, err)
		return &engine.ScanResult{
			Path:           path,
			Findings:       nil,
			Classification: engine.ClassUnknown,
			Err:            err,
			Error:          err.Error(),
		}
	}
	res := eng.Scan(path, content)
	if res.Err != nil {
		glog.Warningf("scanning %s: %v", path, res.Err)
	}
	return res
}

// ExpectFor derives the fixture expectation from the path: files under a
// "buggy" directory are expected buggy, under "clean" expected clean.
// Anything else carries no expectation.
func ExpectFor(path string) engine.Classification {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		switch part {
		case "buggy":
			return engine.ClassBuggy
		case "clean":
			return engine.ClassClean
		}
	}
	return ""
}

// Verdict is one fixture comparison.
type Verdict struct {
	Path     string
	Expected engine.Classification
	Actual   engine.Classification
	Pass     bool
}

// CheckFixtures compares results against directory-derived expectations.
// Files without an expectation are skipped.
func CheckFixtures(results []*engine.ScanResult) (verdicts []Verdict, failures int) {
	for _, res := range results {
		expected := ExpectFor(res.Path)
		if expected == "" {
			continue
		}
		v := Verdict{
			Path:     res.Path,
			Expected: expected,
			Actual:   res.Classification,
			Pass:     expected == res.Classification,
		}
		if !v.Pass {
			failures++
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, failures
}
