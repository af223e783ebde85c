package main

import (
	"errors"
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"bugscan/internal/engine"
	"bugscan/internal/lang"
	"bugscan/internal/reporter"
	"bugscan/internal/rules"
	"bugscan/internal/scanner"
)

var version = "1.0.0"

var (
	flagJSON       bool
	flagExcludes   []string
	flagJobs       int
	flagTimeout    time.Duration
	flagLangTables []string
)

func main() {
	// glog reads its flags from the standard flag set.
	_ = goflag.CommandLine.Parse([]string{"-logtostderr"})

	root := &cobra.Command{
		Use:           "bugscan",
		Short:         "Multi-language defect-pattern scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "output results as JSON")
	root.PersistentFlags().StringSliceVar(&flagExcludes, "exclude", nil, "glob patterns to exclude (e.g. '**/vendor/**')")
	root.PersistentFlags().IntVar(&flagJobs, "jobs", 4, "number of concurrent file scans")
	root.PersistentFlags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "per-file scan timeout (0 disables)")
	root.PersistentFlags().StringSliceVar(&flagLangTables, "lang-table", nil, "extra language front-end YAML files")

	root.AddCommand(scanCmd(), fixturesCmd(), watchCmd(), rulesCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildEngine assembles the immutable registries once, before any scan.
func buildEngine() (*engine.Engine, error) {
	registry := lang.Builtin()
	for _, path := range flagLangTables {
		l, err := lang.LoadYAMLFile(path)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(l); err != nil {
			return nil, err
		}
	}
	return engine.New(registry, rules.Default(), engine.WithTimeout(flagTimeout))
}

func runScan(paths []string) ([]*engine.ScanResult, *engine.Engine, error) {
	eng, err := buildEngine()
	if err != nil {
		return nil, nil, err
	}
	s := scanner.New(eng.Languages(), flagExcludes)
	files, err := s.Walk(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, eng, errors.New("no scannable files found")
	}
	glog.Infof("scanning %d file(s) with %d worker(s)", len(files), flagJobs)
	return scanner.Run(eng, files, flagJobs), eng, nil
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <path> [paths...]",
		Short: "Scan files or directories for defect patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, _, err := runScan(args)
			if err != nil {
				return err
			}
			r := reporter.New(os.Stdout, flagJSON)
			if err := r.Report(results); err != nil {
				return err
			}
			if reporter.Summarize(results).Buggy > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
}

func fixturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fixtures <path> [paths...]",
		Short: "Scan fixture trees and compare against buggy/clean directory labels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, _, err := runScan(args)
			if err != nil {
				return err
			}
			verdicts, failures := scanner.CheckFixtures(results)
			reporter.ReportFixtures(os.Stdout, verdicts)
			fmt.Printf("\n%d fixture(s), %d failure(s)\n", len(verdicts), failures)
			if failures > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-scan a directory whenever its files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			root := args[0]
			if err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
				if err == nil && d.IsDir() {
					return watcher.Add(p)
				}
				return nil
			}); err != nil {
				return err
			}

			scanAll := func() {
				results, _, err := runScan([]string{root})
				if err != nil {
					glog.Errorf("scan failed: %v", err)
					return
				}
				if err := reporter.New(os.Stdout, flagJSON).Report(results); err != nil {
					glog.Errorf("report failed: %v", err)
				}
			}
			scanAll()

			// Debounce bursts of write events.
			var pending <-chan time.Time
			for {
				select {
				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
						pending = time.After(300 * time.Millisecond)
					}
					if ev.Op&fsnotify.Create != 0 {
						if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
							_ = watcher.Add(ev.Name)
						}
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					glog.Warningf("watch: %v", err)
				case <-pending:
					pending = nil
					scanAll()
				}
			}
		},
	}
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the registered defect rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			for _, r := range eng.Rules().Rules() {
				fmt.Printf("%-18s %-8s %s\n", r.ID, r.Severity, r.Message)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bugscan version %s\n", version)
		},
	}
}
