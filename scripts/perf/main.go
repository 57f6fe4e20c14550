// SPDX-License-Identifier: MIT

// Command perf runs the repomon benchmarks and appends the results to a
// JSON-lines history, printing the change against the previous run.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/pflag"

	"github.com/skaphos/repomon/internal/strutil"
	"github.com/skaphos/repomon/internal/tableutil"
)

type benchResult struct {
	NsPerOp     float64 `json:"ns_per_op"`
	BytesPerOp  float64 `json:"b_per_op,omitempty"`
	AllocsPerOp float64 `json:"allocs_per_op,omitempty"`
}

type benchRecord struct {
	Timestamp string                 `json:"timestamp"`
	Commit    string                 `json:"commit"`
	GoVersion string                 `json:"go_version"`
	Packages  []string               `json:"packages"`
	Pattern   string                 `json:"pattern"`
	Benchtime string                 `json:"benchtime"`
	Count     int                    `json:"count"`
	Results   map[string]benchResult `json:"results"`
}

type options struct {
	history   string
	rawDir    string
	packages  []string
	pattern   string
	benchtime string
	count     int
}

var benchLine = regexp.MustCompile(`^(Benchmark\S+)\s+\d+\s+([0-9.]+)\s+ns/op(?:\s+([0-9.]+)\s+B/op\s+([0-9.]+)\s+allocs/op)?`)

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseOptions(args []string) (options, error) {
	flags := pflag.NewFlagSet("perf", pflag.ContinueOnError)
	history := flags.String("history", "perf/history.jsonl", "benchmark history file (JSON lines)")
	rawDir := flags.String("raw-dir", "perf/runs", "directory for raw benchmark output")
	packages := flags.String("packages", "./internal/engine,./internal/gitx", "comma-separated packages to benchmark")
	pattern := flags.String("bench", ".", "go test -bench pattern")
	benchtime := flags.String("benchtime", "1x", "go test -benchtime value")
	count := flags.Int("count", 5, "go test -count value")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	opts := options{
		history:   *history,
		rawDir:    *rawDir,
		packages:  strutil.SplitCSV(*packages),
		pattern:   *pattern,
		benchtime: *benchtime,
		count:     *count,
	}
	if len(opts.packages) == 0 {
		return opts, errors.New("no benchmark packages given")
	}
	if opts.count < 1 {
		return opts, errors.New("--count must be at least 1")
	}
	return opts, nil
}

func run(opts options, out io.Writer) error {
	raw, err := runBenchmarks(opts)
	if err != nil {
		return err
	}
	results, err := parseResults(raw)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	record := benchRecord{
		Timestamp: now.Format(time.RFC3339),
		Commit:    headCommit("."),
		GoVersion: runtime.Version(),
		Packages:  opts.packages,
		Pattern:   opts.pattern,
		Benchtime: opts.benchtime,
		Count:     opts.count,
		Results:   results,
	}

	if err := os.MkdirAll(opts.rawDir, 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}
	rawFile := filepath.Join(opts.rawDir, now.Format("20060102T150405Z")+".txt")
	if err := os.WriteFile(rawFile, []byte(raw), 0o644); err != nil {
		return fmt.Errorf("write raw output: %w", err)
	}
	previous, _ := lastRecord(opts.history)
	if err := appendRecord(opts.history, record); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	fmt.Fprintf(out, "raw output: %s\nhistory: %s\n", rawFile, opts.history)
	return writeSummary(out, record, previous)
}

func runBenchmarks(opts options) (string, error) {
	args := []string{
		"test",
		"-run=^$",
		"-bench=" + opts.pattern,
		"-benchmem",
		"-benchtime=" + opts.benchtime,
		"-count=" + strconv.Itoa(opts.count),
	}
	cmd := exec.Command("go", append(args, opts.packages...)...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("go test failed: %w\n%s", err, output.String())
	}
	return output.String(), nil
}

// parseResults keeps the last sample of each benchmark.
func parseResults(raw string) (map[string]benchResult, error) {
	results := make(map[string]benchResult)
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		match := benchLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if match == nil {
			continue
		}
		result := benchResult{NsPerOp: parseFloat(match[2])}
		if match[3] != "" {
			result.BytesPerOp = parseFloat(match[3])
			result.AllocsPerOp = parseFloat(match[4])
		}
		results[match[1]] = result
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.New("no benchmark results in go test output")
	}
	return results, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

// headCommit returns the abbreviated HEAD commit of the repository containing
// dir, or "unknown".
func headCommit(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "unknown"
	}
	head, err := repo.Head()
	if err != nil {
		return "unknown"
	}
	return head.Hash().String()[:7]
}

func appendRecord(path string, record benchRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(record); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func lastRecord(path string) (*benchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var last *benchRecord
	dec := json.NewDecoder(f)
	for {
		var record benchRecord
		if err := dec.Decode(&record); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}
		last = &record
	}
	if last == nil {
		return nil, errors.New("history is empty")
	}
	return last, nil
}

func writeSummary(out io.Writer, current benchRecord, previous *benchRecord) error {
	names := make([]string, 0, len(current.Results))
	for name := range current.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tableutil.New(out, false)
	if err := tableutil.PrintHeaders(w, false, "BENCHMARK\tNS/OP\tDELTA"); err != nil {
		return err
	}
	for _, name := range names {
		ns := current.Results[name].NsPerOp
		delta := "-"
		if previous != nil {
			if prev, ok := previous.Results[name]; ok && prev.NsPerOp > 0 {
				delta = fmt.Sprintf("%+.2f%%", (ns-prev.NsPerOp)/prev.NsPerOp*100)
			}
		}
		if _, err := fmt.Fprintf(w, "%s\t%.2f\t%s\n", name, ns, delta); err != nil {
			return err
		}
	}
	return w.Flush()
}
