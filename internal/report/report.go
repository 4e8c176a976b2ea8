// Package report accumulates per-condition pipeline outcomes and keeps a
// JSONL run ledger for postmortems across runs.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// maxLedgerLineCapacity bounds the read buffer for ledger lines (1MB).
const maxLedgerLineCapacity = 1024 * 1024

// Outcome classifies how one condition finished.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Entry is one condition's result within a run.
type Entry struct {
	Condition string    `json:"condition"`
	Outcome   Outcome   `json:"outcome"`
	Stage     string    `json:"stage,omitempty"`
	Cause     string    `json:"cause,omitempty"`
	Elapsed   float64   `json:"elapsed_seconds"`
	At        time.Time `json:"at"`
}

// Report accumulates entries concurrently and summarizes the run. Safe for
// use from multiple goroutines.
type Report struct {
	mu      sync.Mutex
	entries []Entry
	started time.Time
}

// New creates an empty report starting now.
func New() *Report {
	return &Report{started: time.Now()}
}

// Succeeded records a successful condition.
func (r *Report) Succeeded(condition string, elapsed time.Duration) {
	r.add(Entry{Condition: condition, Outcome: OutcomeSucceeded, Elapsed: elapsed.Seconds()})
}

// Skipped records a condition whose valid article already existed.
func (r *Report) Skipped(condition string) {
	r.add(Entry{Condition: condition, Outcome: OutcomeSkipped})
}

// Failed records a failed condition with the stage it died in and why.
func (r *Report) Failed(condition, stage string, cause error, elapsed time.Duration) {
	e := Entry{Condition: condition, Outcome: OutcomeFailed, Stage: stage, Elapsed: elapsed.Seconds()}
	if cause != nil {
		e.Cause = cause.Error()
	}
	r.add(e)
}

func (r *Report) add(e Entry) {
	e.At = time.Now()
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded entries sorted by condition name.
func (r *Report) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Condition < out[j].Condition })
	return out
}

// Summary is the final run tally.
type Summary struct {
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Failures  []Entry `json:"failures,omitempty"`
	Elapsed   float64 `json:"elapsed_seconds"`
}

// Summarize tallies the recorded entries.
func (r *Report) Summarize() Summary {
	s := Summary{Elapsed: time.Since(r.started).Seconds()}
	for _, e := range r.Entries() {
		switch e.Outcome {
		case OutcomeSucceeded:
			s.Succeeded++
		case OutcomeFailed:
			s.Failed++
			s.Failures = append(s.Failures, e)
		case OutcomeSkipped:
			s.Skipped++
		}
	}
	return s
}

// AppendLedger appends every entry of the report to a JSONL ledger file,
// one entry per line.
func (r *Report) AppendLedger(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening run ledger: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range r.Entries() {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding ledger entry: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing ledger entry: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing ledger entry: %w", err)
		}
	}
	return w.Flush()
}

// ReadLedger reads every entry from a JSONL ledger file. A missing file
// yields an empty slice.
func ReadLedger(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	buf := make([]byte, maxLedgerLineCapacity)
	scanner.Buffer(buf, maxLedgerLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parsing ledger line %d: %w", lineNum, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading run ledger: %w", err)
	}
	return entries, nil
}
