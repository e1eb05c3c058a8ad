// Package gc is the release-gate run-directory garbage collector: an
// ambient operational command that reclaims disk under output-root by
// age and by a total-size cap, one directory per runId.
package gc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// RunInfo describes one run directory under output-root.
type RunInfo struct {
	RunID     string    `json:"runId"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
	Bytes     int64     `json:"bytes"`
}

// Result is gc's report of what it deleted and kept.
type Result struct {
	OK          bool      `json:"ok"`
	OutputRoot  string    `json:"outputRoot"`
	DryRun      bool      `json:"dryRun"`
	Deleted     []RunInfo `json:"deleted,omitempty"`
	Kept        []RunInfo `json:"kept,omitempty"`
	TotalBefore int64     `json:"totalBeforeBytes"`
	TotalAfter  int64     `json:"totalAfterBytes"`
}

// Opts configures one gc pass.
type Opts struct {
	OutputRoot    string
	Now           time.Time
	MaxAgeDays    int
	MaxTotalBytes int64
	DryRun        bool
}

type runSummary struct {
	RunID       string `json:"runId"`
	GeneratedAt string `json:"generatedAt"`
}

// Run scans outputRoot/<runId>/run_summary.json directories and deletes
// runs older than MaxAgeDays and/or the oldest runs beyond MaxTotalBytes,
// oldest first. Both thresholds are optional; zero disables that rule.
func Run(opts Opts) (Result, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entries, err := os.ReadDir(opts.OutputRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{OK: true, OutputRoot: opts.OutputRoot, DryRun: opts.DryRun}, nil
		}
		return Result{}, err
	}

	var runs []RunInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		runDir := filepath.Join(opts.OutputRoot, e.Name())
		raw, err := os.ReadFile(filepath.Join(runDir, "run_summary.json"))
		if err != nil {
			continue
		}
		var s runSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339Nano, s.GeneratedAt)
		if err != nil {
			createdAt, _ = time.Parse(time.RFC3339, s.GeneratedAt)
		}
		size, _ := dirSize(runDir)
		runs = append(runs, RunInfo{RunID: e.Name(), Path: runDir, CreatedAt: createdAt, Bytes: size})
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	var total int64
	for _, r := range runs {
		total += r.Bytes
	}
	res := Result{OK: true, OutputRoot: opts.OutputRoot, DryRun: opts.DryRun, TotalBefore: total, TotalAfter: total}

	shouldDelete := make(map[string]bool)
	if opts.MaxAgeDays > 0 {
		cutoff := now.Add(-time.Duration(opts.MaxAgeDays) * 24 * time.Hour)
		for _, r := range runs {
			if !r.CreatedAt.IsZero() && r.CreatedAt.Before(cutoff) {
				shouldDelete[r.RunID] = true
			}
		}
	}

	if opts.MaxTotalBytes > 0 && total > opts.MaxTotalBytes {
		remaining := total
		for _, r := range runs {
			if remaining <= opts.MaxTotalBytes {
				break
			}
			if shouldDelete[r.RunID] {
				continue
			}
			shouldDelete[r.RunID] = true
			remaining -= r.Bytes
		}
	}

	for _, r := range runs {
		if shouldDelete[r.RunID] {
			res.Deleted = append(res.Deleted, r)
			res.TotalAfter -= r.Bytes
			if !opts.DryRun {
				_ = os.RemoveAll(r.Path)
			}
		} else {
			res.Kept = append(res.Kept, r)
		}
	}
	return res, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
