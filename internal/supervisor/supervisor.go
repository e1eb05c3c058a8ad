// Package supervisor implements the gate supervisor:
// sequential G0..G4 execution with per-gate retry/timeout, checkpoint
// persistence, runner-guard gating, and the final verdict/run-summary
// writes. The run directory is locked for the duration; on-disk attempt
// records are replayed before re-executing so a resumed invocation never
// contradicts what a prior one recorded.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcohefti/releasegate/internal/canon"
	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/gates"
	"github.com/marcohefti/releasegate/internal/guard"
	"github.com/marcohefti/releasegate/internal/ioutil"
	"github.com/marcohefti/releasegate/internal/obs"
	"github.com/marcohefti/releasegate/internal/profile"
	"github.com/marcohefti/releasegate/internal/verdict"
)

// GateRunner executes one attempt of a gate, returning its raw Outcome.
// The supervisor wraps the call with a context carrying the gate's
// per-attempt timeout; implementations that cannot honor cancellation mid
// check must at minimum observe ctx.Err() before returning.
type GateRunner func(ctx context.Context, attempt int) gates.Outcome

// Options configures one supervised run.
type Options struct {
	RunID          string
	RunDir         string
	OutputRoot     string // parent of RunDir; history and guard state live here (default: Dir(RunDir))
	HistoryPath    string // override for <OutputRoot>/history.ndjson
	ResumedFrom    string // prior runId this invocation resumes evidence from, recorded on every checkpoint
	Profile        profile.Profile
	Registry       profile.MetricRegistry
	ReasonCodes    codes.File
	GuardPolicy    profile.GuardPolicy
	SourceFallback profile.SourceFallbackPolicy
	Runners        map[checkpoint.Gate]GateRunner
	Now            func() time.Time
	Sleep          func(time.Duration)
	LockWait       time.Duration
	Metrics        *obs.Collector
}

// Result is one run's terminal outcome.
type Result struct {
	Verdict     verdict.Verdict
	Checkpoints []checkpoint.Checkpoint
	GuardReport guard.Report
}

// History and guard state are shared across runs at the output root;
// each run directory also gets its own copy of the guard report
// evaluated for that run.
func guardStatePath(outputRoot string) string {
	return filepath.Join(outputRoot, "runner_guard_state.json")
}
func guardLatestReportPath(outputRoot string) string {
	return filepath.Join(outputRoot, "runner_guard_latest_report.json")
}
func guardRunReportPath(runDir string) string {
	return filepath.Join(runDir, "runner_guard_report.json")
}
func runSummaryPath(runDir string) string { return filepath.Join(runDir, "run_summary.json") }

// Run executes the full G0->G4 pipeline under a directory lock on runDir.
// One process owns one runId; the lock enforces that convention.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = obs.New()
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = filepath.Dir(opts.RunDir)
	}
	if opts.HistoryPath == "" {
		opts.HistoryPath = filepath.Join(opts.OutputRoot, "history.ndjson")
	}

	if err := os.MkdirAll(opts.RunDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("supervisor: create run dir: %w", err)
	}

	var out Result
	lockDir := filepath.Join(opts.RunDir, ".lock")
	err := ioutil.WithDirLock(lockDir, opts.LockWait, func() error {
		res, err := runLocked(ctx, opts)
		if err == nil {
			out = res
		}
		return err
	})
	return out, err
}

func runLocked(ctx context.Context, opts Options) (Result, error) {
	profileHash, err := opts.Profile.Hash()
	if err != nil {
		return Result{}, fmt.Errorf("supervisor: hash profile: %w", err)
	}
	thresholdsHash, err := canon.Hash(opts.Profile.Strategy)
	if err != nil {
		return Result{}, fmt.Errorf("supervisor: hash thresholds: %w", err)
	}
	statisticsLockHash, err := opts.Registry.StatisticsLockHash()
	if err != nil {
		return Result{}, fmt.Errorf("supervisor: hash statistics lock: %w", err)
	}
	registry := codes.NewRegistry(opts.ReasonCodes)

	history, err := checkpoint.ReadHistory(opts.HistoryPath)
	if err != nil {
		return Result{}, fmt.Errorf("supervisor: read history: %w", err)
	}

	var prevState guard.State
	_ = ioutil.ReadJSON(guardStatePath(opts.OutputRoot), &prevState)

	guardReport, nextGuardState := guard.Evaluate(opts.GuardPolicy, history, prevState.State, opts.Now())
	opts.Metrics.SetGuardState(guardReport.State)
	if err := ioutil.WriteJSONAtomic(guardLatestReportPath(opts.OutputRoot), guardReport); err != nil {
		return Result{}, fmt.Errorf("supervisor: write guard report: %w", err)
	}
	if err := ioutil.WriteJSONAtomic(guardRunReportPath(opts.RunDir), guardReport); err != nil {
		return Result{}, fmt.Errorf("supervisor: write guard run report: %w", err)
	}
	if err := ioutil.WriteJSONAtomic(guardStatePath(opts.OutputRoot), nextGuardState); err != nil {
		return Result{}, fmt.Errorf("supervisor: write guard state: %w", err)
	}

	var all []checkpoint.Checkpoint
	guardTripped := guard.Tripped(guardReport)
	skip := false

	for _, gate := range checkpoint.Gates {
		if skip {
			cp, err := writeSkipped(opts, gate, profileHash, thresholdsHash, statisticsLockHash)
			if err != nil {
				return Result{}, err
			}
			all = append(all, cp)
			continue
		}

		if gate == checkpoint.G0 && guardTripped {
			cp, err := writeForcedGuardFail(opts, profileHash, thresholdsHash, statisticsLockHash)
			if err != nil {
				return Result{}, err
			}
			all = append(all, cp)
			if !cp.IsTerminalPass() {
				skip = true
			}
			continue
		}

		runner, ok := opts.Runners[gate]
		if !ok {
			return Result{}, fmt.Errorf("supervisor: no runner registered for gate %s", gate)
		}

		cp, err := runGateWithRetry(ctx, opts, gate, runner, profileHash, thresholdsHash, statisticsLockHash)
		if err != nil {
			return Result{}, err
		}
		all = append(all, cp)
		if !cp.IsTerminalPass() {
			skip = true
		}
	}

	if err := checkpoint.WriteGateCheckpoints(opts.RunDir, all); err != nil {
		return Result{}, fmt.Errorf("supervisor: write gate checkpoints: %w", err)
	}

	v := verdict.Derive(opts.RunID, all, opts.Profile, opts.SourceFallback, registry, opts.Now())
	if err := ioutil.WriteJSONAtomic(filepath.Join(opts.RunDir, "verdict.v2.json"), v); err != nil {
		return Result{}, fmt.Errorf("supervisor: write verdict: %w", err)
	}

	metricsSnapshot, err := opts.Metrics.Gather()
	if err != nil {
		return Result{}, fmt.Errorf("supervisor: gather metrics: %w", err)
	}

	summary := map[string]any{
		"runId":       opts.RunID,
		"result":      v.Result,
		"generatedAt": v.GeneratedAt,
		"guardState":  guardReport.State,
		"checkpoints": all,
		"metrics":     metricsSnapshot,
	}
	if err := ioutil.WriteJSONAtomic(runSummaryPath(opts.RunDir), summary); err != nil {
		return Result{}, fmt.Errorf("supervisor: write run summary: %w", err)
	}

	return Result{Verdict: v, Checkpoints: all, GuardReport: guardReport}, nil
}

// runGateWithRetry drives the retry and timeout contracts for one gate: up to 1+max_attempts attempts, retrying only on a status
// in retry_on_status, sleeping interval_seconds between attempts, and
// bounding each attempt with a per-attempt context timeout.
func runGateWithRetry(ctx context.Context, opts Options, gate checkpoint.Gate, runner GateRunner, profileHash, thresholdsHash, statisticsLockHash string) (checkpoint.Checkpoint, error) {
	retry := opts.Profile.RetryFor(string(gate))
	maxAttempts := 1 + retry.MaxAttempts
	timeoutMin := opts.Profile.TimeoutFor(string(gate))

	var last checkpoint.Checkpoint
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cp, err := runOneAttempt(ctx, opts, gate, runner, attempt, profileHash, thresholdsHash, statisticsLockHash, timeoutMin)
		if err != nil {
			return checkpoint.Checkpoint{}, err
		}
		last = cp
		if cp.Status == checkpoint.StatusPass {
			return last, nil
		}
		if !opts.Profile.ShouldRetryOn(string(cp.Status)) || attempt == maxAttempts {
			return last, nil
		}
		if retry.IntervalSeconds > 0 {
			opts.Sleep(time.Duration(retry.IntervalSeconds) * time.Second)
		}
	}
	return last, nil
}

func runOneAttempt(ctx context.Context, opts Options, gate checkpoint.Gate, runner GateRunner, attempt int, profileHash, thresholdsHash, statisticsLockHash string, timeoutMin int) (checkpoint.Checkpoint, error) {
	idempotencyKey, err := checkpoint.IdempotencyKey(opts.RunID, gate, attempt, profileHash)
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: idempotency key: %w", err)
	}

	// Re-running the same (runId, gate, attempt) reuses the recorded
	// checkpoint instead of re-executing, so a resumed invocation never
	// emits a contradictory record against the write-once attempt file.
	if prior, ok := priorAttempt(opts.RunDir, gate, attempt, idempotencyKey); ok {
		return prior, nil
	}

	opts.Metrics.ObserveAttempt(gate, attempt)

	startedAt := opts.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMin)*time.Minute)
	defer cancel()

	done := make(chan gates.Outcome, 1)
	go func() {
		// A panicking runner is recorded as a tool_error attempt instead of
		// taking the process down.
		defer func() {
			if r := recover(); r != nil {
				done <- gates.Outcome{
					Status:         checkpoint.StatusToolError,
					ReasonCodes:    []string{codes.ReasonHardGateCheckFailed},
					BlockingIssues: []string{fmt.Sprintf("%s panicked: %v", gate, r)},
				}
			}
		}()
		done <- runner(attemptCtx, attempt)
	}()

	var outcome gates.Outcome
	select {
	case outcome = <-done:
	case <-attemptCtx.Done():
		opts.Metrics.ObserveTimeout(gate)
		outcome = gates.Outcome{
			Status:         checkpoint.StatusToolError,
			ReasonCodes:    []string{codes.ReasonHardGateCheckFailed},
			BlockingIssues: []string{fmt.Sprintf("%s timeout exceeded: %dm", gate, timeoutMin)},
		}
	}
	opts.Metrics.ObserveStatus(gate, outcome.Status)

	var details json.RawMessage
	if len(outcome.Details) > 0 {
		if raw, err := canon.JSON(outcome.Details); err == nil {
			details = raw
		}
	}

	endedAt := opts.Now()
	cp := checkpoint.Checkpoint{
		Version:             checkpoint.SchemaV1,
		Gate:                gate,
		RunID:               opts.RunID,
		Attempt:             attempt,
		IdempotencyKey:      idempotencyKey,
		ResumedFrom:         opts.ResumedFrom,
		Status:              outcome.Status,
		ReasonCodes:         orEmpty(codes.Dedupe(outcome.ReasonCodes)),
		BlockingIssues:      orEmpty(outcome.BlockingIssues),
		StartedAt:           startedAt.Format(time.RFC3339Nano),
		EndedAt:             endedAt.Format(time.RFC3339Nano),
		DurationMs:          endedAt.Sub(startedAt).Milliseconds(),
		ProfileHash:         profileHash,
		ThresholdsHash:      thresholdsHash,
		StatisticsLockHash:  statisticsLockHash,
		RegistryVersion:     opts.Registry.RegistryVersion,
		MetricVersions:      opts.Registry.MetricVersions,
		DatasetSnapshotHash: outcome.DatasetSnapshotHash,
		DecisionWeight:      opts.Profile.Decision.Weight(),
		Attestation:         outcome.Attestation,
		Details:             details,
	}

	if err := checkpoint.WriteAttempt(opts.RunDir, cp); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: write attempt checkpoint: %w", err)
	}
	if err := appendHistory(opts, cp); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: append history: %w", err)
	}
	return cp, nil
}

// orEmpty keeps reasonCodes/blockingIssues serializing as [] rather than
// null when a gate reports nothing.
func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// appendHistory appends cp to the shared history NDJSON under a short
// directory lock, since independent runners may share an output-root.
func appendHistory(opts Options, cp checkpoint.Checkpoint) error {
	lockDir := opts.HistoryPath + ".lock"
	return ioutil.WithDirLock(lockDir, opts.LockWait, func() error {
		return checkpoint.AppendHistory(opts.HistoryPath, cp)
	})
}

// priorAttempt loads an already-recorded checkpoint for (gate, attempt) if
// its idempotency key matches this run's. A file with a different key (or
// unreadable content) is left for WriteAttempt to reject loudly.
func priorAttempt(runDir string, gate checkpoint.Gate, attempt int, idempotencyKey string) (checkpoint.Checkpoint, bool) {
	var prior checkpoint.Checkpoint
	if err := ioutil.ReadJSON(checkpoint.AttemptPath(runDir, gate, attempt), &prior); err != nil {
		return checkpoint.Checkpoint{}, false
	}
	return prior, prior.IdempotencyKey == idempotencyKey
}

// writeSkipped emits the synthetic skipped checkpoint recorded for
// every gate after the first non-pass terminal status.
func writeSkipped(opts Options, gate checkpoint.Gate, profileHash, thresholdsHash, statisticsLockHash string) (checkpoint.Checkpoint, error) {
	now := opts.Now().Format(time.RFC3339Nano)
	idempotencyKey, err := checkpoint.IdempotencyKey(opts.RunID, gate, 1, profileHash)
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: idempotency key: %w", err)
	}
	if prior, ok := priorAttempt(opts.RunDir, gate, 1, idempotencyKey); ok {
		return prior, nil
	}
	cp := checkpoint.Checkpoint{
		Version:            checkpoint.SchemaV1,
		Gate:               gate,
		RunID:              opts.RunID,
		Attempt:            1,
		IdempotencyKey:     idempotencyKey,
		ResumedFrom:        opts.ResumedFrom,
		Status:             checkpoint.StatusSkipped,
		ReasonCodes:        []string{},
		BlockingIssues:     []string{"skipped because previous gate failed"},
		DecisionWeight:     opts.Profile.Decision.Weight(),
		StartedAt:          now,
		EndedAt:            now,
		ProfileHash:        profileHash,
		ThresholdsHash:     thresholdsHash,
		StatisticsLockHash: statisticsLockHash,
		RegistryVersion:    opts.Registry.RegistryVersion,
		MetricVersions:     opts.Registry.MetricVersions,
	}
	if err := checkpoint.WriteAttempt(opts.RunDir, cp); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: write skipped checkpoint: %w", err)
	}
	if err := appendHistory(opts, cp); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: append history: %w", err)
	}
	return cp, nil
}

// writeForcedGuardFail records the runner-guard gating outcome: an open
// breaker (outside learning mode) forces G0 to policy_fail without
// executing it.
func writeForcedGuardFail(opts Options, profileHash, thresholdsHash, statisticsLockHash string) (checkpoint.Checkpoint, error) {
	now := opts.Now().Format(time.RFC3339Nano)
	idempotencyKey, err := checkpoint.IdempotencyKey(opts.RunID, checkpoint.G0, 1, profileHash)
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: idempotency key: %w", err)
	}
	if prior, ok := priorAttempt(opts.RunDir, checkpoint.G0, 1, idempotencyKey); ok {
		return prior, nil
	}
	cp := checkpoint.Checkpoint{
		Version:            checkpoint.SchemaV1,
		Gate:               checkpoint.G0,
		RunID:              opts.RunID,
		Attempt:            1,
		IdempotencyKey:     idempotencyKey,
		ResumedFrom:        opts.ResumedFrom,
		Status:             checkpoint.StatusPolicyFail,
		ReasonCodes:        []string{codes.ReasonGateRunnerSelfHealth},
		BlockingIssues:     []string{"runner guard open: blocking G0"},
		DecisionWeight:     opts.Profile.Decision.Weight(),
		StartedAt:          now,
		EndedAt:            now,
		ProfileHash:        profileHash,
		ThresholdsHash:     thresholdsHash,
		StatisticsLockHash: statisticsLockHash,
		RegistryVersion:    opts.Registry.RegistryVersion,
		MetricVersions:     opts.Registry.MetricVersions,
	}
	if err := checkpoint.WriteAttempt(opts.RunDir, cp); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: write guard-fail checkpoint: %w", err)
	}
	if err := appendHistory(opts, cp); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("supervisor: append history: %w", err)
	}
	return cp, nil
}
