// Package chaos runs isolated fault-injection trials against the gate
// supervisor. Each scenario perturbs the pipeline's inputs (a
// non-canonical reason-code catalog override, missing dataset-snapshot
// inputs, a missing attestation document) and runs the real supervisor
// against an isolated non-production root, classifying the run by exit
// code: 0, 2, and 3 are all contained outcomes; anything else is a
// containment failure.
package chaos

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/ioutil"
	"github.com/marcohefti/releasegate/internal/snapshot"
	"github.com/marcohefti/releasegate/internal/supervisor"
)

// Scenario is one injectable input perturbation.
type Scenario string

const (
	// ScenarioUnknownReasonCode feeds G0 a reason-code catalog override
	// whose single code violates the canonical naming convention.
	ScenarioUnknownReasonCode Scenario = "unknown_reason_code"
	// ScenarioMissingDatasetSnapshotInput points the four dataset-snapshot
	// inputs at files that do not exist, so G3's snapshot lock cannot be
	// built.
	ScenarioMissingDatasetSnapshotInput Scenario = "missing_dataset_snapshot_input"
	// ScenarioMissingAttestation runs the gates without an attestation
	// document; G4 must fail if the earlier gates pass.
	ScenarioMissingAttestation Scenario = "missing_attestation"
)

var AllScenarios = []Scenario{
	ScenarioUnknownReasonCode,
	ScenarioMissingDatasetSnapshotInput,
	ScenarioMissingAttestation,
}

// InputOverrides carries a scenario's perturbed inputs to the caller's
// runner factory.
type InputOverrides struct {
	ReasonCodes     *codes.File      // replaces the catalog fed to G0 and the verdict registry
	SnapshotInputs  *snapshot.Inputs // replaces the dataset/features/labels/split paths G3 reads
	DropAttestation bool             // point G4 at a nonexistent attestation document
}

// Report is chaos_gate_runner_report.json's content.
type Report struct {
	Version      string            `json:"version"`
	GeneratedAt  string            `json:"generatedAt"`
	TrialID      string            `json:"trialId"`
	Scenario     Scenario          `json:"scenario"`
	IsolatedRoot string            `json:"isolatedRoot"`
	ExitCode     int               `json:"exitCode"`
	Result       string            `json:"result,omitempty"`
	Artifacts    map[string]string `json:"artifacts"`
	Contained    bool              `json:"contained"`
	Detail       string            `json:"detail,omitempty"`
}

const ReportVersion = "v1"

// RunTrial applies scenario to a fresh isolated root under parentDir and
// runs the real supervisor against it. makeRunners, when non-nil, builds
// the gate runners over the trial's run directory and the scenario's
// input overrides (the directory does not exist until RunTrial mints it);
// callers with self-contained runners may pass nil and populate
// opts.Runners directly.
func RunTrial(ctx context.Context, scenario Scenario, parentDir string, opts supervisor.Options, makeRunners func(runDir string, ov InputOverrides) map[checkpoint.Gate]supervisor.GateRunner, now time.Time) (Report, error) {
	trialID := uuid.New().String()
	isolatedRoot := filepath.Join(parentDir, trialID)
	if err := os.MkdirAll(isolatedRoot, 0o755); err != nil {
		return Report{}, fmt.Errorf("chaos: create isolated root: %w", err)
	}
	if err := os.WriteFile(filepath.Join(isolatedRoot, ".chaos_isolated"), []byte("chaos-only\n"), 0o644); err != nil {
		return Report{}, fmt.Errorf("chaos: write isolation marker: %w", err)
	}

	opts.OutputRoot = filepath.Join(isolatedRoot, "runtime", "gates")
	opts.RunDir = filepath.Join(opts.OutputRoot, opts.RunID)
	opts.HistoryPath = ""

	artifacts := map[string]string{}
	var ov InputOverrides

	switch scenario {
	case ScenarioUnknownReasonCode:
		override := reasonCodesOverride()
		overridePath := filepath.Join(isolatedRoot, "reason_codes_override.json")
		if err := ioutil.WriteJSONAtomic(overridePath, override); err != nil {
			return Report{}, fmt.Errorf("chaos: write reason-codes override: %w", err)
		}
		opts.ReasonCodes = override
		ov.ReasonCodes = &override
		artifacts["reasonCodesOverride"] = overridePath
	case ScenarioMissingDatasetSnapshotInput:
		ov.SnapshotInputs = &snapshot.Inputs{
			DatasetPath:  filepath.Join(isolatedRoot, "missing_dataset.json"),
			FeaturesPath: filepath.Join(isolatedRoot, "missing_features.json"),
			LabelsPath:   filepath.Join(isolatedRoot, "missing_labels.json"),
			SplitPath:    filepath.Join(isolatedRoot, "missing_split.json"),
		}
	case ScenarioMissingAttestation:
		ov.DropAttestation = true
	default:
		return Report{}, fmt.Errorf("chaos: unknown scenario %q", scenario)
	}

	if makeRunners != nil {
		opts.Runners = makeRunners(opts.RunDir, ov)
	}
	if opts.Runners == nil {
		opts.Runners = map[checkpoint.Gate]supervisor.GateRunner{}
	}

	res, runErr := supervisor.Run(ctx, opts)

	report := Report{
		Version:      ReportVersion,
		GeneratedAt:  now.UTC().Format(time.RFC3339Nano),
		TrialID:      trialID,
		Scenario:     scenario,
		IsolatedRoot: isolatedRoot,
		Artifacts:    artifacts,
	}
	if runErr != nil {
		report.ExitCode = 3
		report.Detail = runErr.Error()
	} else {
		report.ExitCode = res.Verdict.ExitCode()
		report.Result = string(res.Verdict.Result)
	}
	// Exit codes 0/2/3 are contained: the pipeline classified the
	// perturbation instead of failing in an unexpected way.
	report.Contained = report.ExitCode == 0 || report.ExitCode == 2 || report.ExitCode == 3

	reportPath := filepath.Join(isolatedRoot, "chaos_gate_runner_report.json")
	if err := ioutil.WriteJSONAtomic(reportPath, report); err != nil {
		return report, fmt.Errorf("chaos: write report: %w", err)
	}
	return report, nil
}

// reasonCodesOverride is a catalog whose single code breaks the canonical
// ^(HARD|WARN|INFO)_ naming convention, so G0's lint must reject it.
func reasonCodesOverride() codes.File {
	return codes.File{
		Codes: []codes.ReasonCode{
			{
				Code:         "BAD_REASON_CODE",
				Severity:     codes.SeverityHard,
				HardGate:     true,
				Descriptions: []string{"chaos invalid code"},
			},
		},
	}
}
