package chaos

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/gates"
	"github.com/marcohefti/releasegate/internal/profile"
	"github.com/marcohefti/releasegate/internal/supervisor"
)

func boolPtr(b bool) *bool { return &b }

func validCatalog() codes.File {
	return codes.File{Codes: []codes.ReasonCode{
		{Code: codes.ReasonUnknown, Severity: codes.SeverityHard, HardGate: true},
		{Code: codes.ReasonHardGateCheckFailed, Severity: codes.SeverityHard, HardGate: true},
		{Code: codes.ReasonDatasetSnapshotDrift, Severity: codes.SeverityHard, HardGate: true},
		{Code: codes.ReasonStressMetricUndefined, Severity: codes.SeverityHard, HardGate: true},
	}}
}

func baseTrialOpts(t *testing.T) supervisor.Options {
	t.Helper()
	return supervisor.Options{
		RunID:       "run-chaos",
		Profile:     profile.Profile{ValidationMode: profile.ValidationTolerant},
		Registry:    profile.MetricRegistry{RegistryVersion: "v1"},
		ReasonCodes: validCatalog(),
		GuardPolicy: profile.GuardPolicy{Mode: profile.GuardModeLearning},
		Now:         func() time.Time { return time.Unix(0, 0) },
		Sleep:       func(time.Duration) {},
	}
}

// trialRunners builds the real G0/G3/G4 gate checks over the scenario's
// input overrides, with the remaining gates stubbed to pass: same gate
// runner, perturbed inputs.
func trialRunners(t *testing.T, repoRoot string) func(runDir string, ov InputOverrides) map[checkpoint.Gate]supervisor.GateRunner {
	t.Helper()
	return func(runDir string, ov InputOverrides) map[checkpoint.Gate]supervisor.GateRunner {
		out := map[checkpoint.Gate]supervisor.GateRunner{}
		for _, g := range checkpoint.Gates {
			out[g] = func(ctx context.Context, attempt int) gates.Outcome {
				return gates.Outcome{Status: checkpoint.StatusPass}
			}
		}

		lintOnly := profile.Profile{G0: profile.G0Config{
			RequireReasonCodeLint:      boolPtr(true),
			RequireCommandAvailability: boolPtr(false),
			RequireClockDrift:          boolPtr(false),
			RequireSecretsHygiene:      boolPtr(false),
		}}
		out[checkpoint.G0] = func(ctx context.Context, attempt int) gates.Outcome {
			catalog := validCatalog()
			if ov.ReasonCodes != nil {
				catalog = *ov.ReasonCodes
			}
			return gates.RunG0(ctx, repoRoot, lintOnly, catalog)
		}

		if ov.SnapshotInputs != nil {
			out[checkpoint.G3] = func(ctx context.Context, attempt int) gates.Outcome {
				return gates.RunG3(gates.G3Inputs{
					RunID:        "run-chaos",
					RunDir:       runDir,
					Profile:      profile.Profile{ValidationMode: profile.ValidationTolerant},
					DatasetPath:  ov.SnapshotInputs.DatasetPath,
					FeaturesPath: ov.SnapshotInputs.FeaturesPath,
					LabelsPath:   ov.SnapshotInputs.LabelsPath,
					SplitPath:    ov.SnapshotInputs.SplitPath,
				}, time.Unix(0, 0))
			}
		}

		if ov.DropAttestation {
			out[checkpoint.G4] = func(ctx context.Context, attempt int) gates.Outcome {
				return gates.RunG4(gates.G4Inputs{
					AttestationPath: filepath.Join(runDir, "missing_attestation.json"),
					Owners: profile.OwnersFile{Owners: []profile.Owner{
						{ID: "alice", Active: true},
						{ID: "bob", Active: true},
					}},
				})
			}
		}
		return out
	}
}

func TestRunTrialUnknownReasonCodeFailsG0Lint(t *testing.T) {
	repoRoot := t.TempDir()
	report, err := RunTrial(context.Background(), ScenarioUnknownReasonCode, t.TempDir(), baseTrialOpts(t), trialRunners(t, repoRoot), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("RunTrial: %v", err)
	}
	if report.Scenario != ScenarioUnknownReasonCode {
		t.Fatalf("scenario = %q", report.Scenario)
	}
	if report.ExitCode != 2 || !report.Contained {
		t.Fatalf("report = %+v, want a contained exit-2 failure from the non-canonical catalog", report)
	}
	overridePath := report.Artifacts["reasonCodesOverride"]
	if overridePath == "" {
		t.Fatalf("expected a reasonCodesOverride artifact, got %v", report.Artifacts)
	}
	if _, err := os.Stat(overridePath); err != nil {
		t.Fatalf("override catalog not written: %v", err)
	}
}

func TestRunTrialMissingDatasetSnapshotInputFailsG3(t *testing.T) {
	repoRoot := t.TempDir()
	report, err := RunTrial(context.Background(), ScenarioMissingDatasetSnapshotInput, t.TempDir(), baseTrialOpts(t), trialRunners(t, repoRoot), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("RunTrial: %v", err)
	}
	if report.ExitCode != 2 || !report.Contained {
		t.Fatalf("report = %+v, want a contained exit-2 failure from the missing snapshot inputs", report)
	}
	if report.Result != "NO_GO" {
		t.Fatalf("result = %q, want NO_GO", report.Result)
	}
}

func TestRunTrialMissingAttestationFailsG4(t *testing.T) {
	repoRoot := t.TempDir()
	report, err := RunTrial(context.Background(), ScenarioMissingAttestation, t.TempDir(), baseTrialOpts(t), trialRunners(t, repoRoot), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("RunTrial: %v", err)
	}
	if report.ExitCode != 2 || !report.Contained {
		t.Fatalf("report = %+v, want a contained exit-2 failure from the missing attestation", report)
	}
	if report.TrialID == "" {
		t.Fatalf("report should carry a trial id: %+v", report)
	}
}

func TestRunTrialRejectsUnknownScenario(t *testing.T) {
	_, err := RunTrial(context.Background(), Scenario("bogus"), t.TempDir(), baseTrialOpts(t), nil, time.Unix(0, 0))
	if err == nil {
		t.Fatal("expected an error for an unknown scenario")
	}
}
