package cli

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/gates"
	"github.com/marcohefti/releasegate/internal/ids"
	"github.com/marcohefti/releasegate/internal/ioutil"
	"github.com/marcohefti/releasegate/internal/supervisor"
)

// runResult is the single-line stdout JSON contract.
type runResult struct {
	RunID       string `json:"runId"`
	Result      string `json:"result"`
	VerdictPath string `json:"verdictPath"`
}

func newRunCmd(now func() time.Time, stdout io.Writer, exitCode *int) *cobra.Command {
	f := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the G0-G4 release-gate pipeline for one runId",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), f, now, stdout, exitCode)
		},
	}
	addRunFlags(cmd, f)
	return cmd
}

func runPipeline(ctx context.Context, f *pipelineFlags, now func() time.Time, stdout io.Writer, exitCode *int) error {
	in, err := loadInputs(f)
	if err != nil {
		return err
	}

	runID := f.runID
	if runID == "" {
		runID, err = ids.NewRunID(now())
		if err != nil {
			return newToolError("tool_error", err.Error(), "")
		}
	} else if !ids.IsValidRunID(runID) {
		return newToolError("tool_error", "--run-id does not match the minted runId format", runID)
	}

	if f.resumedFromRunID != "" && !ids.IsValidRunID(f.resumedFromRunID) {
		return newToolError("tool_error", "--resumed-from-run-id does not match the minted runId format", f.resumedFromRunID)
	}

	runDir := filepath.Join(f.outputRoot, runID)

	opts := supervisor.Options{
		RunID:          runID,
		RunDir:         runDir,
		OutputRoot:     f.outputRoot,
		HistoryPath:    f.historyPath,
		ResumedFrom:    f.resumedFromRunID,
		Profile:        in.profile,
		Registry:       in.registry,
		ReasonCodes:    in.reasonCodes,
		GuardPolicy:    in.guardPolicy,
		SourceFallback: in.sourceFallback,
		Now:            now,
		Runners:        buildGateRunners(f, runID, runDir, in, now),
	}

	res, err := supervisor.Run(ctx, opts)
	if err != nil {
		return newToolError("tool_error", err.Error(), runDir)
	}

	verdictPath := f.verdictOutputPath
	if verdictPath == "" {
		verdictPath = filepath.Join(runDir, "verdict.v2.json")
	} else if verdictPath != filepath.Join(runDir, "verdict.v2.json") {
		if writeErr := ioutil.WriteJSONAtomic(verdictPath, res.Verdict); writeErr != nil {
			return newToolError("tool_error", writeErr.Error(), verdictPath)
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(runResult{RunID: runID, Result: string(res.Verdict.Result), VerdictPath: verdictPath}); err != nil {
		return newToolError("tool_error", err.Error(), "")
	}

	*exitCode = res.Verdict.ExitCode()
	return nil
}

// buildGateRunners binds each pipeline gate to its supervisor.GateRunner
// closure over the CLI's loaded inputs.
func buildGateRunners(f *pipelineFlags, runID, runDir string, in loadedInputs, now func() time.Time) map[checkpoint.Gate]supervisor.GateRunner {
	return map[checkpoint.Gate]supervisor.GateRunner{
		checkpoint.G0: func(ctx context.Context, attempt int) gates.Outcome {
			return gates.RunG0(ctx, f.repoRoot, in.profile, in.reasonCodes)
		},
		checkpoint.G1: func(ctx context.Context, attempt int) gates.Outcome {
			return gates.RunG1(in.profile.G1,
				environmentLockVerifier(runDir, f.environmentLockPath),
				freezeManifestVerifier(runDir, f.freezeManifestPath),
				postPullSyncRunner(runDir))
		},
		checkpoint.G2: func(ctx context.Context, attempt int) gates.Outcome {
			return gates.RunG2(f.researchCardsPath, in.profile.Research)
		},
		checkpoint.G3: func(ctx context.Context, attempt int) gates.Outcome {
			return gates.RunG3(gates.G3Inputs{
				RunID:               runID,
				RunDir:              runDir,
				Profile:             in.profile,
				Registry:            in.registry,
				StrategyMetricsPath: f.strategyMetricsPath,
				AdmissionReportPath: f.admissionReportPath,
				ExternalReportPath:  f.externalReportPath,
				HealthReportPath:    f.healthReportPath,
				BudgetUsagePath:     f.budgetUsagePath,
				DatasetPath:         f.datasetPath,
				FeaturesPath:        f.featuresPath,
				LabelsPath:          f.labelsPath,
				SplitPath:           f.splitPath,
			}, now())
		},
		checkpoint.G4: func(ctx context.Context, attempt int) gates.Outcome {
			return gates.RunG4(gates.G4Inputs{
				AttestationPath:      f.attestationPath,
				Owners:               in.owners,
				SourceFallbackPolicy: in.sourceFallback,
			})
		},
	}
}
