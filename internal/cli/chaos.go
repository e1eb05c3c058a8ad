package cli

import (
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcohefti/releasegate/internal/chaos"
	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/supervisor"
)

func newChaosCmd(now func() time.Time, stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "chaos",
		Short: "isolated chaos scenarios against the gate supervisor",
	}
	root.AddCommand(newChaosTrialCmd(now, stdout))
	return root
}

func newChaosTrialCmd(now func() time.Time, stdout io.Writer) *cobra.Command {
	f := &pipelineFlags{}
	var parentDir, scenario string
	cmd := &cobra.Command{
		Use:   "trial",
		Short: "run one chaos scenario in an isolated directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInputs(f)
			if err != nil {
				return err
			}
			runID := f.runID
			if runID == "" {
				runID = "chaos-trial"
			}
			opts := supervisor.Options{
				RunID:          runID,
				Profile:        in.profile,
				Registry:       in.registry,
				ReasonCodes:    in.reasonCodes,
				GuardPolicy:    in.guardPolicy,
				SourceFallback: in.sourceFallback,
				Now:            now,
			}
			// Rebind the evidence paths the scenario perturbs before
			// constructing the gate runners.
			makeRunners := func(runDir string, ov chaos.InputOverrides) map[checkpoint.Gate]supervisor.GateRunner {
				g := *f
				if ov.SnapshotInputs != nil {
					g.datasetPath = ov.SnapshotInputs.DatasetPath
					g.featuresPath = ov.SnapshotInputs.FeaturesPath
					g.labelsPath = ov.SnapshotInputs.LabelsPath
					g.splitPath = ov.SnapshotInputs.SplitPath
				}
				if ov.DropAttestation {
					g.attestationPath = filepath.Join(runDir, "missing_attestation.json")
				}
				inputs := in
				if ov.ReasonCodes != nil {
					inputs.reasonCodes = *ov.ReasonCodes
				}
				return buildGateRunners(&g, runID, runDir, inputs, now)
			}
			report, runErr := chaos.RunTrial(cmd.Context(), chaos.Scenario(scenario), parentDir, opts, makeRunners, now())
			if runErr != nil {
				return newToolError("tool_error", runErr.Error(), parentDir)
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	addWellKnownInputFlags(cmd, f)
	cmd.Flags().StringVar(&f.runID, "run-id", "", "runId recorded on the trial's checkpoints (default: chaos-trial)")
	cmd.Flags().StringVar(&parentDir, "parent-dir", "out/chaos", "directory a fresh isolated trial root is created under")
	cmd.Flags().StringVar(&scenario, "scenario", string(chaos.ScenarioUnknownReasonCode), "chaos scenario: unknown_reason_code, missing_dataset_snapshot_input, missing_attestation")
	return cmd
}
