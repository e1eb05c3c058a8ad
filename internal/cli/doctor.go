package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcohefti/releasegate/internal/doctor"
)

func newDoctorCmd(now func() time.Time, stdout io.Writer) *cobra.Command {
	f := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "run G0's environment checks standalone, without a full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInputs(f)
			if err != nil {
				return err
			}
			res := doctor.Run(cmd.Context(), f.repoRoot, in.profile, in.reasonCodes)
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return newToolError("tool_error", encErr.Error(), "")
			}
			if !res.OK {
				return newToolError("policy_fail", "one or more doctor checks failed", "")
			}
			return nil
		},
	}
	addWellKnownInputFlags(cmd, f)
	return cmd
}
