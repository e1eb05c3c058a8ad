package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcohefti/releasegate/internal/statemachine"
)

func newReplayCmd(now func() time.Time, stdout io.Writer, exitCode *int) *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "replay a state-transition log and report any disallowed transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logPath == "" {
				return newToolError("tool_error", "--log is required", "")
			}
			report, err := statemachine.Replay(logPath, now())
			if err != nil {
				return newToolError("tool_error", err.Error(), logPath)
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(report); encErr != nil {
				return newToolError("tool_error", encErr.Error(), "")
			}
			if !report.Valid {
				*exitCode = 2
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "NDJSON state-transition log path")
	return cmd
}
