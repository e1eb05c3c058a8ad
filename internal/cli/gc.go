package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcohefti/releasegate/internal/gc"
)

func newGCCmd(now func() time.Time, stdout io.Writer) *cobra.Command {
	var (
		outputRoot    string
		maxAgeDays    int
		maxTotalBytes int64
		dryRun        bool
	)
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "reclaim disk under output-root by deleting old run directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := gc.Run(gc.Opts{
				OutputRoot:    outputRoot,
				Now:           now(),
				MaxAgeDays:    maxAgeDays,
				MaxTotalBytes: maxTotalBytes,
				DryRun:        dryRun,
			})
			if err != nil {
				return newToolError("tool_error", err.Error(), outputRoot)
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return newToolError("tool_error", encErr.Error(), "")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outputRoot, "output-root", defaultOutputRoot, "directory every runId's artifacts are written under")
	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "delete run directories older than this many days (0 disables)")
	cmd.Flags().Int64Var(&maxTotalBytes, "max-total-bytes", 0, "delete the oldest run directories until output-root is under this size (0 disables)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting anything")
	return cmd
}
