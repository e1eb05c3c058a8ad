package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcohefti/releasegate/internal/migrate"
)

func newMigrateCmd(now func() time.Time, stdout io.Writer, exitCode *int) *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "compare verdict documents across a policy/profile migration",
	}
	root.AddCommand(newMigrateCompareCmd(now, stdout, exitCode))
	return root
}

func newMigrateCompareCmd(now func() time.Time, stdout io.Writer, exitCode *int) *cobra.Command {
	var baselinePath, candidatePath, reportPath string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "diff a baseline verdict against a candidate verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baselinePath == "" || candidatePath == "" {
				return newToolError("tool_error", "--baseline and --candidate are required", "")
			}
			report, exit, err := migrate.Compare(baselinePath, candidatePath, reportPath, now())
			if err != nil {
				return newToolError("tool_error", err.Error(), reportPath)
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(report); encErr != nil {
				return newToolError("tool_error", encErr.Error(), "")
			}
			*exitCode = exit
			return nil
		},
	}
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "baseline verdict.v2.json path")
	cmd.Flags().StringVar(&candidatePath, "candidate", "", "candidate verdict.v2.json path")
	cmd.Flags().StringVar(&reportPath, "report", "migration_compare_report.json", "report output path")
	return cmd
}
