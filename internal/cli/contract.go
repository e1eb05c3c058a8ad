package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/marcohefti/releasegate/internal/contract"
)

func newContractCmd(stdout io.Writer, version string) *cobra.Command {
	var artifactVersion string
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "print the artifact/command/error contract this binary implements",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(contract.Build(artifactVersion)); err != nil {
				return newToolError("tool_error", err.Error(), "")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&artifactVersion, "artifact-version", version, "contract version to report")
	return cmd
}
