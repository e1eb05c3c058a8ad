// Package cli wires gatekeeper's cobra command surface to the
// supervisor/gates/profile packages that implement the release-gate
// pipeline: one root binary, one subcommand per operational concern,
// and a single-line compact JSON result on stdout for `run`.
package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Execute builds the root command, runs it against os.Args[1:], and
// returns the process exit code: 0/2 come from a derived verdict, 3
// means a tool error (malformed config, unreadable input) reported on
// stderr.
func Execute(version string) int {
	exitCode := 0
	root := NewRootCmd(version, time.Now, os.Stdout, os.Stderr, &exitCode)
	if err := root.Execute(); err != nil {
		exitCode = 3
	}
	return exitCode
}

// NewRootCmd assembles the gatekeeper command tree. now/stdout/stderr are
// injectable for tests; exitCode is written by subcommands that derive a
// verdict exit code instead of a Go error (PAPER_ONLY_GO/NO_GO/
// BLOCKED_WITH_RECOVERY_PLAN all return nil error from RunE so cobra
// never prints "Error:" for an expected pipeline outcome).
func NewRootCmd(version string, now func() time.Time, stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "gatekeeper",
		Short:         "release-gate decision engine for a regulated research pipeline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRunCmd(now, stdout, exitCode))
	root.AddCommand(newDoctorCmd(now, stdout))
	root.AddCommand(newGCCmd(now, stdout))
	root.AddCommand(newMigrateCmd(now, stdout, exitCode))
	root.AddCommand(newChaosCmd(now, stdout))
	root.AddCommand(newReplayCmd(now, stdout, exitCode))
	root.AddCommand(newContractCmd(stdout, version))

	return root
}
