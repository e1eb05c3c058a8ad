package doctor

import (
	"context"
	"testing"

	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/profile"
)

func boolPtr(b bool) *bool { return &b }

func g0AllOff() profile.G0Config {
	return profile.G0Config{
		RequireReasonCodeLint:      boolPtr(false),
		RequireCommandAvailability: boolPtr(false),
		RequireClockDrift:          boolPtr(false),
		RequireSecretsHygiene:      boolPtr(false),
	}
}

func TestRunAllChecksSkippedWhenNotRequired(t *testing.T) {
	res := Run(context.Background(), t.TempDir(), profile.Profile{G0: g0AllOff()}, codes.File{})
	if !res.OK {
		t.Fatalf("OK = false, want true: %+v", res.Checks)
	}
	for _, c := range res.Checks {
		if !c.OK {
			t.Fatalf("check %s failed unexpectedly: %+v", c.ID, c)
		}
	}
}

func TestRunFlagsMissingCommands(t *testing.T) {
	g0 := g0AllOff()
	g0.RequireCommandAvailability = boolPtr(true)
	g0.RequiredCommands = []string{"definitely-not-a-real-command-xyz"}
	res := Run(context.Background(), t.TempDir(), profile.Profile{G0: g0}, codes.File{})
	if res.OK {
		t.Fatalf("OK = true, want false")
	}
	found := false
	for _, c := range res.Checks {
		if c.ID == "command_availability" {
			found = true
			if c.OK {
				t.Fatalf("command_availability reported OK, want failed")
			}
		}
	}
	if !found {
		t.Fatalf("command_availability check missing: %+v", res.Checks)
	}
}

func TestRunLintFailureIsReportedOnItsCheck(t *testing.T) {
	g0 := g0AllOff()
	g0.RequireReasonCodeLint = boolPtr(true)
	res := Run(context.Background(), t.TempDir(), profile.Profile{G0: g0}, codes.File{})
	if res.OK {
		t.Fatalf("OK = true, want false (empty reason-code catalog fails lint)")
	}
	for _, c := range res.Checks {
		if c.ID == "reason_code_lint" && c.OK {
			t.Fatalf("reason_code_lint reported OK, want failed")
		}
	}
}
