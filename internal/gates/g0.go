package gates

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/profile"
)

// CommandAvailability returns the declared toolchain commands that
// exec.LookPath (Go's equivalent of shutil.which) cannot resolve.
func CommandAvailability(commands []string) []string {
	var missing []string
	for _, c := range commands {
		if _, err := exec.LookPath(c); err != nil {
			missing = append(missing, c)
		}
	}
	return missing
}

// MeasureClockDriftMs compares the process clock against `date -u +%s`
// to catch severe local time-source skew. A failed shell invocation
// reports zero drift rather than blocking the gate.
func MeasureClockDriftMs(ctx context.Context) int64 {
	procEpochMs := time.Now().UTC().UnixMilli()
	out, err := exec.CommandContext(ctx, "date", "-u", "+%s").Output()
	if err != nil {
		return 0
	}
	var shellEpochS int64
	if _, scanErr := fmt.Sscanf(string(out), "%d", &shellEpochS); scanErr != nil {
		return 0
	}
	shellEpochMs := shellEpochS * 1000
	drift := procEpochMs - shellEpochMs
	if drift < 0 {
		drift = -drift
	}
	return drift
}

var requiredG0Commands = []string{"python3", "node", "pnpm", "git"}

// RunG0 runs the fail-fast gate: each of the four
// sub-checks (reason-code lint, command availability, clock drift,
// secrets hygiene) is independently toggled and independently contributes
// issues/reason codes.
func RunG0(ctx context.Context, repoRoot string, p profile.Profile, reasonCodes codes.File) Outcome {
	var issues []string
	var reasons []string
	details := map[string]any{}

	if p.G0.ReasonCodeLintRequired() {
		if err := codes.Lint(reasonCodes, p.HardBlockReasonCodesG3); err != nil {
			issues = append(issues, err.Error())
			reasons = append(reasons, codes.ReasonUnknown)
		}
	} else {
		details["reasonCodeLintSkipped"] = true
	}

	var missingCmds []string
	if p.G0.CommandAvailabilityRequired() {
		commands := p.G0.RequiredCommands
		if len(commands) == 0 {
			commands = requiredG0Commands
		}
		missingCmds = CommandAvailability(commands)
	} else {
		details["commandAvailabilitySkipped"] = true
	}
	details["missingCommands"] = missingCmds
	if p.G0.CommandAvailabilityRequired() && len(missingCmds) > 0 {
		issues = append(issues, fmt.Sprintf("required commands missing: %s", joinComma(missingCmds)))
		reasons = append(reasons, codes.ReasonSourceHealthFail)
	}

	if p.G0.ClockDriftRequired() {
		driftMax := p.G0.ClockDriftMsMax
		if driftMax <= 0 {
			driftMax = 2000
		}
		driftMs := MeasureClockDriftMs(ctx)
		details["clockDriftMs"] = driftMs
		if driftMs > driftMax {
			issues = append(issues, fmt.Sprintf("clock drift exceeded: %dms > %dms", driftMs, driftMax))
			reasons = append(reasons, codes.ReasonClockDriftExceeded)
		}
	} else {
		details["clockDriftSkipped"] = true
	}

	var findings []SecretFinding
	if p.G0.SecretsHygieneRequired() {
		findings = ScanSecrets(ctx, repoRoot)
	} else {
		details["secretsHygieneSkipped"] = true
	}
	details["secretsFindingsCount"] = len(findings)
	if p.G0.SecretsHygieneRequired() && len(findings) > 0 {
		issues = append(issues, "high-confidence secret findings detected")
		reasons = append(reasons, codes.ReasonSecretsHygieneFail)
	}

	status := checkpoint.StatusPass
	if len(issues) > 0 {
		status = checkpoint.StatusPolicyFail
	}
	return Outcome{
		Status:         status,
		ReasonCodes:    dedupe(reasons),
		BlockingIssues: issues,
		Details:        details,
	}
}

func joinComma(vs []string) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}
