// Package doctor implements the `gatekeeper doctor` preview command:
// run G0's checks against a repo without writing a checkpoint, so an
// operator can diagnose environment problems before a real run.
package doctor

import (
	"context"

	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/gates"
	"github.com/marcohefti/releasegate/internal/profile"
)

// Check is one named diagnostic's outcome.
type Check struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Result is doctor's full report.
type Result struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

// Run executes G0 in preview mode: the same checks a real run's G0 gate
// would perform, reported per-check instead of folded into one checkpoint.
func Run(ctx context.Context, repoRoot string, p profile.Profile, reasonCodes codes.File) Result {
	outcome := gates.RunG0(ctx, repoRoot, p, reasonCodes)

	res := Result{OK: outcome.Status == "pass"}

	if p.G0.ReasonCodeLintRequired() {
		res.Checks = append(res.Checks, checkFor("reason_code_lint", outcome, codes.ReasonUnknown))
	} else {
		res.Checks = append(res.Checks, Check{ID: "reason_code_lint", OK: true, Message: "skipped (not required)"})
	}

	if p.G0.CommandAvailabilityRequired() {
		missing, _ := outcome.Details["missingCommands"].([]string)
		c := Check{ID: "command_availability", OK: len(missing) == 0}
		if len(missing) > 0 {
			c.Message = "missing: " + joinComma(missing)
		}
		res.Checks = append(res.Checks, c)
	} else {
		res.Checks = append(res.Checks, Check{ID: "command_availability", OK: true, Message: "skipped (not required)"})
	}

	if p.G0.ClockDriftRequired() {
		res.Checks = append(res.Checks, checkFor("clock_drift", outcome, codes.ReasonClockDriftExceeded))
	} else {
		res.Checks = append(res.Checks, Check{ID: "clock_drift", OK: true, Message: "skipped (not required)"})
	}

	if p.G0.SecretsHygieneRequired() {
		res.Checks = append(res.Checks, checkFor("secrets_hygiene", outcome, codes.ReasonSecretsHygieneFail))
	} else {
		res.Checks = append(res.Checks, Check{ID: "secrets_hygiene", OK: true, Message: "skipped (not required)"})
	}

	return res
}

func checkFor(id string, outcome gates.Outcome, reason string) Check {
	for _, r := range outcome.ReasonCodes {
		if r == reason {
			return Check{ID: id, OK: false, Message: firstOr(outcome.BlockingIssues, "")}
		}
	}
	return Check{ID: id, OK: true}
}

func firstOr(vs []string, fallback string) string {
	if len(vs) > 0 {
		return vs[0]
	}
	return fallback
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
