package verdict

import (
	"testing"
	"time"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/profile"
)

func baseRegistry() codes.Registry {
	f := codes.File{Codes: []codes.ReasonCode{
		{Code: codes.ReasonThresholdBreach, Severity: codes.SeverityHard},
		{Code: codes.ReasonSourceHealthFail, Severity: codes.SeverityHard},
		{Code: codes.ReasonBudgetHardCapHit, Severity: codes.SeverityHard},
		{Code: codes.ReasonGateRunnerSelfHealth, Severity: codes.SeverityHard},
		{Code: codes.ReasonReleaseGateBlocked, Severity: codes.SeverityHard},
		{Code: codes.ReasonUnknown, Severity: codes.SeverityHard},
		{Code: codes.ReasonHardGateCheckFailed, Severity: codes.SeverityHard},
	}}
	return codes.NewRegistry(f)
}

func passCP(gate checkpoint.Gate) checkpoint.Checkpoint {
	return checkpoint.Checkpoint{Gate: gate, Status: checkpoint.StatusPass, ProfileHash: "ph", RegistryVersion: "v1"}
}

func TestDeriveAllPassIsPaperOnlyGo(t *testing.T) {
	cps := []checkpoint.Checkpoint{passCP(checkpoint.G0), passCP(checkpoint.G1), passCP(checkpoint.G2), passCP(checkpoint.G3), passCP(checkpoint.G4)}
	v := Derive("run-1", cps, profile.Profile{}, profile.SourceFallbackPolicy{}, baseRegistry(), time.Unix(0, 0))
	if v.Result != ResultPaperOnlyGo {
		t.Fatalf("result = %v, want PAPER_ONLY_GO", v.Result)
	}
	if v.ExitCode() != 0 {
		t.Fatalf("exit code = %d, want 0", v.ExitCode())
	}
	if v.DecisionWeight != "limited" {
		t.Fatalf("decisionWeight = %q, want the %q default", v.DecisionWeight, "limited")
	}
}

func TestDeriveUsesConfiguredDecisionWeight(t *testing.T) {
	cps := []checkpoint.Checkpoint{passCP(checkpoint.G0)}
	p := profile.Profile{Decision: profile.DecisionConfig{DefaultDecisionWeight: "full"}}
	v := Derive("run-8", cps, p, profile.SourceFallbackPolicy{}, baseRegistry(), time.Unix(0, 0))
	if v.DecisionWeight != "full" {
		t.Fatalf("decisionWeight = %q, want %q", v.DecisionWeight, "full")
	}
}

func TestDerivePlainPolicyFailIsNoGo(t *testing.T) {
	cps := []checkpoint.Checkpoint{
		passCP(checkpoint.G0), passCP(checkpoint.G1), passCP(checkpoint.G2),
		{Gate: checkpoint.G3, Status: checkpoint.StatusPolicyFail, ReasonCodes: []string{codes.ReasonThresholdBreach}},
		{Gate: checkpoint.G4, Status: checkpoint.StatusSkipped},
	}
	v := Derive("run-2", cps, profile.Profile{}, profile.SourceFallbackPolicy{}, baseRegistry(), time.Unix(0, 0))
	if v.Result != ResultNoGo {
		t.Fatalf("result = %v, want NO_GO", v.Result)
	}
	if v.ExitCode() != 2 {
		t.Fatalf("exit code = %d, want 2", v.ExitCode())
	}
}

func TestDeriveBlockedReasonEscalatesToRecoveryPlan(t *testing.T) {
	cps := []checkpoint.Checkpoint{
		passCP(checkpoint.G0), passCP(checkpoint.G1), passCP(checkpoint.G2),
		{Gate: checkpoint.G3, Status: checkpoint.StatusPolicyFail, ReasonCodes: []string{codes.ReasonSourceHealthFail}},
		{Gate: checkpoint.G4, Status: checkpoint.StatusSkipped},
	}
	v := Derive("run-3", cps, profile.Profile{}, profile.SourceFallbackPolicy{}, baseRegistry(), time.Unix(0, 0))
	if v.Result != ResultBlockedWithRecoveryPlan {
		t.Fatalf("result = %v, want BLOCKED_WITH_RECOVERY_PLAN", v.Result)
	}
}

func TestDeriveToolErrorDominates(t *testing.T) {
	cps := []checkpoint.Checkpoint{
		{Gate: checkpoint.G0, Status: checkpoint.StatusToolError, ReasonCodes: []string{codes.ReasonHardGateCheckFailed}},
		{Gate: checkpoint.G1, Status: checkpoint.StatusSkipped},
	}
	v := Derive("run-4", cps, profile.Profile{}, profile.SourceFallbackPolicy{}, baseRegistry(), time.Unix(0, 0))
	if v.Result != ResultBlockedWithRecoveryPlan {
		t.Fatalf("result = %v, want BLOCKED_WITH_RECOVERY_PLAN", v.Result)
	}
}

func TestDeriveUnknownReasonCodeEscalates(t *testing.T) {
	cps := []checkpoint.Checkpoint{
		{Gate: checkpoint.G0, Status: checkpoint.StatusPolicyFail, ReasonCodes: []string{"HARD_NOT_IN_CATALOG"}},
	}
	v := Derive("run-5", cps, profile.Profile{}, profile.SourceFallbackPolicy{}, baseRegistry(), time.Unix(0, 0))
	found := false
	for _, c := range v.ReasonCodes {
		if c == codes.ReasonUnknown {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasonCodes = %v, want %s present", v.ReasonCodes, codes.ReasonUnknown)
	}
}

func TestDeriveAllowedOutputsOverrideForcesNoGo(t *testing.T) {
	cps := []checkpoint.Checkpoint{passCP(checkpoint.G0), passCP(checkpoint.G1), passCP(checkpoint.G2), passCP(checkpoint.G3), passCP(checkpoint.G4)}
	p := profile.Profile{Decision: profile.DecisionConfig{AllowedOutputs: []string{string(ResultNoGo)}}}
	v := Derive("run-6", cps, p, profile.SourceFallbackPolicy{}, baseRegistry(), time.Unix(0, 0))
	if v.Result != ResultNoGo {
		t.Fatalf("result = %v, want NO_GO (forced by allowed_outputs)", v.Result)
	}
	found := false
	for _, c := range v.ReasonCodes {
		if c == codes.ReasonReleaseGateBlocked {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasonCodes = %v, want %s present", v.ReasonCodes, codes.ReasonReleaseGateBlocked)
	}
}

func TestDeriveArchiveOnlyOverrideForcesBlocked(t *testing.T) {
	cps := []checkpoint.Checkpoint{passCP(checkpoint.G0), passCP(checkpoint.G1), passCP(checkpoint.G2), passCP(checkpoint.G3), passCP(checkpoint.G4)}
	sf := profile.SourceFallbackPolicy{
		Mode:        profile.SourceFallbackModeArchiveOnly,
		ArchiveOnly: profile.ArchiveOnlyPolicy{AllowedOutputs: []string{string(ResultNoGo)}},
	}
	v := Derive("run-7", cps, profile.Profile{}, sf, baseRegistry(), time.Unix(0, 0))
	if v.Result != ResultBlockedWithRecoveryPlan {
		t.Fatalf("result = %v, want BLOCKED_WITH_RECOVERY_PLAN", v.Result)
	}
}

func TestDeriveArchiveOnlyWithoutAllowedOutputsConstrainsNothing(t *testing.T) {
	cps := []checkpoint.Checkpoint{passCP(checkpoint.G0), passCP(checkpoint.G1), passCP(checkpoint.G2), passCP(checkpoint.G3), passCP(checkpoint.G4)}
	sf := profile.SourceFallbackPolicy{Mode: profile.SourceFallbackModeArchiveOnly}
	v := Derive("run-9", cps, profile.Profile{}, sf, baseRegistry(), time.Unix(0, 0))
	if v.Result != ResultPaperOnlyGo {
		t.Fatalf("result = %v, want PAPER_ONLY_GO (empty allowedOutputs list)", v.Result)
	}
}
