// Package verdict derives the final release-admission decision from a
// run's full checkpoint set: aggregate reason codes and blocking issues
// across checkpoints, escalate unknown codes, then fold status and
// policy constraints into one of the three terminal results.
package verdict

import (
	"time"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/profile"
)

const SchemaV2 = "v2"

// Result is the verdict's final admission decision.
type Result string

const (
	ResultPaperOnlyGo             Result = "PAPER_ONLY_GO"
	ResultNoGo                    Result = "NO_GO"
	ResultBlockedWithRecoveryPlan Result = "BLOCKED_WITH_RECOVERY_PLAN"
)

// blockedReasonCodes is the policy_fail-escalation set: a
// policy_fail checkpoint carrying any of these forces
// BLOCKED_WITH_RECOVERY_PLAN instead of NO_GO.
var blockedReasonCodes = map[string]bool{
	codes.ReasonSourceHealthFail:     true,
	codes.ReasonBudgetHardCapHit:     true,
	codes.ReasonGateRunnerSelfHealth: true,
}

// Verdict is verdict.v2.json's content.
type Verdict struct {
	Version            string                         `json:"version"`
	GeneratedAt        string                         `json:"generatedAt"`
	RunID              string                         `json:"runId"`
	Result             Result                         `json:"result"`
	DecisionWeight     string                         `json:"decisionWeight"`
	ReasonCodes        []string                       `json:"reasonCodes"`
	BlockingIssues     []string                       `json:"blockingIssues"`
	ProfileHash        string                         `json:"profileHash"`
	ThresholdsHash     string                         `json:"thresholdsHash"`
	StatisticsLockHash string                         `json:"statisticsLockHash"`
	RegistryVersion    string                         `json:"registryVersion"`
	MetricVersions     map[string]string              `json:"metricVersions,omitempty"`
	AttestationSummary *checkpoint.AttestationSummary `json:"attestationSummary,omitempty"`
}

// ExitCode maps the result to the process exit code callers contract on.
func (v Verdict) ExitCode() int {
	switch v.Result {
	case ResultPaperOnlyGo:
		return 0
	case ResultNoGo, ResultBlockedWithRecoveryPlan:
		return 2
	default:
		return 3
	}
}

// Derive folds a run's full checkpoint set, in (gate, attempt) order,
// into the final verdict.
func Derive(runID string, checkpoints []checkpoint.Checkpoint, p profile.Profile, sourceFallback profile.SourceFallbackPolicy, registry codes.Registry, now time.Time) Verdict {
	var reasonCodes, blockingIssues []string
	hasToolError := false
	hasPolicyFail := false
	hasBlockedReason := false
	var profileHash, thresholdsHash, statisticsLockHash, registryVersion string
	var metricVersions map[string]string
	var attestation *checkpoint.AttestationSummary

	for _, c := range checkpoints {
		reasonCodes = append(reasonCodes, c.ReasonCodes...)
		blockingIssues = append(blockingIssues, c.BlockingIssues...)
		if c.ProfileHash != "" {
			profileHash = c.ProfileHash
		}
		if c.ThresholdsHash != "" {
			thresholdsHash = c.ThresholdsHash
		}
		if c.StatisticsLockHash != "" {
			statisticsLockHash = c.StatisticsLockHash
		}
		if c.RegistryVersion != "" {
			registryVersion = c.RegistryVersion
		}
		if len(c.MetricVersions) > 0 {
			metricVersions = c.MetricVersions
		}
		if c.Attestation != nil {
			attestation = c.Attestation
		}
		switch c.Status {
		case checkpoint.StatusToolError:
			hasToolError = true
		case checkpoint.StatusPolicyFail:
			hasPolicyFail = true
			for _, rc := range c.ReasonCodes {
				if blockedReasonCodes[rc] {
					hasBlockedReason = true
				}
			}
		}
	}

	reasonCodes = codes.Dedupe(reasonCodes)
	for _, rc := range reasonCodes {
		if !registry.Known(rc) {
			blockingIssues = append(blockingIssues, "unknown reason code detected in checkpoints")
			break
		}
	}
	reasonCodes = registry.EscalateUnknown(reasonCodes)
	blockingIssues = codes.Dedupe(blockingIssues)

	var result Result
	switch {
	case hasToolError:
		result = ResultBlockedWithRecoveryPlan
	case hasPolicyFail && hasBlockedReason:
		result = ResultBlockedWithRecoveryPlan
	case hasPolicyFail:
		result = ResultNoGo
	default:
		result = ResultPaperOnlyGo
	}

	if len(p.Decision.AllowedOutputs) > 0 && !stringInSlice(string(result), p.Decision.AllowedOutputs) {
		result = ResultNoGo
		reasonCodes = codes.Dedupe(append(reasonCodes, codes.ReasonReleaseGateBlocked))
		blockingIssues = codes.Dedupe(append(blockingIssues, "result not in decision.allowed_outputs"))
	}

	// An archive_only policy with no allowedOutputs list constrains nothing.
	if sourceFallback.Mode == profile.SourceFallbackModeArchiveOnly && len(sourceFallback.ArchiveOnly.AllowedOutputs) > 0 {
		if !stringInSlice(string(result), sourceFallback.ArchiveOnly.AllowedOutputs) {
			result = ResultBlockedWithRecoveryPlan
			reasonCodes = codes.Dedupe(append(reasonCodes, codes.ReasonReleaseGateBlocked))
			blockingIssues = codes.Dedupe(append(blockingIssues, "archive_only forbids this verdict"))
		}
	}

	return Verdict{
		Version:            SchemaV2,
		GeneratedAt:        now.UTC().Format(time.RFC3339Nano),
		RunID:              runID,
		Result:             result,
		DecisionWeight:     p.Decision.Weight(),
		ReasonCodes:        reasonCodes,
		BlockingIssues:     blockingIssues,
		ProfileHash:        profileHash,
		ThresholdsHash:     thresholdsHash,
		StatisticsLockHash: statisticsLockHash,
		RegistryVersion:    registryVersion,
		MetricVersions:     metricVersions,
		AttestationSummary: attestation,
	}
}

func stringInSlice(s string, in []string) bool {
	for _, v := range in {
		if v == s {
			return true
		}
	}
	return false
}
