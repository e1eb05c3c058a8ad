package gates

import (
	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/profile"
)

// SubCheck is one G1 environment-integrity sub-check's result.
// Sub-checks run in-process rather than as child scripts, but still
// produce the same status classification an external script's exit code
// would (pass/policy_fail/tool_error).
type SubCheck struct {
	Name          string
	Status        checkpoint.Status
	BlockingIssue string
	Report        map[string]any
}

// EnvironmentLockVerifier, FreezeManifestVerifier and PostPullSyncRunner are
// the three G1 sub-checks, each an injectable function so
// internal/cli can wire them to real filesystem/tooling checks while
// tests substitute fakes.
type EnvironmentLockVerifier func() SubCheck
type FreezeManifestVerifier func() SubCheck
type PostPullSyncRunner func() SubCheck

var g1ReasonByCheck = map[string]string{
	"verify_environment_lock": codes.ReasonEnvMismatch,
	"verify_freeze_manifest":  codes.ReasonFreezeManifestInvalid,
	"post_pull_sync":          codes.ReasonHardGateCheckFailed,
}

// RunG1 runs the three environment-integrity sub-checks,
// then fold each required-and-failing check into the aggregate status
// (tool_error dominates policy_fail) and reason codes.
func RunG1(cfg profile.G1Config, envLock EnvironmentLockVerifier, freeze FreezeManifestVerifier, sync PostPullSyncRunner) Outcome {
	checks := []SubCheck{envLock(), freeze(), sync()}

	required := map[string]bool{
		"verify_environment_lock": cfg.EnvLockRequired(),
		"verify_freeze_manifest":  cfg.FreezeManifestRequired(),
		"post_pull_sync":          cfg.PostPullSyncRequired(),
	}

	status := checkpoint.StatusPass
	var reasons []string
	var issues []string
	for _, c := range checks {
		if !required[c.Name] {
			continue
		}
		if c.Status == checkpoint.StatusPass {
			continue
		}
		if c.Status == checkpoint.StatusToolError {
			status = checkpoint.StatusToolError
		} else if status != checkpoint.StatusToolError {
			status = checkpoint.StatusPolicyFail
		}
		reasons = append(reasons, g1ReasonByCheck[c.Name])
		if c.BlockingIssue != "" {
			issues = append(issues, c.BlockingIssue)
		} else {
			issues = append(issues, c.Name+" failed with status="+string(c.Status))
		}
	}

	checksDetail := make([]map[string]any, 0, len(checks))
	for _, c := range checks {
		checksDetail = append(checksDetail, map[string]any{
			"name":   c.Name,
			"status": string(c.Status),
			"report": c.Report,
		})
	}

	return Outcome{
		Status:         status,
		ReasonCodes:    dedupe(reasons),
		BlockingIssues: issues,
		Details:        map[string]any{"checks": checksDetail},
	}
}
