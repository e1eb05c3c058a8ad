package gates

import (
	"testing"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/profile"
)

func passCheck(name string) SubCheck {
	return SubCheck{Name: name, Status: checkpoint.StatusPass}
}

func TestRunG1AllPass(t *testing.T) {
	cfg := profile.G1Config{}
	out := RunG1(cfg,
		func() SubCheck { return passCheck("verify_environment_lock") },
		func() SubCheck { return passCheck("verify_freeze_manifest") },
		func() SubCheck { return passCheck("post_pull_sync") },
	)
	if out.Status != checkpoint.StatusPass {
		t.Fatalf("status = %v, want pass", out.Status)
	}
}

func TestRunG1EnvLockFailureIsPolicyFailWithReason(t *testing.T) {
	cfg := profile.G1Config{}
	out := RunG1(cfg,
		func() SubCheck {
			return SubCheck{Name: "verify_environment_lock", Status: checkpoint.StatusPolicyFail, BlockingIssue: "env drift"}
		},
		func() SubCheck { return passCheck("verify_freeze_manifest") },
		func() SubCheck { return passCheck("post_pull_sync") },
	)
	if out.Status != checkpoint.StatusPolicyFail {
		t.Fatalf("status = %v, want policy_fail", out.Status)
	}
	if len(out.ReasonCodes) != 1 || out.ReasonCodes[0] != codes.ReasonEnvMismatch {
		t.Fatalf("reasonCodes = %v, want [%s]", out.ReasonCodes, codes.ReasonEnvMismatch)
	}
	if len(out.BlockingIssues) != 1 || out.BlockingIssues[0] != "env drift" {
		t.Fatalf("blockingIssues = %v", out.BlockingIssues)
	}
}

func TestRunG1ToolErrorDominatesPolicyFail(t *testing.T) {
	cfg := profile.G1Config{}
	out := RunG1(cfg,
		func() SubCheck { return SubCheck{Name: "verify_environment_lock", Status: checkpoint.StatusPolicyFail} },
		func() SubCheck { return SubCheck{Name: "verify_freeze_manifest", Status: checkpoint.StatusToolError} },
		func() SubCheck { return passCheck("post_pull_sync") },
	)
	if out.Status != checkpoint.StatusToolError {
		t.Fatalf("status = %v, want tool_error", out.Status)
	}
}

func TestRunG1NotRequiredCheckIsIgnoredOnFailure(t *testing.T) {
	cfg := profile.G1Config{RequireEnvLock: boolPtr(false)}
	out := RunG1(cfg,
		func() SubCheck { return SubCheck{Name: "verify_environment_lock", Status: checkpoint.StatusPolicyFail} },
		func() SubCheck { return passCheck("verify_freeze_manifest") },
		func() SubCheck { return passCheck("post_pull_sync") },
	)
	if out.Status != checkpoint.StatusPass {
		t.Fatalf("status = %v, want pass (env lock not required)", out.Status)
	}
}
