package cli

import (
	"os"
	"path/filepath"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/gates"
	"github.com/marcohefti/releasegate/internal/ioutil"
)

// G1's three sub-checks run as in-process functions that still produce
// the on-disk report-file contract an external script would. These
// stand-ins check for the presence of the evidence file an operator's
// real tooling would have produced, rather than reimplementing that
// tooling's verification logic.

func environmentLockVerifier(runDir, lockPath string) gates.EnvironmentLockVerifier {
	return func() gates.SubCheck {
		return fileEvidenceSubCheck(runDir, "verify_environment_lock", "g1_environment_lock_report.json", lockPath)
	}
}

func freezeManifestVerifier(runDir, manifestPath string) gates.FreezeManifestVerifier {
	return func() gates.SubCheck {
		return fileEvidenceSubCheck(runDir, "verify_freeze_manifest", "g1_freeze_manifest_report.json", manifestPath)
	}
}

// postPullSyncRunner always passes: gatekeeper is a single-process,
// sequential pipeline, so there is no second process for a post-pull
// sync to reconcile against.
func postPullSyncRunner(runDir string) gates.PostPullSyncRunner {
	return func() gates.SubCheck {
		report := map[string]any{"note": "single-process pipeline; nothing to synchronize"}
		_ = ioutil.WriteJSONAtomic(filepath.Join(runDir, "g1_post_pull_sync_report.json"), report)
		return gates.SubCheck{Name: "post_pull_sync", Status: checkpoint.StatusPass, Report: report}
	}
}

func fileEvidenceSubCheck(runDir, name, reportFile, evidencePath string) gates.SubCheck {
	report := map[string]any{"evidencePath": evidencePath}
	status := checkpoint.StatusPass
	issue := ""
	switch {
	case evidencePath == "":
		status = checkpoint.StatusPolicyFail
		issue = name + ": no evidence path provided"
	default:
		if _, err := os.Stat(evidencePath); err != nil {
			status = checkpoint.StatusToolError
			issue = err.Error()
		}
	}
	report["status"] = string(status)
	_ = ioutil.WriteJSONAtomic(filepath.Join(runDir, reportFile), report)
	return gates.SubCheck{Name: name, Status: status, BlockingIssue: issue, Report: report}
}
