package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func TestDoctorCmdReportsAllChecksOKForPassingFixture(t *testing.T) {
	dir := fixtureDir(t)

	var stdout, stderr bytes.Buffer
	exitCode := 0
	root := NewRootCmd("0.0.0-dev", time.Now, &stdout, &stderr, &exitCode)
	root.SetArgs([]string{
		"doctor",
		"--repo-root", dir,
		"--profile", filepath.Join(dir, "profile.yaml"),
		"--registry", filepath.Join(dir, "registry.yaml"),
		"--reason-codes", filepath.Join(dir, "reason_codes.json"),
		"--owners", filepath.Join(dir, "owners.json"),
		"--source-fallback-policy", filepath.Join(dir, "source_fallback.json"),
		"--runner-guard-policy", filepath.Join(dir, "guard_policy.json"),
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("doctor failed: %v (stderr=%s)", err, stderr.String())
	}

	var res struct {
		OK     bool `json:"ok"`
		Checks []struct {
			ID      string `json:"id"`
			OK      bool   `json:"ok"`
			Message string `json:"message"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode stdout: %v (stdout=%s)", err, stdout.String())
	}
	if !res.OK {
		t.Fatalf("expected doctor to report ok=true for the passing fixture (stdout=%s)", stdout.String())
	}
	for _, c := range res.Checks {
		if !c.OK {
			t.Fatalf("expected check %s to be ok, got %+v", c.ID, c)
		}
	}
}

func TestMigrateCompareCmdSameResultExitsZero(t *testing.T) {
	dir := t.TempDir()
	verdict := `{
		"version": "v2",
		"generatedAt": "2026-01-01T00:00:00Z",
		"runId": "20260101-000000Z-abc123",
		"result": "PAPER_ONLY_GO",
		"decisionWeight": "limited",
		"reasonCodes": [],
		"profileHash": "h1",
		"thresholdsHash": "h2",
		"statisticsLockHash": "h3",
		"registryVersion": "v1",
		"metricVersions": {}
	}`
	baselinePath := filepath.Join(dir, "baseline.json")
	candidatePath := filepath.Join(dir, "candidate.json")
	writeFile(t, baselinePath, verdict)
	writeFile(t, candidatePath, verdict)

	var stdout, stderr bytes.Buffer
	exitCode := 0
	root := NewRootCmd("0.0.0-dev", time.Now, &stdout, &stderr, &exitCode)
	root.SetArgs([]string{
		"migrate", "compare",
		"--baseline", baselinePath,
		"--candidate", candidatePath,
		"--report", filepath.Join(dir, "report.json"),
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("migrate compare failed: %v (stderr=%s)", err, stderr.String())
	}
	if exitCode != 0 {
		t.Fatalf("expected exit code 0 for an identical baseline/candidate, got %d (stdout=%s)", exitCode, stdout.String())
	}
}

func TestChaosTrialCmdUnknownReasonCodeFailsG0InIsolatedRoot(t *testing.T) {
	dir := fixtureDir(t)
	parentDir := filepath.Join(t.TempDir(), "chaos")

	var stdout, stderr bytes.Buffer
	exitCode := 0
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	root := NewRootCmd("0.0.0-dev", now, &stdout, &stderr, &exitCode)
	args := append([]string{"chaos", "trial", "--parent-dir", parentDir, "--scenario", "unknown_reason_code"},
		chaosInputFlags(dir)...)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		t.Fatalf("chaos trial failed: %v (stderr=%s)", err, stderr.String())
	}

	var report struct {
		Scenario     string            `json:"scenario"`
		IsolatedRoot string            `json:"isolatedRoot"`
		ExitCode     int               `json:"exitCode"`
		Contained    bool              `json:"contained"`
		Artifacts    map[string]string `json:"artifacts"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode stdout: %v (stdout=%s)", err, stdout.String())
	}
	if report.Scenario != "unknown_reason_code" {
		t.Fatalf("unexpected scenario echoed back: %s", report.Scenario)
	}
	if report.IsolatedRoot == "" {
		t.Fatalf("expected a non-empty isolated root")
	}
	if report.ExitCode != 2 || !report.Contained {
		t.Fatalf("report = %+v, want the non-canonical catalog contained as exit 2", report)
	}
	if report.Artifacts["reasonCodesOverride"] == "" {
		t.Fatalf("expected the override catalog artifact, got %v", report.Artifacts)
	}
}

// chaosInputFlags reuses fixtureDir's well-known inputs for the chaos
// trial command, which shares addWellKnownInputFlags with run/doctor.
func chaosInputFlags(dir string) []string {
	return []string{
		"--repo-root", dir,
		"--profile", filepath.Join(dir, "profile.yaml"),
		"--registry", filepath.Join(dir, "registry.yaml"),
		"--reason-codes", filepath.Join(dir, "reason_codes.json"),
		"--owners", filepath.Join(dir, "owners.json"),
		"--source-fallback-policy", filepath.Join(dir, "source_fallback.json"),
		"--runner-guard-policy", filepath.Join(dir, "guard_policy.json"),
	}
}
