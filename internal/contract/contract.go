// Package contract declares this repo's own artifact/command/error
// contract: the on-disk shapes and CLI surface a downstream consumer can
// depend on. A snapshot test pins the declared set so contract changes
// are always deliberate.
package contract

import "github.com/marcohefti/releasegate/internal/codes"

// Contract is the full declared surface for one release of gatekeeper.
type Contract struct {
	Name                  string     `json:"name"`
	Version               string     `json:"version"`
	ArtifactLayoutVersion int        `json:"artifactLayoutVersion"`
	Artifacts             []Artifact `json:"artifacts"`
	Commands              []Command  `json:"commands"`
	Errors                []Error    `json:"errors"`
}

// Artifact describes one on-disk output and the fields a reader may rely
// on.
type Artifact struct {
	ID             string   `json:"id"`
	Kind           string   `json:"kind"` // json|jsonl
	SchemaVersions []int    `json:"schemaVersions"`
	Required       bool     `json:"required"`
	PathPattern    string   `json:"pathPattern"`
	RequiredFields []string `json:"requiredFields"`
}

// Command describes one CLI command's usage surface.
type Command struct {
	ID      string `json:"id"`
	Usage   string `json:"usage"`
	Summary string `json:"summary"`
}

// Error describes one reason code's public contract.
type Error struct {
	Code      string `json:"code"`
	Summary   string `json:"summary"`
	Retryable bool   `json:"retryable"`
}

// Build returns the declared contract for the given gatekeeper version.
func Build(version string) Contract {
	return Contract{
		Name:                  "gatekeeper",
		Version:               version,
		ArtifactLayoutVersion: 1,
		Artifacts: []Artifact{
			{
				ID:             "gate_checkpoints.json",
				Kind:           "json",
				SchemaVersions: []int{1},
				Required:       true,
				PathPattern:    "<output-root>/<runId>/gate_checkpoints.json",
				RequiredFields: []string{"gate", "runId", "attempt", "status", "idempotencyKey"},
			},
			{
				ID:             "verdict.v2.json",
				Kind:           "json",
				SchemaVersions: []int{2},
				Required:       true,
				PathPattern:    "<output-root>/<runId>/verdict.v2.json",
				RequiredFields: []string{"version", "generatedAt", "runId", "result", "decisionWeight", "reasonCodes", "profileHash"},
			},
			{
				ID:             "run_summary.json",
				Kind:           "json",
				SchemaVersions: []int{1},
				Required:       true,
				PathPattern:    "<output-root>/<runId>/run_summary.json",
				RequiredFields: []string{"runId", "result", "generatedAt", "guardState", "checkpoints", "metrics"},
			},
			{
				ID:             "dataset_snapshot_lock.json",
				Kind:           "json",
				SchemaVersions: []int{1},
				Required:       false,
				PathPattern:    "<output-root>/<runId>/dataset_snapshot_lock.json",
				RequiredFields: []string{"version", "runId", "frozenAt", "datasetHash", "featuresHash", "labelHash", "splitHash"},
			},
			{
				ID:             "runner_guard_report.json",
				Kind:           "json",
				SchemaVersions: []int{1},
				Required:       true,
				PathPattern:    "<output-root>/<runId>/runner_guard_report.json",
				RequiredFields: []string{"state"},
			},
			{
				ID:             "runner_guard_latest_report.json",
				Kind:           "json",
				SchemaVersions: []int{1},
				Required:       true,
				PathPattern:    "<output-root>/runner_guard_latest_report.json",
				RequiredFields: []string{"state"},
			},
			{
				ID:             "history.ndjson",
				Kind:           "jsonl",
				SchemaVersions: []int{1},
				Required:       true,
				PathPattern:    "<output-root>/history.ndjson",
				RequiredFields: []string{"gate", "runId", "attempt", "status"},
			},
		},
		Commands: []Command{
			{ID: "run", Usage: "gatekeeper run [flags]", Summary: "run the G0-G4 release-gate pipeline for one runId"},
			{ID: "doctor", Usage: "gatekeeper doctor [flags]", Summary: "run G0's checks in preview mode without writing a checkpoint"},
			{ID: "gc", Usage: "gatekeeper gc [flags]", Summary: "reclaim disk under output-root by run age and total size"},
			{ID: "migrate compare", Usage: "gatekeeper migrate compare [flags]", Summary: "diff two verdict documents field-by-field"},
			{ID: "chaos trial", Usage: "gatekeeper chaos trial [flags]", Summary: "run one isolated chaos scenario against the gate supervisor"},
			{ID: "replay", Usage: "gatekeeper replay [flags]", Summary: "validate a state-machine transition log"},
			{ID: "contract", Usage: "gatekeeper contract", Summary: "print this declared artifact/command/error contract"},
		},
		Errors: errorsFromReasonCodes(),
	}
}

func errorsFromReasonCodes() []Error {
	reasons := []string{
		codes.ReasonUnknown,
		codes.ReasonSourceHealthFail,
		codes.ReasonClockDriftExceeded,
		codes.ReasonSecretsHygieneFail,
		codes.ReasonEnvMismatch,
		codes.ReasonFreezeManifestInvalid,
		codes.ReasonHardGateCheckFailed,
		codes.ReasonThresholdBreach,
		codes.ReasonMetricMissing,
		codes.ReasonInsufficientSample,
		codes.ReasonLeakageDetected,
		codes.ReasonStressMetricUndefined,
		codes.ReasonStatMethodMismatch,
		codes.ReasonBudgetHardCapHit,
		codes.ReasonDatasetSnapshotDrift,
		codes.ReasonGateRunnerSelfHealth,
		codes.ReasonReleaseGateBlocked,
	}
	out := make([]Error, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, Error{Code: r, Summary: r, Retryable: r == codes.ReasonHardGateCheckFailed})
	}
	return out
}
