// Package checkpoint is the shared gate-attempt record: the Checkpoint
// type every gate (internal/gates), the supervisor, the verdict deriver,
// and the runner-guard all read and write. One version constant per
// artifact; optional detail fields carry omitempty.
package checkpoint

import "encoding/json"

const SchemaV1 = 1

// Gate is one of the five fixed pipeline stages.
type Gate string

const (
	G0 Gate = "G0"
	G1 Gate = "G1"
	G2 Gate = "G2"
	G3 Gate = "G3"
	G4 Gate = "G4"
)

// Gates is the fixed execution order.
var Gates = []Gate{G0, G1, G2, G3, G4}

// Status is a gate-attempt's terminal classification.
type Status string

const (
	StatusPass       Status = "pass"
	StatusPolicyFail Status = "policy_fail"
	StatusToolError  Status = "tool_error"
	StatusSkipped    Status = "skipped"
)

// AttestationSummary is recorded on a G4 checkpoint.
type AttestationSummary struct {
	Mode       string   `json:"mode"`
	AttestedBy string   `json:"attestedBy"`
	ReviewedBy string   `json:"reviewedBy"`
	Passed     bool     `json:"passed"`
	Issues     []string `json:"issues,omitempty"`
}

// Checkpoint is one gate-attempt record.
type Checkpoint struct {
	Version             int                 `json:"version"`
	Gate                Gate                `json:"gate"`
	RunID               string              `json:"runId"`
	Attempt             int                 `json:"attempt"`
	IdempotencyKey      string              `json:"idempotencyKey"`
	ResumedFrom         string              `json:"resumedFrom,omitempty"`
	Status              Status              `json:"status"`
	ReasonCodes         []string            `json:"reasonCodes"`
	BlockingIssues      []string            `json:"blockingIssues"`
	StartedAt           string              `json:"startedAt"`
	EndedAt             string              `json:"endedAt"`
	DurationMs          int64               `json:"durationMs"`
	ProfileHash         string              `json:"profileHash"`
	ThresholdsHash      string              `json:"thresholdsHash"`
	StatisticsLockHash  string              `json:"statisticsLockHash,omitempty"`
	RegistryVersion     string              `json:"registryVersion"`
	MetricVersions      map[string]string   `json:"metricVersions,omitempty"`
	DatasetSnapshotHash string              `json:"datasetSnapshotHash,omitempty"`
	DecisionWeight      string              `json:"decisionWeight,omitempty"`
	Attestation         *AttestationSummary `json:"attestation,omitempty"`
	Details             json.RawMessage     `json:"details,omitempty"`
}

// IsTerminalPass reports whether this checkpoint's status unblocks the
// next gate.
func (c Checkpoint) IsTerminalPass() bool {
	return c.Status == StatusPass
}
