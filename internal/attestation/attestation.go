// Package attestation validates G4's attestation document against the
// controlled active-owners allowlist: mode, dual-control signer
// distinctness, timestamp presence, and non-empty scope.
package attestation

import (
	"time"

	"github.com/marcohefti/releasegate/internal/profile"
)

// Mode is the attestation.mode enum.
type Mode string

const (
	ModeManualAttest    Mode = "manual_attest"
	ModeKeySignedAttest Mode = "key_signed_attest"
	ModeServiceAttest   Mode = "service_attest"
)

func validMode(m Mode) bool {
	switch m {
	case ModeManualAttest, ModeKeySignedAttest, ModeServiceAttest:
		return true
	default:
		return false
	}
}

// Document is the attestation JSON input.
type Document struct {
	Mode       Mode     `json:"mode"`
	AttestedBy string   `json:"attestedBy"`
	ReviewedBy string   `json:"reviewedBy"`
	AttestedAt string   `json:"attestedAt"`
	ReviewedAt string   `json:"reviewedAt"`
	Scope      []string `json:"scope"`
}

// Report is attestation_report.json's content.
type Report struct {
	GeneratedAt     string   `json:"generatedAt"`
	AttestationPath string   `json:"attestationPath"`
	Passed          bool     `json:"passed"`
	Issues          []string `json:"issues"`
}

// Validate checks doc against owners' active allowlist. An invalid mode
// short-circuits every other check.
func Validate(doc Document, owners profile.OwnersFile) (bool, []string) {
	issues := []string{}

	if !validMode(doc.Mode) {
		return false, append(issues, "attestation.mode invalid")
	}

	allowed := owners.ActiveSet()
	if doc.AttestedBy == "" || !allowed[doc.AttestedBy] {
		issues = append(issues, "attestedBy not in active owner allowlist")
	}
	if doc.ReviewedBy == "" || !allowed[doc.ReviewedBy] {
		issues = append(issues, "reviewedBy not in active owner allowlist")
	}
	if doc.AttestedBy != "" && doc.ReviewedBy != "" && doc.AttestedBy == doc.ReviewedBy {
		issues = append(issues, "attestedBy must differ from reviewedBy")
	}

	if doc.AttestedAt == "" {
		issues = append(issues, "attestedAt missing")
	}
	if doc.ReviewedAt == "" {
		issues = append(issues, "reviewedAt missing")
	}
	if len(doc.Scope) == 0 {
		issues = append(issues, "scope must be non-empty list")
	}

	return len(issues) == 0, issues
}

// BuildReport wraps Validate's result in the persisted report shape.
func BuildReport(attestationPath string, doc Document, owners profile.OwnersFile, now time.Time) Report {
	passed, issues := Validate(doc, owners)
	return Report{
		GeneratedAt:     now.UTC().Format(time.RFC3339Nano),
		AttestationPath: attestationPath,
		Passed:          passed,
		Issues:          issues,
	}
}
