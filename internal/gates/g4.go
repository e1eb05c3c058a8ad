package gates

import (
	"fmt"

	"github.com/marcohefti/releasegate/internal/attestation"
	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/ioutil"
	"github.com/marcohefti/releasegate/internal/profile"
)

// G4Inputs names the on-disk inputs G4 reads: the attestation
// document itself and the source-fallback policy, which G4 only records in
// its checkpoint details.
type G4Inputs struct {
	AttestationPath      string
	Owners               profile.OwnersFile
	SourceFallbackPolicy profile.SourceFallbackPolicy
}

// RunG4 validates the attestation
// document against the active-owners allowlist and annotates the details
// with the source_fallback_policy's mode; that mode never fails G4.
func RunG4(in G4Inputs) Outcome {
	var doc attestation.Document
	if err := ioutil.ReadJSON(in.AttestationPath, &doc); err != nil {
		return Outcome{
			Status:         checkpoint.StatusPolicyFail,
			ReasonCodes:    []string{codes.ReasonHardGateCheckFailed},
			BlockingIssues: []string{fmt.Sprintf("attestation document not found or unreadable: %s", in.AttestationPath)},
			Details:        map[string]any{"attestationPath": in.AttestationPath},
		}
	}

	passed, issues := attestation.Validate(doc, in.Owners)

	var reasons []string
	if !passed {
		reasons = append(reasons, codes.ReasonHardGateCheckFailed)
	}

	status := checkpoint.StatusPass
	if !passed {
		status = checkpoint.StatusPolicyFail
	}

	summary := &checkpoint.AttestationSummary{
		Mode:       string(doc.Mode),
		AttestedBy: doc.AttestedBy,
		ReviewedBy: doc.ReviewedBy,
		Passed:     passed,
		Issues:     issues,
	}

	// The source-fallback policy only annotates G4's details; enforcement
	// of archive_only allowed outputs happens in the verdict deriver.
	details := map[string]any{
		"attestationPath":      in.AttestationPath,
		"sourceFallbackPolicy": in.SourceFallbackPolicy.Mode,
	}
	if in.SourceFallbackPolicy.Mode == profile.SourceFallbackModeArchiveOnly {
		details["archiveOnlyAllowedOutputs"] = in.SourceFallbackPolicy.ArchiveOnly.AllowedOutputs
	}

	return Outcome{
		Status:         status,
		ReasonCodes:    dedupe(reasons),
		BlockingIssues: issues,
		Details:        details,
		Attestation:    summary,
	}
}
