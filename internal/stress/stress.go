// Package stress pins the single stress-metric formula used by G3:
// stress_net_trim10_decline. The formula text is kept as a raw string
// constant so its SHA-256 provenance hash is computed from the same
// bytes an auditor would read, not from a paraphrase.
package stress

import "github.com/marcohefti/releasegate/internal/canon"

// FormulaID identifies the pinned formula.
const FormulaID = "stress_net_trim10_decline_v1"

// FormulaExpr is the literal formula text whose hash is FormulaHash.
const FormulaExpr = "max(0, (baseline_net_trim10_mean - candidate_net_trim10_mean) / " +
	"max(abs(baseline_net_trim10_mean), 1e-9))"

// FormulaHash is the SHA-256 of FormulaExpr, recorded on every G3
// checkpoint's details.formula block for provenance.
var FormulaHash = canon.HashBytes([]byte(FormulaExpr))

// minDenominator floors the divisor against near-zero baselines.
const minDenominator = 1e-9

// Decline computes stress_net_trim10_decline(baseline, candidate): for
// candidate <= baseline it is the fractional decline; for candidate >
// baseline (an improvement) it floors at 0.
func Decline(baselineNetTrim10Mean, candidateNetTrim10Mean float64) float64 {
	denom := baselineNetTrim10Mean
	if denom < 0 {
		denom = -denom
	}
	if denom < minDenominator {
		denom = minDenominator
	}
	decline := (baselineNetTrim10Mean - candidateNetTrim10Mean) / denom
	if decline < 0 {
		return 0
	}
	return decline
}
