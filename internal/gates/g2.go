package gates

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/ioutil"
	"github.com/marcohefti/releasegate/internal/profile"
)

// ResearchCardsFile is the latest_experiment_cards.json data model G2 reads.
type ResearchCardsFile struct {
	CardCount int              `json:"card_count"`
	Cards     []map[string]any `json:"cards"`
}

func round6(f float64) float64 {
	const scale = 1e6
	if f < 0 {
		return -(float64(int64(-f*scale+0.5)) / scale)
	}
	return float64(int64(f*scale+0.5)) / scale
}

// RunG2 evaluates research-card quality ratios against their
// configured thresholds.
func RunG2(researchCardsPath string, cfg profile.ResearchConfig) Outcome {
	if _, err := os.Stat(researchCardsPath); err != nil {
		return Outcome{
			Status:         checkpoint.StatusPolicyFail,
			ReasonCodes:    []string{codes.ReasonMetricMissing},
			BlockingIssues: []string{fmt.Sprintf("research cards file not found: %s", researchCardsPath)},
			Details:        map[string]any{"cardsPath": researchCardsPath},
		}
	}

	var payload ResearchCardsFile
	if err := ioutil.ReadJSON(researchCardsPath, &payload); err != nil {
		return Outcome{
			Status:         checkpoint.StatusToolError,
			ReasonCodes:    []string{codes.ReasonHardGateCheckFailed},
			BlockingIssues: []string{fmt.Sprintf("research cards file unreadable: %v", err)},
			Details:        map[string]any{"cardsPath": researchCardsPath},
		}
	}

	cards := payload.Cards
	cardCount := payload.CardCount
	if cardCount == 0 {
		cardCount = len(cards)
	}

	var reasons []string
	var issues []string

	if cardCount < cfg.MinCards {
		issues = append(issues, fmt.Sprintf("card_count below threshold: %d < %d", cardCount, cfg.MinCards))
		reasons = append(reasons, codes.ReasonThresholdBreach)
	}

	requiredFields := cfg.RequiredFields
	missingFieldCount := 0
	if len(requiredFields) > 0 {
		for _, card := range cards {
			for _, field := range requiredFields {
				v, ok := card[field]
				if !ok || v == nil {
					missingFieldCount++
					continue
				}
				if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
					missingFieldCount++
				}
			}
		}
	}
	denom := cardCount * maxInt(len(requiredFields), 1)
	if denom < 1 {
		denom = 1
	}
	missingRatio := float64(missingFieldCount) / float64(denom)
	if missingRatio > cfg.RequiredFieldMissingRatioMax {
		issues = append(issues, fmt.Sprintf("required_field_missing_ratio exceeded: %.6f > %.6f", missingRatio, cfg.RequiredFieldMissingRatioMax))
		reasons = append(reasons, codes.ReasonThresholdBreach)
	}

	unresolvedConflicts := 0
	traceableCount := 0
	citationParseCount := 0
	for _, card := range cards {
		if status, ok := asString(card["conflict_status"]); ok {
			low := strings.ToLower(status)
			if low == "open" || low == "unresolved" {
				unresolvedConflicts++
			}
		}
		cardID, idOK := asString(card["card_id"])
		paperID, paperOK := asString(card["source_paper_id"])
		title, titleOK := asString(card["source_title"])
		if idOK && strings.TrimSpace(cardID) != "" && paperOK && strings.TrimSpace(paperID) != "" && titleOK && strings.TrimSpace(title) != "" {
			traceableCount++
		}
		if paperOK && strings.TrimSpace(paperID) != "" {
			citationParseCount++
		}
	}

	denomCards := maxInt(cardCount, 1)
	unresolvedRatio := float64(unresolvedConflicts) / float64(denomCards)
	if unresolvedRatio > cfg.UnresolvedConflictRatioMax {
		issues = append(issues, fmt.Sprintf("unresolved_conflict_ratio exceeded: %.6f > %.6f", unresolvedRatio, cfg.UnresolvedConflictRatioMax))
		reasons = append(reasons, codes.ReasonThresholdBreach)
	}

	traceabilityRatio := float64(traceableCount) / float64(denomCards)
	if traceabilityRatio < cfg.TraceabilityRatioMin {
		issues = append(issues, fmt.Sprintf("traceability_ratio below threshold: %.6f < %.6f", traceabilityRatio, cfg.TraceabilityRatioMin))
		reasons = append(reasons, codes.ReasonThresholdBreach)
	}

	citationParseRatio := float64(citationParseCount) / float64(denomCards)
	if citationParseRatio < cfg.CitationParseRatioMin {
		issues = append(issues, fmt.Sprintf("citation_parse_ratio below threshold: %.6f < %.6f", citationParseRatio, cfg.CitationParseRatioMin))
		reasons = append(reasons, codes.ReasonThresholdBreach)
	}

	details := map[string]any{
		"cardsPath":                 researchCardsPath,
		"cardCount":                 cardCount,
		"missingFieldCount":         missingFieldCount,
		"requiredFieldMissingRatio": round6(missingRatio),
		"unresolvedConflictRatio":   round6(unresolvedRatio),
		"traceabilityRatio":         round6(traceabilityRatio),
		"citationParseRatio":        round6(citationParseRatio),
	}

	status := checkpoint.StatusPass
	if len(issues) > 0 {
		status = checkpoint.StatusPolicyFail
	}
	if len(cards) == 0 {
		reasons = append(reasons, codes.ReasonMetricMissing)
		if status != checkpoint.StatusPolicyFail {
			status = checkpoint.StatusPolicyFail
			issues = append(issues, "cards list is empty")
		}
	}

	return Outcome{
		Status:         status,
		ReasonCodes:    dedupe(reasons),
		BlockingIssues: issues,
		Details:        details,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
