package gates

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/profile"
)

func writeCardsFile(t *testing.T, cards []map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "latest_experiment_cards.json")
	payload := ResearchCardsFile{CardCount: len(cards), Cards: cards}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func baseResearchConfig() profile.ResearchConfig {
	return profile.ResearchConfig{
		MinCards:                     1,
		RequiredFields:               []string{"card_id", "source_paper_id"},
		RequiredFieldMissingRatioMax: 0.5,
		UnresolvedConflictRatioMax:   0.5,
		TraceabilityRatioMin:         0.5,
		CitationParseRatioMin:        0.5,
	}
}

func TestRunG2MissingFileIsPolicyFail(t *testing.T) {
	out := RunG2(filepath.Join(t.TempDir(), "missing.json"), baseResearchConfig())
	if out.Status != checkpoint.StatusPolicyFail {
		t.Fatalf("status = %v, want policy_fail", out.Status)
	}
	if len(out.ReasonCodes) != 1 || out.ReasonCodes[0] != codes.ReasonMetricMissing {
		t.Fatalf("reasonCodes = %v", out.ReasonCodes)
	}
}

func TestRunG2EmptyCardsListFailsWithMetricMissing(t *testing.T) {
	path := writeCardsFile(t, nil)
	out := RunG2(path, baseResearchConfig())
	if out.Status != checkpoint.StatusPolicyFail {
		t.Fatalf("status = %v, want policy_fail", out.Status)
	}
	found := false
	for _, c := range out.ReasonCodes {
		if c == codes.ReasonMetricMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("reasonCodes = %v, want %s present", out.ReasonCodes, codes.ReasonMetricMissing)
	}
}

func TestRunG2HealthyCardsPass(t *testing.T) {
	cards := []map[string]any{
		{
			"card_id":         "c1",
			"source_paper_id": "p1",
			"source_title":    "Title",
			"conflict_status": "resolved",
		},
		{
			"card_id":         "c2",
			"source_paper_id": "p2",
			"source_title":    "Title2",
			"conflict_status": "resolved",
		},
	}
	path := writeCardsFile(t, cards)
	out := RunG2(path, baseResearchConfig())
	if out.Status != checkpoint.StatusPass {
		t.Fatalf("status = %v, want pass; issues=%v", out.Status, out.BlockingIssues)
	}
}

func TestRunG2UnresolvedConflictBreachesRatio(t *testing.T) {
	cfg := baseResearchConfig()
	cfg.UnresolvedConflictRatioMax = 0.1
	cards := []map[string]any{
		{"card_id": "c1", "source_paper_id": "p1", "source_title": "T1", "conflict_status": "open"},
	}
	path := writeCardsFile(t, cards)
	out := RunG2(path, cfg)
	if out.Status != checkpoint.StatusPolicyFail {
		t.Fatalf("status = %v, want policy_fail", out.Status)
	}
}

func TestRunG2BelowMinCardsFails(t *testing.T) {
	cfg := baseResearchConfig()
	cfg.MinCards = 5
	cards := []map[string]any{
		{"card_id": "c1", "source_paper_id": "p1", "source_title": "T1"},
	}
	path := writeCardsFile(t, cards)
	out := RunG2(path, cfg)
	if out.Status != checkpoint.StatusPolicyFail {
		t.Fatalf("status = %v, want policy_fail", out.Status)
	}
}
