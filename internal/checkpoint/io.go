package checkpoint

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/marcohefti/releasegate/internal/canon"
	"github.com/marcohefti/releasegate/internal/ioutil"
)

// IdempotencyKey is the canonical-JSON hash of
// {runId, gate, attempt, profileHash} and nothing else, so re-running
// the same attempt always derives the same key.
func IdempotencyKey(runID string, gate Gate, attempt int, profileHash string) (string, error) {
	return canon.Hash(map[string]any{
		"runId":       runID,
		"gate":        gate,
		"attempt":     attempt,
		"profileHash": profileHash,
	})
}

// AttemptPath is checkpoints/<gate>_attempt<N>.json under runDir.
func AttemptPath(runDir string, gate Gate, attempt int) string {
	return filepath.Join(runDir, "checkpoints", fmt.Sprintf("%s_attempt%d.json", gate, attempt))
}

// WriteAttempt persists the per-attempt checkpoint file write-once.
func WriteAttempt(runDir string, c Checkpoint) error {
	return ioutil.WriteJSONOnce(AttemptPath(runDir, c.Gate, c.Attempt), c)
}

// AppendHistory appends c to the output-root-level append-only history
// NDJSON.
func AppendHistory(historyPath string, c Checkpoint) error {
	return ioutil.AppendJSONL(historyPath, c)
}

// ReadHistory reads every checkpoint recorded in the history NDJSON. A
// missing file yields an empty, nil-error result.
func ReadHistory(historyPath string) ([]Checkpoint, error) {
	var out []Checkpoint
	err := ioutil.ReadJSONLInto[Checkpoint](historyPath, func(c Checkpoint) error {
		out = append(out, c)
		return nil
	})
	return out, err
}

// SortByGateAttempt orders checkpoints deterministically by
// (gate, attempt) before emission.
func SortByGateAttempt(cs []Checkpoint) {
	gateOrder := make(map[Gate]int, len(Gates))
	for i, g := range Gates {
		gateOrder[g] = i
	}
	sort.SliceStable(cs, func(i, j int) bool {
		gi, gj := gateOrder[cs[i].Gate], gateOrder[cs[j].Gate]
		if gi != gj {
			return gi < gj
		}
		return cs[i].Attempt < cs[j].Attempt
	})
}

// WriteGateCheckpoints writes gate_checkpoints.json: all checkpoints for
// this run, sorted.
func WriteGateCheckpoints(runDir string, cs []Checkpoint) error {
	sorted := make([]Checkpoint, len(cs))
	copy(sorted, cs)
	SortByGateAttempt(sorted)
	return ioutil.WriteJSONAtomic(filepath.Join(runDir, "gate_checkpoints.json"), sorted)
}

// LastByGate returns a map from each gate to its last-recorded attempt
// among cs (nil if the gate has no checkpoints yet); a map has no order,
// so callers iterate Gates for pipeline order.
func LastByGate(cs []Checkpoint) map[Gate]*Checkpoint {
	out := make(map[Gate]*Checkpoint, len(Gates))
	for i := range cs {
		c := cs[i]
		cur, ok := out[c.Gate]
		if !ok || c.Attempt >= cur.Attempt {
			cc := c
			out[c.Gate] = &cc
		}
	}
	return out
}
