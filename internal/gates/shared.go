// Package gates implements the five fixed pipeline stages G0..G4. Each
// gate is a pure function from inputs to an Outcome; internal/supervisor
// owns retry, timeout, and checkpoint persistence around these calls.
package gates

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
)

// Outcome is one gate attempt's raw result, before the supervisor wraps it
// into a full Checkpoint with timing/hash/idempotency fields.
type Outcome struct {
	Status              checkpoint.Status
	ReasonCodes         []string
	BlockingIssues      []string
	Details             map[string]any
	DatasetSnapshotHash string
	Attestation         *checkpoint.AttestationSummary
}

func dedupe(in []string) []string {
	return codes.Dedupe(in)
}

// pickNumber returns the first key
// present in payload whose value is numeric.
func pickNumber(payload map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok {
			continue
		}
		if f, ok := asFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

// pickInt is pickNumber restricted to integral values: a fractional
// number is treated as not found, never truncated.
func pickInt(payload map[string]any, keys []string) (int, bool) {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok {
			continue
		}
		if i, ok := asInt(v); ok {
			return i, true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// sha256File hashes a file's bytes, mirroring internal/snapshot's hashFile.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
