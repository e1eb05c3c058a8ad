// Package migrate implements the migration-compare utility: checking
// two verdict documents for type-correctness and then diffing them
// field-by-field. Every validation error carries a JSON-pointer-style
// field path so a reviewer can locate the offending field directly.
package migrate

import (
	"fmt"
	"sort"
	"time"

	"github.com/marcohefti/releasegate/internal/ioutil"
)

const ReportVersion = "v1"

// requiredField is one verdict field's expected JSON kind, checked by
// validate via a type switch on the decoded interface{} value.
type requiredField struct {
	path string
	kind string // "string", "array", "object", "number"
}

var requiredFields = []requiredField{
	{"/version", "string"},
	{"/generatedAt", "string"},
	{"/runId", "string"},
	{"/result", "string"},
	{"/decisionWeight", "string"},
	{"/reasonCodes", "array"},
	{"/profileHash", "string"},
	{"/thresholdsHash", "string"},
	{"/statisticsLockHash", "string"},
	{"/registryVersion", "string"},
	{"/metricVersions", "object"},
}

var validResults = map[string]bool{
	"NO_GO":                      true,
	"PAPER_ONLY_GO":              true,
	"BLOCKED_WITH_RECOVERY_PLAN": true,
}

func kindOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

// validateVerdictPayload reports one /json-pointer-style error per field
// that is missing or of the wrong JSON kind.
func validateVerdictPayload(name string, payload map[string]any) []string {
	var issues []string
	for _, f := range requiredFields {
		key := f.path[1:]
		v, ok := payload[key]
		if !ok || kindOf(v) != f.kind {
			issues = append(issues, fmt.Sprintf("%s%s: expected %s, got %s", name, f.path, f.kind, kindOf(v)))
		}
	}
	if result, ok := payload["result"].(string); ok && !validResults[result] {
		issues = append(issues, fmt.Sprintf("%s/result: invalid enum value %q", name, result))
	}
	if codes, ok := payload["reasonCodes"].([]any); ok {
		for i, c := range codes {
			if _, ok := c.(string); !ok {
				issues = append(issues, fmt.Sprintf("%s/reasonCodes/%d: expected string, got %s", name, i, kindOf(c)))
			}
		}
	}
	return issues
}

// ReasonCodeDiff is the symmetric difference of two verdicts' reasonCodes
// sets.
type ReasonCodeDiff struct {
	BaselineCount   int      `json:"baselineCount"`
	CandidateCount  int      `json:"candidateCount"`
	OnlyInBaseline  []string `json:"onlyInBaseline"`
	OnlyInCandidate []string `json:"onlyInCandidate"`
}

// Comparison is the field-level diff of two valid verdicts.
type Comparison struct {
	SameResult                bool           `json:"sameResult"`
	BaselineResult            string         `json:"baselineResult"`
	CandidateResult           string         `json:"candidateResult"`
	ReasonCodes               ReasonCodeDiff `json:"reasonCodes"`
	ProfileHashChanged        bool           `json:"profileHashChanged"`
	ThresholdsHashChanged     bool           `json:"thresholdsHashChanged"`
	StatisticsLockHashChanged bool           `json:"statisticsLockHashChanged"`
}

// Report is migration_compare_report.json's content.
type Report struct {
	Version       string      `json:"version"`
	GeneratedAt   string      `json:"generatedAt"`
	BaselinePath  string      `json:"baselinePath"`
	CandidatePath string      `json:"candidatePath"`
	Valid         bool        `json:"valid"`
	Errors        []string    `json:"errors"`
	Comparison    *Comparison `json:"comparison,omitempty"`
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

func stringSet(v any) map[string]bool {
	out := map[string]bool{}
	if arr, ok := v.([]any); ok {
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out[s] = true
			}
		}
	}
	return out
}

func compareVerdicts(baseline, candidate map[string]any) Comparison {
	baselineReasons := stringSet(baseline["reasonCodes"])
	candidateReasons := stringSet(candidate["reasonCodes"])

	var onlyBaseline, onlyCandidate []string
	for code := range baselineReasons {
		if !candidateReasons[code] {
			onlyBaseline = append(onlyBaseline, code)
		}
	}
	for code := range candidateReasons {
		if !baselineReasons[code] {
			onlyCandidate = append(onlyCandidate, code)
		}
	}
	sort.Strings(onlyBaseline)
	sort.Strings(onlyCandidate)

	baselineResult := stringOr(baseline["result"])
	candidateResult := stringOr(candidate["result"])

	return Comparison{
		SameResult:      baselineResult == candidateResult,
		BaselineResult:  baselineResult,
		CandidateResult: candidateResult,
		ReasonCodes: ReasonCodeDiff{
			BaselineCount:   len(baselineReasons),
			CandidateCount:  len(candidateReasons),
			OnlyInBaseline:  onlyBaseline,
			OnlyInCandidate: onlyCandidate,
		},
		ProfileHashChanged:        stringOr(baseline["profileHash"]) != stringOr(candidate["profileHash"]),
		ThresholdsHashChanged:     stringOr(baseline["thresholdsHash"]) != stringOr(candidate["thresholdsHash"]),
		StatisticsLockHashChanged: stringOr(baseline["statisticsLockHash"]) != stringOr(candidate["statisticsLockHash"]),
	}
}

func readVerdict(path string) (map[string]any, error) {
	var v map[string]any
	if err := ioutil.ReadJSON(path, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%s must be a JSON object", path)
	}
	return v, nil
}

// Compare loads both verdict
// documents, validate their shape, diff them, write the report, and
// return the process exit code (0 if sameResult and no
// candidate-only reason codes, else 2; also 2 on load/validation
// failure).
func Compare(baselinePath, candidatePath, reportPath string, now time.Time) (Report, int, error) {
	report := Report{
		Version:       ReportVersion,
		GeneratedAt:   now.UTC().Format(time.RFC3339Nano),
		BaselinePath:  baselinePath,
		CandidatePath: candidatePath,
	}

	baseline, err := readVerdict(baselinePath)
	if err != nil {
		report.Valid = false
		report.Errors = []string{fmt.Sprintf("input_load_error: %v", err)}
		return finish(report, reportPath, 2)
	}
	candidate, err := readVerdict(candidatePath)
	if err != nil {
		report.Valid = false
		report.Errors = []string{fmt.Sprintf("input_load_error: %v", err)}
		return finish(report, reportPath, 2)
	}

	issues := append(validateVerdictPayload("baseline", baseline), validateVerdictPayload("candidate", candidate)...)
	if len(issues) > 0 {
		report.Valid = false
		report.Errors = issues
		return finish(report, reportPath, 2)
	}

	comparison := compareVerdicts(baseline, candidate)
	report.Valid = true
	report.Errors = []string{}
	report.Comparison = &comparison

	exit := 2
	if comparison.SameResult && len(comparison.ReasonCodes.OnlyInCandidate) == 0 {
		exit = 0
	}
	return finish(report, reportPath, exit)
}

func finish(report Report, reportPath string, exit int) (Report, int, error) {
	if err := ioutil.WriteJSONAtomic(reportPath, report); err != nil {
		return report, exit, fmt.Errorf("migrate: write report: %w", err)
	}
	return report, exit, nil
}
