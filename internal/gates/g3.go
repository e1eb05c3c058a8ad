package gates

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/marcohefti/releasegate/internal/canon"
	"github.com/marcohefti/releasegate/internal/checkpoint"
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/ioutil"
	"github.com/marcohefti/releasegate/internal/profile"
	"github.com/marcohefti/releasegate/internal/snapshot"
	"github.com/marcohefti/releasegate/internal/stress"
)

// G3Inputs names every optional/required on-disk input G3 reads.
type G3Inputs struct {
	RunID               string
	RunDir              string
	Profile             profile.Profile
	Registry            profile.MetricRegistry
	StrategyMetricsPath string
	AdmissionReportPath string
	ExternalReportPath  string
	HealthReportPath    string
	BudgetUsagePath     string
	DatasetPath         string
	FeaturesPath        string
	LabelsPath          string
	SplitPath           string
}

func readOptionalJSON(path string) map[string]any {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	var m map[string]any
	if err := ioutil.ReadJSON(path, &m); err != nil {
		return nil
	}
	return m
}

var intMetricAliases = map[string][]string{
	"min_trades":                 {"min_trades", "trade_count", "trades"},
	"min_backtest_days":          {"min_backtest_days", "backtest_days", "days"},
	"min_effective_observations": {"min_effective_observations", "effective_observations", "effective_n"},
}

var floatMetricAliases = map[string][]string{
	"pbo":             {"pbo", "meanPbo"},
	"dsr_probability": {"dsr_probability", "meanDsrProbability"},
	"fdr_q":           {"fdr_q", "fdrQ"},
}

// RunG3 checks admission counts,
// strategy metric thresholds, stress-metric decline, source health,
// budget caps, statistics-lock agreement, and dataset-snapshot drift.
func RunG3(in G3Inputs, now time.Time) Outcome {
	strict := in.Profile.ValidationMode != profile.ValidationTolerant

	var reasons []string
	var issues []string
	var warnings []string
	details := map[string]any{
		"formula": map[string]any{"id": stress.FormulaID, "hash": stress.FormulaHash},
	}

	strategyMetrics := readOptionalJSON(in.StrategyMetricsPath)
	admission := readOptionalJSON(in.AdmissionReportPath)
	external := readOptionalJSON(in.ExternalReportPath)
	health := readOptionalJSON(in.HealthReportPath)
	budgetUsage := readOptionalJSON(in.BudgetUsagePath)

	if strategyMetrics != nil {
		details["strategyMetricsPath"] = in.StrategyMetricsPath
	}
	if admission != nil {
		details["admissionReportPath"] = in.AdmissionReportPath
	}
	if external != nil {
		details["externalReportPath"] = in.ExternalReportPath
	}
	if health != nil {
		details["healthReportPath"] = in.HealthReportPath
	}
	if budgetUsage != nil {
		details["budgetUsagePath"] = in.BudgetUsagePath
	}

	var rows []any
	if admission != nil {
		if r, ok := asSlice(admission["rows"]); ok {
			rows = r
		}
	}
	pocCount, ok := pickInt(admission, []string{"total_candidates"})
	if !ok {
		pocCount = len(rows)
	}
	passCandidates := 0
	for _, rowAny := range rows {
		row, ok := asMap(rowAny)
		if !ok {
			continue
		}
		mainEligible, _ := asBool(row["main_eligible"])
		transferPass, _ := asBool(row["transfer_pass"])
		if mainEligible || transferPass {
			passCandidates++
		}
	}

	if pocCount < in.Profile.Strategy.Admission.MinTotalCandidates {
		issues = append(issues, fmt.Sprintf("min_poc_count not met: %d < %d", pocCount, in.Profile.Strategy.Admission.MinTotalCandidates))
		reasons = append(reasons, codes.ReasonInsufficientSample)
	}
	if passCandidates < in.Profile.Strategy.Admission.MinPassCandidates {
		issues = append(issues, fmt.Sprintf("pass_candidates_min not met: %d < %d", passCandidates, in.Profile.Strategy.Admission.MinPassCandidates))
		reasons = append(reasons, codes.ReasonInsufficientSample)
	}

	metrics := map[string]float64{}
	var missingMetrics []string

	intThresholds := map[string]int{
		"min_trades":                 in.Profile.Strategy.MinTrades,
		"min_backtest_days":          in.Profile.Strategy.MinBacktestDays,
		"min_effective_observations": in.Profile.Strategy.MinEffectiveObservations,
	}
	for _, name := range []string{"min_trades", "min_backtest_days", "min_effective_observations"} {
		value, found := pickInt(strategyMetrics, intMetricAliases[name])
		if !found {
			missingMetrics = append(missingMetrics, name)
			continue
		}
		metrics[name] = float64(value)
		threshold := intThresholds[name]
		if value < threshold {
			issues = append(issues, fmt.Sprintf("%s not met: %d < %d", name, value, threshold))
			reasons = append(reasons, codes.ReasonInsufficientSample)
		}
	}
	for _, name := range []string{"pbo", "dsr_probability", "fdr_q"} {
		value, found := pickNumber(strategyMetrics, floatMetricAliases[name])
		if !found {
			missingMetrics = append(missingMetrics, name)
			continue
		}
		metrics[name] = value
	}

	if v, ok := metrics["pbo"]; ok && v > in.Profile.Strategy.PboMax {
		issues = append(issues, fmt.Sprintf("pbo exceeds threshold: %.6f > %.6f", v, in.Profile.Strategy.PboMax))
		reasons = append(reasons, codes.ReasonThresholdBreach)
	}
	if v, ok := metrics["dsr_probability"]; ok && v < in.Profile.Strategy.DsrProbabilityMin {
		issues = append(issues, fmt.Sprintf("dsr_probability below threshold: %.6f < %.6f", v, in.Profile.Strategy.DsrProbabilityMin))
		reasons = append(reasons, codes.ReasonThresholdBreach)
	}
	if v, ok := metrics["fdr_q"]; ok && v > in.Profile.Strategy.FdrQMax {
		issues = append(issues, fmt.Sprintf("fdr_q exceeds threshold: %.6f > %.6f", v, in.Profile.Strategy.FdrQMax))
		reasons = append(reasons, codes.ReasonThresholdBreach)
	}

	baseline, baselineOK := pickNumber(strategyMetrics, []string{"baseline_net_trim10_mean"})
	candidate, candidateOK := pickNumber(strategyMetrics, []string{"candidate_net_trim10_mean"})
	if !baselineOK {
		if ext, ok := asMap(external["baseline"]); ok {
			if v, found := pickNumber(ext, []string{"net_trim10_mean"}); found {
				baseline, baselineOK = v, true
			}
		}
	}
	if !candidateOK {
		if agg, ok := asSlice(external["aggregate"]); ok {
			var best float64
			found := false
			for _, rowAny := range agg {
				row, ok := asMap(rowAny)
				if !ok {
					continue
				}
				v, ok := pickNumber(row, []string{"net_trim10_mean"})
				if !ok {
					continue
				}
				if !found || v > best {
					best = v
					found = true
				}
			}
			if found {
				candidate, candidateOK = best, true
			}
		}
	}

	if baselineOK && candidateOK {
		decline := stress.Decline(baseline, candidate)
		metrics["stress_net_trim10_decline"] = decline
		if decline > in.Profile.Strategy.StressNetTrim10DeclineMax {
			issues = append(issues, fmt.Sprintf("stress_net_trim10_decline exceeds threshold: %.6f > %.6f", decline, in.Profile.Strategy.StressNetTrim10DeclineMax))
			reasons = append(reasons, codes.ReasonThresholdBreach)
		}
	} else {
		missingMetrics = append(missingMetrics, "stress_net_trim10_decline")
		reasons = append(reasons, codes.ReasonStressMetricUndefined)
		issues = append(issues, "stress metric inputs missing (baseline/candidate)")
	}

	if leaked, ok := asBool(strategyMetrics["leakage_detected"]); ok && leaked {
		issues = append(issues, "leakage_detected=true")
		reasons = append(reasons, codes.ReasonLeakageDetected)
	}

	if health != nil {
		type healthCheck struct {
			name      string
			value     float64
			hasValue  bool
			threshold float64
			hasMax    bool
		}
		sh := in.Profile.SourceHealth
		checks := []healthCheck{}
		addCheck := func(name, key string, max float64) {
			v, ok := pickNumber(health, []string{key})
			checks = append(checks, healthCheck{name: name, value: v, hasValue: ok, threshold: max, hasMax: max > 0})
		}
		addCheck("stale_watch_minutes", "stale_watch_minutes", sh.StaleWatchMinutesMax)
		addCheck("stale_optimize_minutes", "stale_optimize_minutes", sh.StaleOptimizeMinutesMax)
		addCheck("stale_queue_drain_minutes", "stale_queue_drain_minutes", sh.StaleQueueDrainMinutesMax)
		addCheck("queue_length", "queue_length", sh.QueueLengthMax)
		addCheck("queue_legacy_ratio", "queue_legacy_ratio", sh.QueueLegacyRatioMax)
		for _, c := range checks {
			if !c.hasMax {
				continue
			}
			if !c.hasValue {
				msg := fmt.Sprintf("source health metric missing: %s", c.name)
				if strict {
					issues = append(issues, msg)
					reasons = append(reasons, codes.ReasonSourceHealthFail)
				} else {
					warnings = append(warnings, msg)
				}
				continue
			}
			if c.value > c.threshold {
				issues = append(issues, fmt.Sprintf("source health threshold breach: %s=%v > %v", c.name, c.value, c.threshold))
				reasons = append(reasons, codes.ReasonSourceHealthFail)
			}
		}
	} else if strict {
		issues = append(issues, fmt.Sprintf("missing source health report: %s", in.HealthReportPath))
		reasons = append(reasons, codes.ReasonSourceHealthFail)
	}

	if budgetUsage != nil {
		b := in.Profile.Budget
		dailyTokens, hasDailyTokens := pickNumber(budgetUsage, []string{"daily_tokens", "daily_token_usage", "dailyTokenUsage", "dailyTokens"})
		perTaskTokens, hasPerTask := pickNumber(budgetUsage, []string{"per_task_tokens", "per_task_token_usage", "perTaskTokenUsage"})
		dailyCost, hasDailyCost := pickNumber(budgetUsage, []string{"daily_cost_usd", "dailyCostUsd", "cost_usd", "daily_cost"})

		if hasDailyTokens && b.DailyTokensHardCap > 0 && dailyTokens > float64(b.DailyTokensHardCap) {
			issues = append(issues, fmt.Sprintf("daily token hard cap breach: %.0f > %d", dailyTokens, b.DailyTokensHardCap))
			reasons = append(reasons, codes.ReasonBudgetHardCapHit)
		}
		if hasPerTask && b.PerTaskTokensHardCap > 0 && perTaskTokens > float64(b.PerTaskTokensHardCap) {
			issues = append(issues, fmt.Sprintf("per-task token hard cap breach: %.0f > %d", perTaskTokens, b.PerTaskTokensHardCap))
			reasons = append(reasons, codes.ReasonBudgetHardCapHit)
		}
		if hasDailyCost && b.DailyCostUsdHardCap > 0 && dailyCost > b.DailyCostUsdHardCap {
			issues = append(issues, fmt.Sprintf("daily cost hard cap breach: %.4f > %.4f", dailyCost, b.DailyCostUsdHardCap))
			reasons = append(reasons, codes.ReasonBudgetHardCapHit)
		}
		if hasDailyTokens && b.DailyTokensSoftCap > 0 && dailyTokens > float64(b.DailyTokensSoftCap) {
			warnings = append(warnings, fmt.Sprintf("daily token soft cap exceeded: %.0f > %d", dailyTokens, b.DailyTokensSoftCap))
		}
		if hasDailyCost && b.DailyCostUsdSoftCap > 0 && dailyCost > b.DailyCostUsdSoftCap {
			warnings = append(warnings, fmt.Sprintf("daily cost soft cap exceeded: %.4f > %.4f", dailyCost, b.DailyCostUsdSoftCap))
		}
	} else if strict {
		issues = append(issues, fmt.Sprintf("missing budget usage report: %s", in.BudgetUsagePath))
		reasons = append(reasons, codes.ReasonMetricMissing)
	}

	if candidateLock, ok := asMap(strategyMetrics["statistics_lock"]); ok {
		var registryLock map[string]any
		if len(in.Registry.StatisticsLock) > 0 {
			_ = json.Unmarshal(in.Registry.StatisticsLock, &registryLock)
		}
		if registryLock != nil && canon.MustHash(candidateLock) != canon.MustHash(registryLock) {
			issues = append(issues, "statistics_lock mismatch between registry and strategy metrics")
			reasons = append(reasons, codes.ReasonStatMethodMismatch)
		}
	}

	datasetLockPath := in.RunDir + "/dataset_snapshot_lock.json"
	snapIn := snapshot.Inputs{DatasetPath: in.DatasetPath, FeaturesPath: in.FeaturesPath, LabelsPath: in.LabelsPath, SplitPath: in.SplitPath}
	lockedSnapshot, lockErr := snapshot.LoadOrCreate(datasetLockPath, in.RunID, snapIn, now)
	if lockErr != nil {
		issues = append(issues, lockErr.Error())
		reasons = append(reasons, codes.ReasonDatasetSnapshotDrift)
	} else {
		liveSnapshot, buildErr := snapshot.Build(in.RunID, snapIn, now)
		if buildErr != nil {
			issues = append(issues, buildErr.Error())
			reasons = append(reasons, codes.ReasonDatasetSnapshotDrift)
		} else if drift := snapshot.DriftFields(lockedSnapshot, liveSnapshot); len(drift) > 0 {
			issues = append(issues, fmt.Sprintf("dataset snapshot drift on %s", drift[0]))
			reasons = append(reasons, codes.ReasonDatasetSnapshotDrift)
		}
	}

	if len(missingMetrics) > 0 {
		unique := uniqueSorted(missingMetrics)
		msg := "missing metrics: " + strings.Join(unique, ", ")
		if strict {
			issues = append(issues, msg)
			reasons = append(reasons, codes.ReasonMetricMissing)
		} else {
			warnings = append(warnings, msg)
		}
	}

	status := checkpoint.StatusPass
	if len(issues) > 0 {
		status = checkpoint.StatusPolicyFail
	}

	details["strategyMetrics"] = metrics
	details["warnings"] = warnings
	details["pocCount"] = pocCount
	details["passCandidates"] = passCandidates
	details["statisticsLockHash"] = statisticsLockHash(in.Registry)
	details["thresholdsHash"] = canon.MustHash(in.Profile.Strategy)

	var datasetSnapshotHash string
	if _, err := os.Stat(datasetLockPath); err == nil {
		details["datasetSnapshotLockPath"] = datasetLockPath
		if h, err := sha256File(datasetLockPath); err == nil {
			datasetSnapshotHash = h
			details["datasetSnapshotHash"] = h
		}
	}

	return Outcome{
		Status:              status,
		ReasonCodes:         dedupe(reasons),
		BlockingIssues:      issues,
		Details:             details,
		DatasetSnapshotHash: datasetSnapshotHash,
	}
}

func uniqueSorted(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func statisticsLockHash(reg profile.MetricRegistry) string {
	if len(reg.StatisticsLock) == 0 {
		return canon.MustHash(map[string]any{})
	}
	var v any
	_ = json.Unmarshal(reg.StatisticsLock, &v)
	return canon.MustHash(v)
}
