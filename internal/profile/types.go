// Package profile models the frozen run configuration: the gate
// thresholds profile, the metric registry, the reason-code catalog
// loader glue, the active-owners list, and the auxiliary policies
// (source-fallback, runner-guard).
package profile

import (
	"encoding/json"
	"strings"
)

// RetryConfig is one gate's retry budget.
type RetryConfig struct {
	MaxAttempts     int `json:"max_attempts" yaml:"max_attempts"`
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds"`
}

// G0Config toggles and thresholds the fail-fast gate. The
// require_* toggles are pointers because an absent key means required, not
// disabled.
type G0Config struct {
	RequireReasonCodeLint      *bool    `json:"require_reason_code_lint" yaml:"require_reason_code_lint"`
	RequireCommandAvailability *bool    `json:"require_command_availability" yaml:"require_command_availability"`
	RequireClockDrift          *bool    `json:"require_clock_drift" yaml:"require_clock_drift"`
	RequireSecretsHygiene      *bool    `json:"require_secrets_hygiene" yaml:"require_secrets_hygiene"`
	RequiredCommands           []string `json:"required_commands" yaml:"required_commands"`
	ClockDriftMsMax            int64    `json:"clock_drift_ms_max" yaml:"clock_drift_ms_max"`
	TrackedFiles               []string `json:"tracked_files" yaml:"tracked_files"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (c G0Config) ReasonCodeLintRequired() bool { return boolOr(c.RequireReasonCodeLint, true) }
func (c G0Config) CommandAvailabilityRequired() bool {
	return boolOr(c.RequireCommandAvailability, true)
}
func (c G0Config) ClockDriftRequired() bool     { return boolOr(c.RequireClockDrift, true) }
func (c G0Config) SecretsHygieneRequired() bool { return boolOr(c.RequireSecretsHygiene, true) }

// G1Config toggles the three G1 sub-checks. Absent keys
// default to required, same as G0.
type G1Config struct {
	RequireEnvLock        *bool `json:"require_env_lock" yaml:"require_env_lock"`
	RequireFreezeManifest *bool `json:"require_freeze_manifest" yaml:"require_freeze_manifest"`
	RequirePostPullSync   *bool `json:"require_post_pull_sync" yaml:"require_post_pull_sync"`
}

func (c G1Config) EnvLockRequired() bool        { return boolOr(c.RequireEnvLock, true) }
func (c G1Config) FreezeManifestRequired() bool { return boolOr(c.RequireFreezeManifest, true) }
func (c G1Config) PostPullSyncRequired() bool   { return boolOr(c.RequirePostPullSync, true) }

// ResearchConfig is G2's research-card quality thresholds.
type ResearchConfig struct {
	MinCards                     int      `json:"min_cards" yaml:"min_cards"`
	RequiredFields               []string `json:"required_fields" yaml:"required_fields"`
	RequiredFieldMissingRatioMax float64  `json:"required_field_missing_ratio_max" yaml:"required_field_missing_ratio_max"`
	UnresolvedConflictRatioMax   float64  `json:"unresolved_conflict_ratio_max" yaml:"unresolved_conflict_ratio_max"`
	TraceabilityRatioMin         float64  `json:"traceability_ratio_min" yaml:"traceability_ratio_min"`
	CitationParseRatioMin        float64  `json:"citation_parse_ratio_min" yaml:"citation_parse_ratio_min"`
}

// AdmissionConfig is G3's admission-counting thresholds.
type AdmissionConfig struct {
	MinTotalCandidates int `json:"min_total_candidates" yaml:"min_total_candidates"`
	MinPassCandidates  int `json:"min_pass_candidates" yaml:"min_pass_candidates"`
}

// StrategyConfig is G3's strategy-metrics thresholds.
type StrategyConfig struct {
	Admission                 AdmissionConfig `json:"admission" yaml:"admission"`
	MinTrades                 int             `json:"min_trades" yaml:"min_trades"`
	MinBacktestDays           int             `json:"min_backtest_days" yaml:"min_backtest_days"`
	MinEffectiveObservations  int             `json:"min_effective_observations" yaml:"min_effective_observations"`
	PboMax                    float64         `json:"pbo_max" yaml:"pbo_max"`
	DsrProbabilityMin         float64         `json:"dsr_probability_min" yaml:"dsr_probability_min"`
	FdrQMax                   float64         `json:"fdr_q_max" yaml:"fdr_q_max"`
	StressNetTrim10DeclineMax float64         `json:"stress_net_trim10_decline_max" yaml:"stress_net_trim10_decline_max"`
}

// SourceHealthConfig is G3's source-health thresholds.
type SourceHealthConfig struct {
	StaleWatchMinutesMax      float64 `json:"stale_watch_minutes_max" yaml:"stale_watch_minutes_max"`
	StaleOptimizeMinutesMax   float64 `json:"stale_optimize_minutes_max" yaml:"stale_optimize_minutes_max"`
	StaleQueueDrainMinutesMax float64 `json:"stale_queue_drain_minutes_max" yaml:"stale_queue_drain_minutes_max"`
	QueueLengthMax            float64 `json:"queue_length_max" yaml:"queue_length_max"`
	QueueLegacyRatioMax       float64 `json:"queue_legacy_ratio_max" yaml:"queue_legacy_ratio_max"`
}

// BudgetConfig is G3's budget thresholds. Soft caps only warn; hard caps
// fail with HARD_BUDGET_HARD_CAP_HIT.
type BudgetConfig struct {
	DailyTokensHardCap   int64   `json:"daily_tokens_hard_cap" yaml:"daily_tokens_hard_cap"`
	PerTaskTokensHardCap int64   `json:"per_task_tokens_hard_cap" yaml:"per_task_tokens_hard_cap"`
	DailyCostUsdHardCap  float64 `json:"daily_cost_usd_hard_cap" yaml:"daily_cost_usd_hard_cap"`
	DailyTokensSoftCap   int64   `json:"daily_tokens_soft_cap" yaml:"daily_tokens_soft_cap"`
	PerTaskTokensSoftCap int64   `json:"per_task_tokens_soft_cap" yaml:"per_task_tokens_soft_cap"`
	DailyCostUsdSoftCap  float64 `json:"daily_cost_usd_soft_cap" yaml:"daily_cost_usd_soft_cap"`
}

// DecisionConfig is the verdict deriver's allowed-outputs gate plus the decision weight stamped on every checkpoint and
// the verdict.
type DecisionConfig struct {
	AllowedOutputs        []string `json:"allowed_outputs,omitempty" yaml:"allowed_outputs,omitempty"`
	DefaultDecisionWeight string   `json:"default_decision_weight,omitempty" yaml:"default_decision_weight,omitempty"`
}

// Weight returns the configured decision weight, defaulting to "limited"
// when the profile leaves it unset.
func (c DecisionConfig) Weight() string {
	if strings.TrimSpace(c.DefaultDecisionWeight) == "" {
		return "limited"
	}
	return c.DefaultDecisionWeight
}

// ValidationMode controls whether missing metrics/health are hard failures
// or warnings.
type ValidationMode string

const (
	ValidationStrict   ValidationMode = "strict"
	ValidationTolerant ValidationMode = "tolerant"
)

// Profile is the full frozen configuration.
type Profile struct {
	G0                     G0Config               `json:"g0" yaml:"g0"`
	G1                     G1Config               `json:"g1" yaml:"g1"`
	Research               ResearchConfig         `json:"research" yaml:"research"`
	Strategy               StrategyConfig         `json:"strategy" yaml:"strategy"`
	SourceHealth           SourceHealthConfig     `json:"source_health" yaml:"source_health"`
	Budget                 BudgetConfig           `json:"budget" yaml:"budget"`
	Decision               DecisionConfig         `json:"decision" yaml:"decision"`
	TimeoutsMinutes        map[string]int         `json:"timeouts_minutes" yaml:"timeouts_minutes"`
	Retries                map[string]RetryConfig `json:"retries" yaml:"retries"`
	RetryOnStatus          []string               `json:"retry_on_status" yaml:"retry_on_status"`
	ValidationMode         ValidationMode         `json:"validation_mode" yaml:"validation_mode" validate:"required,oneof=strict tolerant"`
	HardBlockReasonCodesG3 []string               `json:"hard_block_reason_codes_g3" yaml:"hard_block_reason_codes_g3"`
}

// DefaultTimeoutMinutes is the per-attempt wall-clock default.
const DefaultTimeoutMinutes = 60

// TimeoutFor returns the configured per-attempt timeout for gate, or
// the default. Profile files spell gate keys lowercase (g0..g4) while
// checkpoint.Gate is uppercase, so both spellings resolve.
func (p Profile) TimeoutFor(gate string) int {
	for _, key := range gateKeys(gate) {
		if v, ok := p.TimeoutsMinutes[key]; ok && v > 0 {
			return v
		}
	}
	return DefaultTimeoutMinutes
}

// RetryFor returns the configured retry budget for gate, defaulting to
// zero retries.
func (p Profile) RetryFor(gate string) RetryConfig {
	for _, key := range gateKeys(gate) {
		if v, ok := p.Retries[key]; ok {
			return v
		}
	}
	return RetryConfig{}
}

func gateKeys(gate string) [2]string {
	return [2]string{gate, strings.ToLower(gate)}
}

// DefaultRetryOnStatus retries only on tool_error; policy failures are
// deterministic and retrying them would just repeat the breach.
var DefaultRetryOnStatus = []string{"tool_error"}

// RetryOnStatuses returns the configured retry-trigger statuses, falling
// back to DefaultRetryOnStatus when unset.
func (p Profile) RetryOnStatuses() []string {
	if len(p.RetryOnStatus) == 0 {
		return DefaultRetryOnStatus
	}
	return p.RetryOnStatus
}

// ShouldRetryOn reports whether status triggers a retry under this
// profile.
func (p Profile) ShouldRetryOn(status string) bool {
	for _, s := range p.RetryOnStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// MetricRegistry is the metric_registry.v1.yaml data model.
// StatisticsLock is kept as raw JSON: it only ever needs to be
// canonically hashed and compared for equality, never introspected
// field-by-field.
type MetricRegistry struct {
	RegistryVersion string            `json:"registry_version" yaml:"registry_version" validate:"required"`
	StatisticsLock  json.RawMessage   `json:"statistics_lock" yaml:"statistics_lock"`
	MetricVersions  map[string]string `json:"metric_versions" yaml:"metric_versions"`
}

// Owner is one acting-owner entry.
type Owner struct {
	ID     string `json:"id" yaml:"id"`
	Active bool   `json:"active" yaml:"active"`
}

// OwnersFile is the acting_owners.v1.json data model.
type OwnersFile struct {
	Owners []Owner `json:"owners" yaml:"owners"`
}

// ActiveSet returns the set of owner ids with active=true and a non-empty
// id.
func (f OwnersFile) ActiveSet() map[string]bool {
	out := make(map[string]bool, len(f.Owners))
	for _, o := range f.Owners {
		if o.Active && o.ID != "" {
			out[o.ID] = true
		}
	}
	return out
}

// ArchiveOnlyPolicy is the source-fallback policy's archive_only mode
// detail.
type ArchiveOnlyPolicy struct {
	AllowedOutputs []string `json:"allowedOutputs" yaml:"allowedOutputs"`
}

// SourceFallbackPolicy is source_fallback_policy.v1.json.
type SourceFallbackPolicy struct {
	Mode        string            `json:"mode" yaml:"mode"`
	ArchiveOnly ArchiveOnlyPolicy `json:"archiveOnly" yaml:"archiveOnly"`
}

const SourceFallbackModeArchiveOnly = "archive_only"

// GuardThresholds is the runner-guard policy's trip thresholds.
type GuardThresholds struct {
	FailRateMax                  float64 `json:"failRateMax" yaml:"failRateMax"`
	TimeoutRateMax               float64 `json:"timeoutRateMax" yaml:"timeoutRateMax"`
	RetryStormAttemptsPerGateMax int     `json:"retryStormAttemptsPerGateMax" yaml:"retryStormAttemptsPerGateMax"`
}

// GuardMode is learning (report-only) or enforced (trips the breaker).
type GuardMode string

const (
	GuardModeLearning GuardMode = "learning"
	GuardModeEnforced GuardMode = "enforced"
)

// GuardPolicy is runner_guard_policy.v1.json.
type GuardPolicy struct {
	Mode       GuardMode       `json:"mode" yaml:"mode" validate:"required,oneof=learning enforced"`
	Thresholds GuardThresholds `json:"thresholds" yaml:"thresholds"`
}
