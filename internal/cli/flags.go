package cli

import (
	"github.com/spf13/cobra"

	"github.com/marcohefti/releasegate/internal/profile"
)

// defaultPaths resolves every well-known-input default through env > literal
// default precedence (internal/profile.ResolvePaths), so a cobra flag's
// zero value already reflects RELEASEGATE_* overrides; the flag itself then
// layers flag > (env > default) on top. The Sources record is discarded;
// no command reports which tier resolved a path.
var defaultPaths, _ = profile.ResolvePaths(profile.PathOverrides{})

// defaultOutputRoot is CLI-local: --output-root does not read
// defaultPaths.OutRoot, so RELEASEGATE_OUT_ROOT has no effect on the CLI.
const defaultOutputRoot = "out"

// pipelineFlags holds the well-known-input and evidence-file flags shared
// by `run` and `doctor` (both execute G0 against a repo).
type pipelineFlags struct {
	repoRoot            string
	profilePath         string
	registryPath        string
	reasonCodesPath     string
	ownersPath          string
	sourceFallback      string
	runnerGuardPolicy   string
	historyPath         string
	outputRoot          string
	runID               string
	resumedFromRunID    string
	attestationPath     string
	verdictOutputPath   string
	researchCardsPath   string
	admissionReportPath string
	externalReportPath  string
	healthReportPath    string
	strategyMetricsPath string
	budgetUsagePath     string
	datasetPath         string
	featuresPath        string
	labelsPath          string
	splitPath           string
	environmentLockPath string
	freezeManifestPath  string
}

func addWellKnownInputFlags(cmd *cobra.Command, f *pipelineFlags) {
	cmd.Flags().StringVar(&f.repoRoot, "repo-root", ".", "repository root G0/G1 checks run against")
	cmd.Flags().StringVar(&f.profilePath, "profile", defaultPaths.Profile, "gate profile YAML path (env RELEASEGATE_PROFILE)")
	cmd.Flags().StringVar(&f.registryPath, "registry", defaultPaths.MetricRegistry, "metric registry YAML path (env RELEASEGATE_METRIC_REGISTRY)")
	cmd.Flags().StringVar(&f.reasonCodesPath, "reason-codes", defaultPaths.ReasonCodeCatalog, "reason-code catalog JSON path (env RELEASEGATE_REASON_CODES)")
	cmd.Flags().StringVar(&f.ownersPath, "owners", defaultPaths.OwnersFile, "active-owners JSON path (env RELEASEGATE_ACTING_OWNERS)")
	cmd.Flags().StringVar(&f.sourceFallback, "source-fallback-policy", defaultPaths.SourceFallbackPolicy, "source-fallback policy JSON path (env RELEASEGATE_SOURCE_FALLBACK_POLICY)")
	cmd.Flags().StringVar(&f.runnerGuardPolicy, "runner-guard-policy", defaultPaths.GuardPolicy, "runner-guard policy JSON path (env RELEASEGATE_GUARD_POLICY)")
	cmd.Flags().StringVar(&f.outputRoot, "output-root", defaultOutputRoot, "directory every runId's artifacts are written under")
}

func addRunFlags(cmd *cobra.Command, f *pipelineFlags) {
	addWellKnownInputFlags(cmd, f)
	cmd.Flags().StringVar(&f.historyPath, "history", "", "history.ndjson path (default <output-root>/history.ndjson)")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "runId for this invocation (default: minted from the current time)")
	cmd.Flags().StringVar(&f.resumedFromRunID, "resumed-from-run-id", "", "runId this invocation resumes evidence from, recorded for audit only")
	cmd.Flags().StringVar(&f.attestationPath, "attestation", "", "attestation document JSON path (G4)")
	cmd.Flags().StringVar(&f.verdictOutputPath, "verdict-output", "", "verdict output path (default <output-root>/<runId>/verdict.v2.json)")
	cmd.Flags().StringVar(&f.researchCardsPath, "research-cards", "", "research cards JSON path (G2)")
	cmd.Flags().StringVar(&f.admissionReportPath, "admission-report", "", "admission report JSON path (G3)")
	cmd.Flags().StringVar(&f.externalReportPath, "external-report", "", "external-benchmark report JSON path (G3)")
	cmd.Flags().StringVar(&f.healthReportPath, "health-report", "", "source-health report JSON path (G3)")
	cmd.Flags().StringVar(&f.strategyMetricsPath, "strategy-metrics", "", "strategy metrics JSON path (G3)")
	cmd.Flags().StringVar(&f.budgetUsagePath, "budget-usage", "", "budget usage JSON path (G3)")
	cmd.Flags().StringVar(&f.datasetPath, "dataset", "", "dataset artifact path (G3 snapshot lock)")
	cmd.Flags().StringVar(&f.featuresPath, "features", "", "features artifact path (G3 snapshot lock)")
	cmd.Flags().StringVar(&f.labelsPath, "labels", "", "labels artifact path (G3 snapshot lock)")
	cmd.Flags().StringVar(&f.splitPath, "split", "", "split artifact path (G3 snapshot lock)")
	cmd.Flags().StringVar(&f.environmentLockPath, "environment-lock", "", "environment-lock evidence path (G1, required only if g1.require_env_lock)")
	cmd.Flags().StringVar(&f.freezeManifestPath, "freeze-manifest", "", "freeze-manifest evidence path (G1, required only if g1.require_freeze_manifest)")
}
