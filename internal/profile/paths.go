package profile

import (
	"os"
	"strings"
)

// Paths is every input/output path the gate pipeline needs, resolved
// once at startup with CLI flag > env var > default precedence.
type Paths struct {
	Profile              string
	MetricRegistry       string
	ReasonCodeCatalog    string
	OwnersFile           string
	SourceFallbackPolicy string
	GuardPolicy          string
	OutRoot              string
}

// resolved tracks where each path's value came from for operator UX.
type resolved struct {
	value  string
	source string
}

func resolve(flagVal, envVar, def string) resolved {
	if strings.TrimSpace(flagVal) != "" {
		return resolved{value: flagVal, source: "flag"}
	}
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return resolved{value: v, source: "env:" + envVar}
	}
	return resolved{value: def, source: "default"}
}

// PathOverrides holds the CLI-flag values for ResolvePaths; empty fields
// fall through to environment variables, then to defaults.
type PathOverrides struct {
	Profile              string
	MetricRegistry       string
	ReasonCodeCatalog    string
	OwnersFile           string
	SourceFallbackPolicy string
	GuardPolicy          string
	OutRoot              string
}

// Sources records, per field, whether its value came from a flag, an env
// var, or the built-in default; `gatekeeper doctor` does not report it.
type Sources struct {
	Profile              string
	MetricRegistry       string
	ReasonCodeCatalog    string
	OwnersFile           string
	SourceFallbackPolicy string
	GuardPolicy          string
	OutRoot              string
}

// ResolvePaths applies flag > env > default precedence for every input
// path the pipeline consumes.
func ResolvePaths(o PathOverrides) (Paths, Sources) {
	profilePath := resolve(o.Profile, "RELEASEGATE_PROFILE", "data/config/profiles/profile_m0_72h.v5_1.yaml")
	registryPath := resolve(o.MetricRegistry, "RELEASEGATE_METRIC_REGISTRY", "data/config/metric_registry.v1.yaml")
	codesPath := resolve(o.ReasonCodeCatalog, "RELEASEGATE_REASON_CODES", "docs/research/templates/verdict_reason_codes.v1.json")
	ownersPath := resolve(o.OwnersFile, "RELEASEGATE_ACTING_OWNERS", "data/config/acting_owners.v1.json")
	fallbackPath := resolve(o.SourceFallbackPolicy, "RELEASEGATE_SOURCE_FALLBACK_POLICY", "data/config/source_fallback_policy.v1.json")
	guardPath := resolve(o.GuardPolicy, "RELEASEGATE_GUARD_POLICY", "data/config/runner_guard_policy.v1.json")
	outRoot := resolve(o.OutRoot, "RELEASEGATE_OUT_ROOT", ".releasegate")

	return Paths{
			Profile:              profilePath.value,
			MetricRegistry:       registryPath.value,
			ReasonCodeCatalog:    codesPath.value,
			OwnersFile:           ownersPath.value,
			SourceFallbackPolicy: fallbackPath.value,
			GuardPolicy:          guardPath.value,
			OutRoot:              outRoot.value,
		}, Sources{
			Profile:              profilePath.source,
			MetricRegistry:       registryPath.source,
			ReasonCodeCatalog:    codesPath.source,
			OwnersFile:           ownersPath.source,
			SourceFallbackPolicy: fallbackPath.source,
			GuardPolicy:          guardPath.source,
			OutRoot:              outRoot.source,
		}
}
