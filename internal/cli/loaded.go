package cli

import (
	"github.com/marcohefti/releasegate/internal/codes"
	"github.com/marcohefti/releasegate/internal/profile"
)

// loadedInputs is every well-known input loaded and validated once per
// invocation, shared by run and doctor.
type loadedInputs struct {
	profile        profile.Profile
	registry       profile.MetricRegistry
	reasonCodes    codes.File
	owners         profile.OwnersFile
	sourceFallback profile.SourceFallbackPolicy
	guardPolicy    profile.GuardPolicy
}

func loadInputs(f *pipelineFlags) (loadedInputs, error) {
	var in loadedInputs
	var err error

	if in.profile, err = profile.LoadProfile(f.profilePath); err != nil {
		return in, newToolError("tool_error", err.Error(), f.profilePath)
	}
	if in.registry, err = profile.LoadMetricRegistry(f.registryPath); err != nil {
		return in, newToolError("tool_error", err.Error(), f.registryPath)
	}
	if in.reasonCodes, err = codes.LoadFile(f.reasonCodesPath); err != nil {
		return in, newToolError("tool_error", err.Error(), f.reasonCodesPath)
	}
	if in.owners, err = profile.LoadOwnersFile(f.ownersPath); err != nil {
		return in, newToolError("tool_error", err.Error(), f.ownersPath)
	}
	if in.sourceFallback, err = profile.LoadSourceFallbackPolicy(f.sourceFallback); err != nil {
		return in, newToolError("tool_error", err.Error(), f.sourceFallback)
	}
	if in.guardPolicy, err = profile.LoadGuardPolicy(f.runnerGuardPolicy); err != nil {
		return in, newToolError("tool_error", err.Error(), f.runnerGuardPolicy)
	}
	return in, nil
}
