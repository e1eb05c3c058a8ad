package profile

import (
	"encoding/json"
	"fmt"
	"os"

	validatorpkg "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/marcohefti/releasegate/internal/canon"
)

var validate = validatorpkg.New()

// yamlToJSON re-decodes YAML bytes through an interface{} and re-encodes as
// JSON so that a single set of `json` struct tags can drive both the
// profile's and the registry's YAML and JSON sources. yaml.v3 already
// produces map[string]interface{} (not v2's map[interface{}]interface{})
// so json.Marshal round-trips cleanly.
func yamlToJSON(raw []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("profile: invalid yaml: %w", err)
	}
	return json.Marshal(v)
}

// LoadProfile reads the gate-profile YAML file at path, validates it, and
// returns the parsed Profile.
func LoadProfile(path string) (Profile, error) {
	var p Profile
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("profile: read %s: %w", path, err)
	}
	jsonBytes, err := yamlToJSON(raw)
	if err != nil {
		return p, fmt.Errorf("profile: %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonBytes, &p); err != nil {
		return p, fmt.Errorf("profile: decode %s: %w", path, err)
	}
	if err := validate.Struct(p); err != nil {
		return p, fmt.Errorf("profile: invalid %s: %w", path, err)
	}
	return p, nil
}

// Hash returns the canonical-JSON hash of the profile.
func (p Profile) Hash() (string, error) {
	return canon.Hash(p)
}

// LoadMetricRegistry reads the metric-registry YAML file at path.
func LoadMetricRegistry(path string) (MetricRegistry, error) {
	var m MetricRegistry
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("profile: read %s: %w", path, err)
	}
	jsonBytes, err := yamlToJSON(raw)
	if err != nil {
		return m, fmt.Errorf("profile: %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return m, fmt.Errorf("profile: decode %s: %w", path, err)
	}
	if err := validate.Struct(m); err != nil {
		return m, fmt.Errorf("profile: invalid %s: %w", path, err)
	}
	return m, nil
}

// StatisticsLockHash returns the canonical-JSON hash of the registry's
// statistics_lock block, or "" if no lock is pinned.
func (m MetricRegistry) StatisticsLockHash() (string, error) {
	if len(m.StatisticsLock) == 0 {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(m.StatisticsLock, &v); err != nil {
		return "", fmt.Errorf("profile: invalid statistics_lock: %w", err)
	}
	return canon.Hash(v)
}

// LoadOwnersFile reads the acting-owners JSON file at path.
func LoadOwnersFile(path string) (OwnersFile, error) {
	var f OwnersFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("profile: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("profile: decode %s: %w", path, err)
	}
	return f, nil
}

// LoadSourceFallbackPolicy reads the source-fallback-policy JSON file at
// path.
func LoadSourceFallbackPolicy(path string) (SourceFallbackPolicy, error) {
	var p SourceFallbackPolicy
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("profile: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("profile: decode %s: %w", path, err)
	}
	return p, nil
}

// LoadGuardPolicy reads the runner-guard-policy JSON file at path.
func LoadGuardPolicy(path string) (GuardPolicy, error) {
	var p GuardPolicy
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("profile: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("profile: decode %s: %w", path, err)
	}
	if err := validate.Struct(p); err != nil {
		return p, fmt.Errorf("profile: invalid %s: %w", path, err)
	}
	return p, nil
}
