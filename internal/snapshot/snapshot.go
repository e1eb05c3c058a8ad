// Package snapshot is the dataset-snapshot lock: freeze
// SHA-256 hashes of the (dataset, features, labels, split) artifacts for a
// runId, reuse the frozen lock verbatim on retries of the same runId, and
// detect drift by recomputing a live snapshot and comparing hashes.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/marcohefti/releasegate/internal/ioutil"
)

const Version = "v1"

// Inputs names the four on-disk artifacts a snapshot freezes.
type Inputs struct {
	DatasetPath  string
	FeaturesPath string
	LabelsPath   string
	SplitPath    string
}

// Lock is dataset_snapshot_lock.json's content.
type Lock struct {
	Version      string `json:"version"`
	RunID        string `json:"runId"`
	FrozenAt     string `json:"frozenAt"`
	DatasetPath  string `json:"datasetPath"`
	FeaturesPath string `json:"featuresPath"`
	LabelsPath   string `json:"labelsPath"`
	SplitPath    string `json:"splitPath"`
	DatasetHash  string `json:"datasetHash"`
	FeaturesHash string `json:"featuresHash"`
	LabelHash    string `json:"labelHash"`
	SplitHash    string `json:"splitHash"`
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("snapshot: hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Build computes a fresh, live snapshot from the four input files. It
// returns an error (wrapping os.ErrNotExist where relevant) if any input
// file is missing; callers map that to HARD_DATASET_SNAPSHOT_DRIFT.
func Build(runID string, in Inputs, now time.Time) (Lock, error) {
	for _, p := range []string{in.DatasetPath, in.FeaturesPath, in.LabelsPath, in.SplitPath} {
		if _, err := os.Stat(p); err != nil {
			return Lock{}, fmt.Errorf("snapshot: input missing: %w", err)
		}
	}
	datasetHash, err := hashFile(in.DatasetPath)
	if err != nil {
		return Lock{}, err
	}
	featuresHash, err := hashFile(in.FeaturesPath)
	if err != nil {
		return Lock{}, err
	}
	labelsHash, err := hashFile(in.LabelsPath)
	if err != nil {
		return Lock{}, err
	}
	splitHash, err := hashFile(in.SplitPath)
	if err != nil {
		return Lock{}, err
	}
	abs := func(p string) string {
		if a, err := filepath.Abs(p); err == nil {
			return a
		}
		return p
	}
	return Lock{
		Version:      Version,
		RunID:        runID,
		FrozenAt:     now.UTC().Format(time.RFC3339Nano),
		DatasetPath:  abs(in.DatasetPath),
		FeaturesPath: abs(in.FeaturesPath),
		LabelsPath:   abs(in.LabelsPath),
		SplitPath:    abs(in.SplitPath),
		DatasetHash:  datasetHash,
		FeaturesHash: featuresHash,
		LabelHash:    labelsHash,
		SplitHash:    splitHash,
	}, nil
}

// LoadOrCreate returns the stored lock verbatim when lockPath already
// holds one for the same runId; otherwise a fresh snapshot is built and
// persisted write-once.
func LoadOrCreate(lockPath string, runID string, in Inputs, now time.Time) (Lock, error) {
	var existing Lock
	if err := ioutil.ReadJSON(lockPath, &existing); err == nil {
		if existing.RunID == runID {
			return existing, nil
		}
	}
	fresh, err := Build(runID, in, now)
	if err != nil {
		return Lock{}, err
	}
	if err := ioutil.WriteJSONOnce(lockPath, fresh); err != nil {
		// Another attempt for this runId raced us and already wrote it;
		// reuse what's on disk rather than failing the gate.
		var onDisk Lock
		if readErr := ioutil.ReadJSON(lockPath, &onDisk); readErr == nil && onDisk.RunID == runID {
			return onDisk, nil
		}
		return Lock{}, err
	}
	return fresh, nil
}

// DriftFields compares locked against a freshly built live snapshot and
// returns the hash field names that disagree, in a fixed check order.
func DriftFields(locked, live Lock) []string {
	var drifted []string
	pairs := []struct {
		name         string
		locked, live string
	}{
		{"datasetHash", locked.DatasetHash, live.DatasetHash},
		{"featuresHash", locked.FeaturesHash, live.FeaturesHash},
		{"labelHash", locked.LabelHash, live.LabelHash},
		{"splitHash", locked.SplitHash, live.SplitHash},
	}
	for _, p := range pairs {
		if p.locked != p.live {
			drifted = append(drifted, p.name)
		}
	}
	return drifted
}
