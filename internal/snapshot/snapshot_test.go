package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuildMissingInputErrors(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		DatasetPath:  writeTemp(t, dir, "dataset.json", "{}"),
		FeaturesPath: writeTemp(t, dir, "features.json", "{}"),
		LabelsPath:   writeTemp(t, dir, "labels.json", "{}"),
		SplitPath:    filepath.Join(dir, "missing_split.json"),
	}
	if _, err := Build("run-1", in, time.Now()); err == nil {
		t.Fatal("expected error for missing split input")
	}
}

func TestLoadOrCreateReusesExistingLock(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		DatasetPath:  writeTemp(t, dir, "dataset.json", "d1"),
		FeaturesPath: writeTemp(t, dir, "features.json", "f1"),
		LabelsPath:   writeTemp(t, dir, "labels.json", "l1"),
		SplitPath:    writeTemp(t, dir, "split.json", "s1"),
	}
	lockPath := filepath.Join(dir, "dataset_snapshot_lock.json")

	first, err := LoadOrCreate(lockPath, "run-1", in, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	// Mutate the underlying dataset after the lock is frozen.
	if err := os.WriteFile(in.DatasetPath, []byte("d2-changed"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := LoadOrCreate(lockPath, "run-1", in, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if second.DatasetHash != first.DatasetHash {
		t.Fatalf("expected reused lock with original hash %q, got %q", first.DatasetHash, second.DatasetHash)
	}
}

func TestLoadOrCreateSeparateRunIDsGetSeparateLocks(t *testing.T) {
	dir := t.TempDir()
	in := Inputs{
		DatasetPath:  writeTemp(t, dir, "dataset.json", "d1"),
		FeaturesPath: writeTemp(t, dir, "features.json", "f1"),
		LabelsPath:   writeTemp(t, dir, "labels.json", "l1"),
		SplitPath:    writeTemp(t, dir, "split.json", "s1"),
	}

	locked1, err := LoadOrCreate(filepath.Join(dir, "run-1", "dataset_snapshot_lock.json"), "run-1", in, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	locked2, err := LoadOrCreate(filepath.Join(dir, "run-2", "dataset_snapshot_lock.json"), "run-2", in, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if locked1.RunID != "run-1" || locked2.RunID != "run-2" {
		t.Fatalf("expected distinct per-run locks, got %q and %q", locked1.RunID, locked2.RunID)
	}
}

func TestDriftFields(t *testing.T) {
	a := Lock{DatasetHash: "x", FeaturesHash: "y", LabelHash: "z", SplitHash: "w"}
	b := a
	b.FeaturesHash = "different"
	got := DriftFields(a, b)
	if len(got) != 1 || got[0] != "featuresHash" {
		t.Fatalf("expected single featuresHash drift, got %v", got)
	}
	if len(DriftFields(a, a)) != 0 {
		t.Fatal("expected no drift for identical locks")
	}
}
