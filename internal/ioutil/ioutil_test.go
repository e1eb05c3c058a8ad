package ioutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteJSONAtomic_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.json")
	if err := WriteJSONAtomic(path, map[string]any{"a": 1}); err != nil {
		t.Fatalf("write1: %v", err)
	}
	if err := WriteJSONAtomic(path, map[string]any{"a": 2}); err != nil {
		t.Fatalf("write2: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v["a"] != float64(2) {
		t.Fatalf("unexpected value: %#v", v["a"])
	}
}

func TestWriteJSONOnce_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "once.json")
	if err := WriteJSONOnce(path, map[string]any{"a": 1}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteJSONOnce(path, map[string]any{"a": 2}); err == nil {
		t.Fatalf("expected error on second write-once")
	}
}

func TestAppendJSONL_Appends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "h.ndjson")
	if err := AppendJSONL(path, map[string]any{"i": 1}); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := AppendJSONL(path, map[string]any{"i": 2}); err != nil {
		t.Fatalf("append2: %v", err)
	}
	var got []map[string]any
	if err := ReadJSONLInto[map[string]any](path, func(v map[string]any) error {
		got = append(got, v)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0]["i"] != float64(1) || got[1]["i"] != float64(2) {
		t.Fatalf("unexpected contents: %+v", got)
	}
}

func TestWithDirLock_TimeoutIsTyped(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "x.lock")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	err := WithDirLock(lockDir, 20*time.Millisecond, func() error { return nil })
	if err == nil || !IsLockTimeout(err) {
		t.Fatalf("expected typed lock timeout, got %v", err)
	}
}
