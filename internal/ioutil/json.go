// Package ioutil provides the atomic, deterministically-ordered
// JSON/NDJSON writers every run/checkpoint/verdict artifact goes
// through: write-to-temp-then-rename for atomicity, encoding/json with
// HTML escaping disabled for legible artifacts, 2-space indentation for
// pretty JSON and compact encoding for NDJSON lines.
package ioutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteJSONAtomic writes v as indented, UTF-8 JSON with a trailing newline
// to path, atomically (write-temp, fsync, rename).
func WriteJSONAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// WriteFileAtomic writes b to path atomically, creating parent directories
// as needed.
func WriteFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()
	if _, err := f.Write(b); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return platformRename(tmp, path)
}

// WriteJSONOnce writes v to path, failing if path already exists. Used
// for write-once artifacts: checkpoints/<gate>_attempt<N>.json and the
// dataset snapshot lock's creation path.
func WriteJSONOnce(path string, v any) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("ioutil: refusing to overwrite existing write-once artifact: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return WriteJSONAtomic(path, v)
}

// ReadJSON reads and decodes the JSON document at path into v.
func ReadJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
