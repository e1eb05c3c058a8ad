// Package canon computes deterministic fingerprints for configs,
// threshold sets, and lock content.
//
// Canonical JSON re-encodes a value through a generic JSON tree so that
// map keys and struct fields alike come out sorted by key, with HTML
// escaping disabled and no indentation: sorted keys, compact separators,
// Unicode preserved.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// JSON encodes v as compact canonical JSON: sorted keys (struct values are
// first decoded into generic maps, numbers kept verbatim, so their fields
// sort like map keys), no HTML escaping, no indentation, and a trailing
// newline stripped so the bytes are suitable for embedding or hashing.
func JSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	b := buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return b, nil
}

// Hash returns the lowercase hex SHA-256 digest of v's canonical JSON
// encoding.
func Hash(v any) (string, error) {
	b, err := JSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// HashBytes hashes raw bytes directly (used when the formula/content under
// hash is already a fixed string, e.g. the pinned stress-metric formula
// text).
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// MustHash panics on encode error; reserved for literal, known-encodable
// values (formula identifiers, fixed constant tables) where an error would
// indicate a programming mistake, not bad input.
func MustHash(v any) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}
