package canon

import "testing"

func TestHash_StableAcrossMapKeyOrder(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2}
	b := map[string]any{"a": 2, "b": 1}
	ha, err := Hash(a)
	if err != nil {
		t.Fatalf("Hash a: %v", err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatalf("Hash b: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected stable hash regardless of map construction order: %s != %s", ha, hb)
	}
}

func TestHash_DifferentValuesDifferentHash(t *testing.T) {
	h1, _ := Hash(map[string]any{"x": 1})
	h2, _ := Hash(map[string]any{"x": 2})
	if h1 == h2 {
		t.Fatalf("expected different hashes for different values")
	}
}

func TestJSON_NoHTMLEscaping(t *testing.T) {
	b, err := JSON(map[string]string{"a": "<b>&x</b>"})
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if string(b) != `{"a":"<b>&x</b>"}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
}
