package gguf

import (
	"bytes"
	"testing"

	"adapterd/internal/gguf/gguftest"
)

func TestReadRoundTrip(t *testing.T) {
	b := gguftest.Encode(map[string]any{
		"general.architecture":   "llama",
		"llama.embedding_length": uint32(4096),
		"adapter.type":           "lora",
		"adapter.lora.rank":      uint32(16),
		"adapter.enabled":        true,
	})
	h, err := Read(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h.Version != 3 {
		t.Fatalf("version = %d, want 3", h.Version)
	}
	if got := h.Architecture(); got != "llama" {
		t.Fatalf("architecture = %q", got)
	}
	if got := h.EmbeddingLength(); got != 4096 {
		t.Fatalf("embedding length = %d", got)
	}
	if rank, ok := h.Int(KeyAdapterRank); !ok || rank != 16 {
		t.Fatalf("rank = %d ok=%v", rank, ok)
	}
	if v, ok := h.Metadata["adapter.enabled"].(bool); !ok || !v {
		t.Fatalf("bool value lost: %v", h.Metadata["adapter.enabled"])
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a gguf file at all")))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestReadRejectsTruncatedHeader(t *testing.T) {
	b := gguftest.Encode(map[string]any{"general.architecture": "llama"})
	for _, cut := range []int{5, 12, 20, len(b) - 3} {
		if _, err := Read(bytes.NewReader(b[:cut])); err == nil {
			t.Fatalf("expected error for truncation at %d", cut)
		}
	}
}

func TestReadRejectsOldVersion(t *testing.T) {
	b := gguftest.Encode(nil)
	// Patch the version field (bytes 4..8) to 1.
	b[4], b[5], b[6], b[7] = 1, 0, 0, 0
	if _, err := Read(bytes.NewReader(b)); err == nil {
		t.Fatal("expected error for version 1")
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile("/nonexistent/path.gguf"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHeaderCoercions(t *testing.T) {
	h := &Header{Metadata: map[string]any{
		"a": uint32(7),
		"b": "x",
		"c": float32(1.5),
	}}
	if n, ok := h.Int("a"); !ok || n != 7 {
		t.Fatalf("Int(a) = %d ok=%v", n, ok)
	}
	if _, ok := h.Int("b"); ok {
		t.Fatal("Int(b) should fail on string")
	}
	if f, ok := h.Float("c"); !ok || f != 1.5 {
		t.Fatalf("Float(c) = %v ok=%v", f, ok)
	}
	if h.EmbeddingLength() != 0 {
		t.Fatal("embedding length without architecture should be 0")
	}
}
