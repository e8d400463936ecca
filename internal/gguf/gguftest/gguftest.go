// Package gguftest builds minimal GGUF files for tests. Only the header is
// meaningful; tensor data is absent (tensor count 0) or simulated with
// padding when a test cares about file size.
package gguftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

const magic uint32 = 0x46554747

// Encode serializes a version-3 GGUF header with the given metadata.
// Supported value types: string, uint32, uint64, int32, float32, bool.
func Encode(meta map[string]any) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, magic)
	_ = binary.Write(&buf, le, uint32(3))
	_ = binary.Write(&buf, le, uint64(0)) // tensor count
	_ = binary.Write(&buf, le, uint64(len(meta)))

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeString(&buf, k)
		switch v := meta[k].(type) {
		case string:
			_ = binary.Write(&buf, le, uint32(8))
			writeString(&buf, v)
		case uint32:
			_ = binary.Write(&buf, le, uint32(4))
			_ = binary.Write(&buf, le, v)
		case int32:
			_ = binary.Write(&buf, le, uint32(5))
			_ = binary.Write(&buf, le, v)
		case uint64:
			_ = binary.Write(&buf, le, uint32(10))
			_ = binary.Write(&buf, le, v)
		case float32:
			_ = binary.Write(&buf, le, uint32(6))
			_ = binary.Write(&buf, le, v)
		case bool:
			_ = binary.Write(&buf, le, uint32(7))
			b := uint8(0)
			if v {
				b = 1
			}
			_ = binary.Write(&buf, le, b)
		default:
			panic(fmt.Sprintf("gguftest: unsupported value type %T for key %q", v, k))
		}
	}
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint64(len(s)))
	buf.WriteString(s)
}

// WriteBase writes a base-model artifact naming the given architecture and
// hidden size, returning its path.
func WriteBase(t *testing.T, dir, name, arch string, hidden int) string {
	t.Helper()
	meta := map[string]any{
		"general.architecture":         arch,
		arch + ".embedding_length":     uint32(hidden),
		"general.quantization_version": uint32(2),
	}
	return write(t, dir, name, Encode(meta))
}

// WriteAdapter writes a LoRA delta artifact targeting arch with the given
// rank, returning its path.
func WriteAdapter(t *testing.T, dir, name, arch string, rank int) string {
	t.Helper()
	meta := map[string]any{
		"general.architecture": arch,
		"adapter.type":         "lora",
		"adapter.lora.rank":    uint32(rank),
	}
	return write(t, dir, name, Encode(meta))
}

// WriteRaw writes arbitrary bytes to dir/name, for corrupt-artifact tests.
func WriteRaw(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	return write(t, dir, name, b)
}

func write(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}
