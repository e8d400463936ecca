// Package gguf reads the header of GGUF weight files: the magic/version
// preamble, tensor count, and the typed metadata key/value table. Tensor
// data is never touched; the core only needs the self-describing metadata
// to validate artifacts before handing paths to the inference engine.
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Magic is the little-endian uint32 spelling of "GGUF".
const Magic uint32 = 0x46554747

// Metadata value types as defined by the format.
const (
	typeUint8   uint32 = 0
	typeInt8    uint32 = 1
	typeUint16  uint32 = 2
	typeInt16   uint32 = 3
	typeUint32  uint32 = 4
	typeInt32   uint32 = 5
	typeFloat32 uint32 = 6
	typeBool    uint32 = 7
	typeString  uint32 = 8
	typeArray   uint32 = 9
	typeUint64  uint32 = 10
	typeInt64   uint32 = 11
	typeFloat64 uint32 = 12
)

// Caps on untrusted header fields. A corrupt length prefix must not turn
// into a multi-gigabyte allocation.
const (
	maxStringLen = 1 << 20
	maxKVCount   = 1 << 16
	maxArrayLen  = 1 << 20
)

// Well-known metadata keys used by the core.
const (
	KeyArchitecture = "general.architecture"
	KeyAdapterType  = "adapter.type"
	KeyAdapterRank  = "adapter.lora.rank"
	KeyVersion      = "general.version"
)

// Header is the parsed read-only view of a GGUF file header.
type Header struct {
	Version     uint32
	TensorCount uint64
	Metadata    map[string]any
}

// String returns the metadata value for key if present and string-typed.
func (h *Header) String(key string) (string, bool) {
	v, ok := h.Metadata[key].(string)
	return v, ok
}

// Int returns the metadata value for key coerced to int64, covering every
// integer width the format allows.
func (h *Header) Int(key string) (int64, bool) {
	switch v := h.Metadata[key].(type) {
	case uint8:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case int16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// Float returns the metadata value for key coerced to float64.
func (h *Header) Float(key string) (float64, bool) {
	switch v := h.Metadata[key].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// Architecture returns general.architecture, empty when absent.
func (h *Header) Architecture() string {
	v, _ := h.String(KeyArchitecture)
	return v
}

// EmbeddingLength returns <arch>.embedding_length (the model hidden size),
// or 0 when absent.
func (h *Header) EmbeddingLength() int {
	arch := h.Architecture()
	if arch == "" {
		return 0
	}
	n, _ := h.Int(arch + ".embedding_length")
	return int(n)
}

// ReadFile opens path and parses its GGUF header.
func ReadFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Read parses a GGUF header from r. It stops after the metadata table and
// never reads tensor data.
func Read(r io.Reader) (*Header, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("bad magic 0x%08x (not a GGUF file)", magic)
	}
	h := &Header{Metadata: make(map[string]any)}
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if h.Version < 2 {
		return nil, fmt.Errorf("unsupported gguf version %d", h.Version)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.TensorCount); err != nil {
		return nil, fmt.Errorf("read tensor count: %w", err)
	}
	var kvCount uint64
	if err := binary.Read(r, binary.LittleEndian, &kvCount); err != nil {
		return nil, fmt.Errorf("read kv count: %w", err)
	}
	if kvCount > maxKVCount {
		return nil, fmt.Errorf("kv count %d exceeds limit", kvCount)
	}
	for i := uint64(0); i < kvCount; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("kv %d key: %w", i, err)
		}
		var vt uint32
		if err := binary.Read(r, binary.LittleEndian, &vt); err != nil {
			return nil, fmt.Errorf("kv %q type: %w", key, err)
		}
		val, err := readValue(r, vt)
		if err != nil {
			return nil, fmt.Errorf("kv %q value: %w", key, err)
		}
		h.Metadata[key] = val
	}
	return h, nil
}

func readString(r io.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readValue(r io.Reader, vt uint32) (any, error) {
	switch vt {
	case typeUint8:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt8:
		var v int8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint16:
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt16:
		var v int16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint32:
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt32:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeFloat32:
		var v float32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeBool:
		var v uint8
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return v != 0, nil
	case typeString:
		return readString(r)
	case typeUint64:
		var v uint64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt64:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeFloat64:
		var v float64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeArray:
		var et uint32
		if err := binary.Read(r, binary.LittleEndian, &et); err != nil {
			return nil, err
		}
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		if n > maxArrayLen {
			return nil, fmt.Errorf("array length %d exceeds limit", n)
		}
		out := make([]any, 0, min(n, uint64(1024)))
		for i := uint64(0); i < n; i++ {
			v, err := readValue(r, et)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value type %d", vt)
	}
}
