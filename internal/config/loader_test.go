package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nbase_model: /m/base.gguf\nadapters_dir: /m/adapters\nconfidence_threshold: 0.3\nmax_queue_depth: 8\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.BaseModel != "/m/base.gguf" || cfg.AdaptersDir != "/m/adapters" || cfg.ConfidenceThreshold != 0.3 || cfg.MaxQueueDepth != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","base_model":"/b.gguf","adapters_dir":"/a","domain_priority":["home","work"],"max_tokens":64}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.BaseModel != "/b.gguf" || cfg.AdaptersDir != "/a" || cfg.MaxTokens != 64 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.DomainPriority) != 2 || cfg.DomainPriority[0] != "home" {
		t.Fatalf("unexpected priority: %v", cfg.DomainPriority)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nbase_model=\"/x.gguf\"\nengine_ctx=2048\nengine_threads=4\ntemperature=0.7\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.BaseModel != "/x.gguf" || cfg.EngineCtx != 2048 || cfg.EngineThreads != 4 || cfg.Temperature != 0.7 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoadInvalidPayloads(t *testing.T) {
	d := t.TempDir()
	if _, err := Load(writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
	if _, err := Load(writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "base_model": }`)); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
	if _, err := Load(writeTempFile(t, d, "bad.toml", "addr=:8080\nbase_model\n")); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}
