package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	BaseModel   string `json:"base_model" yaml:"base_model" toml:"base_model"`
	AdaptersDir string `json:"adapters_dir" yaml:"adapters_dir" toml:"adapters_dir"`

	// Router tuning.
	ConfidenceThreshold float64  `json:"confidence_threshold" yaml:"confidence_threshold" toml:"confidence_threshold"`
	DomainPriority      []string `json:"domain_priority" yaml:"domain_priority" toml:"domain_priority"`

	// Host admission.
	MaxQueueDepth int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMs     int `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`

	// Engine configuration (no envs; set by callers).
	EngineCtx     int `json:"engine_ctx" yaml:"engine_ctx" toml:"engine_ctx"`
	EngineThreads int `json:"engine_threads" yaml:"engine_threads" toml:"engine_threads"`

	// Generation defaults, overridable per request.
	MaxTokens    int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature  float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP         float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	DefaultScale float64 `json:"default_scale" yaml:"default_scale" toml:"default_scale"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
