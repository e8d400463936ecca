package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"adapterd/pkg/types"
)

// ScanDir registers every *.gguf file found directly under dir. The domain
// is inferred from the filename stem; unknown stems land in the custom
// domain. Corrupt artifacts are skipped and logged so one bad file cannot
// block startup. Returns the number of adapters registered.
func (s *Store) ScanDir(dir string) (int, error) {
	base, err := expandHome(dir)
	if err != nil {
		return 0, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return 0, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return 0, fmt.Errorf("read dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		p := filepath.Join(abs, name)
		domain := types.ParseDomain(AdapterID(p))
		if _, err := s.Register(p, domain, 0); err != nil {
			s.cfg.Logger.Warn().Str("path", p).Err(err).Msg("skipping adapter")
			continue
		}
		n++
	}
	return n, nil
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/adapters
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
