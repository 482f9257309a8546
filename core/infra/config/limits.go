package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Limits are operator-tunable bounds on uploads and previews.
type Limits struct {
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
	PreviewLines      int      `yaml:"preview_lines"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// LoadLimits loads a YAML limits file; returns defaults if the path is
// empty or the file is missing.
func LoadLimits(path string) (Limits, error) {
	if path == "" {
		return defaultLimits(), nil
	}
	// #nosec G304 -- limits config path is operator-provided.
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultLimits(), nil
		}
		return defaultLimits(), fmt.Errorf("read limits config: %w", err)
	}
	return ParseLimits(data)
}

// ParseLimits parses limits from YAML bytes, filling gaps with defaults.
func ParseLimits(data []byte) (Limits, error) {
	cfg := defaultLimits()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultLimits(), fmt.Errorf("parse limits config: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultLimits().MaxUploadBytes
	}
	if cfg.PreviewLines <= 0 {
		cfg.PreviewLines = defaultLimits().PreviewLines
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = defaultLimits().AllowedExtensions
	}
	return cfg, nil
}

func defaultLimits() Limits {
	return Limits{
		MaxUploadBytes:    16 << 20, // 16 MiB
		PreviewLines:      20,
		AllowedExtensions: []string{"csv"},
	}
}
