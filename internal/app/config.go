package app

import (
	"errors"
	"fmt"
)

// Build modes.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// Config holds everything an App instance needs to run one build.
type Config struct {
	// ProjectPath is the path to the fern.hcl project file.
	ProjectPath string

	// Mode selects the pipeline: ModeDev (incremental, disk cache) or
	// ModeProd (full in-memory rebuild, dead-code elimination).
	Mode string

	// Output overrides the configured artifact path when non-empty.
	Output string

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("ProjectPath is a required configuration field and cannot be empty")
	}
	if cfg.Mode != ModeDev && cfg.Mode != ModeProd {
		return nil, fmt.Errorf("invalid mode %q: must be %q or %q", cfg.Mode, ModeDev, ModeProd)
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &cfg, nil
}
