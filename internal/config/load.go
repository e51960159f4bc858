package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultPath is the conventional name of the matrix config file.
const DefaultPath = "pulsar.toml"

// Load reads and decodes the matrix config at the given path. It does not
// validate; callers run Validate once flag overrides have been applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}
