// Package config loads rulelens configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rulelens/internal/engine"
)

// Config holds tool configuration.
type Config struct {
	RulesDir string        `yaml:"rules_dir"` // directory of .mg rule sources
	Journal  string        `yaml:"journal"`   // sqlite journal path, "" disables journaling
	Engine   engine.Config `yaml:"engine"`
	Debug    bool          `yaml:"debug"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		RulesDir: "rules",
		Engine:   engine.DefaultConfig(),
	}
}

// Load reads a YAML config file, applying defaults for absent fields. A
// missing file returns the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Engine.MaxIterations <= 0 {
		cfg.Engine.MaxIterations = engine.DefaultConfig().MaxIterations
	}
	if cfg.Engine.FactLimit < 0 {
		cfg.Engine.FactLimit = 0
	}
	return cfg, nil
}
