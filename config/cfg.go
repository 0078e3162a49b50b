// Package config holds the CLI configuration: render defaults and logging
// setup, loaded from an optional YAML file over built-in defaults.
package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

type (
	RenderConfig struct {
		Syntax            string   `yaml:"syntax"`
		Style             string   `yaml:"style"`
		LoadPaths         []string `yaml:"load_paths"`
		SourceMapContents bool     `yaml:"source_map_contents"`
		SourceMapEmbed    bool     `yaml:"source_map_embed"`
		OmitSourceMapURL  bool     `yaml:"omit_source_map_url"`
		AlertASCII        bool     `yaml:"alert_ascii"`
		AlertColor        bool     `yaml:"alert_color"`
		QuietDeps         bool     `yaml:"quiet_deps"`
		Verbose           bool     `yaml:"verbose"`
	}

	Config struct {
		Version int           `yaml:"version"`
		Render  RenderConfig  `yaml:"render"`
		Logging LoggingConfig `yaml:"logging"`
	}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Render: RenderConfig{
			Syntax: "scss",
			Style:  "nested",
		},
		Logging: LoggingConfig{
			ConsoleLogger: LoggerConfig{Level: "normal"},
			FileLogger:    LoggerConfig{Level: "none", Mode: "append"},
		},
	}
}

// LoadConfiguration reads YAML from fname over the defaults. An empty
// fname returns the defaults unchanged.
func LoadConfiguration(fname string) (*Config, error) {
	conf := Default()
	if len(fname) == 0 {
		return conf, nil
	}
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	if conf.Version != 1 {
		return nil, fmt.Errorf("unsupported configuration version %d", conf.Version)
	}
	return conf, nil
}

// Dump serializes the active configuration back to YAML.
func Dump(conf *Config) ([]byte, error) {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
