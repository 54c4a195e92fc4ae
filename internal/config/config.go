// Package config loads and validates the process-wide configuration: the
// model catalog, named generation profiles and the chat/task mode bindings.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/codito/arey/internal/llm"
)

//go:embed arey.yml
var defaultConfig []byte

// ModeConfig binds an interaction mode to a model and a generation profile
// by name.
type ModeConfig struct {
	Model    string `mapstructure:"model"`
	Profile  string `mapstructure:"profile"`
	Template string `mapstructure:"template"`
}

// Config is the resolved process configuration.
type Config struct {
	Models   map[string]llm.ModelConfig `mapstructure:"models"`
	Profiles map[string]llm.Settings    `mapstructure:"profiles"`
	Chat     ModeConfig                 `mapstructure:"chat"`
	Task     ModeConfig                 `mapstructure:"task"`
}

// Mode is a mode binding resolved to its concrete parts.
type Mode struct {
	Model    llm.ModelConfig
	Settings llm.Settings
	Template string
}

// GetConfigPath returns the path of the config file.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	return filepath.Join(configDir, "arey", "arey.yml"), nil
}

// Load reads the config file, creating it from the built-in default on
// first run.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	if err := ensureConfigFile(path); err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads and validates a config file at an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, llm.WrapError(llm.CategoryConfig, err, fmt.Sprintf("failed to read config %q", path))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, llm.WrapError(llm.CategoryConfig, err, "failed to parse config")
	}

	// Map keys double as model names.
	for name, model := range cfg.Models {
		if model.Name == "" {
			model.Name = name
		}
		resolveModelSecrets(&model)
		cfg.Models[name] = model
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for _, mode := range []struct {
		name string
		cfg  ModeConfig
	}{{"chat", c.Chat}, {"task", c.Task}} {
		if _, ok := c.Models[mode.cfg.Model]; !ok {
			return llm.Errorf(llm.CategoryConfig,
				"%s mode references unknown model %q", mode.name, mode.cfg.Model)
		}
		if mode.cfg.Profile != "" {
			if _, ok := c.Profiles[mode.cfg.Profile]; !ok {
				return llm.Errorf(llm.CategoryConfig,
					"%s mode references unknown profile %q", mode.name, mode.cfg.Profile)
			}
		}
	}
	return nil
}

// ModelConfig resolves a model by name.
func (c *Config) ModelConfig(name string) (llm.ModelConfig, error) {
	model, ok := c.Models[name]
	if !ok {
		return llm.ModelConfig{}, llm.Errorf(llm.CategoryConfig, "unknown model %q", name)
	}
	return model, nil
}

// ChatMode resolves the chat binding.
func (c *Config) ChatMode() Mode { return c.mode(c.Chat) }

// TaskMode resolves the task binding.
func (c *Config) TaskMode() Mode { return c.mode(c.Task) }

func (c *Config) mode(m ModeConfig) Mode {
	template := m.Template
	if template == "" {
		template = "chatml"
	}
	return Mode{
		Model:    c.Models[m.Model],
		Settings: c.Profiles[m.Profile],
		Template: template,
	}
}

// resolveModelSecrets expands env references and command substitutions in
// the settings values that commonly hold credentials or endpoints.
func resolveModelSecrets(model *llm.ModelConfig) {
	for _, key := range []string{"api_key", "base_url"} {
		raw, ok := model.Settings[key].(string)
		if !ok || raw == "" {
			continue
		}
		if resolved, err := ResolveValue(raw); err == nil && resolved != "" {
			model.Settings[key] = resolved
		}
	}
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return llm.WrapError(llm.CategoryConfig, err, "failed to create config directory")
	}
	if err := os.WriteFile(path, defaultConfig, 0o600); err != nil {
		return llm.WrapError(llm.CategoryConfig, err, "failed to write default config")
	}
	return nil
}
