package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file kept in the workspace root
const FileName = ".envwatch.config"

// ErrSetupRequired is returned by commands that need a completed setup
var ErrSetupRequired = errors.New("setup has not been completed")

// Config represents the envwatch settings for one workspace
type Config struct {
	Enabled            bool     `yaml:"enabled"`
	SetupCompleted     bool     `yaml:"setupCompleted"`
	AutoCreateFiles    bool     `yaml:"autoCreateFiles"`
	FilesToWatch       []string `yaml:"filesToWatch"`
	Patterns           []string `yaml:"patterns"`
	EnvFile            string   `yaml:"envFile"`
	ExampleFile        string   `yaml:"exampleFile"`
	ExamplePlaceholder string   `yaml:"examplePlaceholder"`
	IncludeFilePaths   bool     `yaml:"includeFilePaths"`
	ExcludePatterns    []string `yaml:"excludePatterns"`
	SyntaxAware        bool     `yaml:"syntaxAware"` // Also run the tree-sitter finder on supported languages
}

// Default returns the settings used when no settings file exists
func Default() *Config {
	return &Config{
		FilesToWatch: []string{"**/*.ts", "**/*.js", "**/*.tsx", "**/*.jsx"},
		Patterns: []string{
			`process\.env\.(\w+)`,
			`import\.meta\.env\.(\w+)`,
		},
		EnvFile:     ".env",
		ExampleFile: ".env.example",
		ExcludePatterns: []string{
			"**/node_modules/**",
			"**/dist/**",
			"**/out/**",
			"**/.git/**",
			"**/.*/**",
			".*/**",
			"_*/**",
		},
	}
}

// Path returns the settings file location for a workspace root
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load loads the settings file from the workspace root.
// Keys missing from the file keep their default values.
func Load(root string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

const fileHeader = `# .envwatch.config
# Settings for envwatch. Edit by hand or run "envwatch setup".

`

// Save writes the settings file atomically
func Save(root string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	content := append([]byte(fileHeader), data...)
	if err := renameio.WriteFile(Path(root), content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SetEnabled flips the enabled flag in the stored settings
func SetEnabled(root string, enabled bool) error {
	cfg, err := Load(root)
	if err != nil {
		return err
	}
	cfg.Enabled = enabled
	return Save(root, cfg)
}

// IsSetupCompleted reports whether setup has been run for the workspace
func IsSetupCompleted(root string) bool {
	cfg, err := Load(root)
	if err != nil {
		return false
	}
	return cfg.SetupCompleted
}

// RequireSetup returns ErrSetupRequired unless setup has been completed
func RequireSetup(cfg *Config) error {
	if cfg == nil || !cfg.SetupCompleted {
		return ErrSetupRequired
	}
	return nil
}

// Validate checks that the settings can drive a scan
func Validate(cfg *Config) error {
	if len(cfg.FilesToWatch) == 0 {
		return errors.New("at least one file pattern is required")
	}
	if len(cfg.Patterns) == 0 {
		return errors.New("at least one pattern is required")
	}
	for _, p := range cfg.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid regex pattern: %s", p)
		}
	}
	if strings.TrimSpace(cfg.EnvFile) == "" {
		return errors.New("env file name is required")
	}
	if strings.TrimSpace(cfg.ExampleFile) == "" {
		return errors.New("example file name is required")
	}
	return nil
}

// ValidatePatterns validates comma-separated regex input from the setup wizard
func ValidatePatterns(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("please enter at least one pattern")
	}
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid regex pattern: %s", p)
		}
	}
	return nil
}

// ValidateNotEmpty returns an error carrying msg when input is blank
func ValidateNotEmpty(msg string) func(string) error {
	return func(input string) error {
		if strings.TrimSpace(input) == "" {
			return errors.New(msg)
		}
		return nil
	}
}

// SplitList splits comma-separated input, dropping blank entries
func SplitList(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
