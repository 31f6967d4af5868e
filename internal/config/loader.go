package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/wsgc/internal/workspace"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// envOverrides maps environment variables onto config fields. They win over
// the config file so a scheduler can retarget a run without editing YAML.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, value string)
}{
	{"WSGC_PARENT_DIR", func(c *Config, v string) { c.Workspace.ParentDir = v }},
	{"WSGC_PATTERN", func(c *Config, v string) { c.Workspace.Pattern = v }},
	{"WSGC_REFERENCE", func(c *Config, v string) { c.Git.Reference = v }},
	{"WSGC_REMOTE_URL", func(c *Config, v string) { c.Git.RemoteURL = v }},
	{"WSGC_BRANCH", func(c *Config, v string) { c.Git.Branch = v }},
	{"WSGC_GIT", func(c *Config, v string) { c.Git.Binary = v }},
	{"WSGC_LOG_LEVEL", func(c *Config, v string) { c.Service.LogLevel = v }},
	{"WSGC_HISTORY", func(c *Config, v string) { c.State.HistoryPath = v }},
}

// Resolve finds and loads the configuration for a run. An explicit path must
// exist; otherwise the standard locations are searched and built-in defaults
// are used when none exists. A .env file beside the config file (or in the
// working directory when there is none) is loaded first without replacing
// variables that are already set.
func Resolve(explicitPath string) (*Config, error) {
	path := strings.TrimSpace(explicitPath)
	if path == "" {
		discovered, err := DiscoverConfigFile()
		if err != nil && !errors.Is(err, ErrNoConfig) {
			return nil, err
		}
		path = discovered
	}

	dotenvDir := "."
	if path != "" {
		dotenvDir = filepath.Dir(path)
	}
	if err := loadDotEnv(dotenvDir); err != nil {
		return nil, err
	}

	if path == "" {
		cfg := Defaults()
		applyEnvOverrides(cfg)
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Load reads a YAML config file, interpolates ${VAR} references, layers it
// over Defaults, applies environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := decodeStrict(interpolateEnv(string(data)), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", absPath, err)
	}
	cfg.SourceFile = absPath

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// decodeStrict unmarshals into cfg, rejecting unknown keys so typos in a
// threshold name do not silently fall back to a default.
func decodeStrict(doc string, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewBufferString(doc))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && strings.TrimSpace(v) != "" {
			o.apply(cfg, strings.TrimSpace(v))
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is and rejected by validate.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	required := []struct {
		field string
		value string
	}{
		{"workspace.parent_dir", cfg.Workspace.ParentDir},
		{"workspace.pattern", cfg.Workspace.Pattern},
		{"git.binary", cfg.Git.Binary},
		{"git.remote_url", cfg.Git.RemoteURL},
		{"git.branch", cfg.Git.Branch},
		{"state.lock_path", cfg.State.LockPath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.field)
		}
	}

	for _, f := range []struct {
		field string
		value string
	}{
		{"workspace.parent_dir", cfg.Workspace.ParentDir},
		{"git.remote_url", cfg.Git.RemoteURL},
		{"git.reference", cfg.Git.Reference},
		{"state.history_path", cfg.State.HistoryPath},
	} {
		if m := envVarPattern.FindStringSubmatch(f.value); m != nil {
			return fmt.Errorf("%s: environment variable ${%s} is not set", f.field, m[1])
		}
	}

	if err := workspace.ValidatePattern(cfg.Workspace.Pattern); err != nil {
		return fmt.Errorf("workspace.pattern: %w", err)
	}
	return nil
}
