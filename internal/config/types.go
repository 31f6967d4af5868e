package config

import (
	"os"
	"path/filepath"
)

// Config is the complete wsgc configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Git        GitConfig        `yaml:"git"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	State      StateConfig      `yaml:"state"`

	// SourceFile is the file the config was loaded from; empty for built-in
	// defaults.
	SourceFile string `yaml:"-"`
}

// ServiceConfig controls logging.
type ServiceConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// WorkspaceConfig locates the CI checkouts to scan.
type WorkspaceConfig struct {
	ParentDir string `yaml:"parent_dir"`
	Pattern   string `yaml:"pattern"` // glob matched against directory names
}

// GitConfig describes how a reset workspace is cloned again.
type GitConfig struct {
	Binary    string `yaml:"binary"`
	RemoteURL string `yaml:"remote_url"`
	Reference string `yaml:"reference"` // local repository shared via --reference
	Branch    string `yaml:"branch"`
}

// ThresholdsConfig holds the garbage limits. A workspace at or above either
// limit needs a reset. Zero and negative values are accepted as given.
type ThresholdsConfig struct {
	MaxCount int64 `yaml:"max_count"`
	MaxPacks int64 `yaml:"max_packs"`
}

// StateConfig defines where run state lives.
type StateConfig struct {
	LockPath string `yaml:"lock_path"`
	// HistoryPath enables the SQLite scan history when set.
	HistoryPath string `yaml:"history_path"`
}

const (
	DefaultParentDir = "/data/jenkins/workspace"
	DefaultPattern   = "source*"
	DefaultReference = "/data/jenkins/git/source.git"
	DefaultRemoteURL = "https://git.twitter.biz/ro/source"
	DefaultBranch    = "master"
	DefaultMaxCount  = 15000
	DefaultMaxPacks  = 15
)

// Defaults returns a Config carrying the values the tool has always used.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Workspace: WorkspaceConfig{
			ParentDir: DefaultParentDir,
			Pattern:   DefaultPattern,
		},
		Git: GitConfig{
			Binary:    "git",
			RemoteURL: DefaultRemoteURL,
			Reference: DefaultReference,
			Branch:    DefaultBranch,
		},
		Thresholds: ThresholdsConfig{
			MaxCount: DefaultMaxCount,
			MaxPacks: DefaultMaxPacks,
		},
		State: StateConfig{
			LockPath: filepath.Join(os.TempDir(), "wsgc.lock"),
		},
	}
}
