package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// isolateEnv clears every variable the loader reads so host settings cannot
// leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, o := range envOverrides {
		t.Setenv(o.name, "")
	}
	t.Setenv("WSGC_CONFIG", "")
	t.Setenv("HOME", t.TempDir())

	orig := systemConfigPath
	systemConfigPath = filepath.Join(t.TempDir(), "absent", "config.yaml")
	t.Cleanup(func() { systemConfigPath = orig })
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "full config",
			yaml: `
service:
  log_level: debug
  log_format: text
workspace:
  parent_dir: /srv/ci/workspace
  pattern: "build-*"
git:
  binary: /usr/local/bin/git
  remote_url: https://git.example.com/mono
  reference: /srv/ci/git/mono.git
  branch: main
thresholds:
  max_count: 5000
  max_packs: 4
state:
  lock_path: /run/wsgc.lock
  history_path: /var/lib/wsgc/history.db
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Service.LogLevel)
				assert.Equal(t, "text", cfg.Service.LogFormat)
				assert.Equal(t, "/srv/ci/workspace", cfg.Workspace.ParentDir)
				assert.Equal(t, "build-*", cfg.Workspace.Pattern)
				assert.Equal(t, "/usr/local/bin/git", cfg.Git.Binary)
				assert.Equal(t, "https://git.example.com/mono", cfg.Git.RemoteURL)
				assert.Equal(t, "/srv/ci/git/mono.git", cfg.Git.Reference)
				assert.Equal(t, "main", cfg.Git.Branch)
				assert.Equal(t, int64(5000), cfg.Thresholds.MaxCount)
				assert.Equal(t, int64(4), cfg.Thresholds.MaxPacks)
				assert.Equal(t, "/run/wsgc.lock", cfg.State.LockPath)
				assert.Equal(t, "/var/lib/wsgc/history.db", cfg.State.HistoryPath)
			},
		},
		{
			name: "partial config keeps defaults",
			yaml: `
workspace:
  parent_dir: /tmp/ws
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/ws", cfg.Workspace.ParentDir)
				assert.Equal(t, DefaultPattern, cfg.Workspace.Pattern)
				assert.Equal(t, DefaultRemoteURL, cfg.Git.RemoteURL)
				assert.Equal(t, DefaultReference, cfg.Git.Reference)
				assert.Equal(t, DefaultBranch, cfg.Git.Branch)
				assert.Equal(t, int64(DefaultMaxCount), cfg.Thresholds.MaxCount)
				assert.Equal(t, int64(DefaultMaxPacks), cfg.Thresholds.MaxPacks)
				assert.Empty(t, cfg.State.HistoryPath)
			},
		},
		{
			name: "explicit zero thresholds are kept",
			yaml: `
thresholds:
  max_count: 0
  max_packs: -1
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, int64(0), cfg.Thresholds.MaxCount)
				assert.Equal(t, int64(-1), cfg.Thresholds.MaxPacks)
			},
		},
		{
			name: "env var interpolation",
			yaml: `
workspace:
  parent_dir: ${CI_ROOT}/workspace
git:
  remote_url: ${CI_REMOTE}
`,
			env: map[string]string{
				"CI_ROOT":   "/mnt/ci",
				"CI_REMOTE": "ssh://git@example.com/repo.git",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/mnt/ci/workspace", cfg.Workspace.ParentDir)
				assert.Equal(t, "ssh://git@example.com/repo.git", cfg.Git.RemoteURL)
			},
		},
		{
			name: "env overrides win over file",
			yaml: `
workspace:
  parent_dir: /from/file
git:
  branch: develop
`,
			env: map[string]string{
				"WSGC_PARENT_DIR": "/from/env",
				"WSGC_BRANCH":     "release",
				"WSGC_HISTORY":    "/var/tmp/h.db",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/from/env", cfg.Workspace.ParentDir)
				assert.Equal(t, "release", cfg.Git.Branch)
				assert.Equal(t, "/var/tmp/h.db", cfg.State.HistoryPath)
			},
		},
		{
			name: "empty file is all defaults",
			yaml: ``,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultParentDir, cfg.Workspace.ParentDir)
			},
		},
		{
			name:    "unset env var is rejected",
			yaml:    "git:\n  remote_url: ${WSGC_TEST_UNSET_REMOTE}\n",
			wantErr: "${WSGC_TEST_UNSET_REMOTE} is not set",
		},
		{
			name:    "unknown key is rejected",
			yaml:    "thresholds:\n  max_cont: 10\n",
			wantErr: "max_cont",
		},
		{
			name:    "invalid log level",
			yaml:    "service:\n  log_level: verbose\n",
			wantErr: "service.log_level",
		},
		{
			name:    "invalid log format",
			yaml:    "service:\n  log_format: xml\n",
			wantErr: "service.log_format",
		},
		{
			name:    "empty remote url",
			yaml:    "git:\n  remote_url: \"\"\n",
			wantErr: "git.remote_url is required",
		},
		{
			name:    "pattern with separator",
			yaml:    "workspace:\n  pattern: a/b\n",
			wantErr: "workspace.pattern",
		},
		{
			name:    "malformed yaml",
			yaml:    "workspace: [unclosed\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yaml")
			writeTestFile(t, path, tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, cfg.SourceFile)
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectoryUsesConfigYAML(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "config.yaml"), "git:\n  branch: trunk\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "trunk", cfg.Git.Branch)
}

func TestLoadMissingFile(t *testing.T) {
	isolateEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "config file not found"))
}

func TestResolveWithoutConfigUsesDefaults(t *testing.T) {
	isolateEnv(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Resolve("")
	require.NoError(t, err)
	assert.Empty(t, cfg.SourceFile)
	assert.Equal(t, DefaultParentDir, cfg.Workspace.ParentDir)
	assert.Equal(t, int64(DefaultMaxCount), cfg.Thresholds.MaxCount)
}

func TestResolveLoadsDotEnvBesideConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("WSGC_TEST_DOTENV_ROOT", "")
	os.Unsetenv("WSGC_TEST_DOTENV_ROOT")

	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, ".env"), "WSGC_TEST_DOTENV_ROOT=/from/dotenv\n")
	writeTestFile(t, filepath.Join(dir, "config.yaml"), "workspace:\n  parent_dir: ${WSGC_TEST_DOTENV_ROOT}/ws\n")

	cfg, err := Resolve(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv/ws", cfg.Workspace.ParentDir)
}

func TestResolveDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, ".env"), "WSGC_BRANCH=from-dotenv\n")
	writeTestFile(t, filepath.Join(dir, "config.yaml"), "")
	t.Setenv("WSGC_BRANCH", "from-env")

	cfg, err := Resolve(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Git.Branch)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "/data/jenkins/workspace", cfg.Workspace.ParentDir)
	assert.Equal(t, "source*", cfg.Workspace.Pattern)
	assert.Equal(t, "/data/jenkins/git/source.git", cfg.Git.Reference)
	assert.Equal(t, "master", cfg.Git.Branch)
	assert.Equal(t, int64(15000), cfg.Thresholds.MaxCount)
	assert.Equal(t, int64(15), cfg.Thresholds.MaxPacks)
	assert.NoError(t, validate(cfg))
}
