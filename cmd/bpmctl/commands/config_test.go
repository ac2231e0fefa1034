package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/bpm-client/internal/app"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bpmctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// loadWithFlags runs a command carrying the root flags and loads the config inside its action.
func loadWithFlags(t *testing.T, configPath string, env func() []string, args ...string) (*app.Config, error) {
	t.Helper()

	var (
		cfg     *app.Config
		loadErr error
	)
	root := newRootCommand(nil, nil, nil)
	cmd := &cli.Command{
		Name:  "test",
		Flags: root.Flags,
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, loadErr = loadConfig(configPath, cmd, env)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...)))
	return cfg, loadErr
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", nil, environ("BPMCTL_TOKEN__DIR="+t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, app.DefaultConfigLogFormat, cfg.LogFormat)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, app.DefaultConfigClientName, cfg.Client.Name)
	assert.Equal(t, app.DefaultConfigHTTPTimeout, cfg.HTTP.Timeout)
	assert.Equal(t, app.DefaultConfigTokenStorage, cfg.Token.Storage)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
log_level = "debug"
log_format = "json"

[server]
base_url = "http://bpm.example:8080"
api_root = "/rest/bpm/process"

[client]
name = "ops"
id = "cli"
secret = "s3cret"

[http]
timeout = "5s"

[token]
storage = "memory"
`)

	cfg, err := loadConfig(path, nil, environ())
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, app.LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, "http://bpm.example:8080", cfg.Server.BaseURL)
	assert.Equal(t, "/rest/bpm/process", cfg.Server.APIRoot)
	assert.Equal(t, "ops", cfg.Client.Name)
	assert.Equal(t, "cli", cfg.Client.ID)
	assert.Equal(t, "s3cret", cfg.Client.Secret)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, app.TokenStorageTypeMemory, cfg.Token.Storage)
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfigFile(t, `
[server]
base_url = "http://from-file"

[client]
name = "file"

[token]
storage = "memory"
`)
	env := environ(
		"BPMCTL_SERVER__BASE_URL=http://from-env",
		"BPMCTL_CLIENT__NAME=env",
		"UNRELATED=1",
	)

	t.Run("env overrides file", func(t *testing.T) {
		cfg, err := loadWithFlags(t, path, env)
		require.NoError(t, err)
		assert.Equal(t, "http://from-env", cfg.Server.BaseURL)
		assert.Equal(t, "env", cfg.Client.Name)
	})

	t.Run("flags override env", func(t *testing.T) {
		cfg, err := loadWithFlags(t, path, env, "--server--base-url", "http://from-flag", "--log-format", "json")
		require.NoError(t, err)
		assert.Equal(t, "http://from-flag", cfg.Server.BaseURL)
		assert.Equal(t, app.LogFormatJSON, cfg.LogFormat)
		assert.Equal(t, "env", cfg.Client.Name, "unset flags keep the env value")
	})
}

func TestLoadConfigIgnoresStoredTokens(t *testing.T) {
	cfg, err := loadConfig("", nil, environ(
		"BPMCTL_TOKEN__STORAGE=env",
		"BPMCTL_TOKEN_BPMCTL_JMIXBPMACCESSTOKEN=abc",
	))
	require.NoError(t, err)
	assert.Equal(t, app.TokenStorageTypeEnv, cfg.Token.Storage)
	assert.Equal(t, app.DefaultConfigTokenEnvPrefix, cfg.Token.EnvPrefix)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  []string
		path string
	}{
		{name: "unknown log format", env: []string{"BPMCTL_LOG_FORMAT=xml", "BPMCTL_TOKEN__STORAGE=memory"}},
		{name: "unknown token storage", env: []string{"BPMCTL_TOKEN__STORAGE=vault"}},
		{name: "relative api root", env: []string{"BPMCTL_SERVER__API_ROOT=rest", "BPMCTL_TOKEN__STORAGE=memory"}},
		{name: "missing file", path: "/nonexistent/bpmctl.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(tt.path, nil, environ(tt.env...))
			assert.Error(t, err)
		})
	}
}
