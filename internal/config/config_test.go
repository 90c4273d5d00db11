package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
proxysql_user = "admin"
proxysql_password = "secret"
proxysql_host = "127.0.0.1"
proxysql_port = 6032

readyset_user = "app_user"
readyset_password = "app_pass"

source_hostgroup = 1
readyset_hostgroup = 2
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scheduler.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, MySQL, cfg.DatabaseType)
	assert.Equal(t, 0, cfg.WarmupTimeS)
	assert.Equal(t, "/tmp/readyset_scheduler.lock", cfg.LockFile)
	assert.Equal(t, All, cfg.OperationMode)
	assert.Equal(t, 10, cfg.NumberOfQueries)
	assert.Equal(t, CountStar, cfg.QueryDiscoveryMode)
	assert.Equal(t, "note", cfg.LogVerbosity)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+`
database_type = "postgresql"
warmup_time_s = 60
operation_mode = "health_check"
query_discovery_mode = "SumTime"
log_verbosity = "warning"
`))
	require.NoError(t, err)

	assert.Equal(t, PostgreSQL, cfg.DatabaseType)
	assert.Equal(t, 60, cfg.WarmupTimeS)
	assert.Equal(t, HealthCheck, cfg.OperationMode)
	assert.Equal(t, SumTime, cfg.QueryDiscoveryMode)
	assert.Equal(t, "warning", cfg.LogVerbosity)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	_, err := Load(writeConfig(t, `proxysql_host = "127.0.0.1"`))
	assert.Error(t, err)
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnrecognizedDiscoveryMode(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+`query_discovery_mode = "NotAMode"`))
	assert.Error(t, err)
}

func TestRunsHealthCheckAndQueryDiscovery(t *testing.T) {
	cfg := &Config{OperationMode: All}
	assert.True(t, cfg.RunsHealthCheck())
	assert.True(t, cfg.RunsQueryDiscovery())

	cfg.OperationMode = HealthCheck
	assert.True(t, cfg.RunsHealthCheck())
	assert.False(t, cfg.RunsQueryDiscovery())

	cfg.OperationMode = QueryDiscovery
	assert.False(t, cfg.RunsHealthCheck())
	assert.True(t, cfg.RunsQueryDiscovery())
}
