// Package config loads and validates the scheduler's TOML configuration
// file, the way the teacher's internal/config package loads HelixCode's
// config: spf13/viper, SetConfigType, SetDefault for optional keys, then
// Unmarshal into a typed struct tagged with mapstructure.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DatabaseType selects which wire protocol the Router and Accelerators
// speak.
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
)

// OperationMode selects which phases a single invocation runs (§4.5).
type OperationMode string

const (
	HealthCheck    OperationMode = "health_check"
	QueryDiscovery OperationMode = "query_discovery"
	All            OperationMode = "all"
)

// DiscoveryMode selects the ranking expression the discovery engine orders
// candidates by (§4.3).
type DiscoveryMode string

const (
	CountStar             DiscoveryMode = "CountStar"
	SumTime               DiscoveryMode = "SumTime"
	SumRowsSent           DiscoveryMode = "SumRowsSent"
	MeanTime              DiscoveryMode = "MeanTime"
	ExecutionTimeDistance DiscoveryMode = "ExecutionTimeDistance"
	QueryThroughput       DiscoveryMode = "QueryThroughput"
	WorstBestCase         DiscoveryMode = "WorstBestCase"
	WorstWorstCase        DiscoveryMode = "WorstWorstCase"
	DistanceMeanMax       DiscoveryMode = "DistanceMeanMax"
	External              DiscoveryMode = "External"
)

// Config is the scheduler's immutable-for-the-run configuration (§3).
type Config struct {
	DatabaseType DatabaseType `mapstructure:"database_type"`

	ProxySQLUser     string `mapstructure:"proxysql_user"`
	ProxySQLPassword string `mapstructure:"proxysql_password"`
	ProxySQLHost     string `mapstructure:"proxysql_host"`
	ProxySQLPort     int    `mapstructure:"proxysql_port"`

	ReadysetUser     string `mapstructure:"readyset_user"`
	ReadysetPassword string `mapstructure:"readyset_password"`

	SourceHostgroup   int `mapstructure:"source_hostgroup"`
	ReadysetHostgroup int `mapstructure:"readyset_hostgroup"`

	WarmupTimeS int `mapstructure:"warmup_time_s"`

	LockFile string `mapstructure:"lock_file"`

	OperationMode OperationMode `mapstructure:"operation_mode"`

	NumberOfQueries            int           `mapstructure:"number_of_queries"`
	QueryDiscoveryMode         DiscoveryMode `mapstructure:"query_discovery_mode"`
	QueryDiscoveryMinExecution int           `mapstructure:"query_discovery_min_execution"`
	QueryDiscoveryMinRowSent   int           `mapstructure:"query_discovery_min_row_sent"`

	LogVerbosity string `mapstructure:"log_verbosity"`
}

// Load reads and validates the TOML config file at path, applying the
// defaults from §6. Any missing required key is a fatal startup error
// (§7): config not parseable or not complete is reported to the caller so
// main() can exit(1) without side effects.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for _, key := range []string{"source_hostgroup", "readyset_hostgroup"} {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("invalid config: %s is required", key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_type", string(MySQL))
	v.SetDefault("warmup_time_s", 0)
	v.SetDefault("lock_file", "/tmp/readyset_scheduler.lock")
	v.SetDefault("operation_mode", string(All))
	v.SetDefault("number_of_queries", 10)
	v.SetDefault("query_discovery_mode", string(CountStar))
	v.SetDefault("query_discovery_min_execution", 0)
	v.SetDefault("query_discovery_min_row_sent", 0)
	v.SetDefault("log_verbosity", "note")
}

// Validate checks the invariants §3/§6 place on a Config: required fields
// are present, enums hold recognized values, and numeric fields meet their
// stated minimums.
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case MySQL, PostgreSQL:
	default:
		return fmt.Errorf("database_type must be %q or %q, got %q", MySQL, PostgreSQL, c.DatabaseType)
	}

	type required struct {
		name  string
		value string
	}
	for _, r := range []required{
		{"proxysql_user", c.ProxySQLUser},
		{"proxysql_password", c.ProxySQLPassword},
		{"proxysql_host", c.ProxySQLHost},
		{"readyset_user", c.ReadysetUser},
		{"readyset_password", c.ReadysetPassword},
	} {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if c.ProxySQLPort == 0 {
		return fmt.Errorf("proxysql_port is required")
	}
	if c.WarmupTimeS < 0 {
		return fmt.Errorf("warmup_time_s must be >= 0")
	}
	if c.NumberOfQueries < 1 {
		return fmt.Errorf("number_of_queries must be >= 1")
	}

	switch c.OperationMode {
	case HealthCheck, QueryDiscovery, All:
	default:
		return fmt.Errorf("operation_mode must be one of health_check, query_discovery, all, got %q", c.OperationMode)
	}

	switch c.QueryDiscoveryMode {
	case CountStar, SumTime, SumRowsSent, MeanTime, ExecutionTimeDistance, QueryThroughput, WorstBestCase, WorstWorstCase, DistanceMeanMax, External:
	default:
		return fmt.Errorf("query_discovery_mode %q is not recognized", c.QueryDiscoveryMode)
	}

	return nil
}

// RunsHealthCheck reports whether the configured operation mode includes
// the health-check phase (§4.5 step 5).
func (c *Config) RunsHealthCheck() bool {
	return c.OperationMode == HealthCheck || c.OperationMode == All
}

// RunsQueryDiscovery reports whether the configured operation mode includes
// the query-discovery phase (§4.5 step 6).
func (c *Config) RunsQueryDiscovery() bool {
	return c.OperationMode == QueryDiscovery || c.OperationMode == All
}
