// Package config loads the vault's runtime settings with Viper, the
// teacher's configuration library (internal/config/config.go there
// mixes env vars and a YAML file; this keeps the same shape, trading
// the DynamoDB/bucket fields for the vault's credential and tuning
// knobs, per SPEC_FULL.md's AMBIENT STACK).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Default tuning constants (§ "SUPPLEMENTED FEATURES": SegmentSize and
// parity shape are implementer choices fixed here).
const (
	DefaultSegmentSize                      = 512 * 1024
	DefaultDataShards                       = 7
	DefaultParityShards                     = 3
	DefaultReplicationAttemptCount          = 3
	DefaultAssuranceReplicationDefaultCount = 2
	DefaultAssuranceReplicationSearchCount  = 5
	DefaultTotalConnections                 = 8
	DefaultUploadConnections                = 4
)

// Config is the engine's resolved configuration (§5 "Global state ...
// becomes an explicit configuration record threaded through the engine
// at construction").
type Config struct {
	LogLevel string

	StorageCode string
	Password    string

	CatalogRoot string
	Driver      string

	SegmentSize                      int
	DataShards                       int
	ParityShards                     int
	ReplicationAttemptCount          int
	AssuranceReplicationDefaultCount int
	AssuranceReplicationSearchCount  int
	TotalConnections                 int64
	UploadConnections                int64
}

// Load resolves configuration from (in ascending priority) defaults, an
// optional config file, environment variables prefixed VAULT_, and any
// flags bound on root.
func Load(configPath string, root *cobra.Command) (*Config, error) {
	v := viper.New()

	v.SetDefault("log-level", "info")
	v.SetDefault("catalog-root", "./vaults")
	v.SetDefault("driver", "mem")
	v.SetDefault("segment-size", DefaultSegmentSize)
	v.SetDefault("data-shards", DefaultDataShards)
	v.SetDefault("parity-shards", DefaultParityShards)
	v.SetDefault("replication-attempt-count", DefaultReplicationAttemptCount)
	v.SetDefault("assurance-replication-default-count", DefaultAssuranceReplicationDefaultCount)
	v.SetDefault("assurance-replication-search-count", DefaultAssuranceReplicationSearchCount)
	v.SetDefault("total-connections", DefaultTotalConnections)
	v.SetDefault("upload-connections", DefaultUploadConnections)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("vault")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if root != nil {
		if err := v.BindPFlags(root.PersistentFlags()); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	cfg := &Config{
		LogLevel:                         v.GetString("log-level"),
		StorageCode:                      v.GetString("storage-code"),
		Password:                         v.GetString("password"),
		CatalogRoot:                      v.GetString("catalog-root"),
		Driver:                           v.GetString("driver"),
		SegmentSize:                      v.GetInt("segment-size"),
		DataShards:                       v.GetInt("data-shards"),
		ParityShards:                     v.GetInt("parity-shards"),
		ReplicationAttemptCount:          v.GetInt("replication-attempt-count"),
		AssuranceReplicationDefaultCount: v.GetInt("assurance-replication-default-count"),
		AssuranceReplicationSearchCount:  v.GetInt("assurance-replication-search-count"),
		TotalConnections:                 int64(v.GetInt("total-connections")),
		UploadConnections:                int64(v.GetInt("upload-connections")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataShards < 1 {
		return fmt.Errorf("config: data-shards must be >= 1")
	}
	if c.ParityShards < 1 {
		return fmt.Errorf("config: parity-shards must be >= 1")
	}
	if c.SegmentSize < 1 {
		return fmt.Errorf("config: segment-size must be >= 1")
	}
	if c.UploadConnections < 1 || c.UploadConnections > c.TotalConnections {
		return fmt.Errorf("config: total-connections >= upload-connections >= 1")
	}
	return nil
}
