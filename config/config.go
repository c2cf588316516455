// Package config loads the settings an rlogd process needs to construct
// an RLog: where its durable store lives, its compaction threshold, and
// its cluster membership. Values come from a config file and environment
// variables, the latter taking precedence, via github.com/spf13/viper.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Settings holds everything needed to construct an RLog for one node.
type Settings struct {
	// ServerID is this node's identity within AllServerIDs.
	ServerID string `mapstructure:"server_id"`

	// AllServerIDs is the full (old) configuration at startup.
	AllServerIDs []string `mapstructure:"all_server_ids"`

	// DataDir is where the bbolt-backed store keeps its file.
	DataDir string `mapstructure:"data_dir"`

	// FixedLogSizeCompaction is the entries-count threshold the
	// compaction policy triggers at.
	FixedLogSizeCompaction int `mapstructure:"fixed_log_size_compaction"`

	// SnapshotRetention is how many snapshots to keep after each
	// compaction or install.
	SnapshotRetention int `mapstructure:"snapshot_retention"`
}

// defaults mirror a small single-process demo deployment; a real cluster
// overrides all of these via file/env.
func defaults() Settings {
	return Settings{
		DataDir:                "./rlog-data",
		FixedLogSizeCompaction: 1000,
		SnapshotRetention:      3,
	}
}

// Load reads configuration from configPath (if non-empty), the RLOG_*
// environment variables, and returns the resolved Settings. configPath
// may point at a YAML, JSON, or TOML file; a named file that cannot be
// read is an error. With an empty configPath no file is read, and
// server_id/all_server_ids must then arrive via environment variables.
func Load(configPath string) (Settings, error) {
	v := viper.New()

	d := defaults()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("fixed_log_size_compaction", d.FixedLogSizeCompaction)
	v.SetDefault("snapshot_retention", d.SnapshotRetention)

	v.SetEnvPrefix("rlog")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"server_id", "all_server_ids"} {
		if err := v.BindEnv(key); err != nil {
			return Settings{}, errors.Wrap(err, "config: binding environment")
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, errors.Wrap(err, "config: reading config file")
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, errors.Wrap(err, "config: unmarshaling settings")
	}

	if s.ServerID == "" {
		return Settings{}, errors.New("config: server_id is required")
	}
	if len(s.AllServerIDs) == 0 {
		return Settings{}, errors.New("config: all_server_ids is required")
	}
	return s, nil
}
