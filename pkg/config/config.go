package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Storage struct {
		Root      string      `mapstructure:"root"`
		Catalog   string      `mapstructure:"catalog"`
		FileMode  os.FileMode `mapstructure:"file_mode"`
		DirMode   os.FileMode `mapstructure:"dir_mode"`
		SyncDir   bool        `mapstructure:"sync_dir"`
		Overwrite bool        `mapstructure:"overwrite"`
	} `mapstructure:"storage"`

	Server struct {
		GRPCPort    int `mapstructure:"grpc_port"`
		MetricsPort int `mapstructure:"metrics_port"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func Load(path string) (*Config, error) {
	v := viper.New()

	// ➊ YAML file (optional)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	// ➋ ENV overrides, e.g. ATOMICW_STORAGE_ROOT=/srv/data
	v.SetEnvPrefix("ATOMICW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// ➌ Hard defaults
	v.SetDefault("storage.root", "data")
	v.SetDefault("storage.catalog", "catalog.db")
	v.SetDefault("storage.file_mode", 0o644)
	v.SetDefault("storage.dir_mode", 0o755)
	v.SetDefault("storage.sync_dir", true)
	v.SetDefault("storage.overwrite", false)
	v.SetDefault("server.grpc_port", 50061)
	v.SetDefault("server.metrics_port", 9112)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Root) == "" {
		return fmt.Errorf("config: storage.root is empty")
	}
	if strings.TrimSpace(c.Storage.Catalog) == "" {
		return fmt.Errorf("config: storage.catalog is empty")
	}
	for name, port := range map[string]int{
		"server.grpc_port":    c.Server.GRPCPort,
		"server.metrics_port": c.Server.MetricsPort,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("config: %s %d out of range", name, port)
		}
	}
	return nil
}
