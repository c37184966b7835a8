// Package config loads kzdb's engine-level configuration: where the
// database file lives, how big its pages are, how many buffer-pool frames
// to keep resident, and how to log. Unlike the teacher's config, there is
// no network "Server" section — a network protocol is out of scope.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type StorageConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	FileName string `mapstructure:"file_name"`
	PageSize int    `mapstructure:"page_size"`
}

type BufferPoolConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

type Config struct {
	AppName    string           `mapstructure:"app_name"`
	Storage    StorageConfig    `mapstructure:"storage"`
	BufferPool BufferPoolConfig `mapstructure:"buffer_pool"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		AppName: "kzdb",
		Storage: StorageConfig{
			DataDir:  "./data",
			FileName: "kzdb.db",
			PageSize: 4096,
		},
		BufferPool: BufferPoolConfig{Capacity: 128},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (a YAML file) and unmarshals it over Default(), mirroring
// the teacher's viper.New()/SetConfigFile/SetConfigType/ReadInConfig flow.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
