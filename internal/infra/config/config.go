package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`
}

type DownloadConfig struct {
	OutDir         string `mapstructure:"out_dir" yaml:"out_dir"`
	Workers        int    `mapstructure:"workers" yaml:"workers"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	JournalPath string `mapstructure:"journal_path" yaml:"journal_path"`
}

type APIConfig struct {
	StatusAddr string `mapstructure:"status_addr" yaml:"status_addr"`
}

// Load reads configuration from an optional YAML file, environment variables
// (M3U8DL_ prefix) and built-in defaults. An empty path means "no config
// file": defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set Defaults
	v.SetDefault("download.out_dir", "./")
	v.SetDefault("download.workers", 8)
	v.SetDefault("download.timeout_seconds", 30)
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.journal_path", "m3u8dl.db")
	v.SetDefault("api.status_addr", "")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}

		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("M3U8DL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.normalize()

	return &cfg, nil
}

// normalize fills sane values for anything a config file zeroed out.
func (c *Config) normalize() {
	if c.Download.OutDir == "" {
		c.Download.OutDir = "./"
	}
	if c.Download.Workers <= 0 {
		c.Download.Workers = 8
	}
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
