package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/mca-batch/mcab"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Pipeline   PipelineConfig `mapstructure:"pipeline"`
	Log        LogConfig      `mapstructure:"log"`
	WorldDir   string         `mapstructure:"worldDir"`
	IgnoreFile string         `mapstructure:"ignoreFile"`
	Debug      bool           `mapstructure:"debug"`
}

// PipelineConfig sizes the load/process/save worker pools.
type PipelineConfig struct {
	LoadThreads    int `mapstructure:"loadThreads"`
	ProcessThreads int `mapstructure:"processThreads"`
	WriteThreads   int `mapstructure:"writeThreads"`
	MaxLoadedFiles int `mapstructure:"maxLoadedFiles"`
	QueueSize      int `mapstructure:"queueSize"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("pipeline.loadThreads", internal.DefaultLoadThreads)
	v.SetDefault("pipeline.processThreads", internal.DefaultProcessThreads)
	v.SetDefault("pipeline.writeThreads", internal.DefaultWriteThreads)
	v.SetDefault("pipeline.maxLoadedFiles", internal.DefaultMaxLoadedFiles)
	v.SetDefault("pipeline.queueSize", 0)
	v.SetDefault("log.level", internal.DefaultLogLevel)
	v.SetDefault("worldDir", "")
	v.SetDefault("ignoreFile", internal.DefaultIgnoreFile)
	v.SetDefault("debug", false)

	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // pipeline.loadThreads becomes PIPELINE_LOADTHREADS

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()

	AppConfig = cfg
	return &AppConfig, nil
}

// Validate rejects pool sizes that cannot run a pipeline.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.LoadThreads < 0 || p.ProcessThreads < 0 || p.WriteThreads < 0 {
		return fmt.Errorf("pipeline thread counts must not be negative")
	}
	if p.MaxLoadedFiles < 0 || p.QueueSize < 0 {
		return fmt.Errorf("pipeline limits must not be negative")
	}
	return nil
}

func (c *Config) normalize() {
	if c.Pipeline.LoadThreads == 0 {
		c.Pipeline.LoadThreads = internal.DefaultLoadThreads
	}
	if c.Pipeline.ProcessThreads == 0 {
		c.Pipeline.ProcessThreads = internal.DefaultProcessThreads
	}
	if c.Pipeline.WriteThreads == 0 {
		c.Pipeline.WriteThreads = internal.DefaultWriteThreads
	}
	if c.Pipeline.MaxLoadedFiles == 0 {
		c.Pipeline.MaxLoadedFiles = c.Pipeline.ProcessThreads + c.Pipeline.ProcessThreads/2
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = c.Pipeline.MaxLoadedFiles
	}
	if c.Debug {
		c.Log.Level = "debug"
	}
}
