package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings are process-level knobs that live outside any single pipeline
// file: where to look for native plugins, which executor to default to,
// and where to expose metrics. Grounded on the teacher's
// pkg/common/config.LoadMasterConfig (viper defaults + env binding +
// optional config file), narrowed to the handful of settings this
// single-process engine needs instead of a cluster node's.
type Settings struct {
	PluginSearchPath string
	DefaultExecutor  ExecutorKind
	MetricsPort      int
	LogLevel         string
}

// LoadSettings reads process-level settings from an optional config file,
// environment variables (CONVEYOR_ prefix), and defaults: environment
// variables override the config file, which overrides the defaults — same
// layering as the teacher's viper setup.
func LoadSettings(cfgFile string) (*Settings, error) {
	v := viper.New()

	exe, err := os.Executable()
	defaultPluginDir := "."
	if err == nil {
		defaultPluginDir = filepath.Dir(exe)
	}

	v.SetDefault("plugin_search_path", defaultPluginDir)
	v.SetDefault("default_executor", string(ExecutorLevel))
	v.SetDefault("metrics_port", 9600)
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading settings file %q: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("conveyor")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/conveyor/")
		v.AddConfigPath("$HOME/.conveyor/")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading settings: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CONVEYOR")
	v.AutomaticEnv()

	return &Settings{
		PluginSearchPath: v.GetString("plugin_search_path"),
		DefaultExecutor:  ExecutorKind(v.GetString("default_executor")),
		MetricsPort:      v.GetInt("metrics_port"),
		LogLevel:         v.GetString("log_level"),
	}, nil
}
