package config

// Package config provides a reusable loader for the runtime's configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"ledgerkernel/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for one transaction processor
// instance. It mirrors the structure of the YAML files under config/.
type Config struct {
	Network struct {
		HRP string `mapstructure:"hrp" json:"hrp"`
	} `mapstructure:"network" json:"network"`

	Fees struct {
		CostUnitLimit     uint64 `mapstructure:"cost_unit_limit" json:"cost_unit_limit"`
		CostUnitPrice     string `mapstructure:"cost_unit_price" json:"cost_unit_price"`
		TipPercentage     int64  `mapstructure:"tip_percentage" json:"tip_percentage"`
		SystemLoan        uint64 `mapstructure:"system_loan" json:"system_loan"`
	} `mapstructure:"fees" json:"fees"`

	Codec struct {
		MaxTraversalDepth int `mapstructure:"max_traversal_depth" json:"max_traversal_depth"`
	} `mapstructure:"codec" json:"codec"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
	} `mapstructure:"storage" json:"storage"`

	RateLimit struct {
		RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
		Burst             int     `mapstructure:"burst" json:"burst"`
	} `mapstructure:"rate_limit" json:"rate_limit"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the LEDGERKERNEL_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("LEDGERKERNEL_ENV", ""))
}
