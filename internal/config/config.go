// Package config loads the application configuration from file and
// environment and bootstraps the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths  PathsConfig  `yaml:"paths" mapstructure:"paths"`
	Grid   GridConfig   `yaml:"grid" mapstructure:"grid"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates data, output, and run-config directories.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	OutDir    string `yaml:"out_dir" mapstructure:"out_dir"`
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// GridConfig carries grid synthesis defaults. The extent defaults to the
// statewide California envelope in the working projection.
type GridConfig struct {
	CellSize      float64 `yaml:"cell_size" mapstructure:"cell_size"`
	Buffer        float64 `yaml:"buffer" mapstructure:"buffer"`
	WorkingCRS    string  `yaml:"working_crs" mapstructure:"working_crs"`
	ExtentMinX    float64 `yaml:"extent_min_x" mapstructure:"extent_min_x"`
	ExtentMinY    float64 `yaml:"extent_min_y" mapstructure:"extent_min_y"`
	ExtentMaxX    float64 `yaml:"extent_max_x" mapstructure:"extent_max_x"`
	ExtentMaxY    float64 `yaml:"extent_max_y" mapstructure:"extent_max_y"`
	Workers       int     `yaml:"workers" mapstructure:"workers"`
	TileCols      int     `yaml:"tile_cols" mapstructure:"tile_cols"`
	MaxCandidates int64   `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// StoreConfig configures the registry backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures dataset downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerHost float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
}

// ServerConfig configures the artifact server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PIXELGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.out_dir", "out")
	v.SetDefault("paths.config_dir", "configs")
	v.SetDefault("grid.cell_size", 100)
	v.SetDefault("grid.buffer", 75)
	v.SetDefault("grid.working_crs", "EPSG:3310")
	// Statewide lattice envelope in the working projection, meters.
	v.SetDefault("grid.extent_min_x", -381105)
	v.SetDefault("grid.extent_min_y", -606895)
	v.SetDefault("grid.extent_max_x", 540895)
	v.SetDefault("grid.extent_max_y", 456105)
	v.SetDefault("grid.workers", 0)
	v.SetDefault("grid.tile_cols", 64)
	v.SetDefault("grid.max_candidates", 200000000)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pixelgrid.db")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_host", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
