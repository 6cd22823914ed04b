package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sunat-tools/ruc-resolver/internal/backend"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Backends  []backend.Config `yaml:"backends" mapstructure:"backends"`
	Facturapi FacturapiConfig  `yaml:"facturapi" mapstructure:"facturapi"`
	Pipeline  PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FacturapiConfig holds the Facturapi credential. The keyed backend stays
// out of the chain until this is set.
type FacturapiConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// PipelineConfig configures the resolve pass.
type PipelineConfig struct {
	Workers       int `yaml:"workers" mapstructure:"workers"`
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size"`
	ProgressEvery int `yaml:"progress_every" mapstructure:"progress_every"`
}

// ServerConfig configures the status server.
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
	v.SetEnvPrefix("RUC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("facturapi.key", "")
	v.SetDefault("pipeline.workers", 5)
	v.SetDefault("pipeline.batch_size", 0)
	v.SetDefault("pipeline.progress_every", 25)
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

	if len(cfg.Backends) == 0 {
		cfg.Backends = backend.Defaults()
	}
	for i := range cfg.Backends {
		if cfg.Backends[i].RequiresKey && cfg.Backends[i].APIKey == "" {
			cfg.Backends[i].APIKey = cfg.Facturapi.Key
		}
	}

	return &cfg, nil
}

// Validate checks the fields a command actually uses. mode is the command
// name: "resolve", "load", "status", or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required (path to the sqlite file)")
		}
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}

	switch mode {
	case "resolve":
		if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 50 {
			problems = append(problems, "pipeline.workers must be between 1 and 50")
		}
		if c.Pipeline.BatchSize < 0 {
			problems = append(problems, "pipeline.batch_size must be >= 0")
		}
		if c.Pipeline.ProgressEvery < 1 {
			problems = append(problems, "pipeline.progress_every must be >= 1")
		}
		if len(c.Backends) == 0 {
			problems = append(problems, "at least one backend is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "load", "status":
		// Store checks above are enough.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
