package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mktbiz-byte/cnec-platform/internal/aggregate"
	"github.com/mktbiz-byte/cnec-platform/internal/cache"
	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig             `yaml:"store" mapstructure:"store"`
	Regions   map[string]RegionConfig `yaml:"regions" mapstructure:"regions"`
	Aggregate AggregateConfig         `yaml:"aggregate" mapstructure:"aggregate"`
	Cache     cache.Config            `yaml:"cache" mapstructure:"cache"`
	Storage   StorageConfig           `yaml:"storage" mapstructure:"storage"`
	Review    ReviewConfig            `yaml:"review" mapstructure:"review"`
	Server    ServerConfig            `yaml:"server" mapstructure:"server"`
	Log       LogConfig               `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the central database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RegionConfig holds one regional project's connection settings. A
// region with an empty database_url is simply unconfigured.
type RegionConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AggregateConfig tunes the multi-region aggregation pipeline.
type AggregateConfig struct {
	ProfileTable      string                                `yaml:"profile_table" mapstructure:"profile_table"`
	Supplements       map[string]aggregate.SupplementSource `yaml:"supplements" mapstructure:"supplements"`
	SupplementRatePer float64                               `yaml:"supplement_rate_per_sec" mapstructure:"supplement_rate_per_sec"`
}

// StorageConfig configures feedback attachment storage.
type StorageConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ReviewConfig tunes the video review screen.
type ReviewConfig struct {
	BoxToleranceSecs     float64 `yaml:"box_tolerance_secs" mapstructure:"box_tolerance_secs"`
	CommentToleranceSecs float64 `yaml:"comment_tolerance_secs" mapstructure:"comment_tolerance_secs"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SupplementSources converts the keyed-by-string config map to model
// regions, dropping entries whose region name does not parse.
func (c AggregateConfig) SupplementSources() map[model.Region]aggregate.SupplementSource {
	if c.Supplements == nil {
		return nil
	}
	out := make(map[model.Region]aggregate.SupplementSource, len(c.Supplements))
	for name, src := range c.Supplements {
		region, err := model.ParseRegion(name)
		if err != nil {
			zap.L().Warn("config: unknown supplement region", zap.String("region", name))
			continue
		}
		out[region] = src
	}
	return out
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CNEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("aggregate.profile_table", "user_profiles")
	v.SetDefault("aggregate.supplements", map[string]aggregate.SupplementSource{
		"korea": {Table: "applications", KeyField: "user_id"},
	})
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("storage.dir", "uploads")
	v.SetDefault("storage.base_url", "/files")
	v.SetDefault("review.box_tolerance_secs", 0.5)
	v.SetDefault("review.comment_tolerance_secs", 2.0)

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
