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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Spatial  SpatialConfig  `yaml:"spatial" mapstructure:"spatial"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PipelineConfig configures ingestion run behavior.
type PipelineConfig struct {
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRejectRatio float64 `yaml:"max_reject_ratio" mapstructure:"max_reject_ratio"`
}

// SpatialConfig configures H3 index resolutions.
type SpatialConfig struct {
	Resolutions     []int `yaml:"resolutions" mapstructure:"resolutions"`
	MatchResolution int   `yaml:"match_resolution" mapstructure:"match_resolution"`
	NeighborhoodK   int   `yaml:"neighborhood_k" mapstructure:"neighborhood_k"`
	SmoothK         int   `yaml:"smooth_k" mapstructure:"smooth_k"`
}

// ResolverConfig configures cross-source entity matching. Weights apply to
// a 0-100 score scale; Priority lists source names in merge precedence order
// and overrides the data-score ordering when set.
type ResolverConfig struct {
	NameWeight        float64  `yaml:"name_weight" mapstructure:"name_weight"`
	GeoWeight         float64  `yaml:"geo_weight" mapstructure:"geo_weight"`
	CategoricalWeight float64  `yaml:"categorical_weight" mapstructure:"categorical_weight"`
	Threshold         float64  `yaml:"threshold" mapstructure:"threshold"`
	DistanceCutoff    int      `yaml:"distance_cutoff" mapstructure:"distance_cutoff"`
	MaxClusterSize    int      `yaml:"max_cluster_size" mapstructure:"max_cluster_size"`
	Priority          []string `yaml:"priority" mapstructure:"priority"`
}

// FetchConfig configures remote source file acquisition.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	TempDir     string  `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An explicit path
// overrides the search for pyxis.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pyxis")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PYXIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pyxis.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.timeout_secs", 600)
	v.SetDefault("pipeline.max_reject_ratio", 0.5)
	v.SetDefault("spatial.resolutions", []int{5, 9})
	v.SetDefault("spatial.match_resolution", 5)
	v.SetDefault("spatial.neighborhood_k", 1)
	v.SetDefault("spatial.smooth_k", 2)
	v.SetDefault("resolver.name_weight", 0.7)
	v.SetDefault("resolver.geo_weight", 0.3)
	v.SetDefault("resolver.categorical_weight", 0.0)
	v.SetDefault("resolver.threshold", 60.0)
	v.SetDefault("resolver.distance_cutoff", 50)
	v.SetDefault("resolver.max_cluster_size", 8)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.rate_limit", 5.0)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.temp_dir", "")

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

// Validate checks that the configuration is usable for the given mode
// ("run", "export", "smooth"). All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run", "export", "smooth", "runs":
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "validate", "sources":
		// No store access needed.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "run" {
		if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 64 {
			problems = append(problems, "pipeline.workers must be between 1 and 64")
		}
		if c.Pipeline.MaxRejectRatio < 0 || c.Pipeline.MaxRejectRatio > 1 {
			problems = append(problems, "pipeline.max_reject_ratio must be between 0 and 1")
		}
		if len(c.Spatial.Resolutions) == 0 {
			problems = append(problems, "spatial.resolutions must not be empty")
		}
		for _, r := range c.Spatial.Resolutions {
			if r < 0 || r > 15 {
				problems = append(problems, "spatial.resolutions entries must be between 0 and 15")
				break
			}
		}
		if !containsInt(c.Spatial.Resolutions, c.Spatial.MatchResolution) {
			problems = append(problems, "spatial.match_resolution must be one of spatial.resolutions")
		}
		if c.Resolver.NameWeight < 0 || c.Resolver.GeoWeight < 0 || c.Resolver.CategoricalWeight < 0 {
			problems = append(problems, "resolver weights must be >= 0")
		}
		if c.Resolver.Threshold < 0 || c.Resolver.Threshold > 100 {
			problems = append(problems, "resolver.threshold must be between 0 and 100")
		}
		if c.Resolver.MaxClusterSize < 2 {
			problems = append(problems, "resolver.max_cluster_size must be >= 2")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
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
