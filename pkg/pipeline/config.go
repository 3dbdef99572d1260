package pipeline

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages pipeline configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Input parameters
	v.SetDefault("input.normalize_weights", true)
	v.SetDefault("input.gaf_use_symbol", false)
	v.SetDefault("input.gaf_taxon", 0)
	v.SetDefault("input.min_cluster_size", 2)

	// Clustering parameters
	v.SetDefault("clustering.inflation", 2.0)
	v.SetDefault("clustering.binary", "mcl")
	v.SetDefault("clustering.allow_fallback", true)

	// Scoring parameters
	v.SetDefault("scoring.lambda_inter", 1.0)
	v.SetDefault("scoring.lambda_fragment", 0.5)

	// Search parameters. Disabling the search runs the pipeline at the
	// lower-bound parameter values; pin a parameter by giving it a
	// degenerate range.
	v.SetDefault("search.enabled", true)
	v.SetDefault("search.population_size", 30)
	v.SetDefault("search.max_evaluations", 500)
	v.SetDefault("search.stagnation_window", 0)
	v.SetDefault("search.levy_beta", 1.5)
	v.SetDefault("search.step_scale", 0.01)
	v.SetDefault("search.attraction", 0.5)
	v.SetDefault("search.attraction_decay", 0.99)
	v.SetDefault("search.random_seed", int64(-1))
	v.SetDefault("search.alpha_min", 0.0)
	v.SetDefault("search.alpha_max", 1.0)
	v.SetDefault("search.tau_accept_min", 0.0)
	v.SetDefault("search.tau_accept_max", 1.0)
	v.SetDefault("search.tau_transfer_min", 0.0)
	v.SetDefault("search.tau_transfer_max", 1.0)

	// Performance parameters
	v.SetDefault("performance.parallel", true)
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Output parameters
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.top_terms", 10)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for input parameters
func (c *Config) NormalizeWeights() bool { return c.v.GetBool("input.normalize_weights") }
func (c *Config) GAFUseSymbol() bool { return c.v.GetBool("input.gaf_use_symbol") }
func (c *Config) GAFTaxon() int { return c.v.GetInt("input.gaf_taxon") }
func (c *Config) MinClusterSize() int { return c.v.GetInt("input.min_cluster_size") }

func (c *Config) Inflation() float64 { return c.v.GetFloat64("clustering.inflation") }
func (c *Config) MCLBinary() string { return c.v.GetString("clustering.binary") }
func (c *Config) AllowFallback() bool { return c.v.GetBool("clustering.allow_fallback") }

func (c *Config) LambdaInter() float64 { return c.v.GetFloat64("scoring.lambda_inter") }
func (c *Config) LambdaFragment() float64 { return c.v.GetFloat64("scoring.lambda_fragment") }

func (c *Config) SearchEnabled() bool { return c.v.GetBool("search.enabled") }
func (c *Config) PopulationSize() int { return c.v.GetInt("search.population_size") }
func (c *Config) MaxEvaluations() int { return c.v.GetInt("search.max_evaluations") }
func (c *Config) StagnationWindow() int { return c.v.GetInt("search.stagnation_window") }
func (c *Config) LevyBeta() float64 { return c.v.GetFloat64("search.levy_beta") }
func (c *Config) StepScale() float64 { return c.v.GetFloat64("search.step_scale") }
func (c *Config) Attraction() float64 { return c.v.GetFloat64("search.attraction") }
func (c *Config) AttractionDecay() float64 { return c.v.GetFloat64("search.attraction_decay") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("search.random_seed") }
func (c *Config) AlphaMin() float64 { return c.v.GetFloat64("search.alpha_min") }
func (c *Config) AlphaMax() float64 { return c.v.GetFloat64("search.alpha_max") }
func (c *Config) TauAcceptMin() float64 { return c.v.GetFloat64("search.tau_accept_min") }
func (c *Config) TauAcceptMax() float64 { return c.v.GetFloat64("search.tau_accept_max") }
func (c *Config) TauTransferMin() float64 { return c.v.GetFloat64("search.tau_transfer_min") }
func (c *Config) TauTransferMax() float64 { return c.v.GetFloat64("search.tau_transfer_max") }

func (c *Config) Parallel() bool { return c.v.GetBool("performance.parallel") }
func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }

func (c *Config) OutputDir() string { return c.v.GetString("output.dir") }
func (c *Config) TopTerms() int { return c.v.GetInt("output.top_terms") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "overlap").Logger()
}
