package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Completeness CompletenessConfig `yaml:"completeness" mapstructure:"completeness"`
	Gate         GateConfig         `yaml:"gate" mapstructure:"gate"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CompletenessConfig configures the completeness evaluator.
type CompletenessConfig struct {
	// Matcher selects the text heuristic: "substring" or "word".
	Matcher string `yaml:"matcher" mapstructure:"matcher"`
}

// GateConfig configures next-action routing.
type GateConfig struct {
	EscalationConfidence   float64 `yaml:"escalation_confidence" mapstructure:"escalation_confidence"`
	MaxClarificationRounds int     `yaml:"max_clarification_rounds" mapstructure:"max_clarification_rounds"`
}

// PipelineConfig configures thread processing.
type PipelineConfig struct {
	MaxConcurrentThreads int `yaml:"max_concurrent_threads" mapstructure:"max_concurrent_threads"`
}

// RetryConfig configures retries of transient store failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
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
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "triage.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("completeness.matcher", "substring")
	v.SetDefault("gate.escalation_confidence", 0.6)
	v.SetDefault("gate.max_clarification_rounds", 3)
	v.SetDefault("pipeline.max_concurrent_threads", 5)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 100)
	v.SetDefault("retry.max_backoff_ms", 2000)
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

// Validate checks that the configuration is usable for the given command
// mode ("process" or "inspect"). All problems are reported together.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	switch mode {
	case "inspect":
	case "process":
		switch strings.ToLower(strings.TrimSpace(c.Completeness.Matcher)) {
		case "", "substring", "word":
		default:
			problems = append(problems, fmt.Sprintf("completeness.matcher %q is not supported", c.Completeness.Matcher))
		}
		if c.Gate.EscalationConfidence < 0 || c.Gate.EscalationConfidence > 1 {
			problems = append(problems, "gate.escalation_confidence must be between 0 and 1")
		}
		if c.Gate.MaxClarificationRounds < 1 {
			problems = append(problems, "gate.max_clarification_rounds must be >= 1")
		}
		if c.Pipeline.MaxConcurrentThreads < 1 || c.Pipeline.MaxConcurrentThreads > 50 {
			problems = append(problems, "pipeline.max_concurrent_threads must be between 1 and 50")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
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
