// Package config loads the effort configuration from defaults, an optional
// YAML file and EFFORT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/effort/pkg/report"
	"github.com/Sumatoshi-tech/effort/pkg/safeconv"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidBuckets     = errors.New("timeline buckets out of range")
	ErrInvalidSize        = errors.New("invalid byte size")
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrInvalidLogFormat   = errors.New("logging format must be text or json")
	ErrInvalidExportTypes = errors.New("export types must not be empty")
)

// Config holds all configuration for effort.
type Config struct {
	Rules    RulesConfig    `mapstructure:"rules"`
	Log      LogConfig      `mapstructure:"log"`
	Timeline TimelineConfig `mapstructure:"timeline"`
	Export   ExportConfig   `mapstructure:"export"`
	Output   OutputConfig   `mapstructure:"output"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RulesConfig locates the activity rule table.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig tunes how commit logs are read.
type LogConfig struct {
	MaxSize               string `mapstructure:"max_size"`
	Timezone              string `mapstructure:"timezone"`
	OnlyFileManipulations bool   `mapstructure:"only_file_manipulations"`
}

// TimelineConfig holds the temporal aggregation settings.
type TimelineConfig struct {
	Granularity string `mapstructure:"granularity"`
	Level       string `mapstructure:"level"`
	Buckets     int    `mapstructure:"buckets"`
	ShowZero    bool   `mapstructure:"show_zero"`
}

// ExportConfig holds the statistics export settings. An empty StatsFile
// disables the export.
type ExportConfig struct {
	StatsFile string   `mapstructure:"stats_file"`
	Types     []string `mapstructure:"types"`
}

// OutputConfig holds report output settings.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	MaxBodySize  string        `mapstructure:"max_body_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from file and environment variables. With
// an empty configPath, effort.yaml is searched in ".", "./config" and
// "/etc/effort"; a missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/effort")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		Log:      LogConfig{MaxSize: DefaultLogMaxSize, Timezone: DefaultTimezone},
		Timeline: TimelineConfig{Granularity: DefaultGranularity, Level: DefaultLevel, Buckets: DefaultBuckets},
		Export:   ExportConfig{Types: DefaultExportTypes()},
		Output:   OutputConfig{Format: DefaultOutputFormat},
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			MaxBodySize:  DefaultMaxBodySize,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		Logging: LoggingConfig{Level: DefaultLoggingLevel, Format: DefaultLoggingFormat},
	}
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("rules.path", "")

	viperCfg.SetDefault("log.only_file_manipulations", false)
	viperCfg.SetDefault("log.max_size", DefaultLogMaxSize)
	viperCfg.SetDefault("log.timezone", DefaultTimezone)

	viperCfg.SetDefault("timeline.granularity", DefaultGranularity)
	viperCfg.SetDefault("timeline.level", DefaultLevel)
	viperCfg.SetDefault("timeline.buckets", DefaultBuckets)
	viperCfg.SetDefault("timeline.show_zero", false)

	viperCfg.SetDefault("export.stats_file", "")
	viperCfg.SetDefault("export.types", DefaultExportTypes())

	viperCfg.SetDefault("output.format", DefaultOutputFormat)

	viperCfg.SetDefault("server.host", DefaultHost)
	viperCfg.SetDefault("server.port", DefaultPort)
	viperCfg.SetDefault("server.read_timeout", DefaultReadTimeout)
	viperCfg.SetDefault("server.write_timeout", DefaultWriteTimeout)
	viperCfg.SetDefault("server.idle_timeout", DefaultIdleTimeout)
	viperCfg.SetDefault("server.max_body_size", DefaultMaxBodySize)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)
}

// Validate checks every field that LoadConfig cannot type-check.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	_, err := c.TimelineSettings()
	if err != nil {
		return err
	}

	_, err = c.MaxLogBytes()
	if err != nil {
		return err
	}

	_, err = c.Server.MaxBodyBytes()
	if err != nil {
		return err
	}

	_, err = report.ValidateFormat(c.Output.Format, report.Formats())
	if err != nil {
		return fmt.Errorf("output format: %w", err)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != loggingFormatText && format != loggingFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if len(c.Export.Types) == 0 {
		return ErrInvalidExportTypes
	}

	return nil
}

// TimelineSettings converts the timeline and log sections into an
// aggregation config.
func (c *Config) TimelineSettings() (timeline.Config, error) {
	granularity, err := timeline.ParseGranularity(c.Timeline.Granularity)
	if err != nil {
		return timeline.Config{}, fmt.Errorf("timeline granularity: %w", err)
	}

	level, err := timeline.ParseLevel(c.Timeline.Level)
	if err != nil {
		return timeline.Config{}, fmt.Errorf("timeline level: %w", err)
	}

	if c.Timeline.Buckets <= 0 || c.Timeline.Buckets > timeline.MaxBuckets {
		return timeline.Config{}, fmt.Errorf("%w: %d (max %d)", ErrInvalidBuckets, c.Timeline.Buckets, timeline.MaxBuckets)
	}

	loc, err := time.LoadLocation(c.Log.Timezone)
	if err != nil {
		return timeline.Config{}, fmt.Errorf("%w %q: %w", ErrInvalidTimezone, c.Log.Timezone, err)
	}

	return timeline.Config{
		Granularity: granularity,
		Level:       level,
		Buckets:     c.Timeline.Buckets,
		ShowZero:    c.Timeline.ShowZero,
		Location:    loc,
	}, nil
}

// MaxLogBytes returns log.max_size in bytes. Zero means unlimited.
func (c *Config) MaxLogBytes() (int64, error) {
	return parseSize("log.max_size", c.Log.MaxSize)
}

// MaxBodyBytes returns server.max_body_size in bytes. Zero means unlimited.
func (s ServerConfig) MaxBodyBytes() (int64, error) {
	return parseSize("server.max_body_size", s.MaxBodySize)
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func parseSize(key, value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "0" {
		return 0, nil
	}

	parsed, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidSize, key, value, err)
	}

	if !safeconv.FitsInt64(parsed) {
		return 0, fmt.Errorf("%w: %s=%q is too large", ErrInvalidSize, key, value)
	}

	return safeconv.MustUint64ToInt64(parsed), nil
}
