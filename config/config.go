// Package config loads gate settings from YAML files and LOADGATE_*
// environment variables.
//
// Durations use Go syntax ("200ms", "10s"). expose_status_route accepts a
// boolean or a path. Probes and pressure handlers are code, so they are set
// on the returned pressure.Config by the caller.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/loadgate/observe"
	"github.com/jonwraymond/loadgate/pressure"
)

// EnvPrefix is the prefix of environment variable overrides, e.g.
// LOADGATE_MAX_HEAP_USED_BYTES or LOADGATE_OBSERVE_LOGGING_LEVEL.
const EnvPrefix = "LOADGATE"

// ErrInvalidStatusRoute indicates expose_status_route is neither a boolean
// nor a path.
var ErrInvalidStatusRoute = errors.New("config: expose_status_route must be a boolean or a path")

// Settings mirrors the file and environment layout.
type Settings struct {
	MaxEventLoopDelay       time.Duration   `mapstructure:"max_event_loop_delay"`
	MaxEventLoopUtilization float64         `mapstructure:"max_event_loop_utilization"`
	MaxHeapUsedBytes        uint64          `mapstructure:"max_heap_used_bytes"`
	MaxRSSBytes             uint64          `mapstructure:"max_rss_bytes"`
	HealthCheckInterval     time.Duration   `mapstructure:"health_check_interval"`
	SampleInterval          time.Duration   `mapstructure:"sample_interval"`
	RetryAfter              time.Duration   `mapstructure:"retry_after"`
	ExposeStatusRoute       any             `mapstructure:"expose_status_route"`
	Message                 string          `mapstructure:"message"`
	ErrorStatus             int             `mapstructure:"error_status"`
	Observe                 ObserveSettings `mapstructure:"observe"`
}

// ObserveSettings configures telemetry.
type ObserveSettings struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	Tracing     struct {
		Enabled   bool    `mapstructure:"enabled"`
		Exporter  string  `mapstructure:"exporter"`
		SamplePct float64 `mapstructure:"sample_pct"`
	} `mapstructure:"tracing"`
	Metrics struct {
		Enabled  bool   `mapstructure:"enabled"`
		Exporter string `mapstructure:"exporter"`
	} `mapstructure:"metrics"`
	Logging struct {
		Enabled bool   `mapstructure:"enabled"`
		Level   string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("max_event_loop_delay", "0s")
	v.SetDefault("max_event_loop_utilization", 0)
	v.SetDefault("max_heap_used_bytes", 0)
	v.SetDefault("max_rss_bytes", 0)
	v.SetDefault("health_check_interval", "0s")
	v.SetDefault("sample_interval", "0s")
	v.SetDefault("retry_after", pressure.DefaultRetryAfter.String())
	v.SetDefault("expose_status_route", false)
	v.SetDefault("message", pressure.DefaultMessage)
	v.SetDefault("error_status", 503)

	v.SetDefault("observe.service_name", "loadgate")
	v.SetDefault("observe.version", "")
	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.enabled", false)
	v.SetDefault("observe.metrics.exporter", "none")
	v.SetDefault("observe.logging.enabled", true)
	v.SetDefault("observe.logging.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads settings from the YAML file at path, if any, layered over the
// defaults and under the environment.
func Load(path string) (*Settings, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes settings from an existing viper instance.
func FromViper(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &s, nil
}

// Pressure converts the settings into a pressure.Config.
func (s *Settings) Pressure() (pressure.Config, error) {
	cfg := pressure.Config{
		MaxEventLoopDelay:       s.MaxEventLoopDelay,
		MaxEventLoopUtilization: s.MaxEventLoopUtilization,
		MaxHeapUsedBytes:        s.MaxHeapUsedBytes,
		MaxRSSBytes:             s.MaxRSSBytes,
		HealthCheckInterval:     s.HealthCheckInterval,
		SampleInterval:          s.SampleInterval,
		RetryAfter:              s.RetryAfter,
		Message:                 s.Message,
		ErrorStatus:             s.ErrorStatus,
	}

	switch route := s.ExposeStatusRoute.(type) {
	case nil:
	case bool:
		cfg.ExposeStatusRoute = route
	case string:
		if b, err := strconv.ParseBool(route); err == nil {
			cfg.ExposeStatusRoute = b
		} else if route != "" {
			cfg.StatusRoute = route
		}
	default:
		return pressure.Config{}, fmt.Errorf("%w: got %T", ErrInvalidStatusRoute, route)
	}

	return cfg, nil
}

// ObserveConfig converts the telemetry settings into an observe.Config.
func (s *Settings) ObserveConfig() observe.Config {
	o := s.Observe
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     o.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			SamplePct: o.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics.Enabled,
			Exporter: o.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: o.Logging.Enabled,
			Level:   o.Logging.Level,
		},
	}
}
