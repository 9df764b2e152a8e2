package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/sockeventwriter/internal/config/dto"
	"github.com/jittakal/sockeventwriter/internal/encoder"
	"github.com/jittakal/sockeventwriter/internal/endpoint"
	"github.com/jittakal/sockeventwriter/internal/generator"
)

// Report backends accepted by report.backend.
var reportBackends = []string{"log", "file", "s3", "gcs", "azure", "kafka"}

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only expand values containing a ${...} reference
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "sockeventwriter")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Socket defaults
	l.v.SetDefault("sockets.directory", endpoint.DefaultDirectory)
	l.v.SetDefault("sockets.prefix", endpoint.DefaultPrefix)
	l.v.SetDefault("sockets.count", 8)
	l.v.SetDefault("sockets.pool_size", 8)

	// Writer defaults
	l.v.SetDefault("writer.encodings", []string{"json", "msgpack"})
	l.v.SetDefault("writer.flush_threshold", 100000)
	l.v.SetDefault("writer.buffer_size_kb", 8)
	l.v.SetDefault("writer.compression", endpoint.CompressionNone)
	l.v.SetDefault("writer.parquet_compression", "snappy")
	l.v.SetDefault("writer.rate_limit_bytes_per_sec", 0)

	// Generator defaults
	l.v.SetDefault("generator.mode", generator.ModeFixed)
	l.v.SetDefault("generator.stream_name", generator.DefaultStreamName)
	l.v.SetDefault("generator.field_count", generator.DefaultFieldCount)
	l.v.SetDefault("generator.value_length", len(generator.DefaultValue))
	l.v.SetDefault("generator.max_records", 0)
	l.v.SetDefault("generator.seed", 1)
	l.v.SetDefault("generator.base_timestamp_ms", generator.DefaultBaseTimestampMs)

	// Report defaults
	l.v.SetDefault("report.enabled", true)
	l.v.SetDefault("report.backend", "log")
	l.v.SetDefault("report.file.base_path", "./reports")
	l.v.SetDefault("report.s3.use_path_style", false)
	l.v.SetDefault("report.s3.sse_enabled", true)
	l.v.SetDefault("report.kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("report.kafka.sasl_mechanism", "PLAIN")

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.enabled", true)
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	// Socket validation
	if len(config.Sockets.Identities) == 0 && config.Sockets.Count < 1 {
		return fmt.Errorf("invalid sockets.count: %d", config.Sockets.Count)
	}
	if config.Sockets.PoolSize < 1 {
		return fmt.Errorf("invalid sockets.pool_size: %d", config.Sockets.PoolSize)
	}

	// Writer validation
	if _, err := encoder.ParseFormats(config.Writer.Encodings); err != nil {
		return fmt.Errorf("invalid writer.encodings: %w", err)
	}
	if !slices.Contains(endpoint.SupportedCompressions(), config.Writer.Compression) {
		return fmt.Errorf("unsupported writer.compression: %s", config.Writer.Compression)
	}
	if config.Writer.FlushThreshold < 0 {
		return fmt.Errorf("invalid writer.flush_threshold: %d", config.Writer.FlushThreshold)
	}
	if config.Writer.BufferSizeKB < 0 {
		return fmt.Errorf("invalid writer.buffer_size_kb: %d", config.Writer.BufferSizeKB)
	}

	// Generator validation
	switch config.Generator.Mode {
	case generator.ModeFixed, generator.ModeFaker:
	default:
		return fmt.Errorf("unsupported generator.mode: %s", config.Generator.Mode)
	}

	// Report validation
	if config.Report.Enabled {
		if err := validateReport(&config.Report); err != nil {
			return err
		}
	}

	// Port validation
	if config.Observability.Metrics.Enabled {
		if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
		}
	}
	if config.Observability.Health.Enabled {
		if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
			return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
		}
	}

	return nil
}

func validateReport(report *dto.ReportConfig) error {
	if !slices.Contains(reportBackends, report.Backend) {
		return fmt.Errorf("unsupported report backend: %s", report.Backend)
	}

	var err error
	switch report.Backend {
	case "file":
		err = report.File.Validate()
	case "s3":
		err = report.S3.Validate()
	case "gcs":
		err = report.GCS.Validate()
	case "azure":
		err = report.Azure.Validate()
	case "kafka":
		err = report.Kafka.Validate()
	}
	if err != nil {
		return fmt.Errorf("report.%s: %w", report.Backend, err)
	}
	return nil
}
