package dto

import (
	"fmt"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Sockets       SocketsConfig       `mapstructure:"sockets"`
	Writer        WriterConfig        `mapstructure:"writer"`
	Generator     GeneratorConfig     `mapstructure:"generator"`
	Report        ReportConfig        `mapstructure:"report"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// SocketsConfig describes the local socket endpoints and the worker pool serving them
type SocketsConfig struct {
	Directory  string   `mapstructure:"directory"`
	Prefix     string   `mapstructure:"prefix"`
	Count      int      `mapstructure:"count"`      // used when Identities is empty: sock0..sock{Count-1}
	Identities []string `mapstructure:"identities"` // explicit endpoint identities
	PoolSize   int      `mapstructure:"pool_size"`
}

// WriterConfig contains the per-connection writing settings
type WriterConfig struct {
	Encodings            []string `mapstructure:"encodings"` // json, msgpack, protobuf, avro, parquet; run in order
	FlushThreshold       int64    `mapstructure:"flush_threshold"`
	BufferSizeKB         int      `mapstructure:"buffer_size_kb"`
	Compression          string   `mapstructure:"compression"` // none, zstd
	ParquetCompression   string   `mapstructure:"parquet_compression"`
	RateLimitBytesPerSec int64    `mapstructure:"rate_limit_bytes_per_sec"`
}

// GeneratorConfig contains record supplier settings
type GeneratorConfig struct {
	Mode            string `mapstructure:"mode"` // fixed, faker
	StreamName      string `mapstructure:"stream_name"`
	FieldCount      int    `mapstructure:"field_count"`
	ValueLength     int    `mapstructure:"value_length"`
	MaxRecords      int64  `mapstructure:"max_records"` // <= 0 means unbounded
	Seed            int64  `mapstructure:"seed"`
	BaseTimestampMs int64  `mapstructure:"base_timestamp_ms"`
}

// ReportConfig contains run report publication settings
type ReportConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Backend string            `mapstructure:"backend"` // log, file, s3, gcs, azure, kafka
	File    FileConfig        `mapstructure:"file"`
	S3      S3Config          `mapstructure:"s3"`
	GCS     GCSConfig         `mapstructure:"gcs"`
	Azure   AzureConfig       `mapstructure:"azure"`
	Kafka   KafkaReportConfig `mapstructure:"kafka"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	BasePath    string `mapstructure:"base_path"`
	Endpoint    string `mapstructure:"endpoint"`
}

// KafkaReportConfig contains Kafka connection configuration for the report topic
type KafkaReportConfig struct {
	Brokers          []string     `mapstructure:"brokers"`
	Topic            string       `mapstructure:"topic"`
	SecurityProtocol string       `mapstructure:"security_protocol"` // PLAINTEXT, SASL_SSL, SASL_PLAINTEXT
	SASLMechanism    string       `mapstructure:"sasl_mechanism"`    // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512, AWS_MSK_IAM
	SASLUsername     string       `mapstructure:"sasl_username"`
	SASLPassword     string       `mapstructure:"sasl_password"`
	TLS              TLSConfig    `mapstructure:"tls"`
	AWSMSK           AWSMSKConfig `mapstructure:"aws_msk"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACertFile         string `mapstructure:"ca_cert_file"`
	ClientCertFile     string `mapstructure:"client_cert_file"`
	ClientKeyFile      string `mapstructure:"client_key_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// AWSMSKConfig represents AWS MSK specific configuration
type AWSMSKConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.Sockets.Directory == "" {
		return fmt.Errorf("socket directory is required")
	}
	if len(c.Writer.Encodings) == 0 {
		return fmt.Errorf("at least one encoding is required")
	}
	return nil
}

// ResolveIdentities returns the configured endpoint identities. Explicit
// identities win; otherwise Count identities named sock0..sock{Count-1}.
func (c *SocketsConfig) ResolveIdentities() []string {
	if len(c.Identities) > 0 {
		out := make([]string, len(c.Identities))
		copy(out, c.Identities)
		return out
	}
	out := make([]string, 0, c.Count)
	for i := 0; i < c.Count; i++ {
		out = append(out, fmt.Sprintf("sock%d", i))
	}
	return out
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}

// Validate validates Kafka report configuration.
func (c *KafkaReportConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka report topic is required")
	}
	return nil
}
