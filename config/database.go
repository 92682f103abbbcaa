package config

import (
	"time"

	"github.com/kbukum/smokedb/security"
	"github.com/kbukum/smokedb/validation"
)

// Driver names accepted in DatabaseConfig.Driver.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// DatabaseConfig describes the database a process opens and the object
// stores it declares.
type DatabaseConfig struct {
	Name   string `yaml:"name" mapstructure:"name" validate:"required,storename"`
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,oneof=memory badger sqlite"`
	// Path is the badger directory or the sqlite file. An empty badger path
	// runs badger in memory.
	Path   string   `yaml:"path" mapstructure:"path" validate:"required_if=Driver sqlite"`
	Stores []string `yaml:"stores" mapstructure:"stores" validate:"unique,dive,storename"`
	// SyncWrites makes badger fsync every commit.
	SyncWrites    bool          `yaml:"sync_writes" mapstructure:"sync_writes"`
	SubmitRetries int           `yaml:"submit_retries" mapstructure:"submit_retries" validate:"gte=0,lte=10"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff" validate:"gte=0"`
	// GCInterval runs badger value log GC periodically; zero disables it.
	GCInterval time.Duration `yaml:"gc_interval" mapstructure:"gc_interval" validate:"gte=0"`
	// EncryptionKey seals every stored value when set.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
	Encryption    string `yaml:"encryption" mapstructure:"encryption" validate:"omitempty,oneof=aes-256-gcm chacha20-poly1305"`
}

// ApplyDefaults applies default values to the database configuration.
func (c *DatabaseConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "smokedb"
	}
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.SubmitRetries == 0 {
		c.SubmitRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 50 * time.Millisecond
	}
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.Validate(c)
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	Mode            string        `yaml:"mode" mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gte=0"`
	// MaxTake caps the take parameter of record listings.
	MaxTake int `yaml:"max_take" mapstructure:"max_take" validate:"gte=0"`
	// MaxInFlight bounds concurrent record reads; QueueWait is how long a
	// read waits for a slot before the request is refused.
	MaxInFlight int           `yaml:"max_in_flight" mapstructure:"max_in_flight" validate:"gte=0"`
	QueueWait   time.Duration `yaml:"queue_wait" mapstructure:"queue_wait" validate:"gte=0"`
	// MaxBodySize limits request bodies, e.g. "10MB".
	MaxBodySize string   `yaml:"max_body_size" mapstructure:"max_body_size"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	// AuthSecret enables HS256 bearer tokens on write routes when set.
	AuthSecret string `yaml:"auth_secret" mapstructure:"auth_secret" validate:"omitempty,min=16"`
	// TLS serves HTTPS when a certificate is configured.
	TLS security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults applies default values to the HTTP configuration.
func (c *HTTPConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8484"
	}
	if c.Mode == "" {
		c.Mode = "release"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxTake == 0 {
		c.MaxTake = 1000
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = 64
	}
	if c.QueueWait == 0 {
		c.QueueWait = time.Second
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "10MB"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	return c.TLS.Validate()
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure       bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	ExportInterval time.Duration `yaml:"export_interval" mapstructure:"export_interval" validate:"gte=0"`
}

// ApplyDefaults applies default values to the telemetry configuration.
func (c *TelemetryConfig) ApplyDefaults() {
	if c.Endpoint == "" && c.Enabled {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.ExportInterval == 0 {
		c.ExportInterval = 15 * time.Second
	}
}

// Validate validates the telemetry configuration.
func (c *TelemetryConfig) Validate() error {
	return validation.Validate(c)
}
