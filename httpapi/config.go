package httpapi

import (
	"time"

	"github.com/kbukum/kalikit/security"
	"github.com/kbukum/kalikit/validation"
)

// Config configures the HTTP API server.
type Config struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port" validate:"min=0,max=65535"`
	// Server timeouts. WriteTimeout must outlast the longest blocking action.
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gt=0"`
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	// InvocationTTL is how long a finished async invocation stays queryable.
	InvocationTTL time.Duration `yaml:"invocation_ttl" mapstructure:"invocation_ttl" validate:"gt=0"`

	// TLS serves HTTPS, with HTTP/2 negotiated over ALPN, when a certificate is set.
	TLS       security.TLSConfig `yaml:"tls" mapstructure:"tls"`
	Auth      AuthConfig         `yaml:"auth" mapstructure:"auth"`
	Admission AdmissionConfig    `yaml:"admission" mapstructure:"admission"`
}

// AuthConfig enables HMAC-signed bearer tokens on the /v1 routes.
type AuthConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Secret   string        `yaml:"secret" mapstructure:"secret" validate:"required_if=Enabled true"`
	Method   string        `yaml:"method" mapstructure:"method" validate:"oneof=HS256 HS384 HS512"`
	Issuer   string        `yaml:"issuer" mapstructure:"issuer"`
	Audience string        `yaml:"audience" mapstructure:"audience"`
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl" validate:"gt=0"`
}

// AdmissionConfig bounds the load action routes put on the host.
type AdmissionConfig struct {
	// MaxConcurrent caps running invocations started over HTTP.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gt=0"`
	// MaxWait is how long a request may queue for a slot. 0 rejects at once.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait" validate:"gte=0"`
	// RatePerSecond and Burst shape the token bucket in front of the action routes.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second" validate:"gt=0"`
	Burst         int     `yaml:"burst" mapstructure:"burst" validate:"gt=0"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.InvocationTTL == 0 {
		c.InvocationTTL = time.Hour
	}
	if c.Auth.Method == "" {
		c.Auth.Method = "HS256"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 15 * time.Minute
	}
	if c.Admission.MaxConcurrent == 0 {
		c.Admission.MaxConcurrent = 16
	}
	if c.Admission.RatePerSecond == 0 {
		c.Admission.RatePerSecond = 20
	}
	if c.Admission.Burst == 0 {
		c.Admission.Burst = 40
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	return validation.Validate(c)
}
