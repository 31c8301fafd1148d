package docker

import (
	"errors"
	"fmt"

	"github.com/kbukum/kalikit/process"
)

// Config selects and configures the container runner.
type Config struct {
	// Enabled routes catalog actions through containers instead of the
	// local executor.
	Enabled    bool       `yaml:"enabled" mapstructure:"enabled"`
	Host       string     `yaml:"host,omitempty" mapstructure:"host"`
	APIVersion string     `yaml:"api_version,omitempty" mapstructure:"api_version"`
	TLS        *TLSConfig `yaml:"tls,omitempty" mapstructure:"tls"`
	// Image must provide the wrapped tools on its PATH.
	Image    string `yaml:"image,omitempty" mapstructure:"image"`
	Platform string `yaml:"platform,omitempty" mapstructure:"platform"`
	// Network is the network joined by tools whose policy allows network
	// access. Denied tools always run with networking disabled.
	Network string `yaml:"network,omitempty" mapstructure:"network"`
	// Binds are host:container[:mode] volume mounts, typically the
	// directories holding the files tools inspect.
	Binds          []string `yaml:"binds,omitempty" mapstructure:"binds"`
	PidsLimit      int64    `yaml:"pids_limit,omitempty" mapstructure:"pids_limit"`
	MaxOutputBytes int      `yaml:"max_output_bytes,omitempty" mapstructure:"max_output_bytes"`
}

// TLSConfig holds Docker TLS settings.
type TLSConfig struct {
	CACert string `yaml:"ca_cert" mapstructure:"ca_cert"`
	Cert   string `yaml:"cert" mapstructure:"cert"`
	Key    string `yaml:"key" mapstructure:"key"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "unix:///var/run/docker.sock"
	}
	if c.Network == "" {
		c.Network = "bridge"
	}
	if c.PidsLimit == 0 {
		c.PidsLimit = 256
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = process.DefaultMaxOutputBytes
	}
}

// Validate checks the configuration. A disabled runner is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Host == "" {
		return errors.New("docker: host is required")
	}
	if c.Image == "" {
		return errors.New("docker: image is required")
	}
	if c.MaxOutputBytes < 0 {
		return fmt.Errorf("docker: max_output_bytes must be positive, got %d", c.MaxOutputBytes)
	}
	if c.TLS != nil {
		if c.TLS.Cert == "" || c.TLS.Key == "" {
			return fmt.Errorf("docker: tls cert and key are both required when tls is enabled")
		}
	}
	return nil
}
