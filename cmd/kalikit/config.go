package main

import (
	"fmt"
	"time"

	"github.com/kbukum/kalikit/config"
	"github.com/kbukum/kalikit/httpapi"
	"github.com/kbukum/kalikit/observability"
	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/tools/nm"
	"github.com/kbukum/kalikit/tools/tshark"
	"github.com/kbukum/kalikit/workload/docker"
)

const serviceName = "kalikit"

// AppConfig is the kalikit configuration file. Every key can be set from
// the environment with the KALIKIT_ prefix.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Process       process.Config        `yaml:"process" mapstructure:"process"`
	HTTP          httpapi.Config        `yaml:"http" mapstructure:"http"`
	Observability observability.Config  `yaml:"observability" mapstructure:"observability"`
	Container     docker.Config         `yaml:"container" mapstructure:"container"`
	Tools         map[string]ToolPolicy `yaml:"tools,omitempty" mapstructure:"tools"`
}

// ToolPolicy overrides the built-in policy of a wrapped tool.
type ToolPolicy struct {
	Network *bool         `yaml:"network,omitempty" mapstructure:"network"`
	Memory  string        `yaml:"memory,omitempty" mapstructure:"memory"`
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Process.ApplyDefaults()
	c.HTTP.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Container.ApplyDefaults()
	c.Observability.ServiceName = c.Name
	c.Observability.ServiceVersion = c.Version
	c.Observability.Environment = c.Environment
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Process.Validate(); err != nil {
		return fmt.Errorf("config.process: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("config.http: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	if err := c.Container.Validate(); err != nil {
		return fmt.Errorf("config.container: %w", err)
	}
	if _, err := c.ToolSpecs(); err != nil {
		return err
	}
	return nil
}

// ToolSpecs returns the policies of the wrapped tools with overrides applied.
func (c *AppConfig) ToolSpecs() ([]process.Spec, error) {
	defaults := map[string]process.Spec{
		nm.Tool:     nm.DefaultSpec(),
		tshark.Tool: tshark.DefaultSpec(),
	}
	for tool := range c.Tools {
		if _, ok := defaults[tool]; !ok {
			return nil, fmt.Errorf("config.tools: unknown tool %q", tool)
		}
	}

	specs := make([]process.Spec, 0, len(defaults))
	for _, tool := range []string{nm.Tool, tshark.Tool} {
		spec, err := c.Tools[tool].apply(defaults[tool])
		if err != nil {
			return nil, fmt.Errorf("config.tools.%s: %w", tool, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (p ToolPolicy) apply(spec process.Spec) (process.Spec, error) {
	if p.Network != nil {
		spec = spec.WithNetwork(*p.Network)
	}
	if p.Memory != "" {
		n, err := process.ParseMemory(p.Memory)
		if err != nil {
			return spec, err
		}
		spec = spec.WithMemoryLimit(n)
	}
	if p.Timeout != 0 {
		spec = spec.WithTimeout(p.Timeout)
	}
	return spec, spec.Validate()
}

// Redacted returns a copy safe to print.
func (c AppConfig) Redacted() AppConfig {
	if c.HTTP.Auth.Secret != "" {
		c.HTTP.Auth.Secret = "********"
	}
	return c
}

func loadConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
