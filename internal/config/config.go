// Package config is responsible for parsing configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File represents a configuration file.
type File struct {
	// Handler is the reverse TLS handler section of the configuration file.
	// Must be specified.
	Handler *Handler `yaml:"handler"`

	// DNS is the section that configures resolving of the handler host.  If
	// not specified, the system resolver is used.
	DNS *DNS `yaml:"dns"`

	// Prometheus is the metrics section.  If not specified, metrics are not
	// exposed.
	Prometheus *Prometheus `yaml:"prometheus"`
}

// Prometheus represents the prometheus configuration.
type Prometheus struct {
	// Addr is the address where prometheus metrics are exposed.
	Addr string `yaml:"addr"`

	// Port is the port where prometheus metrics will be exposed.
	Port uint16 `yaml:"port"`
}

// Load loads and validates configuration from the specified file.
func Load(path string) (cfg *File, err error) {
	cfg, err = Read(path)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("failed to validate config file: %w", err)
	}

	return cfg, nil
}

// Read loads configuration from the specified file without validating it, so
// that the caller could override some values first.
func Read(path string) (cfg *File, err error) {
	// Ignore G304 here as it's trusted context.
	//nolint:gosec
	b, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg = &File{}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Parse parses and validates configuration from b.
func Parse(b []byte) (cfg *File, err error) {
	cfg = &File{}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("failed to validate config file: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is complete.  It must be called
// again after the values are overridden from the environment.
func (f *File) Validate() (err error) {
	if f.Handler == nil {
		return fmt.Errorf("no handler configured")
	}

	if f.Handler.LHost == "" {
		return fmt.Errorf("handler.lhost is required")
	}

	if f.Handler.LPort == 0 && f.Handler.BindPort == 0 {
		return fmt.Errorf("handler.lport is required")
	}

	if f.DNS != nil && f.DNS.UpstreamAddr == "" {
		return fmt.Errorf("dns.upstream-addr is required")
	}

	return nil
}
