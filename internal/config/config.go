package config

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Deployment environment tags understood by the external build tool.
const (
	EnvironmentPPE  = "PPE"
	EnvironmentProd = "PROD"
)

// Config holds everything the orchestrator needs to drive the external
// documentation build tool. Values come from an optional docpipe.yaml file
// overlaid by DOCPIPE_* environment variables (env wins).
type Config struct {
	// BinPath is the external build tool executable.
	BinPath string `yaml:"bin_path" env:"DOCPIPE_BIN"`
	// Template passed to the tool via --template.
	Template string `yaml:"template" env:"DOCPIPE_TEMPLATE"`
	// Environment selects the deployment environment tag (PPE or PROD).
	Environment string `yaml:"environment" env:"DOCPIPE_ENVIRONMENT"`
	// Debug appends --verbose to the tool invocation.
	Debug bool `yaml:"debug" env:"DOCPIPE_DEBUG"`
	// Telemetry opts in to injecting the instrumentation key.
	Telemetry bool `yaml:"telemetry" env:"DOCPIPE_TELEMETRY"`
	// BranchOverride forces the repository branch reported to the tool.
	// Ignored for anonymous runs, which are always pinned to the published
	// branch.
	BranchOverride string `yaml:"branch_override" env:"DOCPIPE_BRANCH"`
	// XrefToken is the ambient external-service token used to build a
	// basic-auth header for the cross-reference host. Never logged.
	XrefToken string `yaml:"-" env:"DOCPIPE_XREF_TOKEN"`

	// NATSURL enables lifecycle event forwarding when set.
	NATSURL string `yaml:"nats_url" env:"DOCPIPE_NATS_URL"`
	// NATSSubject is the base subject for forwarded events.
	NATSSubject string `yaml:"nats_subject" env:"DOCPIPE_NATS_SUBJECT"`
	// HistoryDB is the SQLite file recording run outcomes; empty disables it.
	HistoryDB string `yaml:"history_db" env:"DOCPIPE_HISTORY_DB"`
	// MetricsAddr exposes Prometheus metrics over HTTP when set.
	MetricsAddr string `yaml:"metrics_addr" env:"DOCPIPE_METRICS_ADDR"`
}

// Load reads the config file at path (missing file is fine), applies
// environment overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse config file").
					WithContext("path", path).
					Build()
			}
		case os.IsNotExist(err):
			// env-only configuration
		default:
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").
				WithContext("path", path).
				Build()
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse environment").Build()
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BinPath == "" {
		c.BinPath = "docs-build"
	}
	if c.Template == "" {
		c.Template = "docs.html"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentProd
	}
	if c.NATSSubject == "" {
		c.NATSSubject = "docpipe.builds"
	}
	c.Environment = strings.ToUpper(c.Environment)
}

// Validate checks invariants that would otherwise surface as confusing
// failures deep inside a build run.
func (c *Config) Validate() error {
	if c.Environment != EnvironmentPPE && c.Environment != EnvironmentProd {
		return ferrors.ValidationError("environment must be PPE or PROD").
			WithContext("environment", c.Environment).
			Build()
	}
	return nil
}

// BuildAPIHost returns the internal build-API host for the configured
// environment. The auth token header is injected for this host.
func (c *Config) BuildAPIHost() string {
	if c.Environment == EnvironmentPPE {
		return "https://build-api.ppe.docs.example.com"
	}
	return "https://build-api.docs.example.com"
}

// XrefHost returns the external cross-reference service host. The ambient
// token, when present, becomes a basic-auth header for this host.
func (c *Config) XrefHost() string {
	return "https://xref.docs.example.com"
}

// InstrumentationKey returns the environment-specific telemetry key.
func (c *Config) InstrumentationKey() string {
	if c.Environment == EnvironmentPPE {
		return "3b0865e3-ba6c-42b5-9c33-e7a0f0b0d971"
	}
	return "9a8b5c1d-1f3e-4a9f-8c2d-0e6f7a3b5d42"
}
