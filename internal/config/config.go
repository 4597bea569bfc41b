package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models civicdesk.yml.
type Config struct {
	Env string `yaml:"env"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Database struct {
		Driver       string `yaml:"driver"`
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
	} `yaml:"database"`
	Auth struct {
		AllowLegacyActorHeader bool     `yaml:"allow_legacy_actor_header"`
		LegacyRoles            []string `yaml:"legacy_roles"`
		RBAC                   struct {
			Roles map[string]RBACRole `yaml:"roles"`
		} `yaml:"rbac"`
	} `yaml:"auth"`
	Grievances struct {
		MaxReopens             int  `yaml:"max_reopens"`
		RequireResolutionNotes bool `yaml:"require_resolution_notes"`
	} `yaml:"grievances"`
	Files struct {
		ReferencePrefix  string `yaml:"reference_prefix"`
		ReferenceRetries int    `yaml:"reference_retries"`
	} `yaml:"files"`
	Ledger struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"ledger"`
	Outbox struct {
		IntervalSeconds int       `yaml:"interval_seconds"`
		Webhooks        []Webhook `yaml:"webhooks"`
		Kafka           struct {
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"outbox"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// Webhook is one outbox HTTP endpoint. An empty Events list receives every event type.
type Webhook struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// IsEnabled treats a missing enabled flag as on.
func (w Webhook) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with cdesk config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config.database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("config.database.dsn is required for postgres")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Grievances.MaxReopens < 0 {
		return fmt.Errorf("config.grievances.max_reopens must be >= 0")
	}
	if strings.TrimSpace(c.Files.ReferencePrefix) == "" {
		return fmt.Errorf("config.files.reference_prefix is required")
	}
	if c.Files.ReferenceRetries < 1 {
		return fmt.Errorf("config.files.reference_retries must be >= 1")
	}
	if c.Ledger.URL != "" {
		if _, err := url.ParseRequestURI(c.Ledger.URL); err != nil {
			return fmt.Errorf("config.ledger.url: %w", err)
		}
	}
	if c.Ledger.TimeoutSeconds < 0 {
		return fmt.Errorf("config.ledger.timeout_seconds must be >= 0")
	}
	if len(c.Auth.RBAC.Roles) > 0 {
		if _, ok := c.Auth.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.auth.rbac.roles must include admin")
		}
		for roleID, role := range c.Auth.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.auth.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
		for _, r := range c.Auth.LegacyRoles {
			if _, ok := c.Auth.RBAC.Roles[r]; !ok {
				return fmt.Errorf("config.auth.legacy_roles references unknown role %s", r)
			}
		}
	}
	for i, hook := range c.Outbox.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.outbox.webhooks[%d].url is required", i)
		}
		if _, err := url.ParseRequestURI(hook.URL); err != nil {
			return fmt.Errorf("config.outbox.webhooks[%d].url: %w", i, err)
		}
	}
	if len(c.Outbox.Kafka.Brokers) > 0 && c.Outbox.Kafka.Topic == "" {
		return fmt.Errorf("config.outbox.kafka.topic is required when brokers are set")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "civicdesk.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct. It panics if the built-in template does
// not decode, which only a broken build can cause.
func Default() *Config {
	cfg, err := parseDefault()
	if err != nil {
		panic(err)
	}
	return cfg
}

// parseDefault decodes the template strictly so a key without a struct field fails.
func parseDefault() (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("default config template: %w", err)
	}
	return &cfg, nil
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the effective config.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

const defaultTemplate = `env: local

log:
  level: info
  format: text

server:
  addr: 127.0.0.1:8080
  base_path: /v0

database:
  driver: sqlite
  dsn: ""
  max_open_conns: 0

auth:
  allow_legacy_actor_header: false
  legacy_roles: [admin]
  rbac:
    roles:
      admin:
        description: "Portal administrator"
        permissions:
          - directory.write
          - directory.read
          - grievance.create
          - grievance.read
          - grievance.resolve
          - grievance.reopen
          - file.create
          - file.move
          - file.read
          - fir.submit
          - fir.update
          - fir.read
          - message.send
          - message.read
          - events.read
          - apikey.manage
          - goal.write
          - goal.read
          - goal.progress
      department:
        description: "Department administrator"
        permissions:
          - directory.read
          - grievance.read
          - grievance.resolve
          - file.create
          - file.move
          - file.read
          - message.send
          - message.read
          - events.read
          - goal.write
          - goal.read
          - goal.progress
      employee:
        description: "Department employee"
        permissions:
          - directory.read
          - grievance.read
          - grievance.resolve
          - file.read
          - message.send
          - message.read
          - goal.read
          - goal.progress
      citizen:
        description: "Registered citizen"
        permissions:
          - directory.read
          - grievance.create
          - grievance.read
          - grievance.reopen
          - fir.submit
          - fir.read
          - message.send
          - message.read
      justice:
        description: "Justice desk officer"
        permissions:
          - fir.submit
          - fir.update
          - fir.read

grievances:
  max_reopens: 0
  require_resolution_notes: false

files:
  reference_prefix: FILE
  reference_retries: 5

ledger:
  url: ""
  timeout_seconds: 10

outbox:
  interval_seconds: 2
  webhooks: []
  kafka:
    brokers: []
    topic: civicdesk.events
`
