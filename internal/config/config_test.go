package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite default, got %s", cfg.Database.Driver)
	}
	if cfg.Files.ReferencePrefix != "FILE" || cfg.Files.ReferenceRetries != 5 {
		t.Fatalf("unexpected file defaults: %+v", cfg.Files)
	}
	if cfg.Grievances.MaxReopens != 0 {
		t.Fatalf("reopens should be unlimited by default")
	}
	if _, ok := cfg.Auth.RBAC.Roles["admin"]; !ok {
		t.Fatalf("admin role missing")
	}
}

func TestDefaultTemplateDecodesStrictly(t *testing.T) {
	cfg, err := parseDefault()
	if err != nil {
		t.Fatalf("default template: %v", err)
	}
	if cfg.Outbox.Kafka.Topic != "civicdesk.events" || cfg.Ledger.TimeoutSeconds != 10 || len(cfg.Auth.RBAC.Roles) != 5 {
		t.Fatalf("template not fully decoded: %+v", cfg)
	}
	generated, err := FromYAML([]byte(GenerateDefault()))
	if err != nil {
		t.Fatalf("generated template: %v", err)
	}
	if generated.Server.Addr != cfg.Server.Addr {
		t.Fatalf("generated template differs from defaults")
	}
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("grievances:\n  max_reopens: 2\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Grievances.MaxReopens != 2 {
		t.Fatalf("expected override, got %d", cfg.Grievances.MaxReopens)
	}
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("expected default base path, got %q", cfg.Server.BasePath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"driver":     "database:\n  driver: mysql\n",
		"pg dsn":     "database:\n  driver: postgres\n",
		"retries":    "files:\n  reference_retries: 0\n",
		"reopens":    "grievances:\n  max_reopens: -1\n",
		"kafka":      "outbox:\n  kafka:\n    brokers: [localhost:9092]\n    topic: \"\"\n",
		"webhook":    "outbox:\n  webhooks:\n    - url: \"\"\n",
		"legacy":     "auth:\n  legacy_roles: [ghost]\n",
		"log format": "log:\n  format: xml\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("expected defaults, got %v %v", cfg, err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "cdesk config init") {
		t.Fatalf("expected missing config hint, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "civicdesk.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load generated config: %v", err)
	}
}

func TestWebhookEnabledDefaultsOn(t *testing.T) {
	off := false
	if !(Webhook{URL: "http://x"}).IsEnabled() {
		t.Fatalf("missing flag should be enabled")
	}
	if (Webhook{URL: "http://x", Enabled: &off}).IsEnabled() {
		t.Fatalf("explicit false should disable")
	}
}
