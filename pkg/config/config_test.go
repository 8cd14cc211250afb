package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Topic   string `yaml:"topic" json:"topic"`
	Cluster struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		URL     string `yaml:"url" json:"url"`
		Port    int    `yaml:"port" json:"port"`
	} `yaml:"cluster" json:"cluster"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
topic: orders
cluster:
  enabled: true
  url: nats://localhost:4222
  port: 2112
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Topic != "orders" {
		t.Errorf("Topic = %q, want %q", cfg.Topic, "orders")
	}
	if !cfg.Cluster.Enabled || cfg.Cluster.URL != "nats://localhost:4222" || cfg.Cluster.Port != 2112 {
		t.Errorf("Cluster = %+v, want enabled/url/port set", cfg.Cluster)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "cfg.json", `{"topic":"orders","cluster":{"enabled":false,"url":"nats://x:4222","port":1}}`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Topic != "orders" || cfg.Cluster.URL != "nats://x:4222" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Error("Load() on missing file succeeded, want error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SIG_TOPIC", "payments")
	t.Setenv("SIG_CLUSTER_ENABLED", "true")
	t.Setenv("SIG_CLUSTER_PORT", "9999")

	var cfg testConfig
	cfg.Topic = "orders"
	if err := ApplyEnvOverrides("SIG", &cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides() error = %v", err)
	}
	if cfg.Topic != "payments" {
		t.Errorf("Topic = %q, want %q", cfg.Topic, "payments")
	}
	if !cfg.Cluster.Enabled {
		t.Error("Cluster.Enabled = false, want true")
	}
	if cfg.Cluster.Port != 9999 {
		t.Errorf("Cluster.Port = %d, want 9999", cfg.Cluster.Port)
	}
}

func TestApplyEnvOverridesBadValue(t *testing.T) {
	t.Setenv("SIG_CLUSTER_PORT", "not-a-number")

	var cfg testConfig
	if err := ApplyEnvOverrides("SIG", &cfg); err == nil {
		t.Error("ApplyEnvOverrides() with bad int succeeded, want error")
	}
}

func TestApplyEnvOverridesNonStruct(t *testing.T) {
	var n int
	if err := ApplyEnvOverrides("SIG", &n); err == nil {
		t.Error("ApplyEnvOverrides() on non-struct succeeded, want error")
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := writeFile(t, "cfg.yaml", "topic: orders\n")
	t.Setenv("SIG_TOPIC", "refunds")

	var cfg testConfig
	if err := LoadWithEnv(path, "SIG", &cfg); err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if cfg.Topic != "refunds" {
		t.Errorf("Topic = %q, want %q", cfg.Topic, "refunds")
	}
}
