package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Load(fs)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "knolsched.db" || cfg.ReposDir != "repos" {
		t.Errorf("Unexpected storage defaults: %+v", cfg)
	}
	if !cfg.LongHorizon || cfg.DueOnly {
		t.Errorf("Expected long-horizon on and due-only off by default: %+v", cfg)
	}
	if cfg.InitialEase != 2.5 {
		t.Errorf("Expected initial ease 2.5, got %.2f", cfg.InitialEase)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("Unexpected log defaults: %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knolsched.yaml")
	yml := "database: from-file.db\ngroup: file-group\ndue_limit: 5\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("KNOLSCHED_DUE_LIMIT", "7")
	t.Setenv("KNOLSCHED_LONG_HORIZON", "false")

	cfg, err := load(t, "--config", path, "--group", "flag-group")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "from-file.db" {
		t.Errorf("Expected database from file, got %s", cfg.Database)
	}
	if cfg.DueLimit != 7 {
		t.Errorf("Expected env to override file due_limit, got %d", cfg.DueLimit)
	}
	if cfg.Group != "flag-group" {
		t.Errorf("Expected flag to override file group, got %s", cfg.Group)
	}
	if cfg.LongHorizon {
		t.Error("Expected env to disable long-horizon tracking")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected log format from file, got %s", cfg.LogFormat)
	}
}

func TestValidation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"ease below floor", []string{"--initial-ease", "1.1"}},
		{"negative due limit", []string{"--due-limit", "-1"}},
		{"bad log level", []string{"--log-level", "loud"}},
		{"empty database", []string{"--database", ""}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := load(t, tc.args...); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	if _, err := load(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}
