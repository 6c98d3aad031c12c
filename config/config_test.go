package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Addr != ":8787" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.GenerationTimeout() != 60*time.Second {
		t.Errorf("GenerationTimeout = %s", cfg.GenerationTimeout())
	}
	if cfg.ToolTimeout() != 10*time.Second {
		t.Errorf("ToolTimeout = %s", cfg.ToolTimeout())
	}
	if cfg.ResultTTL() != 5*time.Minute {
		t.Errorf("ResultTTL = %s", cfg.ResultTTL())
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	content := `
server:
  addr: ":9999"
provider:
  name: mock
timeouts:
  generation_sec: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Server.Addr)
	}
	if cfg.Provider.Name != "mock" {
		t.Errorf("Provider.Name = %q, want mock", cfg.Provider.Name)
	}
	if cfg.GenerationTimeout() != 5*time.Second {
		t.Errorf("GenerationTimeout = %s, want 5s", cfg.GenerationTimeout())
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.Capacity != 256 {
		t.Errorf("Cache.Capacity = %d, want default 256", cfg.Cache.Capacity)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load on a missing file succeeded")
	}
}

func TestAPIKey_FromEnv(t *testing.T) {
	t.Setenv("DISPATCH_TEST_KEY", "sk-123")
	p := ProviderConfig{APIKeyEnv: "DISPATCH_TEST_KEY"}
	if p.APIKey() != "sk-123" {
		t.Errorf("APIKey = %q", p.APIKey())
	}
	if (ProviderConfig{}).APIKey() != "" {
		t.Error("APIKey without env var should be empty")
	}
}
