package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Scheduler.GenerationInterval() != 30*time.Minute {
		t.Errorf("generation interval = %s", cfg.Scheduler.GenerationInterval())
	}
	if cfg.Flux.PollInterval() != 500*time.Millisecond || cfg.Flux.MaxPollAttempts != 30 {
		t.Errorf("flux polling = %s x %d", cfg.Flux.PollInterval(), cfg.Flux.MaxPollAttempts)
	}
	if cfg.Chain.Configured() {
		t.Error("chain reported configured without credentials")
	}
	if cfg.Pipeline.AgeCutoffEnabled {
		t.Error("age cutoff enabled by default")
	}
	if cfg.Pipeline.MaxPostAge() != 24*time.Hour {
		t.Errorf("max post age = %s", cfg.Pipeline.MaxPostAge())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("PRIVATE_KEY", "0xkey")
	t.Setenv("BETTING_CONTRACT_ADDRESS", "0xcontract")
	t.Setenv("TARGET_ACCOUNT_ID", "12345")

	cfg := Load()
	if !cfg.Chain.Configured() {
		t.Error("chain not configured from environment")
	}
	if cfg.Social.AccountID != "12345" {
		t.Errorf("account id = %q", cfg.Social.AccountID)
	}
}

func TestLoadMergesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
logging:
  level: debug
scheduler:
  generationIntervalMinutes: 5
pipeline:
  maxItemsPerRun: 7
  ageCutoffEnabled: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("POOLS_AGENT_CONFIG", path)

	cfg := Load()
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Scheduler.GenerationInterval() != 5*time.Minute {
		t.Errorf("generation interval = %s", cfg.Scheduler.GenerationInterval())
	}
	if cfg.Pipeline.MaxItemsPerRun != 7 || !cfg.Pipeline.AgeCutoffEnabled {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	// Untouched sections keep their defaults.
	if cfg.Flux.Model != "flux-pro-1.1" {
		t.Errorf("flux model = %q", cfg.Flux.Model)
	}
}

func TestLoadIgnoresBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("POOLS_AGENT_CONFIG", path)

	cfg := Load()
	if cfg.Logging.Level != "info" {
		t.Errorf("broken file changed defaults: %q", cfg.Logging.Level)
	}
}
