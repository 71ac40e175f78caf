package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "CHATYFILE_MODEL", "CHATYFILE_BASE_URL", "CHATYFILE_LOG_LEVEL", "CHATYFILE_ADDR"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected Provider=gemini, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("expected Model=gemini-2.0-flash, got %s", cfg.LLM.Model)
	}
	if cfg.Sandbox.MaxOutputBytes != 65536 {
		t.Errorf("expected MaxOutputBytes=65536, got %d", cfg.Sandbox.MaxOutputBytes)
	}
	if len(cfg.Session.ExitTokens) != 2 || cfg.Session.ExitTokens[0] != "salir" {
		t.Errorf("unexpected exit tokens %v", cfg.Session.ExitTokens)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "chatyfile.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"
	cfg.Session.PreviewRows = 0

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LLM.Provider != "openai" || loaded.LLM.APIKey != "sk-test" {
		t.Errorf("llm = %+v", loaded.LLM)
	}
	if loaded.Session.PreviewRows != 0 {
		t.Errorf("expected PreviewRows=0, got %d", loaded.Session.PreviewRows)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "chatyfile.yaml")
	if err := os.WriteFile(path, []byte("sandbox:\n  timeout: 3s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GetSandboxTimeout() != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.GetSandboxTimeout())
	}
	if cfg.Sandbox.PlotWidth != 640 {
		t.Errorf("expected default PlotWidth=640, got %d", cfg.Sandbox.PlotWidth)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("llm: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("CHATYFILE_MODEL", "gpt-4o-mini")
	t.Setenv("CHATYFILE_ADDR", ":9999")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.LLM.Provider != "openai" || cfg.LLM.APIKey != "env-openai" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected model override, got %s", cfg.LLM.Model)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected addr override, got %s", cfg.Server.Addr)
	}
}

func TestConfig_EnvBothKeysFollowConfiguredProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "o")
	t.Setenv("GEMINI_API_KEY", "g")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	if cfg.LLM.Provider != "gemini" || cfg.LLM.APIKey != "g" {
		t.Errorf("expected gemini, got %+v", cfg.LLM)
	}

	cfg = DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.applyEnvOverrides()
	if cfg.LLM.Provider != "openai" || cfg.LLM.APIKey != "o" {
		t.Errorf("expected openai, got %+v", cfg.LLM)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing API key")
	}

	cfg.LLM.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}

	cfg.LLM.Provider = "invalid-provider"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}

	cfg = DefaultConfig()
	cfg.LLM.APIKey = "k"
	cfg.Sandbox.Timeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad duration")
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "nonsense"
	cfg.Sandbox.Timeout = "-1s"
	if cfg.GetLLMTimeout() != 60*time.Second {
		t.Errorf("GetLLMTimeout = %s", cfg.GetLLMTimeout())
	}
	if cfg.GetSandboxTimeout() != 10*time.Second {
		t.Errorf("GetSandboxTimeout = %s", cfg.GetSandboxTimeout())
	}
}
