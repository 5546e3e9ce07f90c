package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
server:
  port: 9090
session:
  backend: memory
  ttl: 24h
providers:
  openai:
    name: ChatGPT
    api_key: ${AICHAT_TEST_OPENAI_KEY}
    endpoint: https://api.openai.com/v1/chat/completions
    options:
      max_completion_tokens: 4096
    models:
      - gpt-4o
      - id: o3-mini
        pricing:
          input: 1.1
          output: 4.4
  anthropic:
    name: Claude
    endpoint: https://api.anthropic.com/v1/messages
    models:
      claude-3-5-sonnet-latest: Sonnet
      claude-3-opus-latest:
        max_tokens: 1024
      claude-3-5-haiku-latest:
        name: Haiku
        options:
          max_tokens: 2048
  ollama:
    endpoint: http://127.0.0.1:11434/api/chat
    api_key: none
    models: [llama3.1]
`

func TestParseModelShapes(t *testing.T) {
	t.Setenv("AICHAT_TEST_OPENAI_KEY", "sk-test")

	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if len(cfg.Providers) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(cfg.Providers))
	}
	order := []string{cfg.Providers[0].ID, cfg.Providers[1].ID, cfg.Providers[2].ID}
	if strings.Join(order, ",") != "openai,anthropic,ollama" {
		t.Fatalf("provider order not preserved: %v", order)
	}

	openai := cfg.Providers[0]
	if openai.APIKey != "sk-test" {
		t.Fatalf("expected env expansion in api_key, got %q", openai.APIKey)
	}
	if len(openai.Models) != 2 || openai.Models[0].ID != "gpt-4o" || openai.Models[1].ID != "o3-mini" {
		t.Fatalf("unexpected openai models %+v", openai.Models)
	}
	if openai.Models[1].Pricing == nil || openai.Models[1].Pricing.Output != 4.4 {
		t.Fatalf("expected pricing on o3-mini, got %+v", openai.Models[1].Pricing)
	}

	anthropic := cfg.Providers[1]
	if len(anthropic.Models) != 3 {
		t.Fatalf("unexpected anthropic models %+v", anthropic.Models)
	}
	if m := anthropic.Models[0]; m.ID != "claude-3-5-sonnet-latest" || m.Name != "Sonnet" {
		t.Fatalf("unexpected aliased model %+v", m)
	}
	if m := anthropic.Models[1]; m.ID != "claude-3-opus-latest" || m.Options["max_tokens"] != 1024 {
		t.Fatalf("expected bare mapping to be read as options, got %+v", m)
	}
	if m := anthropic.Models[2]; m.Name != "Haiku" || m.Options["max_tokens"] != 2048 {
		t.Fatalf("unexpected model object %+v", m)
	}

	ollama := cfg.Providers[2]
	if ollama.Name != "ollama" || ollama.NoAuthValue != "none" {
		t.Fatalf("expected defaults on ollama, got name=%q no_auth=%q", ollama.Name, ollama.NoAuthValue)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("unexpected session ttl %s", cfg.Session.TTL)
	}
	if cfg.Server.MaxUploadBytes != defaultMaxUploadBytes {
		t.Fatalf("expected default upload limit, got %d", cfg.Server.MaxUploadBytes)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no providers",
			yaml:    "server: {port: 80}\n",
			wantErr: "at least one provider",
		},
		{
			name:    "missing endpoint",
			yaml:    "providers:\n  x:\n    models: [a]\n",
			wantErr: "endpoint must be provided",
		},
		{
			name:    "no models",
			yaml:    "providers:\n  x:\n    endpoint: http://x\n",
			wantErr: "at least one model",
		},
		{
			name:    "duplicate model",
			yaml:    "providers:\n  x:\n    endpoint: http://x\n    models: [a, A]\n",
			wantErr: "configured more than once",
		},
		{
			name:    "postgres without url",
			yaml:    "session: {backend: postgres}\nproviders:\n  x:\n    endpoint: http://x\n    models: [a]\n",
			wantErr: "database_url",
		},
		{
			name:    "unknown backend",
			yaml:    "session: {backend: redis}\nproviders:\n  x:\n    endpoint: http://x\n    models: [a]\n",
			wantErr: "session.backend",
		},
		{
			name:    "bad port",
			yaml:    "server: {port: 70000}\nproviders:\n  x:\n    endpoint: http://x\n    models: [a]\n",
			wantErr: "server.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseRejectsBadModelShape(t *testing.T) {
	_, err := Parse([]byte("providers:\n  x:\n    endpoint: http://x\n    models: 42\n"))
	if err == nil {
		t.Fatal("expected error for scalar model list")
	}
}

func TestLoadAppliesDotEnvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlData := "providers:\n  groq:\n    api_key: ${AICHAT_TEST_GROQ_KEY}\n    endpoint: https://api.groq.com/openai/v1/chat/completions\n    models: [llama-3.3-70b-versatile]\n"
	if err := os.WriteFile(cfgPath, []byte(yamlData), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AICHAT_TEST_GROQ_KEY=gsk-from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("AICHAT_TEST_GROQ_KEY") })
	t.Setenv("AICHAT_PORT", "7070")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Providers[0].APIKey != "gsk-from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.Providers[0].APIKey)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port override, got %d", cfg.Server.Port)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Fatalf("expected DEBUG level, got %s", cfg.SlogLevel())
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("read example config: %v", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	ids := make(map[string]NamedProvider, len(cfg.Providers))
	for _, p := range cfg.Providers {
		ids[p.ID] = p
	}
	if !ids["xai"].AccumulateTokens {
		t.Fatal("xai must accumulate tokens")
	}
	if ids["ollama"].APIKey != "none" || len(ids["ollama"].Models) != 4 {
		t.Fatalf("unexpected ollama config %+v", ids["ollama"])
	}
	if cfg.Providers[0].ID != "anthropic" {
		t.Fatalf("provider order not kept, first is %q", cfg.Providers[0].ID)
	}
}

func TestParseExpandsOnlyBracedReferences(t *testing.T) {
	t.Setenv("AICHAT_TEST_HOST", "api.example.com")
	t.Setenv("abc", "leaked")

	cfg, err := Parse([]byte(`
providers:
  custom:
    api_key: k$abc
    endpoint: https://${AICHAT_TEST_HOST}/v1/chat/completions
    options:
      stop: "$$"
    models: [m]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	p := cfg.Providers[0]
	if p.APIKey != "k$abc" {
		t.Fatalf("api_key = %q, want literal k$abc", p.APIKey)
	}
	if p.Endpoint != "https://api.example.com/v1/chat/completions" {
		t.Fatalf("endpoint = %q", p.Endpoint)
	}
	if p.Options["stop"] != "$$" {
		t.Fatalf("stop = %v, want $$", p.Options["stop"])
	}
}
