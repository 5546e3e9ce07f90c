package provider_test

import (
	"encoding/json"
	"errors"
	"testing"

	"aichat/internal/config"
	"aichat/internal/models"
	"aichat/internal/provider"
	"aichat/internal/provider/factory"
)

const testConfig = `
providers:
  openai:
    name: OpenAI
    endpoint: https://api.openai.com/v1/chat/completions
    options:
      temperature: 0.2
      stream: "overridden"
    models:
      - gpt-4o
  anthropic:
    name: Anthropic
    endpoint: https://api.anthropic.com/v1/messages
    api_key: sk-ant
    options:
      max_tokens: 4096
    models:
      claude-3-5-sonnet-latest: Sonnet
  google:
    name: Google
    endpoint: https://generativelanguage.googleapis.com/v1beta/models/
    api_key: g-key
    models: [gemini-2.0-flash]
  groq:
    endpoint: https://api.groq.com/openai/v1/chat/completions
    api_key: gsk
    models: [llama-3.3-70b-versatile]
  mistral:
    endpoint: https://api.mistral.ai/v1/chat/completions
    api_key: m
    models: [mistral-large-latest]
  cohere:
    endpoint: https://api.cohere.ai/v1/generate
    api_key: c
    models: [command-r]
  ollama:
    endpoint: http://127.0.0.1:11434/api/chat
    api_key: none
    models:
      llama3.1:
        options:
          keep_alive: 5m
  xai:
    name: xAI
    endpoint: https://api.x.ai/v1/chat/completions
    api_key: x
    accumulate_tokens: true
    models: [grok-2]
`

func newRegistry(t *testing.T) *provider.Registry {
	t.Helper()

	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	registry, err := factory.NewRegistry(cfg)
	if err != nil {
		t.Fatalf("factory.NewRegistry() error = %v", err)
	}
	return registry
}

func TestBuildSucceedsForEveryConfiguredModel(t *testing.T) {
	registry := newRegistry(t)

	for _, p := range registry.Profiles() {
		for _, m := range p.Models {
			for _, stream := range []bool{false, true} {
				b, err := registry.Resolve(p.ID, m.ID)
				if err != nil {
					t.Fatalf("%s/%s: Resolve() error = %v", p.ID, m.ID, err)
				}
				msg, err := b.Compose(models.RoleUser, "Hello", nil)
				if err != nil {
					t.Fatalf("%s/%s: Compose() error = %v", p.ID, m.ID, err)
				}
				req, err := b.Build(provider.Call{APIKey: "client", Stream: stream}, []json.RawMessage{msg})
				if err != nil {
					t.Fatalf("%s/%s: Build() error = %v", p.ID, m.ID, err)
				}

				var body map[string]any
				if err := json.Unmarshal(req.Body, &body); err != nil {
					t.Fatalf("%s/%s: body is not JSON: %v", p.ID, m.ID, err)
				}
				if p.ID == "google" {
					if _, ok := body["contents"]; !ok {
						t.Fatalf("google body missing contents: %s", req.Body)
					}
					continue
				}
				if body["model"] != m.ID {
					t.Fatalf("%s: body model = %v, want %s", p.ID, body["model"], m.ID)
				}
				if body["stream"] != stream {
					t.Fatalf("%s: body stream = %v, want %v", p.ID, body["stream"], stream)
				}
			}
		}
	}
}

func TestResolveUnknownModel(t *testing.T) {
	registry := newRegistry(t)

	_, err := registry.Resolve("openai", "gpt-2")

	var cfgErr *provider.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !errors.Is(err, provider.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
	if cfgErr.Message != `Model "gpt-2" is not available for provider "openai"` {
		t.Fatalf("unexpected message %q", cfgErr.Message)
	}

	if _, err := registry.Resolve("nope", "x"); !errors.Is(err, provider.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestResolveModelByDisplayName(t *testing.T) {
	registry := newRegistry(t)

	b, err := registry.Resolve("anthropic", "sonnet")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if b.Model.ID != "claude-3-5-sonnet-latest" {
		t.Fatalf("resolved %q", b.Model.ID)
	}
	if _, err := registry.Resolve("openai", "GPT-4O"); err != nil {
		t.Fatalf("expected case-insensitive match, got %v", err)
	}
}

func TestResolveProviderIgnoresCase(t *testing.T) {
	registry := newRegistry(t)

	b, err := registry.Resolve("OpenAI", "gpt-4o")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if b.Profile.ID != "openai" {
		t.Fatalf("resolved provider %q, want openai", b.Profile.ID)
	}
}

func TestAPIKeyResolution(t *testing.T) {
	registry := newRegistry(t)

	tests := []struct {
		name      string
		provider  string
		model     string
		clientKey string
		wantKey   string
		wantAuth  bool
	}{
		{name: "client key used", provider: "openai", model: "gpt-4o", clientKey: "sk-client", wantKey: "sk-client"},
		{name: "missing key", provider: "openai", model: "gpt-4o", wantAuth: true},
		{name: "configured key wins", provider: "anthropic", model: "claude-3-5-sonnet-latest", clientKey: "other", wantKey: "sk-ant"},
		{name: "sentinel needs no key", provider: "ollama", model: "llama3.1", wantKey: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := registry.Resolve(tt.provider, tt.model)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			key, err := b.APIKey(tt.clientKey)
			if tt.wantAuth {
				var authErr *provider.AuthError
				if !errors.As(err, &authErr) {
					t.Fatalf("expected AuthError, got %v", err)
				}
				if authErr.Error() != "The API key for OpenAI is not set" {
					t.Fatalf("unexpected message %q", authErr.Error())
				}
				return
			}
			if err != nil || key != tt.wantKey {
				t.Fatalf("APIKey() = %q, %v, want %q", key, err, tt.wantKey)
			}
		})
	}
}

func TestBuildHeadersAndOptions(t *testing.T) {
	registry := newRegistry(t)

	b, _ := registry.Resolve("openai", "gpt-4o")
	req, err := b.Build(provider.Call{APIKey: "sk", Stream: true}, []json.RawMessage{json.RawMessage(`{"role":"user","content":"hi"}`)})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk" {
		t.Fatalf("Authorization = %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body["temperature"] != 0.2 || body["stream"] != true {
		t.Fatalf("options not merged under vendor keys: %s", req.Body)
	}
	if _, ok := body["stream_options"]; !ok {
		t.Fatalf("expected stream_options when streaming: %s", req.Body)
	}

	b, _ = registry.Resolve("anthropic", "claude-3-5-sonnet-latest")
	req, _ = b.Build(provider.Call{}, []json.RawMessage{json.RawMessage(`{}`)})
	if req.Header.Get("x-api-key") != "sk-ant" || req.Header.Get("anthropic-version") != "2023-06-01" {
		t.Fatalf("unexpected anthropic headers %v", req.Header)
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("anthropic must not send bearer auth")
	}

	b, _ = registry.Resolve("google", "gemini-2.0-flash")
	req, _ = b.Build(provider.Call{Stream: true}, []json.RawMessage{json.RawMessage(`{}`)})
	if req.URL != "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:streamGenerateContent?alt=sse" {
		t.Fatalf("unexpected google url %s", req.URL)
	}
	if req.Header.Get("x-goog-api-key") != "g-key" {
		t.Fatalf("unexpected google headers %v", req.Header)
	}

	b, _ = registry.Resolve("ollama", "llama3.1")
	req, _ = b.Build(provider.Call{}, []json.RawMessage{json.RawMessage(`{}`)})
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("sentinel provider must not send auth, got %v", req.Header)
	}
	if err := json.Unmarshal(req.Body, &body); err != nil || body["keep_alive"] != "5m" {
		t.Fatalf("expected model options in body: %s", req.Body)
	}
}

func TestAdapterSelection(t *testing.T) {
	registry := newRegistry(t)

	want := map[string]string{
		"openai":  "openai",
		"xai":     provider.DefaultAdapter,
		"cohere":  "cohere",
		"ollama":  "ollama",
		"mistral": "mistral",
	}
	for id, kind := range want {
		p, err := registry.Profile(id)
		if err != nil {
			t.Fatalf("Profile(%s) error = %v", id, err)
		}
		if p.Adapter != kind {
			t.Fatalf("%s adapter = %q, want %q", id, p.Adapter, kind)
		}
	}

	err := registry.RegisterProfile(&provider.Profile{ID: "odd", Adapter: "missing"})
	if !errors.Is(err, provider.ErrUnknownAdapter) {
		t.Fatalf("expected ErrUnknownAdapter, got %v", err)
	}
	err = registry.RegisterProfile(&provider.Profile{ID: "openai"})
	if !errors.Is(err, provider.ErrDuplicateProvider) {
		t.Fatalf("expected ErrDuplicateProvider, got %v", err)
	}
}

func TestOptionsForPrefersModelOptions(t *testing.T) {
	p := &provider.Profile{
		Options: map[string]any{"temperature": 1},
		Models: []provider.ModelSpec{
			{ID: "plain"},
			{ID: "tuned", Options: map[string]any{"top_p": 0.5}},
		},
	}

	plain := p.OptionsFor(p.Models[0])
	plain["mutated"] = true
	if _, leaked := p.Options["mutated"]; leaked {
		t.Fatal("OptionsFor must return a copy")
	}
	tuned := p.OptionsFor(p.Models[1])
	if _, ok := tuned["temperature"]; ok || tuned["top_p"] != 0.5 {
		t.Fatalf("unexpected tuned options %v", tuned)
	}
}
