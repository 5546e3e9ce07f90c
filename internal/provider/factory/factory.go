package factory

import (
	"errors"
	"fmt"

	"aichat/internal/config"
	"aichat/internal/provider"
	"aichat/internal/provider/anthropic"
	"aichat/internal/provider/base"
	"aichat/internal/provider/cohere"
	"aichat/internal/provider/google"
	"aichat/internal/provider/groq"
	"aichat/internal/provider/mistral"
	"aichat/internal/provider/ollama"
	"aichat/internal/provider/openai"
)

// Adapters maps every built-in adapter kind to its factory. Providers whose
// id matches a kind pick it up without naming an adapter.
var Adapters = map[string]provider.Factory{
	provider.DefaultAdapter: base.Factory,
	"openai":                openai.New,
	"groq":                  groq.New,
	"mistral":               mistral.New,
	"anthropic":             anthropic.New,
	"google":                google.New,
	"ollama":                ollama.New,
	"cohere":                cohere.New,
}

// NewRegistry returns a registry holding every built-in adapter and the
// providers configured in cfg.
func NewRegistry(cfg config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	if err := RegisterAdapters(registry); err != nil {
		return nil, err
	}
	if err := RegisterConfiguredProviders(cfg, registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// RegisterAdapters adds the built-in adapters to registry.
func RegisterAdapters(registry *provider.Registry) error {
	if registry == nil {
		return errors.New("registry must not be nil")
	}
	for kind, f := range Adapters {
		if err := registry.RegisterAdapter(kind, f); err != nil {
			return fmt.Errorf("register %s adapter: %w", kind, err)
		}
	}
	return nil
}

// RegisterConfiguredProviders constructs profiles from configuration and
// stores them in the registry.
func RegisterConfiguredProviders(cfg config.Config, registry *provider.Registry) error {
	if registry == nil {
		return errors.New("registry must not be nil")
	}

	for _, pc := range cfg.Providers {
		profile, err := provider.NewProfile(pc)
		if err != nil {
			return fmt.Errorf("initialise %s provider: %w", pc.ID, err)
		}
		if err := registry.RegisterProfile(profile); err != nil {
			return fmt.Errorf("register %s provider: %w", pc.ID, err)
		}
	}
	return nil
}
