package provider

import (
	"fmt"
	"maps"
	"strings"

	"aichat/internal/config"
	"aichat/internal/models"
	"aichat/internal/usage"
)

// DefaultAdapter is the adapter kind used by providers that speak the
// OpenAI-compatible chat completions dialect without vendor quirks.
const DefaultAdapter = "default"

// Profile is the static description of a configured provider.
type Profile struct {
	ID               string
	DisplayName      string
	Endpoint         string
	Adapter          string
	APIKey           string
	NoAuthSentinel   string
	Options          map[string]any
	Models           []ModelSpec
	AccumulateTokens bool
}

// ModelSpec is one model a provider exposes.
type ModelSpec struct {
	ID          string
	DisplayName string
	Options     map[string]any
	Pricing     *usage.Pricing
}

// Name returns the display name of the model, falling back to its id.
func (m ModelSpec) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}

// NewProfile converts a validated provider configuration into a Profile.
func NewProfile(cfg config.NamedProvider) (*Profile, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("provider id must not be empty")
	}

	p := &Profile{
		ID:               cfg.ID,
		DisplayName:      cfg.Name,
		Endpoint:         cfg.Endpoint,
		Adapter:          strings.ToLower(strings.TrimSpace(cfg.Adapter)),
		APIKey:           cfg.APIKey,
		NoAuthSentinel:   cfg.NoAuthValue,
		Options:          cfg.Options,
		AccumulateTokens: cfg.AccumulateTokens,
		Models:           make([]ModelSpec, 0, len(cfg.Models)),
	}
	if p.DisplayName == "" {
		p.DisplayName = p.ID
	}

	for _, m := range cfg.Models {
		spec := ModelSpec{
			ID:          m.ID,
			DisplayName: m.Name,
			Options:     m.Options,
		}
		if m.Pricing != nil {
			spec.Pricing = usage.NewPricing(m.Pricing.Input, m.Pricing.Output)
		}
		p.Models = append(p.Models, spec)
	}

	return p, nil
}

// ResolveModel finds a configured model by id, or by id or display name
// ignoring case.
func (p *Profile) ResolveModel(name string) (ModelSpec, error) {
	for _, m := range p.Models {
		if m.ID == name {
			return m, nil
		}
	}
	for _, m := range p.Models {
		if strings.EqualFold(m.ID, name) || (m.DisplayName != "" && strings.EqualFold(m.DisplayName, name)) {
			return m, nil
		}
	}

	return ModelSpec{}, &ConfigurationError{
		Message: fmt.Sprintf("Model %q is not available for provider %q", name, p.ID),
		Err:     ErrUnknownModel,
	}
}

// OptionsFor returns a copy of the request options for m: the model's own
// options when it has any, otherwise the provider defaults.
func (p *Profile) OptionsFor(m ModelSpec) map[string]any {
	src := p.Options
	if len(m.Options) > 0 {
		src = m.Options
	}
	out := make(map[string]any, len(src))
	maps.Copy(out, src)
	return out
}

// RequiresAuth reports whether requests must carry an API key.
func (p *Profile) RequiresAuth() bool {
	return p.APIKey == "" || p.APIKey != p.NoAuthSentinel
}

// HasConfiguredKey reports whether the provider carries its own key, or
// needs none at all.
func (p *Profile) HasConfiguredKey() bool {
	return p.APIKey != ""
}

// ResolveAPIKey picks the key to send: the configured one, else the one
// supplied by the client. It returns "" when the provider needs no key.
func (p *Profile) ResolveAPIKey(clientKey string) (string, error) {
	if !p.RequiresAuth() {
		return "", nil
	}
	if p.APIKey != "" {
		return p.APIKey, nil
	}
	if key := strings.TrimSpace(clientKey); key != "" {
		return key, nil
	}
	return "", &AuthError{Provider: p.DisplayName}
}

// Catalogue lists the provider's models for presentation.
func (p *Profile) Catalogue() []models.Model {
	out := make([]models.Model, 0, len(p.Models))
	for _, m := range p.Models {
		out = append(out, models.Model{ID: m.ID, DisplayName: m.Name(), Provider: p.ID})
	}
	return out
}
