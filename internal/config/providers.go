package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Providers is the ordered list of configured providers. In YAML it is a
// mapping from provider id to ProviderConfig; the mapping order is kept so
// clients can present providers as written.
type Providers []NamedProvider

// NamedProvider is a ProviderConfig together with its id.
type NamedProvider struct {
	ID string
	ProviderConfig
}

// ProviderConfig captures endpoint, authentication and model catalogue for
// a provider.
type ProviderConfig struct {
	Name             string         `yaml:"name"`
	Adapter          string         `yaml:"adapter"`
	APIKey           string         `yaml:"api_key"`
	NoAuthValue      string         `yaml:"no_auth_value"`
	Endpoint         string         `yaml:"endpoint"`
	Options          map[string]any `yaml:"options"`
	Models           ModelList      `yaml:"models"`
	AccumulateTokens bool           `yaml:"accumulate_tokens"`
}

// ModelList is the normalised model catalogue of a provider.
//
// The YAML may be a sequence of ids, a sequence of ModelConfig objects, or a
// mapping keyed by model id whose values are either a display name or an
// object. Objects with none of the ModelConfig keys are read as option
// overrides for that model.
type ModelList []ModelConfig

// ModelConfig describes a model exposed by a provider.
type ModelConfig struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options"`
	Pricing *PricingConfig `yaml:"pricing"`
}

// PricingConfig is the price of one million input and output tokens.
type PricingConfig struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

var modelConfigKeys = map[string]struct{}{
	"id":      {},
	"name":    {},
	"options": {},
	"pricing": {},
}

// UnmarshalYAML keeps the mapping order of providers.
func (p *Providers) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*p = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: providers must be a mapping of provider id to settings", node.Line)
	}

	out := make(Providers, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var cfg ProviderConfig
		if err := value.Decode(&cfg); err != nil {
			return fmt.Errorf("provider %s: %w", key.Value, err)
		}
		out = append(out, NamedProvider{ID: key.Value, ProviderConfig: cfg})
	}

	*p = out
	return nil
}

// UnmarshalYAML accepts every supported model catalogue shape.
func (m *ModelList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		out := make(ModelList, 0, len(node.Content))
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				out = append(out, ModelConfig{ID: item.Value})
			case yaml.MappingNode:
				var model ModelConfig
				if err := item.Decode(&model); err != nil {
					return fmt.Errorf("line %d: %w", item.Line, err)
				}
				out = append(out, model)
			default:
				return fmt.Errorf("line %d: model entries must be ids or objects", item.Line)
			}
		}
		*m = out
		return nil

	case yaml.MappingNode:
		out := make(ModelList, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			model, err := decodeKeyedModel(key.Value, value)
			if err != nil {
				return err
			}
			out = append(out, model)
		}
		*m = out
		return nil

	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*m = nil
			return nil
		}
	}

	return fmt.Errorf("line %d: models must be a list or a mapping", node.Line)
}

func decodeKeyedModel(id string, value *yaml.Node) (ModelConfig, error) {
	switch value.Kind {
	case yaml.ScalarNode:
		model := ModelConfig{ID: id}
		if value.Tag != "!!null" {
			model.Name = value.Value
		}
		return model, nil

	case yaml.MappingNode:
		if isModelConfig(value) {
			var model ModelConfig
			if err := value.Decode(&model); err != nil {
				return ModelConfig{}, fmt.Errorf("model %s: %w", id, err)
			}
			if model.ID == "" {
				model.ID = id
			}
			return model, nil
		}

		var options map[string]any
		if err := value.Decode(&options); err != nil {
			return ModelConfig{}, fmt.Errorf("model %s options: %w", id, err)
		}
		return ModelConfig{ID: id, Options: options}, nil
	}

	return ModelConfig{}, fmt.Errorf("line %d: model %s must map to a name or an object", value.Line, id)
}

func isModelConfig(node *yaml.Node) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if _, ok := modelConfigKeys[node.Content[i].Value]; ok {
			return true
		}
	}
	return false
}
