package openai

import (
	"encoding/json"

	"aichat/internal/provider"
	"aichat/internal/provider/base"
)

// Adapter speaks the OpenAI chat completions API.
type Adapter struct {
	*base.Adapter
}

// New returns the OpenAI adapter for p.
func New(p *provider.Profile) provider.Adapter {
	return &Adapter{Adapter: base.New(p)}
}

// PrepareRequest asks for a usage frame at the end of streamed responses.
func (a *Adapter) PrepareRequest(model string, stream bool, messages []json.RawMessage) (map[string]any, error) {
	body, err := a.Adapter.PrepareRequest(model, stream, messages)
	if err != nil {
		return nil, err
	}
	if stream {
		body["stream_options"] = map[string]any{"include_usage": true}
	}
	return body, nil
}
