package groq

import (
	"aichat/internal/models"
	"aichat/internal/provider"
	"aichat/internal/provider/base"
)

// Adapter speaks the Groq API, which reports streamed usage under x_groq.
type Adapter struct {
	*base.Adapter
}

// New returns the Groq adapter for p.
func New(p *provider.Profile) provider.Adapter {
	return &Adapter{Adapter: base.New(p)}
}

type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	XGroq struct {
		Usage *base.OpenAIUsage `json:"usage"`
	} `json:"x_groq"`
}

// ProcessChunk reads choices[0].delta.content and x_groq.usage.
func (a *Adapter) ProcessChunk(frame string) (models.Frame, bool, error) {
	payload, ok, err := a.Decode(frame)
	if !ok || err != nil {
		return models.Frame{}, false, err
	}

	var c chunk
	if err := base.Unmarshal(payload, &c); err != nil {
		return models.Frame{}, false, err
	}

	var content string
	if len(c.Choices) > 0 {
		content = c.Choices[0].Delta.Content
	}
	return c.XGroq.Usage.Frame(content), true, nil
}
