package cohere

import (
	"encoding/json"
	"errors"
	"strings"

	"aichat/internal/models"
	"aichat/internal/provider"
	"aichat/internal/provider/base"
)

var errNoMessages = errors.New("cohere request needs at least one message")

// Adapter speaks the Cohere generate API: the conversation is flattened into
// a prompt and a plain-text context, and streams are bare JSON lines.
type Adapter struct {
	*base.Adapter
}

// New returns the Cohere adapter for p.
func New(p *provider.Profile) provider.Adapter {
	a := &Adapter{Adapter: base.New(p)}
	a.StreamPrefix = ""
	a.ErrorFunc = decodeError
	return a
}

func decodeError(payload provider.Fields) string {
	return base.StringField(payload, "message")
}

type chatMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// PrepareRequest sends the last message as the prompt and the earlier ones
// as "Human:"/"Assistant:" context lines.
func (a *Adapter) PrepareRequest(model string, stream bool, messages []json.RawMessage) (map[string]any, error) {
	if len(messages) == 0 {
		return nil, errNoMessages
	}

	decoded := make([]chatMessage, len(messages))
	for i, raw := range messages {
		if err := json.Unmarshal(raw, &decoded[i]); err != nil {
			return nil, &provider.DecodeError{Payload: string(raw), Err: err}
		}
	}

	var context strings.Builder
	for _, m := range decoded[:len(decoded)-1] {
		speaker := "Human"
		if m.Role == models.RoleAssistant {
			speaker = "Assistant"
		}
		context.WriteString(speaker)
		context.WriteString(": ")
		context.WriteString(m.Content)
		context.WriteString("\n")
	}

	return map[string]any{
		"model":   model,
		"prompt":  decoded[len(decoded)-1].Content,
		"context": context.String(),
		"stream":  stream,
	}, nil
}

type billedUnits struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type meta struct {
	BilledUnits billedUnits `json:"billed_units"`
}

type streamEvent struct {
	Text     string `json:"text"`
	Response struct {
		Meta meta `json:"meta"`
	} `json:"response"`
}

// ProcessChunk reads text; the stream-end event carries billed units.
func (a *Adapter) ProcessChunk(frame string) (models.Frame, bool, error) {
	payload, ok, err := a.Decode(frame)
	if !ok || err != nil {
		return models.Frame{}, false, err
	}

	var ev streamEvent
	if err := base.Unmarshal(payload, &ev); err != nil {
		return models.Frame{}, false, err
	}
	return models.Frame{
		Content:      ev.Text,
		InputTokens:  ev.Response.Meta.BilledUnits.InputTokens,
		OutputTokens: ev.Response.Meta.BilledUnits.OutputTokens,
	}, true, nil
}

type generateResponse struct {
	Generations []struct {
		Text string `json:"text"`
	} `json:"generations"`
	Meta meta `json:"meta"`
}

// ProcessResponse reads generations[0].text and meta.billed_units.
func (a *Adapter) ProcessResponse(body []byte) (models.Frame, error) {
	payload, err := a.DecodeBody(body)
	if err != nil {
		return models.Frame{}, err
	}

	var resp generateResponse
	if err := base.Unmarshal(payload, &resp); err != nil {
		return models.Frame{}, err
	}

	f := models.Frame{
		InputTokens:  resp.Meta.BilledUnits.InputTokens,
		OutputTokens: resp.Meta.BilledUnits.OutputTokens,
	}
	if len(resp.Generations) > 0 {
		f.Content = resp.Generations[0].Text
	}
	return f, nil
}
