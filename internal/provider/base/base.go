// Package base implements the default chat completions adapter. Vendor
// adapters embed it and override the methods whose wire shape differs.
package base

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"aichat/internal/models"
	"aichat/internal/provider"
	"aichat/internal/stream"
	"aichat/internal/upload"
)

var errNotObject = errors.New("payload is not a JSON object")

// Adapter is the default provider adapter.
type Adapter struct {
	// Vendor names the provider in user-facing errors.
	Vendor string
	// StreamPrefix is the field name preceding each streamed payload; empty
	// for vendors that stream bare JSON lines.
	StreamPrefix string
	// ErrorFunc extracts a vendor error message. Nil selects DefaultError.
	ErrorFunc func(provider.Fields) string
}

// New returns the default adapter for p.
func New(p *provider.Profile) *Adapter {
	return &Adapter{
		Vendor:       p.DisplayName,
		StreamPrefix: stream.DataPrefix,
	}
}

// Factory is the provider.Factory for the default adapter.
func Factory(p *provider.Profile) provider.Adapter {
	return New(p)
}

type chatMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// PrepareMessage prefixes the prompt with the delimited text of every text
// upload. Binary uploads are rejected.
func (a *Adapter) PrepareMessage(role models.Role, prompt string, uploads []models.Upload) (json.RawMessage, error) {
	var b strings.Builder
	for _, u := range uploads {
		if !upload.IsText(u) {
			return nil, provider.NewUnsupportedUpload(u, a.Vendor)
		}
		b.WriteString(upload.TextBlock(u))
	}

	content := prompt
	if b.Len() > 0 {
		content = b.String() + "\n\n" + prompt
	}
	return Marshal(chatMessage{Role: role, Content: content})
}

// PrepareRequest returns {model, messages, stream}.
func (a *Adapter) PrepareRequest(model string, stream bool, messages []json.RawMessage) (map[string]any, error) {
	return map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   stream,
	}, nil
}

// Headers returns bearer authentication.
func (a *Adapter) Headers(apiKey string) http.Header {
	h := http.Header{}
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
	return h
}

// Endpoint returns the configured endpoint unchanged.
func (a *Adapter) Endpoint(endpoint, _ string, _ bool) string {
	return endpoint
}

// DecodeError runs ErrorFunc, or DefaultError when it is nil.
func (a *Adapter) DecodeError(payload provider.Fields) string {
	if a.ErrorFunc != nil {
		return a.ErrorFunc(payload)
	}
	return DefaultError(payload)
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *OpenAIUsage `json:"usage"`
}

// OpenAIUsage is the usage block of chat completions responses.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Frame converts the usage block into frame token counts.
func (u *OpenAIUsage) Frame(content string) models.Frame {
	f := models.Frame{Content: content}
	if u != nil {
		f.InputTokens = u.PromptTokens
		f.OutputTokens = u.CompletionTokens
	}
	return f
}

// ProcessChunk reads choices[0].delta.content and usage.
func (a *Adapter) ProcessChunk(frame string) (models.Frame, bool, error) {
	payload, ok, err := a.Decode(frame)
	if !ok || err != nil {
		return models.Frame{}, false, err
	}

	var chunk completionChunk
	if err := Unmarshal(payload, &chunk); err != nil {
		return models.Frame{}, false, err
	}

	var content string
	if len(chunk.Choices) > 0 {
		content = chunk.Choices[0].Delta.Content
	}
	return chunk.Usage.Frame(content), true, nil
}

// ProcessResponse reads choices[0].message.content and usage.
func (a *Adapter) ProcessResponse(body []byte) (models.Frame, error) {
	payload, err := a.DecodeBody(body)
	if err != nil {
		return models.Frame{}, err
	}

	var resp completionChunk
	if err := Unmarshal(payload, &resp); err != nil {
		return models.Frame{}, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return resp.Usage.Frame(content), nil
}

// Decode extracts and checks the payload of a streamed frame. It reports
// false for frames that carry no payload.
func (a *Adapter) Decode(frame string) ([]byte, bool, error) {
	payload, ok, err := stream.DecodeFrame(frame, a.StreamPrefix)
	if !ok || err != nil {
		return nil, false, err
	}
	if err := a.check(payload); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// DecodeBody checks a complete response body.
func (a *Adapter) DecodeBody(body []byte) ([]byte, error) {
	payload, ok, err := stream.DecodeFrame(string(body), "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &provider.DecodeError{Err: errors.New("empty response body")}
	}
	if err := a.check(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (a *Adapter) check(payload []byte) error {
	var fields provider.Fields
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return &provider.DecodeError{Payload: string(payload), Err: errNotObject}
	}
	if msg := a.DecodeError(fields); msg != "" {
		return &provider.VendorError{Vendor: a.Vendor, Message: msg}
	}
	return nil
}

// DefaultError reads an "error" member that is either a string or an
// object with a message and an optional param.
func DefaultError(payload provider.Fields) string {
	raw, ok := payload["error"]
	if !ok || IsNull(raw) {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var obj struct {
		Message string `json:"message"`
		Param   any    `json:"param"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "Error from API"
	}
	if obj.Message == "" {
		return "Error from API"
	}
	if obj.Param != nil && obj.Param != "" {
		return fmt.Sprintf("%s:%v", obj.Message, obj.Param)
	}
	return obj.Message
}

// StringField returns payload[key] when it is a non-empty string.
func StringField(payload provider.Fields, key string) string {
	raw, ok := payload[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// IsNull reports whether raw is absent or the JSON null literal.
func IsNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Marshal encodes a vendor message.
func Marshal(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

// Unmarshal decodes payload into v, reporting shape mismatches as
// *provider.DecodeError.
func Unmarshal(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &provider.DecodeError{Payload: string(payload), Err: err}
	}
	return nil
}
