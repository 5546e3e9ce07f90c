package provider

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"

	"aichat/internal/models"
	"aichat/internal/transport"
	"aichat/internal/usage"
)

// Builder binds a provider profile, a resolved model and the vendor adapter
// for a single turn.
type Builder struct {
	Profile *Profile
	Model   ModelSpec
	Adapter Adapter
}

// Call carries the per-request inputs to Build.
type Call struct {
	APIKey string
	Stream bool
}

// APIKey resolves the key to send for clientKey.
func (b *Builder) APIKey(clientKey string) (string, error) {
	return b.Profile.ResolveAPIKey(clientKey)
}

// Compose builds the vendor message for one turn.
func (b *Builder) Compose(role models.Role, prompt string, uploads []models.Upload) (json.RawMessage, error) {
	if role != models.RoleUser {
		uploads = nil
	}
	return b.Adapter.PrepareMessage(role, prompt, uploads)
}

// Build assembles the outbound request from the full message list.
func (b *Builder) Build(call Call, messages []json.RawMessage) (*transport.Request, error) {
	key, err := b.APIKey(call.APIKey)
	if err != nil {
		return nil, err
	}

	vendorBody, err := b.Adapter.PrepareRequest(b.Model.ID, call.Stream, messages)
	if err != nil {
		return nil, err
	}

	body := b.Profile.OptionsFor(b.Model)
	maps.Copy(body, vendorBody)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	for k, values := range b.Adapter.Headers(key) {
		for _, v := range values {
			header.Add(k, v)
		}
	}

	return &transport.Request{
		Method: http.MethodPost,
		URL:    b.Adapter.Endpoint(b.Profile.Endpoint, b.Model.ID, call.Stream),
		Header: header,
		Body:   payload,
		Stream: call.Stream,
	}, nil
}

// NewAccountant returns a token accountant with the provider's policy.
func (b *Builder) NewAccountant() *usage.Accountant {
	return usage.NewAccountant(b.Profile.AccumulateTokens)
}
