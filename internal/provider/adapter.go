package provider

import (
	"encoding/json"
	"net/http"

	"aichat/internal/models"
)

// Fields is a decoded JSON object whose values are left raw, so each vendor
// can inspect only the members it cares about.
type Fields map[string]json.RawMessage

// Adapter is the capability set every vendor implements. Vendor adapters
// embed the default one from package base and override only what differs.
type Adapter interface {
	// PrepareMessage composes role, prompt and uploads into the vendor's
	// native message. Every upload must be consumed; one the vendor cannot
	// accept fails with UnsupportedUploadError.
	PrepareMessage(role models.Role, prompt string, uploads []models.Upload) (json.RawMessage, error)

	// PrepareRequest builds the vendor part of the request body from the
	// full composed message list, current turn last.
	PrepareRequest(model string, stream bool, messages []json.RawMessage) (map[string]any, error)

	// Headers returns the authentication headers. apiKey is empty when the
	// provider needs no authentication.
	Headers(apiKey string) http.Header

	// Endpoint resolves the request URL from the configured endpoint.
	Endpoint(endpoint, model string, stream bool) string

	// DecodeError extracts a vendor error message from a decoded payload.
	DecodeError(payload Fields) string

	// ProcessChunk decodes one streamed frame. It reports false for frames that
	// carry nothing, such as SSE control lines.
	ProcessChunk(frame string) (models.Frame, bool, error)

	// ProcessResponse decodes a complete non-streaming response body.
	ProcessResponse(body []byte) (models.Frame, error)
}

// Factory constructs the adapter for a provider profile.
type Factory func(p *Profile) Adapter
