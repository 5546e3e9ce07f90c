package google

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"aichat/internal/models"
	"aichat/internal/provider"
	"aichat/internal/provider/base"
	"aichat/internal/upload"
)

// Accepted lists the binary types sent as inline data.
var Accepted = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf"}

// Adapter speaks the Gemini generateContent API.
type Adapter struct {
	*base.Adapter
}

// New returns the Gemini adapter for p.
func New(p *provider.Profile) provider.Adapter {
	return &Adapter{Adapter: base.New(p)}
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       *string     `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

func textPart(text string) part {
	return part{Text: &text}
}

// PrepareMessage sends every accepted upload as a filename part followed by
// an inline_data part, then the prompt. Assistant turns use the "model" role.
func (a *Adapter) PrepareMessage(role models.Role, prompt string, uploads []models.Upload) (json.RawMessage, error) {
	parts := make([]part, 0, len(uploads)*2+1)
	for _, u := range uploads {
		if !strings.HasPrefix(u.MIME, "text/") && !upload.Accepts(u.MIME, Accepted) && !upload.IsText(u) {
			return nil, provider.NewUnsupportedUpload(u, a.Vendor)
		}
		parts = append(parts,
			textPart(fmt.Sprintf("filename: '%s'", u.Name)),
			part{InlineData: &inlineData{
				MIMEType: u.MIME,
				Data:     base64.StdEncoding.EncodeToString(u.Content),
			}},
		)
	}
	parts = append(parts, textPart(prompt))

	r := string(role)
	if role == models.RoleAssistant {
		r = "model"
	}
	return base.Marshal(content{Role: r, Parts: parts})
}

// PrepareRequest returns {contents}; model and stream travel in the URL.
func (a *Adapter) PrepareRequest(_ string, _ bool, messages []json.RawMessage) (map[string]any, error) {
	return map[string]any{"contents": messages}, nil
}

// Endpoint appends the model and method to the configured prefix.
func (a *Adapter) Endpoint(endpoint, model string, stream bool) string {
	if stream {
		return endpoint + model + ":streamGenerateContent?alt=sse"
	}
	return endpoint + model + ":generateContent"
}

// Headers authenticates with x-goog-api-key.
func (a *Adapter) Headers(apiKey string) http.Header {
	h := http.Header{}
	if apiKey != "" {
		h.Set("x-goog-api-key", apiKey)
	}
	return h
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (r generateResponse) frame() models.Frame {
	f := models.Frame{
		InputTokens:  r.UsageMetadata.PromptTokenCount,
		OutputTokens: r.UsageMetadata.CandidatesTokenCount,
	}
	if len(r.Candidates) > 0 && len(r.Candidates[0].Content.Parts) > 0 {
		f.Content = r.Candidates[0].Content.Parts[0].Text
	}
	return f
}

// ProcessChunk reads candidates[0].content.parts[0].text and usageMetadata.
func (a *Adapter) ProcessChunk(frame string) (models.Frame, bool, error) {
	payload, ok, err := a.Decode(frame)
	if !ok || err != nil {
		return models.Frame{}, false, err
	}

	var resp generateResponse
	if err := base.Unmarshal(payload, &resp); err != nil {
		return models.Frame{}, false, err
	}
	return resp.frame(), true, nil
}

// ProcessResponse decodes the same shape as a streamed chunk.
func (a *Adapter) ProcessResponse(body []byte) (models.Frame, error) {
	payload, err := a.DecodeBody(body)
	if err != nil {
		return models.Frame{}, err
	}

	var resp generateResponse
	if err := base.Unmarshal(payload, &resp); err != nil {
		return models.Frame{}, err
	}
	return resp.frame(), nil
}
