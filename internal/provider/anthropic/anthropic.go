package anthropic

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"aichat/internal/models"
	"aichat/internal/provider"
	"aichat/internal/provider/base"
	"aichat/internal/upload"
)

// APIVersion is sent in the anthropic-version header.
const APIVersion = "2023-06-01"

// Accepted lists the binary types the messages API accepts inline.
var Accepted = []string{"application/pdf", "image/jpeg", "image/png", "image/gif", "image/webp"}

// Adapter speaks the Anthropic messages API.
type Adapter struct {
	*base.Adapter
}

// New returns the Anthropic adapter for p.
func New(p *provider.Profile) provider.Adapter {
	return &Adapter{Adapter: base.New(p)}
}

type contentBlock struct {
	Type   string        `json:"type"`
	Text   *string       `json:"text,omitempty"`
	Source *binarySource `json:"source,omitempty"`
}

type binarySource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    models.Role    `json:"role"`
	Content []contentBlock `json:"content"`
}

func textBlock(text string) contentBlock {
	return contentBlock{Type: "text", Text: &text}
}

// PrepareMessage builds content blocks: one text block per text upload, a
// name block followed by an image or document block per binary upload, and
// the prompt last.
func (a *Adapter) PrepareMessage(role models.Role, prompt string, uploads []models.Upload) (json.RawMessage, error) {
	blocks := make([]contentBlock, 0, len(uploads)*2+1)
	for _, u := range uploads {
		switch {
		case upload.IsText(u):
			blocks = append(blocks, textBlock(upload.TextBlock(u)))
		case upload.Accepts(u.MIME, Accepted):
			kind := "document"
			if strings.HasPrefix(u.MIME, "image/") {
				kind = "image"
			}
			blocks = append(blocks, textBlock(u.Name), contentBlock{
				Type: kind,
				Source: &binarySource{
					Type:      "base64",
					MediaType: u.MIME,
					Data:      base64.StdEncoding.EncodeToString(u.Content),
				},
			})
		default:
			return nil, provider.NewUnsupportedUpload(u, a.Vendor)
		}
	}
	blocks = append(blocks, textBlock(prompt))

	return base.Marshal(message{Role: role, Content: blocks})
}

// Headers authenticates with x-api-key.
func (a *Adapter) Headers(apiKey string) http.Header {
	h := http.Header{}
	if apiKey != "" {
		h.Set("x-api-key", apiKey)
	}
	h.Set("anthropic-version", APIVersion)
	return h
}

type usageBlock struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type streamEvent struct {
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage usageBlock `json:"usage"`
	} `json:"message"`
	Usage usageBlock `json:"usage"`
}

// ProcessChunk reads delta.text. Input tokens arrive with message_start,
// output tokens with message_delta.
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
		Content:      ev.Delta.Text,
		InputTokens:  ev.Message.Usage.InputTokens,
		OutputTokens: ev.Usage.OutputTokens,
	}, true, nil
}

type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage usageBlock `json:"usage"`
}

// ProcessResponse reads content[0].text and usage.
func (a *Adapter) ProcessResponse(body []byte) (models.Frame, error) {
	payload, err := a.DecodeBody(body)
	if err != nil {
		return models.Frame{}, err
	}

	var resp response
	if err := base.Unmarshal(payload, &resp); err != nil {
		return models.Frame{}, err
	}

	f := models.Frame{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	if len(resp.Content) > 0 {
		f.Content = resp.Content[0].Text
	}
	return f, nil
}
