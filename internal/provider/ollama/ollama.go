package ollama

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"aichat/internal/models"
	"aichat/internal/provider"
	"aichat/internal/provider/base"
	"aichat/internal/upload"
)

// Accepted lists the image types passed to multimodal models.
var Accepted = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Adapter speaks the Ollama chat API, which streams bare JSON lines.
type Adapter struct {
	*base.Adapter
}

// New returns the Ollama adapter for p.
func New(p *provider.Profile) provider.Adapter {
	a := &Adapter{Adapter: base.New(p)}
	a.StreamPrefix = ""
	return a
}

type message struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
	Images  []string    `json:"images,omitempty"`
}

// PrepareMessage inlines text uploads and lists image names in the content,
// sending the images themselves base64 encoded.
func (a *Adapter) PrepareMessage(role models.Role, prompt string, uploads []models.Upload) (json.RawMessage, error) {
	var (
		text   strings.Builder
		names  []string
		images []string
	)
	for _, u := range uploads {
		switch {
		case upload.IsText(u):
			text.WriteString(upload.TextBlock(u))
		case upload.Accepts(u.MIME, Accepted):
			names = append(names, u.Name)
			images = append(images, base64.StdEncoding.EncodeToString(u.Content))
		default:
			return nil, provider.NewUnsupportedUpload(u, a.Vendor)
		}
	}

	var b strings.Builder
	if text.Len() > 0 {
		b.WriteString(text.String())
		b.WriteString("\n")
	}
	if len(names) > 0 {
		b.WriteString("file names: ")
		b.WriteString(strings.Join(names, ","))
		b.WriteString("\n\n")
	}
	b.WriteString(prompt)

	return base.Marshal(message{Role: role, Content: b.String(), Images: images})
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (r chatResponse) frame() models.Frame {
	return models.Frame{
		Content:      r.Message.Content,
		InputTokens:  r.PromptEvalCount,
		OutputTokens: r.EvalCount,
	}
}

// ProcessChunk reads message.content; the final line carries the counts.
func (a *Adapter) ProcessChunk(frame string) (models.Frame, bool, error) {
	payload, ok, err := a.Decode(frame)
	if !ok || err != nil {
		return models.Frame{}, false, err
	}

	var resp chatResponse
	if err := base.Unmarshal(payload, &resp); err != nil {
		return models.Frame{}, false, err
	}
	return resp.frame(), true, nil
}

// ProcessResponse reads message.content and the eval counts.
func (a *Adapter) ProcessResponse(body []byte) (models.Frame, error) {
	payload, err := a.DecodeBody(body)
	if err != nil {
		return models.Frame{}, err
	}

	var resp chatResponse
	if err := base.Unmarshal(payload, &resp); err != nil {
		return models.Frame{}, err
	}
	return resp.frame(), nil
}
