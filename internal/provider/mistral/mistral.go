package mistral

import (
	"encoding/json"

	"aichat/internal/provider"
	"aichat/internal/provider/base"
)

// Adapter speaks the Mistral API. Only its error payloads differ from the
// default dialect.
type Adapter struct {
	*base.Adapter
}

// New returns the Mistral adapter for p.
func New(p *provider.Profile) provider.Adapter {
	a := &Adapter{Adapter: base.New(p)}
	a.ErrorFunc = decodeError
	return a
}

// decodeError handles {"object":"error","message":...} where message is a
// string or a validation detail object.
func decodeError(payload provider.Fields) string {
	if base.StringField(payload, "object") != "error" {
		return ""
	}
	if msg := base.StringField(payload, "message"); msg != "" {
		return msg
	}

	var detail struct {
		Detail []struct {
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(payload["message"], &detail); err == nil && len(detail.Detail) > 0 && detail.Detail[0].Msg != "" {
		return detail.Detail[0].Msg
	}
	return "Error from API"
}
