package models

// Role identifies the author of a conversational message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Upload is a file attached to a turn.
type Upload struct {
	Name    string `json:"name"`
	MIME    string `json:"mime"`
	Content []byte `json:"content"`
}

// Frame is one decoded unit of vendor output. Zero token counts mean the
// vendor did not report any for this unit.
type Frame struct {
	Content      string `json:"content,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// HistoryEntry is the display form of a single message.
type HistoryEntry struct {
	Role   Role   `json:"role"`
	Prompt string `json:"prompt"`
}

// Model identifies a configured model with provider metadata.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
	Provider    string `json:"provider"`
}
