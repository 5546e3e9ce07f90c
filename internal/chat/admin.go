package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"aichat/internal/models"
	"aichat/internal/usage"
)

// Target names the session, provider and model an administrative call acts on.
type Target struct {
	Session  string
	Provider string
	Model    string
}

// HistoryView is the display history and usage of a session.
type HistoryView struct {
	Info    usage.Info            `json:"info"`
	History []models.HistoryEntry `json:"history"`
}

// History returns the display history of a session.
func (s *Service) History(ctx context.Context, t Target) (HistoryView, error) {
	_, sess, err := s.open(t.Session, t.Provider, t.Model)
	if err != nil {
		return HistoryView{}, err
	}

	h, err := sess.History(ctx)
	if err != nil {
		return HistoryView{}, err
	}
	info, err := sess.Info(ctx)
	if err != nil {
		return HistoryView{}, err
	}

	display := h.Display
	if display == nil {
		display = []models.HistoryEntry{}
	}
	return HistoryView{Info: info, History: display}, nil
}

// Reset clears a session.
func (s *Service) Reset(ctx context.Context, t Target) error {
	_, sess, err := s.open(t.Session, t.Provider, t.Model)
	if err != nil {
		return err
	}
	return sess.Reset(ctx)
}

// SetUploads stores attachments for the next turn.
func (s *Service) SetUploads(ctx context.Context, t Target, uploads []models.Upload) error {
	_, sess, err := s.open(t.Session, t.Provider, t.Model)
	if err != nil {
		return err
	}
	return sess.SetUploads(ctx, uploads)
}

// Export is a rendered conversation download.
type Export struct {
	Filename string
	Body     []byte
}

// Markdown renders the display history as a markdown document. User
// prompts become second-level headings.
func (s *Service) Markdown(ctx context.Context, t Target, now time.Time) (Export, error) {
	b, sess, err := s.open(t.Session, t.Provider, t.Model)
	if err != nil {
		return Export{}, err
	}
	h, err := sess.History(ctx)
	if err != nil {
		return Export{}, err
	}

	var md strings.Builder
	md.WriteString("# Conversation History\n\n")
	for _, entry := range h.Display {
		if entry.Role == models.RoleUser {
			md.WriteString("## ")
		}
		md.WriteString(entry.Prompt)
		md.WriteString("\n")
	}

	return Export{
		Filename: fmt.Sprintf("%s_%s.markdown", b.Profile.ID, now.Format("20060102_150405")),
		Body:     []byte(md.String()),
	}, nil
}
