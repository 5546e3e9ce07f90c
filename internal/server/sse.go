package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"aichat/internal/models"
	"aichat/internal/usage"
)

func writeSSEEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return fmt.Errorf("write SSE event name: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}

type doneEvent struct {
	Done bool       `json:"done"`
	Info usage.Info `json:"info"`
}

type errorEvent struct {
	Error string `json:"error"`
}

type abortedEvent struct {
	Aborted bool `json:"aborted"`
}

// sseSink streams turn output as unnamed SSE data events.
type sseSink struct {
	w       io.Writer
	flusher http.Flusher
}

func newSSESink(c echo.Context) (*sseSink, error) {
	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return nil, requestError{
			Status:  http.StatusInternalServerError,
			Message: "Server does not support streaming responses.",
			Type:    "server_error",
		}
	}

	// Streamed replies are not bound by the server write timeout.
	if err := http.NewResponseController(writer).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return nil, fmt.Errorf("clear write deadline: %w", err)
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseSink{w: writer, flusher: flusher}, nil
}

func (s *sseSink) send(payload any) error {
	if err := writeSSEEvent(s.w, "", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Frame(f models.Frame) error {
	return s.send(f)
}

func (s *sseSink) Done(info usage.Info) error {
	return s.send(doneEvent{Done: true, Info: info})
}

func (s *sseSink) Fail(message string) error {
	return s.send(errorEvent{Error: message})
}

func (s *sseSink) Aborted() error {
	return s.send(abortedEvent{Aborted: true})
}
