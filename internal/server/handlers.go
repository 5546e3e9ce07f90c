package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"aichat/internal/chat"
	"aichat/internal/models"
)

type statusResponse struct {
	Status string `json:"status"`
}

var statusOK = statusResponse{Status: "OK"}

type providerView struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	APIKey bool           `json:"apikey"`
	Models []models.Model `json:"models"`
}

type configView struct {
	Providers []providerView  `json:"providers"`
	Themes    []string        `json:"themes"`
	Toggles   map[string]bool `json:"toggles"`
}

type historyResponse struct {
	Status string `json:"status"`
	chat.HistoryView
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleConfig publishes the client configuration. Keys are reported by
// presence only.
func (s *Server) handleConfig(c echo.Context) error {
	profiles := s.chat.Registry().Profiles()
	view := configView{
		Providers: make([]providerView, 0, len(profiles)),
		Themes:    s.cfg.Themes,
		Toggles:   s.cfg.Toggles,
	}
	if view.Themes == nil {
		view.Themes = []string{}
	}
	if view.Toggles == nil {
		view.Toggles = map[string]bool{}
	}
	for _, p := range profiles {
		view.Providers = append(view.Providers, providerView{
			ID:     p.ID,
			Name:   p.DisplayName,
			APIKey: p.HasConfiguredKey(),
			Models: p.Catalogue(),
		})
	}
	return c.JSON(http.StatusOK, map[string]configView{"config": view})
}

func (s *Server) handleChat(c echo.Context) error {
	uploads, err := readUploads(c, s.cfg.Server.MaxUploadBytes)
	if err != nil {
		return err
	}

	t := target(c)
	req := chat.SendRequest{
		Session:  t.Session,
		Provider: t.Provider,
		Model:    t.Model,
		Text:     c.FormValue("text"),
		Uploads:  uploads,
		APIKey:   c.Request().Header.Get("apikey"),
		Stream:   queryFlag(c, "stream"),
		Reset:    queryFlag(c, "reset"),
	}

	sink, err := newSSESink(c)
	if err != nil {
		return err
	}

	// Failures are already reported on the stream.
	_ = s.chat.Send(c.Request().Context(), req, sink)
	return nil
}

func (s *Server) handleUpload(c echo.Context) error {
	uploads, err := readUploads(c, s.cfg.Server.MaxUploadBytes)
	if err != nil {
		return err
	}
	if len(uploads) == 0 {
		return requestError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: "No file could be accepted.",
			Type:    "invalid_request_error",
		}
	}

	if err := s.chat.SetUploads(c.Request().Context(), target(c), uploads); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, statusOK)
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.chat.Reset(c.Request().Context(), target(c)); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, statusOK)
}

func (s *Server) handleHistory(c echo.Context) error {
	view, err := s.chat.History(c.Request().Context(), target(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, historyResponse{Status: "OK", HistoryView: view})
}

func (s *Server) handleDownload(c echo.Context) error {
	export, err := s.chat.Markdown(c.Request().Context(), target(c), s.now())
	if err != nil {
		return toHTTPError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename))
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", export.Body)
}

func target(c echo.Context) chat.Target {
	return chat.Target{
		Session:  sessionID(c),
		Provider: strings.TrimSpace(c.QueryParam("provider")),
		Model:    strings.TrimSpace(c.QueryParam("model")),
	}
}

func queryFlag(c echo.Context, name string) bool {
	v, err := strconv.ParseBool(c.QueryParam(name))
	return err == nil && v
}
