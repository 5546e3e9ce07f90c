package server

import (
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"aichat/internal/models"
)

const (
	sessionCookieName = "aichat_session"
	sessionContextKey = "aichat.session"
	sessionCookieAge  = 30 * 24 * 60 * 60
)

// Multipart field names accepted for attachments.
var uploadFields = []string{"files[]", "files"}

// sessionCookie attaches the session handle to the context, issuing a new
// one when the client has none or sends something that is not a UUID.
func sessionCookie(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := ""
		if cookie, err := c.Cookie(sessionCookieName); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			c.SetCookie(&http.Cookie{
				Name:     sessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   sessionCookieAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(sessionContextKey, id)
		return next(c)
	}
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionContextKey).(string)
	return id
}

// readUploads collects the attached files. Files larger than limit are
// skipped; a request that is not multipart carries no uploads.
func readUploads(c echo.Context, limit int64) ([]models.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("Invalid multipart payload: %v.", err),
			Type:    "invalid_request_error",
		}
	}
	defer form.RemoveAll()

	var uploads []models.Upload
	for _, field := range uploadFields {
		for _, fh := range form.File[field] {
			if limit > 0 && fh.Size > limit {
				continue
			}
			u, err := readUpload(fh, limit)
			if err != nil {
				return nil, err
			}
			if u != nil {
				uploads = append(uploads, *u)
			}
		}
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader, limit int64) (*models.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	if limit > 0 && int64(len(content)) > limit {
		return nil, nil
	}

	return &models.Upload{
		Name:    html.EscapeString(filepath.Base(fh.Filename)),
		MIME:    detectMIME(fh.Header.Get("Content-Type"), content),
		Content: content,
	}, nil
}

// detectMIME prefers the declared part type and sniffs the content when the
// client sent none or a generic one. Parameters are dropped.
func detectMIME(declared string, content []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	sniffed := http.DetectContentType(content)
	if mt, _, err := mime.ParseMediaType(sniffed); err == nil {
		return mt
	}
	return sniffed
}
