package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"aichat/internal/chat"
	"aichat/internal/provider"
	"aichat/internal/session"
)

type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func writeError(c echo.Context, status int, message, errType string) error {
	return c.JSON(status, errorBody{Error: message, Type: errType})
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message), "invalid_request_error")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "Internal server error.", "server_error")
}

// toHTTPError maps chat service failures on administrative routes.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	var cfgErr *provider.ConfigurationError
	if errors.As(err, &cfgErr) || errors.Is(err, session.ErrInvalidKey) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: chat.UserMessage(err),
			Type:    "invalid_request_error",
		}
	}

	var authErr *provider.AuthError
	if errors.As(err, &authErr) {
		return requestError{
			Status:  http.StatusUnauthorized,
			Message: chat.UserMessage(err),
			Type:    "authentication_error",
		}
	}

	return requestError{
		Status:  http.StatusInternalServerError,
		Message: "Session storage is unavailable.",
		Type:    "server_error",
	}
}
