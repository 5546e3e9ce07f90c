package provider

import (
	"errors"
	"fmt"
	"net/http"

	"aichat/internal/models"
)

// ErrUnknownProvider indicates the requested provider is not configured.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrUnknownModel indicates the requested model is not configured for a provider.
var ErrUnknownModel = errors.New("unknown model")

// ConfigurationError reports a request that names an unknown provider or
// model, or a provider whose configuration cannot serve it.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string { return e.Message }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// AuthError reports a provider that requires an API key nobody supplied.
type AuthError struct {
	Provider string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("The API key for %s is not set", e.Provider)
}

// UnsupportedUploadError reports an upload the active vendor cannot accept.
type UnsupportedUploadError struct {
	File   string
	MIME   string
	Vendor string
}

func (e *UnsupportedUploadError) Error() string {
	return fmt.Sprintf("File: %s [%s] is not supported in %s", e.File, e.MIME, e.Vendor)
}

// NewUnsupportedUpload builds an UnsupportedUploadError for u.
func NewUnsupportedUpload(u models.Upload, vendor string) *UnsupportedUploadError {
	return &UnsupportedUploadError{File: u.Name, MIME: u.MIME, Vendor: vendor}
}

// TransportError reports a failed HTTP exchange: a network failure or a
// non-2xx status.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string { return e.Message }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusMessage returns the generic message for a non-2xx status when the
// vendor did not explain the failure itself.
func StatusMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Invalid API key."
	case http.StatusTooManyRequests:
		return "Too many requests."
	case http.StatusBadRequest:
		return "Invalid request format."
	case http.StatusNotFound:
		return "Endpoint or model not found."
	default:
		return "Unable to get response from API."
	}
}

// DecodeError reports a frame or response body that is not valid JSON or
// does not match the vendor's shape.
type DecodeError struct {
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "invalid response from API"
	}
	return fmt.Sprintf("invalid response from API: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// VendorError carries an error payload returned by the vendor API.
type VendorError struct {
	Vendor  string
	Message string
}

func (e *VendorError) Error() string { return e.Message }
