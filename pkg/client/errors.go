package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/cratesio-client/pkg/types"
)

// Sentinel kinds for errors.Is. Every error returned by a request carries
// exactly one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAPI              = errors.New("api error")
	ErrTransport        = errors.New("transport error")

	// ErrNoVersions is returned by FullCrate for a crate without versions.
	ErrNoVersions = errors.New("crate has no versions")
)

// NotFoundError is returned for a 404 response.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PermissionDeniedError is returned for a 403 response. Reason is the raw body.
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

// Is matches ErrPermissionDenied.
func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }

// APIError is a domain error reported by the registry inside a 2xx envelope.
type APIError struct {
	Errors []types.APIErrorDetail
}

func (e *APIError) Error() string {
	details := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		details = append(details, d.Detail)
	}
	return "api error: " + strings.Join(details, "; ")
}

// Is matches ErrAPI.
func (e *APIError) Is(target error) bool { return target == ErrAPI }

// TransportError covers network failures, undecodable bodies and any
// non-2xx status that has no dedicated error.
type TransportError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
