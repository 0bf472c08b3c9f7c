package internal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrChatNotFound is returned when a chat record does not exist in storage
	ErrChatNotFound = errors.New("chat not found")
	// ErrStreamClosed is returned by a stream that was closed locally
	ErrStreamClosed = errors.New("stream closed")
)

// StorageError represents an error reading or writing the key/value store
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents an error decoding persisted or streamed data
type ParseError struct {
	Source string
	Key    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s:%s]: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// APIError represents a failed backend request. StatusCode is zero when the
// request never produced a response.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api error [%s]: %v", e.Op, e.Err)
	}
	if e.Detail == "" {
		return fmt.Sprintf("api error [%s]: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("api error [%s]: status %d: %s", e.Op, e.StatusCode, e.Detail)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StreamError wraps a failure tied to one stream
type StreamError struct {
	StreamID string
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.StreamID, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ValidationError lists the fields of a form that are missing or invalid
type ValidationError struct {
	Form    string
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("%s: please fill in all required fields (%s)", e.Form, strings.Join(parts, "; "))
}

// ExportError represents an error writing an export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s:%s]: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
