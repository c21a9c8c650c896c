package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// maxMessageLen bounds the response text carried in a FetchFailure, in runes.
const maxMessageLen = 200

// FetchFailure is returned for any non-success status or transport failure.
// StatusCode is 0 for transport failures.
type FetchFailure struct {
	StatusCode int
	URL        string
	Method     string
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface. The text always carries the status
// code and the URL so it can be shown to the user as is.
func (e *FetchFailure) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("CAS %s error: %s %s: %v", e.Class, e.Method, e.URL, e.Err)
		}
		return fmt.Sprintf("CAS %s error: %s %s: %s", e.Class, e.Method, e.URL, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("CAS %s error (status %d): %s %s: %s: %v",
			e.Class, e.StatusCode, e.Method, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("CAS %s error (status %d): %s %s: %s",
		e.Class, e.StatusCode, e.Method, e.URL, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// ValidationFailure is returned when a precondition fails before any
// request is sent.
type ValidationFailure struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ValidationFailure) Error() string {
	msg := "validation failed"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ValidationFailure) Unwrap() error {
	return e.Err
}

// Invalid is a shorthand for building a ValidationFailure.
func Invalid(field, reason string) *ValidationFailure {
	return &ValidationFailure{Field: field, Reason: reason}
}

// classify maps a status code or transport error to an ErrorClass.
func classify(status int, err error) ErrorClass {
	switch {
	case err != nil:
		return ErrorClassNetwork
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// failureMessage extracts a readable message from an error response body.
// DRF-style {"detail": "..."} bodies yield the detail; other bodies are
// trimmed; an empty body falls back to the status text.
func failureMessage(status int, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return http.StatusText(status)
	}

	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
		return detail.Detail
	}

	msg := strings.Join(strings.Fields(string(body)), " ")
	if utf8.RuneCountInString(msg) > maxMessageLen {
		msg = string([]rune(msg)[:maxMessageLen]) + "..."
	}
	return msg
}
