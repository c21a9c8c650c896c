package client

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Sternrassler/cas-client/pkg/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		err      error
		expected ErrorClass
	}{
		{name: "network error", status: 0, err: errors.New("connection refused"), expected: ErrorClassNetwork},
		{name: "client error 404", status: 404, expected: ErrorClassClient},
		{name: "client error 403", status: 403, expected: ErrorClassClient},
		{name: "server error 500", status: 500, expected: ErrorClassServer},
		{name: "server error 503", status: 503, expected: ErrorClassServer},
		{name: "success 200", status: 200, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.status, tt.err); got != tt.expected {
				t.Errorf("classify(%d, %v) = %q, want %q", tt.status, tt.err, got, tt.expected)
			}
		})
	}
}

func TestFetchFailure_Error(t *testing.T) {
	tests := []struct {
		name     string
		failure  *FetchFailure
		expected string
	}{
		{
			name: "server error",
			failure: &FetchFailure{
				StatusCode: 500,
				URL:        "http://api.test/transfers/",
				Method:     "GET",
				Class:      ErrorClassServer,
				Message:    "Internal server error",
			},
			expected: "CAS server error (status 500): GET http://api.test/transfers/: Internal server error",
		},
		{
			name: "client error with wrapped error",
			failure: &FetchFailure{
				StatusCode: 403,
				URL:        "http://api.test/users/",
				Method:     "GET",
				Class:      ErrorClassClient,
				Message:    "Forbidden",
				Err:        errors.New("denied"),
			},
			expected: "CAS client error (status 403): GET http://api.test/users/: Forbidden: denied",
		},
		{
			name: "network error",
			failure: &FetchFailure{
				URL:    "http://api.test/cases/",
				Method: "POST",
				Class:  ErrorClassNetwork,
				Err:    errors.New("connection refused"),
			},
			expected: "CAS network error: POST http://api.test/cases/: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.failure.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetchFailure_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	failure := &FetchFailure{StatusCode: 500, Class: ErrorClassServer, Err: wrappedErr}

	if !errors.Is(failure, wrappedErr) {
		t.Error("errors.Is should work with wrapped error")
	}

	var target *FetchFailure
	if !errors.As(error(failure), &target) || target.StatusCode != 500 {
		t.Error("errors.As should expose the FetchFailure")
	}
}

func TestValidationFailure(t *testing.T) {
	failure := &ValidationFailure{Field: "session", Reason: "credential required", Err: session.ErrMissingCredential}

	if got, want := failure.Error(), "validation failed: session: credential required: missing credential"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(failure, session.ErrMissingCredential) {
		t.Error("errors.Is should reach the session sentinel")
	}

	if got, want := Invalid("rating", "must be between 1 and 5").Error(), "validation failed: rating: must be between 1 and 5"; got != want {
		t.Errorf("Invalid().Error() = %q, want %q", got, want)
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{name: "detail body", status: 403, body: `{"detail": "You do not have permission."}`, expected: "You do not have permission."},
		{name: "empty body", status: 500, body: "", expected: "Internal Server Error"},
		{name: "field errors", status: 400, body: `{"reason": ["This field is required."]}`, expected: `{"reason": ["This field is required."]}`},
		{name: "html body collapsed", status: 502, body: "<html>\n  <body>Bad gateway</body>\n</html>", expected: "<html> <body>Bad gateway</body> </html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failureMessage(tt.status, []byte(tt.body)); got != tt.expected {
				t.Errorf("failureMessage() = %q, want %q", got, tt.expected)
			}
		})
	}

	long := failureMessage(500, []byte(strings.Repeat("x", 500)))
	if len(long) != maxMessageLen+3 {
		t.Errorf("len(long) = %d, want %d", len(long), maxMessageLen+3)
	}

	amharic := failureMessage(400, []byte(strings.Repeat("ጉዳዩ ተዘግቷል። ", 60)))
	if !utf8.ValidString(amharic) {
		t.Errorf("truncated message is not valid UTF-8: %q", amharic)
	}
	if n := utf8.RuneCountInString(amharic); n != maxMessageLen+3 {
		t.Errorf("rune count = %d, want %d", n, maxMessageLen+3)
	}
}
