package syndicate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPostID is returned by PostURL when a response carries none of the
// fields needed to build a public URL.
var ErrNoPostID = errors.New("post ID not found in response")

// MissingEnvError is returned when required configuration is missing.
type MissingEnvError struct {
	Provider  string
	Variables []string
}

func (e MissingEnvError) Error() string {
	if len(e.Variables) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Variables, ", "))
}

// ValidationError captures bad input caught before any network call.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// PlatformError reports a non-2xx response from a provider's API. Operation
// is the human prefix for the step that failed ("Failed to post message"),
// Message and Code carry whatever detail the platform reported.
type PlatformError struct {
	Provider   string
	StatusCode int
	StatusText string
	Operation  string
	Message    string
	Code       int
	HasCode    bool
}

func (e *PlatformError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s:", e.StatusCode, e.Operation)
	if e.StatusText != "" {
		sb.WriteString(" " + e.StatusText)
	}
	if e.Message != "" {
		if e.StatusText != "" {
			sb.WriteString("\n")
		} else {
			sb.WriteString(" ")
		}
		sb.WriteString(e.Message)
	}
	if e.HasCode {
		fmt.Fprintf(&sb, " (code: %d)", e.Code)
	}
	return sb.String()
}
