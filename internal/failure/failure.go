// Package failure defines the error taxonomy shared by the replay engine.
//
// Only a ConfigurationError is fatal to a run. Every other error is recovered
// by the worker that hit it and surfaces to operators through the execution
// log (status codes, pass/fail counts).
package failure

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a missing or malformed directive source, catalog
// or setting. It is raised before any worker starts.
type ConfigurationError struct {
	Source string
	Line   int
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("configuration error in %s line %d: %v", e.Source, e.Line, e.Err)
	}
	if e.Source != "" {
		return fmt.Sprintf("configuration error in %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Configf builds a ConfigurationError for source with a formatted cause.
func Configf(source string, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Source: source, Err: fmt.Errorf(format, args...)}
}

// AuthenticationError reports a failed login for a directive. The directive
// is skipped; the worker carries on.
type AuthenticationError struct {
	TestCaseID string
	User       string
	Err        error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s (user %q): %v", e.TestCaseID, e.User, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ServiceError reports a non-success outcome of a request.
//
// Pending is true when the service kept answering with the pending status
// until the retry budget ran out (a transient error); otherwise the status was
// a hard failure and was never retried.
type ServiceError struct {
	TestCaseID string
	StatusCode int
	Attempts   int
	Pending    bool
}

func (e *ServiceError) Error() string {
	if e.Pending {
		return fmt.Sprintf("%s still pending (status %d) after %d attempts", e.TestCaseID, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("%s failed with status %d", e.TestCaseID, e.StatusCode)
}

// ValidationError is a single problem found while validating a document.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// Addf adds a formatted error to the collection.
func (e *ValidationErrors) Addf(field, format string, args ...interface{}) {
	e.Add(field, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrOrNil returns e when it holds errors and nil otherwise.
func (e *ValidationErrors) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}
