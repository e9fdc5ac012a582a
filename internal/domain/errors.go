// Package domain defines core types, interfaces, and errors for the REST foreign table adapter.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigError indicates a missing or invalid adapter option.
type ConfigError struct {
	Option  string
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// TransportError indicates the request never produced an HTTP response.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError indicates the remote API answered with a non-success status.
type HTTPStatusError struct {
	StatusCode int
	Body       string // truncated response body, for diagnostics
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote API returned HTTP %d: %s", e.StatusCode, e.Body)
}

// ParseError indicates a response body that is not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse response body: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError indicates a page-level field that is missing or has the wrong shape.
type SchemaError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// ProjectionError indicates a record that could not be converted to a row.
type ProjectionError struct {
	Column  string
	Message string
}

func (e *ProjectionError) Error() string { return e.Message }

// UnsupportedOperationError indicates a lifecycle operation the adapter never supports.
type UnsupportedOperationError struct {
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s on foreign table is not supported", e.Operation)
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfig creates a ConfigError for the named option.
func ErrConfig(option, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Option: option, Message: fmt.Sprintf(format, args...)}
}

// ErrSchema creates a SchemaError for the named page-level field.
func ErrSchema(field, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrProjection creates a ProjectionError for the named column.
func ErrProjection(column, format string, args ...interface{}) *ProjectionError {
	return &ProjectionError{Column: column, Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupported creates an UnsupportedOperationError for the named operation.
func ErrUnsupported(operation string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Operation: operation}
}
