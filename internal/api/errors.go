package api

import (
	"errors"
	"net/http"

	"duck-restfdw/internal/domain"
)

// HTTPStatusFromDomainError maps domain errors to HTTP status codes.
// Failures of the remote API surface as 502.
func HTTPStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var unsupported *domain.UnsupportedOperationError
	var transportErr *domain.TransportError
	var statusErr *domain.HTTPStatusError
	var parseErr *domain.ParseError
	var schemaErr *domain.SchemaError
	var projErr *domain.ProjectionError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unsupported):
		return http.StatusMethodNotAllowed
	case errors.As(err, &transportErr), errors.As(err, &statusErr),
		errors.As(err, &parseErr), errors.As(err, &schemaErr), errors.As(err, &projErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
