package shared

import (
	"errors"
	"net/http"
)

// HTTPStatus maps a validation failure to 422, or 409 for duplicate origination.
func (e *ValidationError) HTTPStatus() int {
	if errors.Is(e.Err, ErrSourceAlreadyLinked) {
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}

// HTTPStatus maps configuration problems to 409.
func (e *ConfigurationError) HTTPStatus() int { return http.StatusConflict }

// HTTPStatus maps missing rows to 404.
func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }

// HTTPStatus maps exhausted retries to 503.
func (e *ConcurrencyError) HTTPStatus() int { return http.StatusServiceUnavailable }
