// Package http serves the JSON API used by the invoice builder.
//
// This file implements the Builder Pattern for JSON responses and the
// mapping of domain errors to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"facturepro/internal/core"
	"facturepro/internal/services"
	"facturepro/internal/storage"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode JSON response", "error", err, "status", b.statusCode)
	}
}

// StatusCode returns the status the response will be written with.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// ValidationDetail describes one rejected request field.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error     string             `json:"error"`
	Details   []ValidationDetail `json:"details,omitempty"`
	RequestID string             `json:"requestId,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(&ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
		Header("Retry-After", "60")
}

// MethodNotAllowedError creates a 405 response listing the allowed methods.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}

// ValidationErrorResponse lists every rejected field of a request.
func ValidationErrorResponse(errs validator.ValidationErrors) *JSONResponseBuilder {
	details := make([]ValidationDetail, 0, len(errs))
	for _, e := range errs {
		details = append(details, ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(&ErrorBody{Error: "request validation failed", Details: details})
}

var domainValidationErrors = []error{
	core.ErrInvalidDate,
	core.ErrEmptyDescription,
	core.ErrEmptyInvoiceNumber,
	core.ErrEmptyClient,
	core.ErrNoLines,
	core.ErrInvalidVATNumber,
	core.ErrInvalidIBAN,
	core.ErrInvalidInterval,
	core.ErrMissingClientEmail,
	core.ErrDueBeforeIssue,
	core.ErrEmptyCompanyName,
	core.ErrInvalidVATRate,
	core.ErrInvalidDefaultAmount,
	services.ErrInvalidPDF,
}

// errorResponseFor maps an error returned by a handler dependency to its
// response. Unknown errors become an opaque 500.
func errorResponseFor(err error) *JSONResponseBuilder {
	var validationErrs validator.ValidationErrors
	var malformed *malformedRequestError

	switch {
	case errors.As(err, &malformed):
		return BadRequestError(malformed.Error())
	case errors.As(err, &validationErrs):
		return ValidationErrorResponse(validationErrs)
	case errors.Is(err, storage.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrInvalidStatusChange), errors.Is(err, services.ErrInvoiceCancelled):
		return ConflictError(err.Error())
	case errors.Is(err, services.ErrDeliveryUnavailable):
		return ErrorResponse(http.StatusServiceUnavailable, err.Error())
	}
	for _, target := range domainValidationErrors {
		if errors.Is(err, target) {
			return UnprocessableEntityError(err.Error())
		}
	}
	return InternalServerError("internal error")
}
