// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON envelope
// responses. Every API reply is either {"success":true,"data":...} or
// {"success":false,"error":"...","code":"..."}.

package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"timetrack/internal/core"
	"timetrack/internal/log"
)

// envelope is the wire shape shared by every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// dataEnvelope keeps "data" present even when it is null, so a GET of the
// active timer can answer {"success":true,"data":null}.
type dataEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets a success payload.
func (b *JSONResponseBuilder) Data(data any) *JSONResponseBuilder {
	b.payload = dataEnvelope{Success: true, Data: data}
	return b
}

// Error sets a failure payload with a machine-readable code.
func (b *JSONResponseBuilder) Error(message, code string) *JSONResponseBuilder {
	b.payload = envelope{Success: false, Error: message, Code: code}
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)

	if b.payload == nil {
		b.payload = dataEnvelope{Success: true}
	}
	_ = json.NewEncoder(w).Encode(b.payload)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data any) {
	NewJSONResponse().Data(data).Write(w)
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data any) {
	NewJSONResponse().Status(http.StatusCreated).Data(data).Write(w)
}

// ErrorResponse creates a failure response with the given status.
func ErrorResponse(statusCode int, message, code string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Error(message, code)
}

const (
	CodeActiveTimerExists = "ACTIVE_TIMER_EXISTS"
	CodeInternal          = "INTERNAL_SERVER_ERROR"
	CodeRateLimited       = "RATE_LIMITED"

	internalMessage = "An unexpected error occurred"
)

func entityCode(entity core.Entity, suffix string) string {
	return strings.ToUpper(string(entity)) + "_" + suffix
}

// classify maps an error to its status, code and client-facing message.
// fallback names the entity the route addresses when err carries none.
func classify(err error, fallback core.Entity) (status int, code, message string) {
	entity := core.EntityOf(err)
	if entity == "" {
		entity = fallback
	}

	switch core.KindOf(err) {
	case core.KindNotFound:
		return http.StatusNotFound, entityCode(entity, "NOT_FOUND"), err.Error()
	case core.KindValidation:
		return http.StatusBadRequest, entityCode(entity, "VALIDATION_ERROR"), err.Error()
	case core.KindActiveTimerExists:
		return http.StatusConflict, CodeActiveTimerExists, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternal, internalMessage
	}
}

// writeError is the single place domain errors become HTTP responses.
// Internal causes are logged and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, fallback core.Entity, err error) {
	status, code, message := classify(err, fallback)

	logger := log.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldErrorCode, code,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldErrorCode, code,
			log.FieldError, message)
	}

	ErrorResponse(status, message, code).Write(w)
}

// writeRateLimited answers a throttled request in the API envelope.
func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", CodeRateLimited).Write(w)
}
