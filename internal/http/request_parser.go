// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// bounded JSON decoding, RFC 3339 timestamps and list query parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"timetrack/internal/core"
)

const (
	maxBodyBytes = 1 << 20
	maxListLimit = 100
)

// decodeJSON reads a single JSON object from the request body into dst.
// Every failure is a validation error of entity.
func decodeJSON(w http.ResponseWriter, r *http.Request, entity core.Entity, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Validation(entity, "Request body is required.")
		case errors.As(err, &maxErr):
			return core.Validation(entity, "Request body is too large.")
		default:
			return core.Validation(entity, "Invalid JSON body.")
		}
	}
	if dec.More() {
		return core.Validation(entity, "Request body must contain a single JSON object.")
	}
	return nil
}

// parseTimestamp converts an optional RFC 3339 field. A nil input yields nil.
func parseTimestamp(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(*value))
	if err != nil {
		return nil, core.Validation(core.EntityTimeEntry, fmt.Sprintf("%s must be an RFC 3339 timestamp.", field))
	}
	return &t, nil
}

// parseLimit reads ?limit=, clamped to [1, maxListLimit]. Missing or invalid
// values return 0 so the service default applies.
func parseLimit(query url.Values) int {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// parsePeriod reads ?period=; unknown values fall back to day.
func parsePeriod(query url.Values) core.Period {
	return core.ParsePeriod(strings.ToLower(strings.TrimSpace(query.Get("period"))))
}

// sanitizeInput removes control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// sanitizePtr applies sanitizeInput to an optional field.
func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
