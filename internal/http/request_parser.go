// Package http exposes the ledger over a JSON API.
//
// This file holds the helpers that turn query strings and request bodies into
// domain values, so handlers only deal with typed input.

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

	"homeledger/internal/ledger"
)

// maxBodyBytes bounds a single record submission.
const maxBodyBytes = 64 << 10

// errBadRequest marks input errors that are the caller's fault.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// ParseMonthParams reads year and month from the query. month may also be a
// full YYYY-MM value, in which case year is ignored. Missing values default
// to the month containing now; present but malformed values are an error.
func ParseMonthParams(query url.Values, now time.Time) (ledger.Month, error) {
	if v := strings.TrimSpace(query.Get("month")); strings.Contains(v, "-") {
		m, err := ledger.ParseMonth(v)
		if err != nil {
			return ledger.Month{}, badRequest("%v", err)
		}
		return m, nil
	}
	current := ledger.CurrentMonth(now)
	year, err := intParam(query, "year", current.Year)
	if err != nil {
		return ledger.Month{}, err
	}
	month, err := intParam(query, "month", int(current.Month))
	if err != nil {
		return ledger.Month{}, err
	}
	m, err := ledger.NewMonth(year, month)
	if err != nil {
		return ledger.Month{}, badRequest("%v", err)
	}
	return m, nil
}

// ParseYearParam reads year from the query, defaulting to the year of now.
func ParseYearParam(query url.Values, now time.Time) (int, error) {
	year, err := intParam(query, "year", now.Year())
	if err != nil {
		return 0, err
	}
	if year < 1 || year > 9999 {
		return 0, badRequest("year %d out of range", year)
	}
	return year, nil
}

func intParam(query url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return n, nil
}

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown fields, trailing data and oversized bodies are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return badRequest("content type %q is not application/json", ct)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return badRequest("body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return badRequest("empty body")
		default:
			return badRequest("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return badRequest("body must contain a single JSON object")
	}
	return nil
}
