// Package api holds the JSON envelope shared by the insightd HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloo-solutions/insightd/internal/domain"
)

// ErrInvalidBody is returned by DecodeJSON for a body that is not the
// expected JSON object.
var ErrInvalidBody = domain.NewDomainError(domain.ErrCodeValidation, "invalid request body")

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DecodeJSON reads an optional JSON object into v. An empty body leaves v
// untouched; unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case isTooLarge(err):
			return err
		default:
			return domain.Wrap(ErrInvalidBody, err)
		}
	}
	if dec.More() {
		return domain.Wrap(ErrInvalidBody, fmt.Errorf("unexpected data after object"))
	}
	return nil
}

// StatusFor maps an error, wrapped or not, to the HTTP status it is
// reported with.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if isTooLarge(err) {
		return http.StatusRequestEntityTooLarge
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation, domain.ErrCodeInvalidOperation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeConflict:
		return http.StatusConflict
	case domain.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes err with its mapped status. Errors outside the domain
// vocabulary are reported as a bare 500 so internals do not leak.
func HandleError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	switch {
	case status == http.StatusRequestEntityTooLarge:
		Error(w, status, "request body too large")
	case status == http.StatusInternalServerError && !isDomain(err):
		Error(w, status, http.StatusText(status))
	default:
		Error(w, status, err.Error())
	}
}

func isDomain(err error) bool {
	var domainErr *domain.DomainError
	return errors.As(err, &domainErr)
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
