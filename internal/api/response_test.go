package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "value", result["key"])
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var result SuccessResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "123", data["id"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "invalid input", result.Error)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", domain.ErrInvalidPriority, http.StatusBadRequest},
		{"not found error", domain.ErrParentNotFound, http.StatusNotFound},
		{"conflict error", domain.ErrCycleInProgress, http.StatusConflict},
		{"wrapped conflict", fmt.Errorf("trigger: %w", domain.ErrCycleInProgress), http.StatusConflict},
		{"unavailable error", domain.Wrap(domain.ErrRegistryUnavailable, assert.AnError), http.StatusServiceUnavailable},
		{"invalid operation", domain.NewDomainError(domain.ErrCodeInvalidOperation, "nope"), http.StatusBadRequest},
		{"internal error", domain.NewDomainError(domain.ErrCodeInternalError, "internal"), http.StatusInternalServerError},
		{"unknown domain error", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"non-domain error", assert.AnError, http.StatusInternalServerError},
		{"body too large", fmt.Errorf("decode: %w", &http.MaxBytesError{Limit: 8}), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StatusFor(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrCycleInProgress)

	assert.Equal(t, http.StatusConflict, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "already in progress")
}

func TestHandleError_HidesInternals(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Internal Server Error", result.Error)
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Tier string `json:"tier"`
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty body", input: ""},
		{name: "object", input: `{"tier":"high"}`, want: "high"},
		{name: "malformed", input: `{"tier":`, wantErr: true},
		{name: "unknown field", input: `{"tier":"high","extra":1}`, wantErr: true},
		{name: "trailing data", input: `{"tier":"high"} {}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got body
			req := httptest.NewRequest(http.MethodPost, "/cycles", strings.NewReader(tt.input))
			err := DecodeJSON(req, &got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBody)
				assert.Equal(t, http.StatusBadRequest, StatusFor(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Tier)
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cycles", strings.NewReader(`{"tier":"critical"}`))
	req.Body = http.MaxBytesReader(w, req.Body, 4)

	var v map[string]string
	err := DecodeJSON(req, &v)
	require.Error(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusFor(err))
}
