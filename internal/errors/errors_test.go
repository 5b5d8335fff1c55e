package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"orcacast/domain/core"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"unknown behavior", core.NewUnknownBehaviorError("breaching"), CodeNotFound, http.StatusNotFound},
		{"grid not found", fmt.Errorf("lookup: %w", core.ErrGridNotFound), CodeNotFound, http.StatusNotFound},
		{"invalid grid", core.NewInvalidGridError("time_hours", "must be >= 1"), CodeInvalidInput, http.StatusBadRequest},
		{"invalid coordinate", core.NewInvalidCoordinateError(100, 0), CodeInvalidInput, http.StatusBadRequest},
		{"sample count", core.NewInvalidSampleCountError(0), CodeInvalidInput, http.StatusBadRequest},
		{"missing covariate", core.NewMissingCovariateError("feeding", "sst_anomaly_c"), CodeValidationError, http.StatusUnprocessableEntity},
		{"not loaded", core.ErrNotLoaded, CodeUnavailable, http.StatusServiceUnavailable},
		{"bad equation file", core.NewEquationLoadError("feeding", "negative uncertainty"), CodeConfigInvalid, http.StatusUnprocessableEntity},
		{"no persistence", core.ErrNoPersistence, CodeUnavailable, http.StatusServiceUnavailable},
		{"canceled", fmt.Errorf("cell: %w", context.Canceled), CodeCanceled, http.StatusRequestTimeout},
		{"deadline", context.DeadlineExceeded, CodeCanceled, http.StatusRequestTimeout},
		{"anything else", stderrors.New("boom"), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromDomain(tt.err)
			assert.Equal(t, tt.code, GetCode(err))
			assert.Equal(t, tt.status, HTTPStatus(GetCode(err)))
			assert.True(t, stderrors.Is(err, tt.err), "cause stays reachable")
		})
	}
}

func TestFromDomainPassesAppErrorsThrough(t *testing.T) {
	original := InvalidInput("limit must be a positive integer")
	assert.Same(t, original, FromDomain(original))
	assert.Nil(t, FromDomain(nil))
}

func TestWrapKeepsCode(t *testing.T) {
	err := Wrap(NotFound("equation sheet"), "loading equations")
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.Equal(t, "loading equations: equation sheet not found", err.Error())

	err = Wrap(stderrors.New("eof"), "reading")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.Nil(t, Wrap(nil, "nothing"))

	wrapped := fmt.Errorf("outer: %w", ConfigInvalid("bad port"))
	assert.True(t, IsAppError(wrapped))
	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestExternalServiceError(t *testing.T) {
	cause := stderrors.New("502 from overpass")
	err := ExternalServiceError("overpass", cause)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err.Code))
	assert.ErrorIs(t, err, cause)
}
