package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidState, http.StatusConflict},
		{ErrInvalidAmount, http.StatusBadRequest},
		{ErrBelowMinimum, http.StatusBadRequest},
		{ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{ErrForbidden, http.StatusForbidden},
		{ErrInternalServer, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		err := NewAPIError(tt.code, "boom", nil)
		assert.Equal(t, tt.want, MapErrorToHTTPStatus(err))
	}

	assert.Equal(t, http.StatusInternalServerError, MapErrorToHTTPStatus(errors.New("plain error")))
}

func TestIs(t *testing.T) {
	err := NewAPIError(ErrInsufficientFunds, "withdrawable balance too low", nil)
	assert.True(t, Is(err, ErrInsufficientFunds))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(errors.New("plain"), ErrInsufficientFunds))
}
