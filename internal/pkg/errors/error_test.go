package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("load pass: %w", ErrNotFound), http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{Wrap(ErrInvalidInput, "count"), http.StatusBadRequest},
		{ErrExpired, http.StatusBadRequest},
		{ErrInactive, http.StatusBadRequest},
		{ErrConflict, http.StatusConflict},
		{ErrCooldown, http.StatusTooManyRequests},
		{fmt.Errorf("google delivery: %w", ErrNotConfigured), http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
	assert.Equal(t, "fallback", MessageOrDefault(nil, "fallback"))
}
