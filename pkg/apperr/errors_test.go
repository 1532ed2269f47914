package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", InvalidInput("URLs array is required"), http.StatusBadRequest},
		{"taken", New(ErrShortcodeTaken, "taken"), http.StatusConflict},
		{"duplicate wrapped", fmt.Errorf("create: %w", ErrDuplicateKey), http.StatusConflict},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"gone", New(ErrGone, "Short URL has expired"), http.StatusGone},
		{"store unavailable", fmt.Errorf("%w: %w", ErrStoreUnavailable, context.DeadlineExceeded), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Invalid URL: ftp://x", PublicMessage(InvalidInput("Invalid URL: ftp://x")))
	assert.Equal(t, "Short URL not found", PublicMessage(fmt.Errorf("find: %w", ErrNotFound)))
	assert.Equal(t, "Short URL has expired", PublicMessage(ErrGone))

	// Детали ошибки хранилища не должны попадать клиенту
	storeErr := Wrap(ErrStoreUnavailable, "postgres down", errors.New("dial tcp 10.0.0.1:5432"))
	assert.Equal(t, "Internal server error", PublicMessage(storeErr))
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("nil pointer")))
	assert.Empty(t, PublicMessage(nil))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrStoreUnavailable, "append click", cause)

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "append click: disk full", err.Error())
}
