package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		code   string
	}{
		{Validation("bad input"), http.StatusBadRequest, CodeValidation},
		{Authentication("nope"), http.StatusUnauthorized, CodeAuthentication},
		{Authorization("forbidden"), http.StatusForbidden, CodeAuthorization},
		{NotFound("Itinerary"), http.StatusNotFound, CodeNotFound},
		{Conflict("duplicate"), http.StatusConflict, CodeConflict},
		{RateLimited(""), http.StatusTooManyRequests, CodeRateLimit},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.Status, tc.code)
		assert.Equal(t, tc.code, tc.err.Code)
		assert.NotEmpty(t, tc.err.Message)
	}
}

func TestNotFoundMessage(t *testing.T) {
	assert.Equal(t, "Itinerary not found", NotFound("Itinerary").Message)
}

func TestAuthenticationDefaultMessage(t *testing.T) {
	assert.Equal(t, "Authentication required", Authentication("").Message)
}

func TestFromPassesThrough(t *testing.T) {
	orig := Conflict("already exists")
	got := From(orig)
	assert.Equal(t, orig, got)
}

func TestFromUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("service layer: %w", NotFound("User"))
	got := From(wrapped)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, CodeNotFound, got.Code)
}

func TestFromUnknownBecomesInternal(t *testing.T) {
	got := From(errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, CodeInternal, got.Code)
	// raw detail must not leak into the client-facing message
	assert.NotContains(t, got.Message, "pq:")
}
