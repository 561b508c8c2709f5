package util

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyHelpers(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", NewSessionExpired("STAFF"))
	assert.True(t, IsSessionExpired(wrapped))
	assert.False(t, IsTransport(wrapped))

	mismatch := NewRoleMismatch("CUSTOMER", "STAFF")
	assert.True(t, IsRoleMismatch(mismatch))
	de := ToDomainError(mismatch)
	require.NotNil(t, de)
	assert.Equal(t, http.StatusForbidden, de.HTTPStatus)
	assert.Equal(t, "STAFF", de.Details["redirect"])

	assert.True(t, IsUnauthenticated(NewUnauthenticated("ADMIN")))
}

func TestTransportErrorUnwraps(t *testing.T) {
	err := NewTransportError("refresh call failed", context.DeadlineExceeded)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "refresh call failed")
}

func TestToDomainErrorFallsBackToInternal(t *testing.T) {
	de := ToDomainError(fmt.Errorf("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}
