package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserError(t *testing.T) {
	err := NewUserError("owner is not set", ErrMissingConfig)

	var userErr *UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "owner is not set", userErr.UserMessage)
	assert.Equal(t, "owner is not set: missing configuration", err.Error())

	// The wrapped sentinel stays reachable for errors.Is checks.
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestUserErrorWithoutCause(t *testing.T) {
	err := &UserError{UserMessage: "nothing to report"}
	assert.Equal(t, "nothing to report", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}
