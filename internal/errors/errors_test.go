package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsSetCodes(t *testing.T) {
	tests := []struct {
		name  string
		err   *AppError
		code  ErrorCode
		check func(error) bool
	}{
		{name: "validation", err: Validation("bad input"), code: ErrCodeValidation, check: IsValidation},
		{name: "authentication", err: Authentication("bad creds"), code: ErrCodeAuthentication, check: IsAuthentication},
		{name: "transient", err: Transient("try later"), code: ErrCodeTransient, check: IsTransient},
		{name: "session invalid", err: SessionInvalid("token expired"), code: ErrCodeSessionInvalid, check: IsSessionInvalid},
		{name: "password", err: Password("reset failed"), code: ErrCodePassword, check: IsPassword},
		{name: "backend unavailable", err: BackendUnavailable("no client"), code: ErrCodeBackendUnavailable, check: IsBackendUnavailable},
		{name: "unauthenticated", err: Unauthenticated("no session"), code: ErrCodeUnauthenticated, check: IsUnauthenticated},
		{name: "not found", err: NotFound("missing"), code: ErrCodeNotFound, check: IsNotFound},
		{name: "conflict", err: Conflict("exists"), code: ErrCodeConflict, check: IsConflict},
		{name: "internal", err: Internal("boom"), code: ErrCodeInternal, check: IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.code, GetCode(tt.err))
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("email", "already registered")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "email", GetField(err))
	assert.Equal(t, "already registered", err.Message)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrCodeTransient, "Failed to sign in")

	require.NotNil(t, err)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Failed to sign in")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "unused"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "unused %d", 1))
}

func TestCodeChecksThroughWrapping(t *testing.T) {
	inner := SessionInvalid("Invalid Refresh Token")
	outer := fmt.Errorf("refresh: %w", inner)

	assert.True(t, IsSessionInvalid(outer))
	assert.Equal(t, ErrCodeSessionInvalid, GetCode(outer))
}

func TestGetCodeNonAppError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetCode(stderrors.New("plain")))
	assert.Equal(t, "", GetField(stderrors.New("plain")))
	assert.False(t, IsValidation(nil))
}
