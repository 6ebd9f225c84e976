package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindConfiguration, http.StatusInternalServerError},
		{KindProviderCommunication, http.StatusBadGateway},
		{KindInvalidToken, http.StatusUnauthorized},
		{KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.kind.HTTPStatus())
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("exchange: %w", ProviderCommunication(503, nil, "token endpoint returned status %d", 503))

	assert.Equal(t, KindProviderCommunication, KindOf(err))
	assert.Equal(t, "token endpoint returned status 503", Message(err))

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, 503, e.Status)
}

func TestKindOf_Unclassified(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Empty(t, Message(err))
}

func TestInvalidToken_HidesCause(t *testing.T) {
	cause := errors.New("square/go-jose: error in cryptographic primitive")
	err := InvalidToken(cause)

	assert.Equal(t, "invalid token", err.Message)
	assert.ErrorIs(t, err, cause)
}
