package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := Invalid("email", "Email inválido")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "invalid email: Email inválido", err.Error())

	msg, ok := Message(fmt.Errorf("register: %w", err))
	require.True(t, ok)
	assert.Equal(t, "Email inválido", msg)
}

func TestValidationError_NoField(t *testing.T) {
	err := Invalid("", "Todos los campos son requeridos")
	assert.Equal(t, "Todos los campos son requeridos", err.Error())
}

func TestError_KindAndMessage(t *testing.T) {
	err := NewError(ErrConflict, "Artista ya existe")

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))

	msg, ok := Message(err)
	require.True(t, ok)
	assert.Equal(t, "Artista ya existe", msg)
}

func TestMessage_PlainError(t *testing.T) {
	_, ok := Message(errors.New("boom"))
	assert.False(t, ok)
}
