package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("create booking: %w", Conflict("slot %s taken", "10:00"))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrBusinessRule)
	assert.Equal(t, "create booking: slot 10:00 taken", err.Error())

	de, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindConflict, de.Kind)
}

func TestSpecificErrorsDoNotMatchEachOther(t *testing.T) {
	a := NotFound("item %s", "a")
	b := NotFound("item %s", "b")
	assert.False(t, errors.Is(a, b))
	assert.True(t, errors.Is(a, ErrNotFound))
}

func TestValidationCarriesDetails(t *testing.T) {
	err := Validation("Invalid pricing configuration", FieldError{Field: "pricing.configuration", Message: "tiers : is required"})
	require.Len(t, err.Details, 1)
	assert.Equal(t, "pricing.configuration", err.Details[0].Field)
}
