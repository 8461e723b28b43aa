package helpers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("49.90")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("49.90")))

	// Extra precision is rounded to cents, not rejected.
	amount, err = ParseAmount("10.005")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("10.01")))

	_, err = ParseAmount("abc")
	assert.Error(t, err)

	_, err = ParseAmount("")
	assert.Error(t, err)
}

func TestOptionalString(t *testing.T) {
	assert.Nil(t, OptionalString(""))

	value := OptionalString("con cariño")
	require.NotNil(t, value)
	assert.Equal(t, "con cariño", *value)
}
