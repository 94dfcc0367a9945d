package validation

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingListsBlankFieldsInOrder(t *testing.T) {
	var amount *decimal.Decimal
	err := Missing(
		Require("category", " "),
		Require("amount", amount),
		Require("date", "2025-01-01"),
	)
	require.Error(t, err)
	assert.Equal(t, "Missing required fields: category, amount", err.Error())

	v, ok := As(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	require.Len(t, v.Fields, 2)
	assert.Equal(t, "category", v.Fields[0].Field)
	assert.Equal(t, "required", v.Fields[0].Code)
}

func TestMissingNone(t *testing.T) {
	amount := decimal.NewFromInt(3)
	assert.NoError(t, Missing(Require("amount", &amount), Require("name", "x")))
}
