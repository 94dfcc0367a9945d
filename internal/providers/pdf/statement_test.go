package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateStatement(t *testing.T) {
	r, err := New().GenerateStatement(context.Background(), StatementData{
		OwnerName:   "Ada",
		OwnerEmail:  "ada@example.com",
		Period:      "March 2025",
		Currency:    "USD",
		GeneratedAt: "2025-03-15",
		Summary:     []SummaryLine{{Label: "Income", Value: "3,000.00"}},
		Expenses:    []StatementLine{{Date: "2025-03-02", Category: "Food", Amount: "12.50"}},
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestGenerateStatementRequiresPeriod(t *testing.T) {
	_, err := New().GenerateStatement(context.Background(), StatementData{})
	assert.Error(t, err)
}
