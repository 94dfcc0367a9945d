package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		date string
		freq Frequency
		want string
	}{
		{"2025-03-15", FrequencyDaily, "2025-03-16"},
		{"2025-12-31", FrequencyDaily, "2026-01-01"},
		{"2025-03-15", FrequencyWeekly, "2025-03-22"},
		{"2025-01-31", FrequencyMonthly, "2025-02-28"},
		{"2024-01-31", FrequencyMonthly, "2024-02-29"},
		{"2025-11-30", FrequencyMonthly, "2025-12-30"},
		{"2025-12-15", FrequencyMonthly, "2026-01-15"},
		{"2024-02-29", FrequencyYearly, "2025-02-28"},
	}
	for _, tt := range tests {
		got, err := NextOccurrence(tt.date, tt.freq)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s", tt.date, tt.freq)
	}

	_, err := NextOccurrence("2025-03-15", "hourly")
	assert.Error(t, err)
	_, err = NextOccurrence("15/03/2025", FrequencyDaily)
	assert.Error(t, err)
}
