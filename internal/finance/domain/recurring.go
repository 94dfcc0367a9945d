package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var frequencies = map[Frequency]struct{}{
	FrequencyDaily:   {},
	FrequencyWeekly:  {},
	FrequencyMonthly: {},
	FrequencyYearly:  {},
}

// NextOccurrence advances date by one period of freq. Monthly and yearly
// steps clamp to the last day of the target month, so Jan 31 becomes Feb 28.
func NextOccurrence(date string, freq Frequency) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	switch freq {
	case FrequencyDaily:
		return d.AddDate(0, 0, 1).Format(DateLayout), nil
	case FrequencyWeekly:
		return d.AddDate(0, 0, 7).Format(DateLayout), nil
	case FrequencyMonthly:
		return addMonths(d, 1).Format(DateLayout), nil
	case FrequencyYearly:
		return addMonths(d, 12).Format(DateLayout), nil
	default:
		return "", fmt.Errorf("unknown frequency %q", freq)
	}
}

func addMonths(d time.Time, n int) time.Time {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func nonZero(id *snowflake.ID) *snowflake.ID {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

func decimalValue(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
