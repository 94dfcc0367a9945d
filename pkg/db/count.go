package db

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToInt64 coerces a raw aggregate value into int64. Drivers disagree on the
// Go type of COUNT(*): int64, float64, numeric strings and []byte all occur.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("count %d overflows int64", n)
		}
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(math.Round(n)), nil
	case float32:
		return int64(math.Round(float64(n))), nil
	case []byte:
		return parseCount(string(n))
	case string:
		return parseCount(n)
	case fmt.Stringer:
		return parseCount(n.String())
	default:
		return 0, fmt.Errorf("unsupported count type %T", v)
	}
}

func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", s, err)
	}
	return int64(math.Round(f)), nil
}

func operationOf(query string) string {
	for _, token := range strings.Fields(strings.ToUpper(query)) {
		token = strings.Trim(token, "(;")
		if token == "WITH" {
			continue
		}
		return token
	}
	return ""
}
