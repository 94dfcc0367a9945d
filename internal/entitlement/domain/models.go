package domain

import (
	"time"

	userdomain "github.com/smallbiznis/fintrack/internal/user/domain"
)

// Result is the outcome of a limit check. Limit and Remaining are Unbounded
// when the tier has no cap.
type Result struct {
	Resource   Resource        `json:"resource"`
	Allowed    bool            `json:"allowed"`
	Current    int64           `json:"current"`
	Limit      int64           `json:"limit"`
	Remaining  int64           `json:"remaining"`
	Unbounded  bool            `json:"unbounded"`
	Tier       userdomain.Tier `json:"tier"`
	Percentage int             `json:"percentage"`
}

// DateWindow bounds a monthly count by business date, inclusive.
type DateWindow struct {
	From string
	To   string
}

// MonthWindow returns the first and last day of now's calendar month.
func MonthWindow(now time.Time) DateWindow {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, -1)
	return DateWindow{From: first.Format(DateLayout), To: last.Format(DateLayout)}
}

// DateLayout is the storage format of business dates.
const DateLayout = "2006-01-02"

type Usage struct {
	Tier      userdomain.Tier   `json:"tier"`
	Status    userdomain.Status `json:"status"`
	ExpiresAt *time.Time        `json:"expires_at"`
	Features  map[Feature]bool  `json:"features"`
	Limits    []Result          `json:"limits"`
}
