package quota

import (
	"fmt"
	"time"

	"github.com/angas/gasquota/dates"
)

// Anchor is the month and day a quota year starts on, e.g. October 1 for
// a gas year.
type Anchor struct {
	Month time.Month
	Day   int
}

func CalendarYear() Anchor {
	return Anchor{Month: time.January, Day: 1}
}

func (a Anchor) Validate() error {
	if a.Month < time.January || a.Month > time.December {
		return fmt.Errorf("quota year start month %d out of range", a.Month)
	}
	// Checked against a leap year so that February 29 is accepted.
	if a.Day < 1 || dates.New(2024, a.Month, a.Day).Month != a.Month {
		return fmt.Errorf("quota year start day %d invalid for %s", a.Day, a.Month)
	}
	return nil
}

func (a Anchor) String() string {
	return fmt.Sprintf("%02d-%02d", int(a.Month), a.Day)
}

func (a Anchor) in(year int) dates.Date {
	return dates.New(year, a.Month, a.Day)
}

// YearBounds returns the first and last day of the quota year containing d.
func YearBounds(d dates.Date, a Anchor) (start, end dates.Date) {
	start = a.in(d.Year)
	if d.Before(start) {
		start = a.in(d.Year - 1)
	}
	end = a.in(start.Year + 1).AddDays(-1)
	return start, end
}
