package quota

import (
	"context"
	"fmt"

	"github.com/angas/gasquota/dates"
)

type DiscountStore interface {
	// SumDiscountMJ sums the discounted energy of all stored periods
	// ending within [from, to].
	SumDiscountMJ(ctx context.Context, from, to dates.Date) (float64, error)
}

// UsedDiscount is the discounted energy already allocated in the quota year
// containing d. Periods count towards the year their end date falls in.
func UsedDiscount(ctx context.Context, store DiscountStore, d dates.Date, a Anchor) (float64, error) {
	start, end := YearBounds(d, a)
	sum, err := store.SumDiscountMJ(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("summing discount for quota year %s - %s: %w", start, end, err)
	}
	return sum, nil
}

func Remaining(ctx context.Context, store DiscountStore, d dates.Date, a Anchor, annualQuotaMJ float64) (float64, error) {
	used, err := UsedDiscount(ctx, store, d, a)
	if err != nil {
		return 0, err
	}
	return max(0.0, annualQuotaMJ-used), nil
}

type Status struct {
	Date          dates.Date `json:"date"`
	YearStart     dates.Date `json:"year_start"`
	YearEnd       dates.Date `json:"year_end"`
	AnnualQuotaMJ float64    `json:"annual_quota_mj"`
	UsedMJ        float64    `json:"used_mj"`
	RemainingMJ   float64    `json:"remaining_mj"`
}

func (s Status) UsedPercent() float64 {
	if s.AnnualQuotaMJ <= 0 {
		return 0
	}
	return min(100.0, s.UsedMJ/s.AnnualQuotaMJ*100.0)
}

func (s Status) DaysLeft() int {
	return s.Date.DaysUntil(s.YearEnd)
}

func StatusAt(ctx context.Context, store DiscountStore, d dates.Date, a Anchor, annualQuotaMJ float64) (Status, error) {
	used, err := UsedDiscount(ctx, store, d, a)
	if err != nil {
		return Status{}, err
	}
	start, end := YearBounds(d, a)
	return Status{
		Date:          d,
		YearStart:     start,
		YearEnd:       end,
		AnnualQuotaMJ: annualQuotaMJ,
		UsedMJ:        used,
		RemainingMJ:   max(0.0, annualQuotaMJ-used),
	}, nil
}
