package calc

import (
	"errors"
	"fmt"
	"math"

	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/types/maybe"
)

// The quota is pro-rated over a fixed year length, leap years included.
const daysPerQuotaYear = 365.0

var ErrInvalidRange = errors.New("invalid range")

type PeriodInput struct {
	StartDate dates.Date
	EndDate   dates.Date
	StartM3   float64
	EndM3     float64
}

type Period struct {
	StartDate       dates.Date `json:"start_date"`
	EndDate         dates.Date `json:"end_date"`
	Days            int        `json:"days"`
	StartM3         float64    `json:"start_m3"`
	EndM3           float64    `json:"end_m3"`
	UsedM3          float64    `json:"used_m3"`
	MJPerM3         float64    `json:"mj_per_m3"`
	UsedMJ          float64    `json:"used_mj"`
	AnnualQuotaMJ   float64    `json:"annual_quota_mj"`
	DiscountMaxMJ   float64    `json:"discount_max_mj"`
	DiscountMJ      float64    `json:"discount_mj"`
	MarketMJ        float64    `json:"market_mj"`
	PriceDiscount   float64    `json:"price_discount"`
	PriceMarket     float64    `json:"price_market"`
	DiscountCost    float64    `json:"discount_cost"`
	MarketCost      float64    `json:"market_cost"`
	TotalEnergyCost float64    `json:"total_energy_cost"`
}

func (in PeriodInput) Validate() error {
	if !isFinite(in.StartM3) || !isFinite(in.EndM3) {
		return fmt.Errorf("%w: meter readings must be finite numbers", ErrInvalidRange)
	}
	if in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", ErrInvalidRange)
	}
	if in.EndM3 < in.StartM3 {
		return fmt.Errorf("%w: end reading precedes start reading", ErrInvalidRange)
	}
	return nil
}

// ComputePeriod splits the energy used between two readings into a discounted
// and a market priced part. Without a remaining quota the discount is only
// capped by the period's pro-rated share of the annual quota.
func ComputePeriod(in PeriodInput, t Tariff, remainingQuotaMJ maybe.Maybe[float64]) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	if err := t.Validate(); err != nil {
		return Period{}, err
	}

	days := in.StartDate.DaysUntil(in.EndDate) + 1
	usedM3 := in.EndM3 - in.StartM3
	usedMJ := usedM3 * t.MJPerM3

	discountMaxMJ := t.AnnualQuotaMJ / daysPerQuotaYear * float64(days)
	remaining := remainingQuotaMJ.ValueOrDefault(math.Inf(1))

	discountMJ := min(usedMJ, discountMaxMJ, remaining)
	marketMJ := max(0.0, usedMJ-discountMJ)

	discountCost := discountMJ * t.PriceDiscount
	marketCost := marketMJ * t.PriceMarket

	return Period{
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		Days:            days,
		StartM3:         in.StartM3,
		EndM3:           in.EndM3,
		UsedM3:          usedM3,
		MJPerM3:         t.MJPerM3,
		UsedMJ:          usedMJ,
		AnnualQuotaMJ:   t.AnnualQuotaMJ,
		DiscountMaxMJ:   discountMaxMJ,
		DiscountMJ:      discountMJ,
		MarketMJ:        marketMJ,
		PriceDiscount:   t.PriceDiscount,
		PriceMarket:     t.PriceMarket,
		DiscountCost:    discountCost,
		MarketCost:      marketCost,
		TotalEnergyCost: discountCost + marketCost,
	}, nil
}
