package calc

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/types/maybe"
)

func januaryInput() PeriodInput {
	return PeriodInput{
		StartDate: dates.New(2024, time.January, 1),
		EndDate:   dates.New(2024, time.January, 31),
		StartM3:   1000.0,
		EndM3:     1100.0,
	}
}

func TestComputePeriodWithinQuota(t *testing.T) {
	p, err := ComputePeriod(januaryInput(), DefaultTariff(), maybe.Some(63645.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Days != 31 {
		t.Errorf("got %d days, wanted 31", p.Days)
	}
	checkFloat(t, "used_m3", p.UsedM3, 100.0)
	checkFloat(t, "used_mj", p.UsedMJ, 3391.0)
	checkFloat(t, "discount_max_mj", p.DiscountMaxMJ, 63645.0/365.0*31)
	checkFloat(t, "discount_mj", p.DiscountMJ, 3391.0)
	checkFloat(t, "market_mj", p.MarketMJ, 0.0)
	checkFloat(t, "discount_cost", p.DiscountCost, 3391.0*2.256)
	checkFloat(t, "market_cost", p.MarketCost, 0.0)
	checkFloat(t, "total_energy_cost", p.TotalEnergyCost, 3391.0*2.256)
	checkInvariants(t, p)
}

func TestComputePeriodLimitedByRemainingQuota(t *testing.T) {
	p, err := ComputePeriod(januaryInput(), DefaultTariff(), maybe.Some(1000.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkFloat(t, "discount_mj", p.DiscountMJ, 1000.0)
	checkFloat(t, "market_mj", p.MarketMJ, 2391.0)
	checkFloat(t, "total_energy_cost", p.TotalEnergyCost, 1000*2.256+2391*17.324)
	checkInvariants(t, p)
}

func TestComputePeriodLimitedByProRatedCeiling(t *testing.T) {
	in := januaryInput()
	in.EndM3 = 1300.0 // 6782 MJ, above the 31 day ceiling

	p, err := ComputePeriod(in, DefaultTariff(), maybe.None[float64]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkFloat(t, "discount_mj", p.DiscountMJ, p.DiscountMaxMJ)
	checkFloat(t, "market_mj", p.MarketMJ, p.UsedMJ-p.DiscountMaxMJ)
	checkInvariants(t, p)
}

func TestComputePeriodWithoutRemainingQuota(t *testing.T) {
	p, err := ComputePeriod(januaryInput(), DefaultTariff(), maybe.None[float64]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkFloat(t, "discount_mj", p.DiscountMJ, 3391.0)
}

func TestComputePeriodQuotaExhausted(t *testing.T) {
	p, err := ComputePeriod(januaryInput(), DefaultTariff(), maybe.Some(0.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.DiscountMJ != 0 {
		t.Errorf("got discount %f, wanted 0", p.DiscountMJ)
	}
	if p.MarketMJ != p.UsedMJ {
		t.Errorf("got market %f, wanted %f", p.MarketMJ, p.UsedMJ)
	}
}

func TestComputePeriodSingleDay(t *testing.T) {
	d := dates.New(2024, time.June, 15)
	in := PeriodInput{StartDate: d, EndDate: d, StartM3: 50, EndM3: 51}

	p, err := ComputePeriod(in, DefaultTariff(), maybe.None[float64]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Days != 1 {
		t.Errorf("got %d days, wanted 1", p.Days)
	}
	if p.DiscountMaxMJ != DefaultAnnualQuotaMJ/365.0 {
		t.Errorf("got ceiling %f, wanted %f", p.DiscountMaxMJ, DefaultAnnualQuotaMJ/365.0)
	}
	checkInvariants(t, p)
}

func TestComputePeriodLeapYearUsesFixedDivisor(t *testing.T) {
	in := PeriodInput{
		StartDate: dates.New(2024, time.January, 1),
		EndDate:   dates.New(2024, time.December, 31),
		StartM3:   0,
		EndM3:     10,
	}

	p, err := ComputePeriod(in, DefaultTariff(), maybe.None[float64]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Days != 366 {
		t.Errorf("got %d days, wanted 366", p.Days)
	}
	checkFloat(t, "discount_max_mj", p.DiscountMaxMJ, DefaultAnnualQuotaMJ/365.0*366)
}

func TestComputePeriodZeroUsage(t *testing.T) {
	in := januaryInput()
	in.EndM3 = in.StartM3

	p, err := ComputePeriod(in, DefaultTariff(), maybe.Some(500.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UsedMJ != 0 || p.DiscountMJ != 0 || p.MarketMJ != 0 || p.TotalEnergyCost != 0 {
		t.Errorf("expected an all zero period, got %+v", p)
	}
}

func TestComputePeriodInvalidRange(t *testing.T) {
	tests := []struct {
		name string
		in   PeriodInput
		msg  string
	}{
		{
			name: "end date before start date",
			in: PeriodInput{
				StartDate: dates.New(2024, time.February, 1),
				EndDate:   dates.New(2024, time.January, 31),
				StartM3:   1,
				EndM3:     2,
			},
			msg: "invalid range: end date precedes start date",
		},
		{
			name: "end reading below start reading",
			in: PeriodInput{
				StartDate: dates.New(2024, time.January, 1),
				EndDate:   dates.New(2024, time.January, 31),
				StartM3:   2,
				EndM3:     1,
			},
			msg: "invalid range: end reading precedes start reading",
		},
		{
			name: "start reading not a number",
			in: PeriodInput{
				StartDate: dates.New(2024, time.January, 1),
				EndDate:   dates.New(2024, time.January, 31),
				StartM3:   math.NaN(),
				EndM3:     1100,
			},
			msg: "invalid range: meter readings must be finite numbers",
		},
		{
			name: "end reading infinite",
			in: PeriodInput{
				StartDate: dates.New(2024, time.January, 1),
				EndDate:   dates.New(2024, time.January, 31),
				StartM3:   1000,
				EndM3:     math.Inf(1),
			},
			msg: "invalid range: meter readings must be finite numbers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputePeriod(tt.in, DefaultTariff(), maybe.None[float64]())
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("got error %v, wanted ErrInvalidRange", err)
			}
			if err.Error() != tt.msg {
				t.Errorf("got message %q, wanted %q", err.Error(), tt.msg)
			}
		})
	}
}

func TestComputePeriodInvalidTariff(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Tariff)
	}{
		{"negative annual quota", func(t *Tariff) { t.AnnualQuotaMJ = -63645 }},
		{"zero energy content", func(t *Tariff) { t.MJPerM3 = 0 }},
		{"negative energy content", func(t *Tariff) { t.MJPerM3 = -33.91 }},
		{"negative discount price", func(t *Tariff) { t.PriceDiscount = -1 }},
		{"negative market price", func(t *Tariff) { t.PriceMarket = -1 }},
		{"annual quota not a number", func(t *Tariff) { t.AnnualQuotaMJ = math.NaN() }},
		{"infinite energy content", func(t *Tariff) { t.MJPerM3 = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tariff := DefaultTariff()
			tt.modify(&tariff)
			p, err := ComputePeriod(januaryInput(), tariff, maybe.Some(0.0))
			if !errors.Is(err, ErrInvalidTariff) {
				t.Fatalf("got error %v, wanted ErrInvalidTariff", err)
			}
			if p != (Period{}) {
				t.Errorf("got period %+v, wanted none", p)
			}
		})
	}
}

func TestTariffValidate(t *testing.T) {
	if err := DefaultTariff().Validate(); err != nil {
		t.Errorf("default tariff: unexpected error %v", err)
	}
	free := Tariff{MJPerM3: 1}
	if err := free.Validate(); err != nil {
		t.Errorf("zero prices and quota: unexpected error %v", err)
	}
	bad := Tariff{MJPerM3: -1, AnnualQuotaMJ: -1}
	err := bad.Validate()
	if !errors.Is(err, ErrInvalidTariff) {
		t.Fatalf("got error %v, wanted ErrInvalidTariff", err)
	}
	for _, field := range []string{"mj_per_m3", "annual_quota_mj"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not name %s", err.Error(), field)
		}
	}
}

func TestComputePeriodInvariants(t *testing.T) {
	start := dates.New(2023, time.October, 1)
	for days := 0; days < 400; days += 37 {
		for _, used := range []float64{0, 0.5, 12.25, 180, 2500} {
			for _, remaining := range []float64{0, 100, 5000, 63645} {
				in := PeriodInput{
					StartDate: start,
					EndDate:   start.AddDays(days),
					StartM3:   4321.5,
					EndM3:     4321.5 + used,
				}
				p, err := ComputePeriod(in, DefaultTariff(), maybe.Some(remaining))
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				checkInvariants(t, p)
				if p.DiscountMJ > remaining {
					t.Errorf("discount %f exceeds remaining quota %f", p.DiscountMJ, remaining)
				}
			}
		}
	}
}

func checkInvariants(t *testing.T, p Period) {
	t.Helper()
	if p.UsedM3 < 0 {
		t.Errorf("used_m3 %f is negative", p.UsedM3)
	}
	if p.EndDate.Before(p.StartDate) {
		t.Errorf("end date %v before start date %v", p.EndDate, p.StartDate)
	}
	if p.DiscountMJ > p.DiscountMaxMJ {
		t.Errorf("discount %f exceeds ceiling %f", p.DiscountMJ, p.DiscountMaxMJ)
	}
	if p.DiscountMJ > p.UsedMJ {
		t.Errorf("discount %f exceeds usage %f", p.DiscountMJ, p.UsedMJ)
	}
	if !almostEqual(p.DiscountMJ+p.MarketMJ, p.UsedMJ) {
		t.Errorf("discount %f + market %f != used %f", p.DiscountMJ, p.MarketMJ, p.UsedMJ)
	}
	want := p.DiscountMJ*p.PriceDiscount + p.MarketMJ*p.PriceMarket
	if !almostEqual(p.TotalEnergyCost, want) {
		t.Errorf("got total %f, wanted %f", p.TotalEnergyCost, want)
	}
}

func checkFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if !almostEqual(got, want) {
		t.Errorf("got %s %f, wanted %f", name, got, want)
	}
}

func almostEqual(f1 float64, f2 float64) bool {
	return math.Abs(f1-f2) < 1e-6
}
