package calc

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidTariff = errors.New("invalid tariff")

const (
	DefaultMJPerM3       = 33.91
	DefaultPriceDiscount = 2.256
	DefaultPriceMarket   = 17.324
	DefaultAnnualQuotaMJ = 63645.0
)

type Tariff struct {
	MJPerM3       float64 // Energy content of the gas in MJ/m³
	PriceDiscount float64 // Unit price per MJ within the quota
	PriceMarket   float64 // Unit price per MJ beyond the quota
	AnnualQuotaMJ float64 // Discounted energy allowance per quota year
}

func DefaultTariff() Tariff {
	return Tariff{
		MJPerM3:       DefaultMJPerM3,
		PriceDiscount: DefaultPriceDiscount,
		PriceMarket:   DefaultPriceMarket,
		AnnualQuotaMJ: DefaultAnnualQuotaMJ,
	}
}

// Validate rejects tariffs that would let a period book a negative discount
// into the quota year.
func (t Tariff) Validate() error {
	var errs []error
	if !isFinite(t.MJPerM3) || t.MJPerM3 <= 0 {
		errs = append(errs, fmt.Errorf("%w: mj_per_m3 must be positive, got %g", ErrInvalidTariff, t.MJPerM3))
	}
	if !isFinite(t.PriceDiscount) || t.PriceDiscount < 0 {
		errs = append(errs, fmt.Errorf("%w: price_discount must not be negative, got %g", ErrInvalidTariff, t.PriceDiscount))
	}
	if !isFinite(t.PriceMarket) || t.PriceMarket < 0 {
		errs = append(errs, fmt.Errorf("%w: price_market must not be negative, got %g", ErrInvalidTariff, t.PriceMarket))
	}
	if !isFinite(t.AnnualQuotaMJ) || t.AnnualQuotaMJ < 0 {
		errs = append(errs, fmt.Errorf("%w: annual_quota_mj must not be negative, got %g", ErrInvalidTariff, t.AnnualQuotaMJ))
	}
	return errors.Join(errs...)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
