package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/angas/gasquota/calc"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/quota"
)

func newTestService(t *testing.T) (*Service, *database.Database) {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(db.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, db, calc.DefaultTariff(), quota.CalendarYear()), db
}

func addReading(t *testing.T, s *Service, date dates.Date, m3 float64) {
	t.Helper()
	if _, err := s.AddReading(context.Background(), "test", date, m3, ""); err != nil {
		t.Fatalf("add reading failed: %v", err)
	}
}

func countCalcs(t *testing.T, s *Service) int {
	t.Helper()
	calcs, err := s.Calculations(context.Background())
	if err != nil {
		t.Fatalf("list calculations failed: %v", err)
	}
	return len(calcs)
}

func TestComputeLatest(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	changes := 0
	s.OnChange = func() { changes++ }

	addReading(t, s, dates.New(2023, time.December, 31), 900)
	addReading(t, s, dates.New(2024, time.January, 31), 1100)
	addReading(t, s, dates.New(2024, time.January, 1), 1000)

	pc, err := s.ComputeLatest(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pc.ID == 0 {
		t.Errorf("expected a stored id")
	}
	if pc.StartDate != dates.New(2024, time.January, 1) || pc.EndDate != dates.New(2024, time.January, 31) {
		t.Errorf("got period %v - %v, wanted the two newest readings", pc.StartDate, pc.EndDate)
	}
	if pc.Days != 31 || !almostEqual(pc.UsedMJ, 3391) || !almostEqual(pc.DiscountMJ, 3391) || pc.MarketMJ != 0 {
		t.Errorf("unexpected period %+v", pc.Period)
	}
	if changes != 4 {
		t.Errorf("got %d change notifications, wanted 4", changes)
	}

	stored, err := s.Calculation(ctx, pc.ID)
	if err != nil {
		t.Fatalf("fetch stored calculation failed: %v", err)
	}
	if stored.Period != pc.Period {
		t.Errorf("stored calculation differs from returned one")
	}
}

func TestComputeLatestInsufficientData(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if _, err := s.ComputeLatest(ctx); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("got %v with no readings, wanted ErrInsufficientData", err)
	}

	addReading(t, s, dates.New(2024, time.January, 1), 1000)
	_, err := s.ComputeLatest(ctx)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("got %v with one reading, wanted ErrInsufficientData", err)
	}
	if !IsValidationError(err) {
		t.Errorf("expected a validation error")
	}
	if n := countCalcs(t, s); n != 0 {
		t.Errorf("got %d stored calculations, wanted 0", n)
	}
}

func TestComputeLatestDecreasingMeter(t *testing.T) {
	s, _ := newTestService(t)

	addReading(t, s, dates.New(2024, time.January, 1), 1000)
	addReading(t, s, dates.New(2024, time.February, 1), 999)

	_, err := s.ComputeLatest(context.Background())
	if !errors.Is(err, calc.ErrInvalidRange) {
		t.Errorf("got %v, wanted ErrInvalidRange", err)
	}
	if n := countCalcs(t, s); n != 0 {
		t.Errorf("got %d stored calculations, wanted 0", n)
	}
}

func TestComputeExplicitInvalidRangeStoresNothing(t *testing.T) {
	s, _ := newTestService(t)

	in := calc.PeriodInput{
		StartDate: dates.New(2024, time.March, 1),
		EndDate:   dates.New(2024, time.February, 1),
		StartM3:   1,
		EndM3:     2,
	}
	_, err := s.ComputeExplicit(context.Background(), in, calc.DefaultTariff())
	if !errors.Is(err, calc.ErrInvalidRange) {
		t.Errorf("got %v, wanted ErrInvalidRange", err)
	}
	if n := countCalcs(t, s); n != 0 {
		t.Errorf("got %d stored calculations, wanted 0", n)
	}
}

func TestComputeExplicitNegativeQuotaStoresNothing(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	in := calc.PeriodInput{
		StartDate: dates.New(2024, time.January, 1),
		EndDate:   dates.New(2024, time.January, 31),
		StartM3:   1000,
		EndM3:     1100,
	}
	tariff := calc.DefaultTariff()
	tariff.AnnualQuotaMJ = -tariff.AnnualQuotaMJ

	_, err := s.ComputeExplicit(ctx, in, tariff)
	if !errors.Is(err, calc.ErrInvalidTariff) {
		t.Fatalf("got %v, wanted ErrInvalidTariff", err)
	}
	if !IsValidationError(err) {
		t.Errorf("expected %v to be a validation error", err)
	}
	if n := countCalcs(t, s); n != 0 {
		t.Errorf("got %d stored calculations, wanted 0", n)
	}
	used, err := db.SumDiscountMJ(ctx, dates.New(2024, time.January, 1), dates.New(2024, time.December, 31))
	if err != nil {
		t.Fatal(err)
	}
	if used != 0 {
		t.Errorf("got used discount %f, wanted 0", used)
	}
}

func TestComputeExplicitConsumesQuota(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	tariff := calc.DefaultTariff()
	tariff.AnnualQuotaMJ = 4000

	// 3391 MJ used, ceiling 4000/365*31 = 339.7
	first, err := s.ComputeExplicit(ctx, calc.PeriodInput{
		StartDate: dates.New(2024, time.January, 1),
		EndDate:   dates.New(2024, time.January, 31),
		StartM3:   1000,
		EndM3:     1100,
	}, tariff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(first.DiscountMJ, 4000.0/365*31) {
		t.Errorf("got discount %f, wanted the pro-rated ceiling", first.DiscountMJ)
	}

	// The ceiling for the rest of the year is above what is left of the quota.
	second, err := s.ComputeExplicit(ctx, calc.PeriodInput{
		StartDate: dates.New(2024, time.February, 1),
		EndDate:   dates.New(2024, time.December, 31),
		StartM3:   1100,
		EndM3:     1300,
	}, tariff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(second.DiscountMJ, 4000-first.DiscountMJ) {
		t.Errorf("got discount %f, wanted %f", second.DiscountMJ, 4000-first.DiscountMJ)
	}

	// Quota is exhausted for the rest of the year.
	third, err := s.ComputeExplicit(ctx, calc.PeriodInput{
		StartDate: dates.New(2024, time.December, 31),
		EndDate:   dates.New(2024, time.December, 31),
		StartM3:   1300,
		EndM3:     1301,
	}, tariff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(third.DiscountMJ, 0) || !almostEqual(third.MarketMJ, third.UsedMJ) {
		t.Errorf("got discount %f market %f, wanted everything at market price", third.DiscountMJ, third.MarketMJ)
	}

	// Next year starts over.
	fourth, err := s.ComputeExplicit(ctx, calc.PeriodInput{
		StartDate: dates.New(2025, time.January, 1),
		EndDate:   dates.New(2025, time.January, 1),
		StartM3:   1301,
		EndM3:     1301.1,
	}, tariff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fourth.DiscountMJ == 0 {
		t.Errorf("expected discount in the new quota year")
	}
}

func TestCrossBoundaryPeriodCountsForEndYear(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.ComputeExplicit(ctx, calc.PeriodInput{
		StartDate: dates.New(2024, time.December, 1),
		EndDate:   dates.New(2025, time.January, 15),
		StartM3:   0,
		EndM3:     100,
	}, calc.DefaultTariff())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st2024, _ := s.QuotaStatus(ctx, dates.New(2024, time.December, 31))
	st2025, _ := s.QuotaStatus(ctx, dates.New(2025, time.June, 1))
	if st2024.UsedMJ != 0 {
		t.Errorf("got %f used in 2024, wanted 0", st2024.UsedMJ)
	}
	if !almostEqual(st2025.UsedMJ, 3391) {
		t.Errorf("got %f used in 2025, wanted 3391", st2025.UsedMJ)
	}
}

func TestDeleteCalculationReleasesQuota(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	pc, err := s.ComputeExplicit(ctx, calc.PeriodInput{
		StartDate: dates.New(2024, time.January, 1),
		EndDate:   dates.New(2024, time.January, 31),
		StartM3:   1000,
		EndM3:     1100,
	}, calc.DefaultTariff())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.DeleteCalculation(ctx, pc.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.DeleteCalculation(ctx, pc.ID); err != nil {
		t.Errorf("deleting an unknown id should be a no-op, got %v", err)
	}

	st, err := s.QuotaStatus(ctx, dates.New(2024, time.February, 1))
	if err != nil {
		t.Fatalf("quota status failed: %v", err)
	}
	if st.RemainingMJ != calc.DefaultAnnualQuotaMJ {
		t.Errorf("got remaining %f, wanted the full quota", st.RemainingMJ)
	}

	if _, err := s.Calculation(ctx, pc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, wanted ErrNotFound", err)
	}
}

func TestLatestCalculation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	latest, err := s.LatestCalculation(ctx)
	if err != nil || latest.IsValid() {
		t.Fatalf("got %v, %v, wanted none", latest, err)
	}

	addReading(t, s, dates.New(2024, time.January, 1), 1000)
	addReading(t, s, dates.New(2024, time.January, 31), 1100)
	pc, err := s.ComputeLatest(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	latest, err = s.LatestCalculation(ctx)
	if err != nil || !latest.IsValid() || latest.Value().ID != pc.ID {
		t.Errorf("got %v, %v, wanted calculation %d", latest, err, pc.ID)
	}
}

func TestAddReadingValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		date dates.Date
		m3   float64
	}{
		{"missing date", dates.Date{}, 10},
		{"negative", dates.New(2024, time.January, 1), -1},
		{"not a number", dates.New(2024, time.January, 1), math.NaN()},
		{"infinite", dates.New(2024, time.January, 1), math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.AddReading(ctx, "test", tt.date, tt.m3, ""); !errors.Is(err, ErrInvalidReading) {
				t.Errorf("got %v, wanted ErrInvalidReading", err)
			}
		})
	}

	readings, _ := s.Readings(ctx)
	if len(readings) != 0 {
		t.Errorf("got %d readings, wanted 0", len(readings))
	}
}

func TestDeleteReading(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	r, err := s.AddReading(ctx, "test", dates.New(2024, time.January, 1), 1000, "installed")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := s.DeleteReading(ctx, r.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	readings, _ := s.Readings(ctx)
	if len(readings) != 0 {
		t.Errorf("got %d readings, wanted 0", len(readings))
	}
}

type failingStore struct {
	*database.Database
	err error
}

func (f failingStore) SumDiscountMJ(ctx context.Context, from, to dates.Date) (float64, error) {
	return 0, f.err
}

func TestComputeStoreErrorIsNotValidation(t *testing.T) {
	s, db := newTestService(t)
	boom := errors.New("disk on fire")
	s.store = failingStore{Database: db, err: boom}

	_, err := s.ComputeExplicit(context.Background(), calc.PeriodInput{
		StartDate: dates.New(2024, time.January, 1),
		EndDate:   dates.New(2024, time.January, 31),
		StartM3:   1000,
		EndM3:     1100,
	}, calc.DefaultTariff())
	if !errors.Is(err, boom) {
		t.Errorf("got %v, wanted wrapped store error", err)
	}
	if IsValidationError(err) {
		t.Errorf("store errors must not be reported as validation errors")
	}
}

func almostEqual(f1 float64, f2 float64) bool {
	return math.Abs(f1-f2) < 1e-6
}
