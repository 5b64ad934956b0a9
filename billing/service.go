package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/angas/gasquota/calc"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/metrics"
	"github.com/angas/gasquota/quota"
	"github.com/angas/gasquota/types/maybe"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidReading   = errors.New("invalid reading")
	ErrNotFound         = errors.New("not found")
)

const (
	SourceLatest   = "latest"
	SourceExplicit = "explicit"
)

type Store interface {
	quota.DiscountStore
	SaveReading(ctx context.Context, row database.ReadingRow) (int64, error)
	DeleteReading(ctx context.Context, id int64) (bool, error)
	GetReadings(ctx context.Context) ([]database.ReadingRow, error)
	GetLatestReadings(ctx context.Context, n int) ([]database.ReadingRow, error)
	SavePeriodCalc(ctx context.Context, p calc.Period) (int64, error)
	DeletePeriodCalc(ctx context.Context, id int64) (bool, error)
	GetPeriodCalcs(ctx context.Context) ([]database.PeriodCalcRow, error)
	GetPeriodCalc(ctx context.Context, id int64) (database.PeriodCalcRow, error)
	GetLatestPeriodCalc(ctx context.Context) (database.PeriodCalcRow, error)
}

// Service records readings and turns pairs of them into period calculations.
// The quota read and the insert of the new calculation are not atomic, two
// simultaneous computations can both be granted the same remaining quota.
type Service struct {
	logger *slog.Logger
	store  Store
	tariff calc.Tariff
	anchor quota.Anchor
	// Called after every successful mutation of the store
	OnChange func()
}

func NewService(logger *slog.Logger, store Store, tariff calc.Tariff, anchor quota.Anchor) *Service {
	return &Service{
		logger: logger,
		store:  store,
		tariff: tariff,
		anchor: anchor,
	}
}

func (s *Service) Tariff() calc.Tariff {
	return s.tariff
}

func (s *Service) Anchor() quota.Anchor {
	return s.anchor
}

// IsValidationError reports whether err is caused by user input rather than
// by the store.
func IsValidationError(err error) bool {
	return errors.Is(err, calc.ErrInvalidRange) ||
		errors.Is(err, calc.ErrInvalidTariff) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrInvalidReading)
}

func (s *Service) AddReading(ctx context.Context, source string, date dates.Date, meterM3 float64, note string) (database.ReadingRow, error) {
	if date.IsZero() {
		return database.ReadingRow{}, fmt.Errorf("%w: missing date", ErrInvalidReading)
	}
	if math.IsNaN(meterM3) || math.IsInf(meterM3, 0) || meterM3 < 0 {
		return database.ReadingRow{}, fmt.Errorf("%w: meter value %g", ErrInvalidReading, meterM3)
	}

	row := database.ReadingRow{Date: date, MeterM3: meterM3, Note: note}
	id, err := s.store.SaveReading(ctx, row)
	if err != nil {
		return database.ReadingRow{}, fmt.Errorf("adding reading: %w", err)
	}
	row.ID = id

	s.logger.Info("reading recorded",
		slog.Int64("id", id),
		slog.String("date", date.String()),
		slog.Float64("meter_m3", meterM3),
		slog.String("source", source))
	metrics.ObserveReading(source)
	s.changed()

	return row, nil
}

func (s *Service) DeleteReading(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteReading(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting reading: %w", err)
	}
	if deleted {
		s.logger.Info("reading deleted", slog.Int64("id", id))
		s.changed()
	}
	return nil
}

// ComputeLatest computes the period between the two newest readings with the
// configured tariff.
func (s *Service) ComputeLatest(ctx context.Context) (database.PeriodCalcRow, error) {
	latest, err := s.store.GetLatestReadings(ctx, 2)
	if err != nil {
		metrics.ObserveCalculation(SourceLatest, metrics.ResultError)
		return database.PeriodCalcRow{}, fmt.Errorf("fetching latest readings: %w", err)
	}
	if len(latest) < 2 {
		metrics.ObserveCalculation(SourceLatest, metrics.ResultInvalid)
		return database.PeriodCalcRow{}, fmt.Errorf("%w: at least 2 readings are needed, got %d", ErrInsufficientData, len(latest))
	}

	end, start := latest[0], latest[1]
	in := calc.PeriodInput{
		StartDate: start.Date,
		EndDate:   end.Date,
		StartM3:   start.MeterM3,
		EndM3:     end.MeterM3,
	}
	return s.compute(ctx, SourceLatest, in, s.tariff)
}

// ComputeExplicit computes a period from caller supplied readings and tariff,
// which need not match any stored reading.
func (s *Service) ComputeExplicit(ctx context.Context, in calc.PeriodInput, t calc.Tariff) (database.PeriodCalcRow, error) {
	return s.compute(ctx, SourceExplicit, in, t)
}

func (s *Service) compute(ctx context.Context, source string, in calc.PeriodInput, t calc.Tariff) (database.PeriodCalcRow, error) {
	remaining, err := quota.Remaining(ctx, s.store, in.EndDate, s.anchor, t.AnnualQuotaMJ)
	if err != nil {
		metrics.ObserveCalculation(source, metrics.ResultError)
		return database.PeriodCalcRow{}, fmt.Errorf("resolving remaining quota: %w", err)
	}

	p, err := calc.ComputePeriod(in, t, maybe.Some(remaining))
	if err != nil {
		metrics.ObserveCalculation(source, metrics.ResultInvalid)
		s.logger.Warn("period calculation rejected",
			slog.String("source", source),
			slog.String("start_date", in.StartDate.String()),
			slog.String("end_date", in.EndDate.String()),
			slog.Any("error", err))
		return database.PeriodCalcRow{}, err
	}

	id, err := s.store.SavePeriodCalc(ctx, p)
	if err != nil {
		metrics.ObserveCalculation(source, metrics.ResultError)
		return database.PeriodCalcRow{}, fmt.Errorf("saving period calculation: %w", err)
	}
	metrics.ObserveCalculation(source, metrics.ResultOK)

	s.logger.Info("period calculated",
		slog.Int64("id", id),
		slog.String("source", source),
		slog.String("start_date", p.StartDate.String()),
		slog.String("end_date", p.EndDate.String()),
		slog.Float64("used_mj", p.UsedMJ),
		slog.Float64("remaining_quota_mj", remaining),
		slog.Float64("discount_mj", p.DiscountMJ),
		slog.Float64("market_mj", p.MarketMJ),
		slog.Float64("total_energy_cost", p.TotalEnergyCost))
	s.changed()

	return database.PeriodCalcRow{ID: id, Period: p}, nil
}

// DeleteCalculation removes a calculation, unknown ids are ignored.
func (s *Service) DeleteCalculation(ctx context.Context, id int64) error {
	deleted, err := s.store.DeletePeriodCalc(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting period calculation: %w", err)
	}
	if deleted {
		s.logger.Info("period calculation deleted", slog.Int64("id", id))
		s.changed()
	} else {
		s.logger.Debug("period calculation to delete not found", slog.Int64("id", id))
	}
	return nil
}

// Readings returns all readings, oldest first.
func (s *Service) Readings(ctx context.Context) ([]database.ReadingRow, error) {
	return s.store.GetReadings(ctx)
}

// Calculations returns all calculations ordered by end date, oldest first.
func (s *Service) Calculations(ctx context.Context) ([]database.PeriodCalcRow, error) {
	return s.store.GetPeriodCalcs(ctx)
}

func (s *Service) Calculation(ctx context.Context, id int64) (database.PeriodCalcRow, error) {
	pc, err := s.store.GetPeriodCalc(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return database.PeriodCalcRow{}, fmt.Errorf("period calculation %d: %w", id, ErrNotFound)
	}
	return pc, err
}

// LatestCalculation is the most recently computed period, if any.
func (s *Service) LatestCalculation(ctx context.Context) (maybe.Maybe[database.PeriodCalcRow], error) {
	pc, err := s.store.GetLatestPeriodCalc(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return maybe.None[database.PeriodCalcRow](), nil
	}
	if err != nil {
		return maybe.None[database.PeriodCalcRow](), err
	}
	return maybe.Some(pc), nil
}

// QuotaStatus summarises the quota year containing d using the configured
// annual quota.
func (s *Service) QuotaStatus(ctx context.Context, d dates.Date) (quota.Status, error) {
	st, err := quota.StatusAt(ctx, s.store, d, s.anchor, s.tariff.AnnualQuotaMJ)
	if err != nil {
		return quota.Status{}, err
	}
	return st, nil
}

func (s *Service) changed() {
	if s.OnChange != nil {
		s.OnChange()
	}
}
