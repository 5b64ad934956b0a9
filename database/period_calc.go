package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angas/gasquota/calc"
	"github.com/angas/gasquota/dates"
)

type PeriodCalcRow struct {
	ID int64 `json:"id"`
	calc.Period
	CreatedAt time.Time `json:"created_at"`
}

const periodCalcColumns = `
	id, start_date, end_date, days,
	start_m3, end_m3, used_m3,
	mj_per_m3, used_mj,
	annual_quota_mj, discount_max_mj, discount_mj, market_mj,
	price_discount, price_market,
	discount_cost, market_cost, total_energy_cost,
	created_at`

func (d *Database) SavePeriodCalc(ctx context.Context, p calc.Period) (int64, error) {
	d.logger.Debug("saving period calculation",
		"start_date", p.StartDate,
		"end_date", p.EndDate,
		"used_mj", p.UsedMJ,
		"discount_mj", p.DiscountMJ,
		"market_mj", p.MarketMJ)

	res, err := d.write.ExecContext(ctx, `
		INSERT INTO period_calc (
			start_date,
			end_date,
			days,
			start_m3,
			end_m3,
			used_m3,
			mj_per_m3,
			used_mj,
			annual_quota_mj,
			discount_max_mj,
			discount_mj,
			market_mj,
			price_discount,
			price_market,
			discount_cost,
			market_cost,
			total_energy_cost
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.StartDate.String(),
		p.EndDate.String(),
		p.Days,
		p.StartM3,
		p.EndM3,
		p.UsedM3,
		p.MJPerM3,
		p.UsedMJ,
		p.AnnualQuotaMJ,
		p.DiscountMaxMJ,
		p.DiscountMJ,
		p.MarketMJ,
		p.PriceDiscount,
		p.PriceMarket,
		p.DiscountCost,
		p.MarketCost,
		p.TotalEnergyCost)
	if err != nil {
		return 0, fmt.Errorf("saving period calculation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("saving period calculation, last insert id: %w", err)
	}
	return id, nil
}

func (d *Database) DeletePeriodCalc(ctx context.Context, id int64) (bool, error) {
	res, err := d.write.ExecContext(ctx, `DELETE FROM period_calc WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting period calculation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting period calculation %d, rows affected: %w", id, err)
	}
	return n > 0, nil
}

// GetPeriodCalcs returns all calculations ordered by end date, oldest first.
func (d *Database) GetPeriodCalcs(ctx context.Context) ([]PeriodCalcRow, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT `+periodCalcColumns+`
		FROM period_calc
		ORDER BY end_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("fetching period calculations: %w", err)
	}
	defer rows.Close()

	var res []PeriodCalcRow
	for rows.Next() {
		row, err := scanPeriodCalc(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading period calculation rows: %w", err)
	}

	return res, nil
}

func (d *Database) GetPeriodCalc(ctx context.Context, id int64) (PeriodCalcRow, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT `+periodCalcColumns+`
		FROM period_calc
		WHERE id = ?`, id)

	pc, err := scanPeriodCalc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PeriodCalcRow{}, sql.ErrNoRows
	}
	return pc, err
}

// GetLatestPeriodCalc returns the most recently stored calculation.
func (d *Database) GetLatestPeriodCalc(ctx context.Context) (PeriodCalcRow, error) {
	row := d.read.QueryRowContext(ctx, `
		SELECT `+periodCalcColumns+`
		FROM period_calc
		ORDER BY id DESC
		LIMIT 1`)

	pc, err := scanPeriodCalc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PeriodCalcRow{}, sql.ErrNoRows
	}
	return pc, err
}

func (d *Database) SumDiscountMJ(ctx context.Context, from, to dates.Date) (float64, error) {
	var sum float64
	err := d.read.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(discount_mj), 0.0)
		FROM period_calc
		WHERE end_date >= ? AND end_date <= ?`,
		from.String(), to.String()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing discount from %s to %s: %w", from, to, err)
	}
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPeriodCalc(s scanner) (PeriodCalcRow, error) {
	var (
		pc        PeriodCalcRow
		startDate string
		endDate   string
		createdAt string
	)
	err := s.Scan(
		&pc.ID,
		&startDate,
		&endDate,
		&pc.Days,
		&pc.StartM3,
		&pc.EndM3,
		&pc.UsedM3,
		&pc.MJPerM3,
		&pc.UsedMJ,
		&pc.AnnualQuotaMJ,
		&pc.DiscountMaxMJ,
		&pc.DiscountMJ,
		&pc.MarketMJ,
		&pc.PriceDiscount,
		&pc.PriceMarket,
		&pc.DiscountCost,
		&pc.MarketCost,
		&pc.TotalEnergyCost,
		&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PeriodCalcRow{}, err
		}
		return PeriodCalcRow{}, fmt.Errorf("scanning period calculation row: %w", err)
	}

	if pc.StartDate, err = scanDate(startDate); err != nil {
		return PeriodCalcRow{}, err
	}
	if pc.EndDate, err = scanDate(endDate); err != nil {
		return PeriodCalcRow{}, err
	}
	if pc.CreatedAt, err = scanTimestamp(createdAt); err != nil {
		return PeriodCalcRow{}, err
	}

	return pc, nil
}
