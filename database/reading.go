package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/angas/gasquota/dates"
)

type ReadingRow struct {
	ID        int64
	Date      dates.Date
	MeterM3   float64
	Note      string
	CreatedAt time.Time
}

func (d *Database) SaveReading(ctx context.Context, row ReadingRow) (int64, error) {
	d.logger.Debug("saving reading",
		"date", row.Date,
		"meter_m3", row.MeterM3)

	note := sql.NullString{String: row.Note, Valid: row.Note != ""}
	res, err := d.write.ExecContext(ctx, `
		INSERT INTO reading (date, meter_m3, note)
		VALUES (?, ?, ?)`,
		row.Date.String(),
		row.MeterM3,
		note)
	if err != nil {
		return 0, fmt.Errorf("saving reading: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("saving reading, last insert id: %w", err)
	}
	return id, nil
}

func (d *Database) DeleteReading(ctx context.Context, id int64) (bool, error) {
	res, err := d.write.ExecContext(ctx, `DELETE FROM reading WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting reading %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting reading %d, rows affected: %w", id, err)
	}
	return n > 0, nil
}

// GetReadings returns all readings, oldest first.
func (d *Database) GetReadings(ctx context.Context) ([]ReadingRow, error) {
	return d.queryReadings(ctx, `
		SELECT id, date, meter_m3, note, created_at
		FROM reading
		ORDER BY date ASC, id ASC`)
}

// GetLatestReadings returns at most n readings, newest first. Readings on the
// same date are ordered by insertion.
func (d *Database) GetLatestReadings(ctx context.Context, n int) ([]ReadingRow, error) {
	return d.queryReadings(ctx, `
		SELECT id, date, meter_m3, note, created_at
		FROM reading
		ORDER BY date DESC, id DESC
		LIMIT ?`, n)
}

func (d *Database) queryReadings(ctx context.Context, query string, args ...any) ([]ReadingRow, error) {
	rows, err := d.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching readings: %w", err)
	}
	defer rows.Close()

	var res []ReadingRow
	for rows.Next() {
		var (
			r         ReadingRow
			date      string
			note      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&r.ID, &date, &r.MeterM3, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning reading row: %w", err)
		}
		if r.Date, err = scanDate(date); err != nil {
			return nil, err
		}
		r.Note = note.String
		if r.CreatedAt, err = scanTimestamp(createdAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading reading rows: %w", err)
	}

	return res, nil
}
