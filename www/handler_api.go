package www

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/angas/gasquota/billing"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/quota"
	"github.com/angas/gasquota/slice"
)

type apiReading struct {
	ID   int64      `json:"id"`
	Date dates.Date `json:"date"`
	M3   float64    `json:"m3"`
	Note *string    `json:"note"`
}

type apiCalc struct {
	ID              int64      `json:"id"`
	StartDate       dates.Date `json:"start_date"`
	EndDate         dates.Date `json:"end_date"`
	Days            int        `json:"days"`
	UsedM3          float64    `json:"used_m3"`
	UsedMJ          float64    `json:"used_mj"`
	DiscountMJ      float64    `json:"discount_mj"`
	MarketMJ        float64    `json:"market_mj"`
	TotalEnergyCost float64    `json:"total_energy_cost"`
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding json response", slog.Any("error", err))
		http.Error(w, "unable to encode response", http.StatusInternalServerError)
	}
}

// NewReadingsApiHandler lists all readings, oldest first.
func NewReadingsApiHandler(logger *slog.Logger, svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readings, err := svc.Readings(r.Context())
		if err != nil {
			logger.Error("handling readings request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(logger, w, slice.Map(readings, func(row database.ReadingRow) apiReading {
			a := apiReading{ID: row.ID, Date: row.Date, M3: row.MeterM3}
			if row.Note != "" {
				a.Note = &row.Note
			}
			return a
		}))
	}
}

// NewCalcsApiHandler lists all calculations ordered by end date, oldest first.
func NewCalcsApiHandler(logger *slog.Logger, svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calcs, err := svc.Calculations(r.Context())
		if err != nil {
			logger.Error("handling calcs request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(logger, w, slice.Map(calcs, func(c database.PeriodCalcRow) apiCalc {
			return apiCalc{
				ID:              c.ID,
				StartDate:       c.StartDate,
				EndDate:         c.EndDate,
				Days:            c.Days,
				UsedM3:          c.UsedM3,
				UsedMJ:          c.UsedMJ,
				DiscountMJ:      c.DiscountMJ,
				MarketMJ:        c.MarketMJ,
				TotalEnergyCost: c.TotalEnergyCost,
			}
		}))
	}
}

// NewQuotaApiHandler reports the quota year containing ?date=YYYY-MM-DD,
// today by default.
func NewQuotaApiHandler(logger *slog.Logger, svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := dates.Today()
		if v := r.URL.Query().Get("date"); v != "" {
			var err error
			if d, err = dates.Parse(v); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		st, err := svc.QuotaStatus(r.Context(), d)
		if err != nil {
			logger.Error("handling quota request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(logger, w, struct {
			quota.Status
			UsedPercent float64 `json:"used_percent"`
			DaysLeft    int     `json:"days_left"`
		}{
			Status:      st,
			UsedPercent: st.UsedPercent(),
			DaysLeft:    st.DaysLeft(),
		})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func NewHealthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}
}
