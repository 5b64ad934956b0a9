package www

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/angas/gasquota/billing"
	"github.com/angas/gasquota/calc"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/quota"
	"github.com/angas/gasquota/types/maybe"
)

type indexData struct {
	Version      string
	Errors       []string
	Today        dates.Date
	Readings     []database.ReadingRow
	Calculations []database.PeriodCalcRow
	Latest       maybe.Maybe[database.PeriodCalcRow]
	Quota        quota.Status
	Tariff       calc.Tariff
	Anchor       quota.Anchor
}

func NewIndexHandler(logger *slog.Logger, svc *billing.Service, tm *TemplateManager, fl *flashes, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		today := dates.Today()

		readings, err := svc.Readings(ctx)
		if err != nil {
			logger.Error("handling index request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		slices.Reverse(readings)

		calcs, err := svc.Calculations(ctx)
		if err != nil {
			logger.Error("handling index request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		slices.Reverse(calcs)

		latest, err := svc.LatestCalculation(ctx)
		if err != nil {
			logger.Error("handling index request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		st, err := svc.QuotaStatus(ctx, today)
		if err != nil {
			logger.Error("handling index request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		data := indexData{
			Version:      version,
			Errors:       fl.pop(w, r),
			Today:        today,
			Readings:     readings,
			Calculations: calcs,
			Latest:       latest,
			Quota:        st,
			Tariff:       svc.Tariff(),
			Anchor:       svc.Anchor(),
		}

		buf, err := tm.Execute("index.html", data)
		if err != nil {
			logger.Error("handling index request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := buf.WriteTo(w); err != nil {
			logger.Debug("writing index response", slog.Any("error", err))
		}
	}
}
