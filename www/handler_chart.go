package www

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/angas/gasquota/billing"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/slice"
	"github.com/angas/gasquota/www/chartjs"
)

// NewChartHandler returns two stacked bar charts with one bar per calculated
// period: energy split into discounted and market MJ, and the matching cost.
func NewChartHandler(logger *slog.Logger, svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calcs, err := svc.Calculations(r.Context())
		if err != nil {
			logger.Error("handling chart request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		labels := slice.Map(calcs, func(c database.PeriodCalcRow) string {
			return c.EndDate.LocalizedString()
		})

		energy := chartjs.NewStackedBarChart("", labels, "Discounted (MJ)", "Market (MJ)")
		cost := chartjs.NewStackedBarChart("", labels, "Discounted cost", "Market cost")
		for i, c := range calcs {
			energy.Data.Datasets[0].Data[i] = chartjs.FixedFloat64(c.DiscountMJ, 1)
			energy.Data.Datasets[1].Data[i] = chartjs.FixedFloat64(c.MarketMJ, 1)
			cost.Data.Datasets[0].Data[i] = chartjs.FixedFloat64(c.DiscountCost, 0)
			cost.Data.Datasets[1].Data[i] = chartjs.FixedFloat64(c.MarketCost, 0)
		}
		energy.Options.Scales["y"] = energy.Options.Scales["y"].WithTitle("Energy (MJ)")
		cost.Options.Scales["y"] = cost.Options.Scales["y"].WithTitle("Cost")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode([]chartjs.Chart{energy, cost}); err != nil {
			logger.Error("handling chart request", slog.Any("error", err))
			http.Error(w, "unable to encode data points", http.StatusInternalServerError)
			return
		}
	}
}
