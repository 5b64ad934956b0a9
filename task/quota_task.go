package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/metrics"
	"github.com/angas/gasquota/quota"
)

type QuotaReporter interface {
	QuotaStatus(ctx context.Context, d dates.Date) (quota.Status, error)
}

type StatusListener func(quota.Status)

// NewQuotaTask refreshes the remaining quota gauge and hands the current
// status to onStatus. Nothing else changes when a quota year rolls over, so
// this is what moves connected clients to the new year.
func NewQuotaTask(logger *slog.Logger, reporter QuotaReporter, onStatus StatusListener) func() {
	var lastYearStart dates.Date

	return func() {
		logger.Debug("running quota task...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		st, err := reporter.QuotaStatus(ctx, dates.Today())
		if err != nil {
			logger.Error("quota task error", slog.Any("error", err))
			return
		}

		if !lastYearStart.IsZero() && st.YearStart != lastYearStart {
			logger.Info("new quota year started",
				slog.String("year_start", st.YearStart.String()),
				slog.String("year_end", st.YearEnd.String()))
		}
		lastYearStart = st.YearStart

		metrics.SetRemainingQuota(st.RemainingMJ)
		if onStatus != nil {
			onStatus(st)
		}

		logger.Debug("quota task done", slog.Float64("remaining_mj", st.RemainingMJ))
	}
}
