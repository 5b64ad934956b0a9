package www

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/angas/gasquota/database"
)

type logReader interface {
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
	CountLogEntries(ctx context.Context, minLvl slog.Level) (int, error)
}

// NewLogHandler renders the log page, or with ?page=n one page of entries
// for the infinite scroll.
func NewLogHandler(logger *slog.Logger, db logReader, tm *TemplateManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")

		minLvl := slog.LevelDebug
		if lvl := r.URL.Query().Get("level"); lvl != "" {
			if err := minLvl.UnmarshalText([]byte(lvl)); err != nil {
				http.Error(w, "invalid level", http.StatusBadRequest)
				return
			}
		}

		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
			pageSize := intOrDefault(r.URL, "pageSize", 25)

			e, err := db.GetLogEntries(r.Context(), minLvl, page, pageSize)
			if err != nil {
				logger.Error("handling log request", slog.Any("error", err))
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			data := struct {
				NextPage int
				PageSize int
				Level    string
				Entries  []database.LogEntryRow
			}{
				NextPage: page + 1,
				PageSize: pageSize,
				Level:    minLvl.String(),
				Entries:  e,
			}

			if err := tm.ExecuteToWriter("log_entries.html", data, w); err != nil {
				logger.Error("handling log request", slog.Any("error", err))
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}

		total, err := db.CountLogEntries(r.Context(), minLvl)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		data := struct {
			Total int
			Level string
		}{
			Total: total,
			Level: minLvl.String(),
		}
		if err := tm.ExecuteToWriter("log.html", data, w); err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
