// Command compute runs one period calculation against a database and prints
// the result as JSON. The quota already used in the quota year is taken from
// the database, the result is only stored with -save.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/angas/gasquota/billing"
	"github.com/angas/gasquota/calc"
	"github.com/angas/gasquota/config"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/logging"
	"github.com/angas/gasquota/quota"
	"github.com/angas/gasquota/types/maybe"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	startDate := flag.String("start", "", "start date, YYYY-MM-DD")
	endDate := flag.String("end", "", "end date, YYYY-MM-DD")
	startM3 := flag.Float64("start-m3", 0, "meter reading at the start date (m³)")
	endM3 := flag.Float64("end-m3", 0, "meter reading at the end date (m³)")
	save := flag.Bool("save", false, "store the calculation")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(logging.NewConsoleHandler(os.Stderr, level))
	slog.SetDefault(logger)

	if err := run(logger, *configPath, *startDate, *endDate, *startM3, *endM3, *save); err != nil {
		logger.Error("compute failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, startDate, endDate string, startM3, endM3 float64, save bool) error {
	cnfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	in := calc.PeriodInput{StartM3: startM3, EndM3: endM3}
	if in.StartDate, err = dates.Parse(startDate); err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	if in.EndDate, err = dates.Parse(endDate); err != nil {
		return fmt.Errorf("-end: %w", err)
	}

	ctx := context.Background()
	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetLogger(logger.With("module", "database"))

	var out any
	if save {
		svc := billing.NewService(logger, db, cnfg.Tariff.Tariff(), cnfg.Tariff.Anchor())
		if out, err = svc.ComputeExplicit(ctx, in, cnfg.Tariff.Tariff()); err != nil {
			return err
		}
	} else {
		t := cnfg.Tariff.Tariff()
		remaining, err := quota.Remaining(ctx, db, in.EndDate, cnfg.Tariff.Anchor(), t.AnnualQuotaMJ)
		if err != nil {
			return err
		}
		if out, err = calc.ComputePeriod(in, t, maybe.Some(remaining)); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
