package www

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/angas/gasquota/billing"
	"github.com/angas/gasquota/database"
	"github.com/gorilla/mux"
	"github.com/jung-kurt/gofpdf"
)

func NewStatementHandler(logger *slog.Logger, svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		pc, err := svc.Calculation(r.Context(), id)
		if errors.Is(err, billing.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			logger.Error("handling statement request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var buf bytes.Buffer
		if err := writeStatement(&buf, pc, time.Now()); err != nil {
			logger.Error("rendering statement", slog.Int64("id", id), slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`inline; filename="gas_%s_%s.pdf"`, pc.StartDate, pc.EndDate))
		if _, err := buf.WriteTo(w); err != nil {
			logger.Debug("writing statement response", slog.Any("error", err))
		}
	}
}

// writeStatement renders one period calculation as a single A4 page.
func writeStatement(buf *bytes.Buffer, pc database.PeriodCalcRow, generated time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(fmt.Sprintf("Gas statement %d", pc.ID), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(0, 10, "Gas consumption statement")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s (%d days)",
		pc.StartDate.LocalizedString(), pc.EndDate.LocalizedString(), pc.Days))
	pdf.Ln(5)
	pdf.Cell(0, 6, "Generated: "+generated.Format("2006.01.02. 15:04"))
	pdf.Ln(12)

	pdf.SetTextColor(0, 0, 0)
	section := func(title string, rows [][2]string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(180, 8, title, "B", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, row := range rows {
			pdf.CellFormat(120, 7, row[0], "", 0, "L", false, 0, "")
			pdf.CellFormat(60, 7, row[1], "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	section("Meter", [][2]string{
		{"Start reading", fmt.Sprintf("%.3f m3", pc.StartM3)},
		{"End reading", fmt.Sprintf("%.3f m3", pc.EndM3)},
		{"Used", fmt.Sprintf("%.3f m3", pc.UsedM3)},
		{"Energy content", fmt.Sprintf("%.2f MJ/m3", pc.MJPerM3)},
		{"Used energy", fmt.Sprintf("%.1f MJ", pc.UsedMJ)},
	})

	section("Quota", [][2]string{
		{"Annual quota", fmt.Sprintf("%.0f MJ", pc.AnnualQuotaMJ)},
		{"Pro-rated share of the period", fmt.Sprintf("%.1f MJ", pc.DiscountMaxMJ)},
		{"Discounted energy", fmt.Sprintf("%.1f MJ", pc.DiscountMJ)},
		{"Market priced energy", fmt.Sprintf("%.1f MJ", pc.MarketMJ)},
	})

	section("Cost", [][2]string{
		{fmt.Sprintf("Discounted (%.1f MJ x %.3f)", pc.DiscountMJ, pc.PriceDiscount), fmt.Sprintf("%.0f", pc.DiscountCost)},
		{fmt.Sprintf("Market (%.1f MJ x %.3f)", pc.MarketMJ, pc.PriceMarket), fmt.Sprintf("%.0f", pc.MarketCost)},
	})

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(120, 9, "Total energy cost", "T", 0, "L", false, 0, "")
	pdf.CellFormat(60, 9, fmt.Sprintf("%.0f", pc.TotalEnergyCost), "T", 1, "R", false, 0, "")

	return pdf.Output(buf)
}
