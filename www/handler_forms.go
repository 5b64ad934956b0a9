package www

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/angas/gasquota/billing"
	"github.com/angas/gasquota/calc"
)

// formHandlers serve the mutating form posts of the index page. All of them
// answer with a redirect back to it, problems end up as flash messages.
type formHandlers struct {
	logger  *slog.Logger
	svc     *billing.Service
	flashes *flashes
}

func newFormHandlers(logger *slog.Logger, svc *billing.Service, fl *flashes) *formHandlers {
	return &formHandlers{logger: logger, svc: svc, flashes: fl}
}

func (h *formHandlers) done(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		if billing.IsValidationError(err) {
			h.logger.Info("form rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			h.flashes.add(w, r, err.Error())
		} else {
			h.logger.Error("handling form", slog.String("path", r.URL.Path), slog.Any("error", err))
			h.flashes.add(w, r, "Internal error, see the log for details")
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// invalid reports a malformed form field.
func (h *formHandlers) invalid(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Info("form rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
	h.flashes.add(w, r, err.Error())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *formHandlers) addReading(w http.ResponseWriter, r *http.Request) {
	d, err := formDate(r, "reading_date")
	if err != nil {
		h.invalid(w, r, err)
		return
	}
	m3, err := formFloat(r, "meter_m3")
	if err != nil {
		h.invalid(w, r, err)
		return
	}
	note := strings.TrimSpace(r.PostFormValue("note"))

	_, err = h.svc.AddReading(r.Context(), "web", d, m3, note)
	h.done(w, r, err)
}

func (h *formHandlers) deleteReading(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r, "reading_id")
	if err != nil {
		h.invalid(w, r, err)
		return
	}
	h.done(w, r, h.svc.DeleteReading(r.Context(), id))
}

func (h *formHandlers) deleteCalc(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r, "calc_id")
	if err != nil {
		h.invalid(w, r, err)
		return
	}
	h.done(w, r, h.svc.DeleteCalculation(r.Context(), id))
}

func (h *formHandlers) computeLatest(w http.ResponseWriter, r *http.Request) {
	_, err := h.svc.ComputeLatest(r.Context())
	h.done(w, r, err)
}

// compute runs an explicit calculation, blank tariff fields fall back to the
// configured tariff.
func (h *formHandlers) compute(w http.ResponseWriter, r *http.Request) {
	var in calc.PeriodInput
	var err error

	if in.StartDate, err = formDate(r, "start_date"); err != nil {
		h.invalid(w, r, err)
		return
	}
	if in.EndDate, err = formDate(r, "end_date"); err != nil {
		h.invalid(w, r, err)
		return
	}
	if in.StartM3, err = formFloat(r, "start_m3"); err != nil {
		h.invalid(w, r, err)
		return
	}
	if in.EndM3, err = formFloat(r, "end_m3"); err != nil {
		h.invalid(w, r, err)
		return
	}

	t := h.svc.Tariff()
	overrides := []struct {
		key string
		dst *float64
	}{
		{"mj_per_m3", &t.MJPerM3},
		{"price_discount", &t.PriceDiscount},
		{"price_market", &t.PriceMarket},
		{"annual_quota_mj", &t.AnnualQuotaMJ},
	}
	for _, o := range overrides {
		v, err := formOptionalFloat(r, o.key)
		if err != nil {
			h.invalid(w, r, err)
			return
		}
		*o.dst = v.ValueOrDefault(*o.dst)
	}

	_, err = h.svc.ComputeExplicit(r.Context(), in, t)
	h.done(w, r, err)
}
