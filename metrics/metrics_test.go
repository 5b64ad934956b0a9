package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCalculation(t *testing.T) {
	before := testutil.ToFloat64(calculationsTotal.WithLabelValues("latest", ResultInvalid))
	ObserveCalculation("latest", ResultInvalid)
	after := testutil.ToFloat64(calculationsTotal.WithLabelValues("latest", ResultInvalid))
	if after-before != 1 {
		t.Errorf("got increment %f, wanted 1", after-before)
	}
}

func TestSetRemainingQuota(t *testing.T) {
	SetRemainingQuota(1234.5)
	if got := testutil.ToFloat64(remainingQuotaMJ); got != 1234.5 {
		t.Errorf("got %f, wanted 1234.5", got)
	}
}

func TestStatusRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewStatusRecorder(rr)
	http.Redirect(rec, httptest.NewRequest(http.MethodPost, "/compute", nil), "/", http.StatusSeeOther)
	if rec.Status != http.StatusSeeOther {
		t.Errorf("got %d, wanted %d", rec.Status, http.StatusSeeOther)
	}

	rr = httptest.NewRecorder()
	rec = NewStatusRecorder(rr)
	rec.Write([]byte("ok"))
	rec.WriteHeader(http.StatusTeapot)
	if rec.Status != http.StatusOK {
		t.Errorf("got %d, wanted implicit %d", rec.Status, http.StatusOK)
	}
}
