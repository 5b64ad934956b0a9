package www

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/angas/gasquota/convert"
	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/types/maybe"
)

func intOrDefault(u *url.URL, key string, defaultValue int) int {
	if v := u.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return defaultValue
}

func formDate(r *http.Request, key string) (dates.Date, error) {
	v := strings.TrimSpace(r.PostFormValue(key))
	if v == "" {
		return dates.Date{}, fmt.Errorf("%s is required", key)
	}
	d, err := dates.Parse(v)
	if err != nil {
		return dates.Date{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	v := strings.TrimSpace(r.PostFormValue(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, err := convert.ParseDecimal(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// formOptionalFloat is None for a missing or blank field.
func formOptionalFloat(r *http.Request, key string) (maybe.Maybe[float64], error) {
	if strings.TrimSpace(r.PostFormValue(key)) == "" {
		return maybe.None[float64](), nil
	}
	f, err := formFloat(r, key)
	if err != nil {
		return maybe.None[float64](), err
	}
	return maybe.Some(f), nil
}

func formID(r *http.Request, key string) (int64, error) {
	v := strings.TrimSpace(r.PostFormValue(key))
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid id %q", key, v)
	}
	return id, nil
}
