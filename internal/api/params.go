package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const dateOnlyLayout = "2006-01-02"

// parseDate accepts RFC3339 timestamps or bare YYYY-MM-DD dates, the latter
// read as midnight UTC.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateOnlyLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an RFC3339 timestamp or YYYY-MM-DD date", raw)
	}
	return t, nil
}

func urlUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a valid UUID", name)
	}
	return id, nil
}

// queryParams collects the first parse error so handlers can read every
// parameter and check once.
type queryParams struct {
	r   *http.Request
	err error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{r: r}
}

func (q *queryParams) raw(name string) string {
	return strings.TrimSpace(q.r.URL.Query().Get(name))
}

func (q *queryParams) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

func (q *queryParams) optionalUUID(name string) *uuid.UUID {
	v := q.raw(name)
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		q.fail(fmt.Errorf("%s must be a valid UUID", name))
		return nil
	}
	return &id
}

func (q *queryParams) requiredUUID(name string) uuid.UUID {
	id := q.optionalUUID(name)
	if id == nil {
		q.fail(fmt.Errorf("%s is required", name))
		return uuid.Nil
	}
	return *id
}

func (q *queryParams) optionalDate(name string) *time.Time {
	v := q.raw(name)
	if v == "" {
		return nil
	}
	t, err := parseDate(v)
	if err != nil {
		q.fail(fmt.Errorf("%s: %w", name, err))
		return nil
	}
	return &t
}

// requiredDate leaves the zero time when absent so the service reports the
// missing range itself.
func (q *queryParams) requiredDate(name string) time.Time {
	if t := q.optionalDate(name); t != nil {
		return *t
	}
	return time.Time{}
}

func (q *queryParams) intOr(name string, def int) int {
	v := q.raw(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		q.fail(fmt.Errorf("%s must be an integer", name))
		return def
	}
	return n
}

func (q *queryParams) optionalBool(name string) *bool {
	v := q.raw(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(fmt.Errorf("%s must be true or false", name))
		return nil
	}
	return &b
}

func (q *queryParams) list(name string) []string {
	var out []string
	for _, part := range strings.Split(q.raw(name), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
