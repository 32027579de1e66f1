// Package query evaluates declarative read requests over stored
// observations: filter, sort, paginate, then project.
package query

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// Kind is the top-level request kind.
type Kind string

const (
	KindAvailableDates Kind = "list-available-dates"
	KindLatestWindow   Kind = "latest-window"
	KindTimeRange      Kind = "time-range-query"
)

// Clause limits.
const (
	MaxFilters = 5
	MaxSorts   = 3
)

// FilterClause is one element of the filter parameter.
type FilterClause struct {
	Type       string          `json:"type"`
	Field      string          `json:"field"`
	Value      json.RawMessage `json:"value"`
	Comparison string          `json:"comparison,omitempty"`
}

// SortClause is one element of the sort parameter.
type SortClause struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Query is the shaping part of a request, shared by all kinds.
type Query struct {
	Filters []FilterClause
	Sorts   []SortClause
	Fields  []string
	Limit   *int
	Index   int
}

// Request is a parsed read request.
type Request struct {
	Kind    Kind
	Station string

	// time-range-query
	Begin string
	End   string

	// latest-window
	N    int
	Unit string

	Query
}

// ParseRequest decodes request parameters. It checks structure and clause
// counts; clause semantics are checked when the query is compiled.
func ParseRequest(params url.Values) (Request, error) {
	req := Request{
		Kind:    Kind(strings.TrimSpace(params.Get("request"))),
		Station: domain.NormalizeStationCode(params.Get("sid")),
		Begin:   strings.TrimSpace(params.Get("begin")),
		End:     strings.TrimSpace(params.Get("end")),
		Unit:    strings.TrimSpace(params.Get("unit")),
	}
	if req.Kind == "" {
		return req, domain.BadRequest("missing request parameter")
	}
	if req.Station == "" {
		return req, domain.BadRequest("missing sid parameter")
	}

	var err error
	if req.N, err = optionalInt(params, "n", 1, 1); err != nil {
		return req, err
	}
	if req.Query, err = parseQuery(params); err != nil {
		return req, err
	}
	return req, nil
}

func parseQuery(params url.Values) (Query, error) {
	var q Query
	if err := decodeParam(params, "filter", &q.Filters); err != nil {
		return q, err
	}
	if len(q.Filters) > MaxFilters {
		return q, &domain.ThrottledError{Param: "filter", Limit: MaxFilters, Got: len(q.Filters)}
	}
	if err := decodeParam(params, "sort", &q.Sorts); err != nil {
		return q, err
	}
	if len(q.Sorts) > MaxSorts {
		return q, &domain.ThrottledError{Param: "sort", Limit: MaxSorts, Got: len(q.Sorts)}
	}
	if err := decodeParam(params, "fields", &q.Fields); err != nil {
		return q, err
	}
	for _, f := range q.Fields {
		if _, ok := domain.LookupAttribute(f); !ok {
			return q, domain.BadRequest("unknown field %q", f)
		}
	}

	if params.Get("limit") != "" {
		limit, err := optionalInt(params, "limit", 0, 0)
		if err != nil {
			return q, err
		}
		q.Limit = &limit
	}
	index, err := optionalInt(params, "index", 0, 0)
	if err != nil {
		return q, err
	}
	q.Index = index
	return q, nil
}

func decodeParam(params url.Values, name string, dst any) error {
	raw := strings.TrimSpace(params.Get(name))
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return domain.BadRequest("malformed %s parameter: %v", name, err)
	}
	return nil
}

func optionalInt(params url.Values, name string, fallback, lo int) (int, error) {
	raw := strings.TrimSpace(params.Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo {
		return 0, domain.BadRequest("%s must be an integer >= %d", name, lo)
	}
	return n, nil
}
