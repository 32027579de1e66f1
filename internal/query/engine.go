package query

import (
	"slices"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// Compiled is a validated Query ready to run against any number of
// observation sets.
type Compiled struct {
	filters []predicate
	sorts   []comparator
	fields  []domain.Attribute
	limit   *int
	index   int
}

// Compile validates every clause of q.
func Compile(q Query) (*Compiled, error) {
	if len(q.Filters) > MaxFilters {
		return nil, &domain.ThrottledError{Param: "filter", Limit: MaxFilters, Got: len(q.Filters)}
	}
	if len(q.Sorts) > MaxSorts {
		return nil, &domain.ThrottledError{Param: "sort", Limit: MaxSorts, Got: len(q.Sorts)}
	}

	c := &Compiled{limit: q.Limit, index: q.Index}
	for _, f := range q.Filters {
		p, err := compileFilter(f)
		if err != nil {
			return nil, err
		}
		c.filters = append(c.filters, p)
	}
	for _, s := range q.Sorts {
		cmp, err := compileSort(s)
		if err != nil {
			return nil, err
		}
		if cmp != nil {
			c.sorts = append(c.sorts, cmp)
		}
	}
	if q.Fields != nil {
		c.fields = make([]domain.Attribute, 0, len(q.Fields))
		for _, name := range q.Fields {
			attr, ok := domain.LookupAttribute(name)
			if !ok {
				return nil, domain.BadRequest("unknown field %q", name)
			}
			c.fields = append(c.fields, attr)
		}
	}
	if c.index < 0 || (c.limit != nil && *c.limit < 0) {
		return nil, domain.BadRequest("limit and index must not be negative")
	}
	return c, nil
}

// Result is a shaped result set. Rows is set instead of Observations when
// fields were projected.
type Result struct {
	Observations []domain.Observation
	Rows         []map[string]any
}

// Data returns the payload for the response envelope.
func (r Result) Data() any {
	if r.Rows != nil {
		return r.Rows
	}
	if r.Observations == nil {
		return []domain.Observation{}
	}
	return r.Observations
}

// Count returns the number of records in the result.
func (r Result) Count() int {
	if r.Rows != nil {
		return len(r.Rows)
	}
	return len(r.Observations)
}

// Apply filters, sorts, paginates and projects obs. The input is not modified.
func (c *Compiled) Apply(obs []domain.Observation) Result {
	out := make([]domain.Observation, 0, len(obs))
	for i := range obs {
		if c.match(&obs[i]) {
			out = append(out, obs[i])
		}
	}

	if len(c.sorts) > 0 {
		slices.SortStableFunc(out, func(a, b domain.Observation) int {
			for _, cmp := range c.sorts {
				if r := cmp(&a, &b); r != 0 {
					return r
				}
			}
			return 0
		})
	}

	out = c.page(out)

	if c.fields == nil {
		return Result{Observations: out}
	}
	rows := make([]map[string]any, len(out))
	for i := range out {
		row := make(map[string]any, len(c.fields))
		for _, attr := range c.fields {
			row[attr.Name] = attr.Value(&out[i])
		}
		rows[i] = row
	}
	return Result{Rows: rows}
}

func (c *Compiled) match(o *domain.Observation) bool {
	for _, p := range c.filters {
		if !p(o) {
			return false
		}
	}
	return true
}

// page returns the half-open slice [index, index+limit).
func (c *Compiled) page(obs []domain.Observation) []domain.Observation {
	if c.limit == nil {
		if c.index == 0 {
			return obs
		}
		return obs[min(c.index, len(obs)):]
	}
	start := min(c.index, len(obs))
	end := start + min(*c.limit, len(obs)-start)
	return obs[start:end]
}
