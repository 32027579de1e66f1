package query

import (
	"cmp"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

type comparator func(a, b *domain.Observation) int

// compileSort returns nil for a clause with an empty direction.
func compileSort(c SortClause) (comparator, error) {
	attr, ok := domain.LookupAttribute(c.Field)
	if !ok {
		return nil, domain.BadRequest("unknown sort field %q", c.Field)
	}
	var sign int
	switch strings.ToLower(c.Direction) {
	case "":
		return nil, nil
	case "asc":
		sign = 1
	case "desc":
		sign = -1
	default:
		return nil, domain.BadRequest("unknown sort direction %q", c.Direction)
	}
	return func(a, b *domain.Observation) int {
		return sign * compareValues(attr.Value(a), attr.Value(b))
	}, nil
}

// compareValues orders two values of the same attribute. Nulls sort first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int, float64:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmp.Compare(fa, fb)
	case string:
		return cmp.Compare(x, b.(string))
	case bool:
		return cmp.Compare(boolRank(x), boolRank(b.(bool)))
	case time.Time:
		return x.Compare(b.(time.Time))
	case orb.Point:
		y := b.(orb.Point)
		if c := cmp.Compare(x.Lon(), y.Lon()); c != 0 {
			return c
		}
		return cmp.Compare(x.Lat(), y.Lat())
	}
	return cmp.Compare(render(a), render(b))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
