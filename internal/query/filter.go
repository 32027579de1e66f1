package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// Filter clause types.
const (
	TypeNumeric = "numeric"
	TypeString  = "string"
	TypeList    = "list"
)

// String comparisons.
const (
	CompareContains = "contains"
	CompareWithin   = "within"
)

type predicate func(o *domain.Observation) bool

func compileFilter(c FilterClause) (predicate, error) {
	var compile func(domain.Attribute, FilterClause) (predicate, error)
	switch strings.ToLower(c.Type) {
	case TypeNumeric:
		compile = numericFilter
	case TypeString:
		compile = stringFilter
	case TypeList:
		compile = listFilter
	default:
		return nil, &domain.NotImplementedError{What: fmt.Sprintf("filter type %q", c.Type)}
	}
	attr, ok := domain.LookupAttribute(c.Field)
	if !ok {
		return nil, domain.BadRequest("unknown filter field %q", c.Field)
	}
	if len(c.Value) == 0 {
		return nil, domain.BadRequest("filter on %q has no value", c.Field)
	}
	return compile(attr, c)
}

func numericFilter(attr domain.Attribute, c FilterClause) (predicate, error) {
	if attr.Kind != domain.KindNumber {
		return nil, domain.BadRequest("field %q is not numeric", attr.Name)
	}
	var want float64
	if err := json.Unmarshal(c.Value, &want); err != nil {
		return nil, domain.BadRequest("numeric filter on %q needs a number", attr.Name)
	}

	var cmp func(got float64) bool
	switch strings.ToLower(c.Comparison) {
	case "", "eq":
		cmp = func(got float64) bool { return got == want }
	case "ne":
		cmp = func(got float64) bool { return got != want }
	case "lt":
		cmp = func(got float64) bool { return got < want }
	case "lte":
		cmp = func(got float64) bool { return got <= want }
	case "gt":
		cmp = func(got float64) bool { return got > want }
	case "gte":
		cmp = func(got float64) bool { return got >= want }
	default:
		return nil, domain.BadRequest("unknown numeric comparison %q", c.Comparison)
	}

	return func(o *domain.Observation) bool {
		got, ok := toFloat(attr.Value(o))
		return ok && cmp(got)
	}, nil
}

func stringFilter(attr domain.Attribute, c FilterClause) (predicate, error) {
	var want string
	if err := json.Unmarshal(c.Value, &want); err != nil {
		return nil, domain.BadRequest("string filter on %q needs a string", attr.Name)
	}

	switch strings.ToLower(c.Comparison) {
	case "", CompareContains:
		needle := strings.ToLower(want)
		return func(o *domain.Observation) bool {
			v := attr.Value(o)
			return v != nil && strings.Contains(strings.ToLower(render(v)), needle)
		}, nil
	case CompareWithin:
		if attr.Kind != domain.KindPoint {
			return nil, domain.BadRequest("within applies only to %q", domain.PointAttribute)
		}
		contains, err := parseArea(want)
		if err != nil {
			return nil, err
		}
		return func(o *domain.Observation) bool { return contains(o.Point) }, nil
	default:
		return nil, domain.BadRequest("unknown string comparison %q", c.Comparison)
	}
}

func listFilter(attr domain.Attribute, c FilterClause) (predicate, error) {
	var items []any
	if err := json.Unmarshal(c.Value, &items); err != nil {
		return nil, domain.BadRequest("list filter on %q needs an array", attr.Name)
	}
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[render(it)] = struct{}{}
	}
	return func(o *domain.Observation) bool {
		v := attr.Value(o)
		if v == nil {
			return false
		}
		_, ok := set[render(v)]
		return ok
	}, nil
}

// parseArea accepts a WKT polygon or multipolygon, or a
// "minLng,minLat,maxLng,maxLat" bounding box.
func parseArea(s string) (func(orb.Point) bool, error) {
	if b, ok := parseBBox(s); ok {
		return b.Contains, nil
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, domain.BadRequest("within needs a WKT polygon or bounding box: %v", err)
	}
	switch area := g.(type) {
	case orb.Polygon:
		return func(p orb.Point) bool { return planar.PolygonContains(area, p) }, nil
	case orb.MultiPolygon:
		return func(p orb.Point) bool { return planar.MultiPolygonContains(area, p) }, nil
	default:
		return nil, domain.BadRequest("within needs an area, got %s", g.GeoJSONType())
	}
}

func parseBBox(s string) (orb.Bound, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, false
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

// render gives the canonical text of an attribute or JSON value, so that 4
// and 4.0 or "true" and true compare equal.
func render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case orb.Point:
		return wkt.MarshalString(x)
	}
	return fmt.Sprint(v)
}
