package domain

import "slices"

// AttrKind classifies an observation attribute for filtering and sorting.
type AttrKind int

const (
	KindNumber AttrKind = iota
	KindString
	KindBool
	KindTime
	KindPoint
)

// Attribute is a queryable observation attribute. Value returns the native
// value, or nil for a null.
type Attribute struct {
	Name  string
	Kind  AttrKind
	Value func(o *Observation) any
}

// PointAttribute is the geometry attribute name.
const PointAttribute = "point"

var attributes = []Attribute{
	{"site", KindString, func(o *Observation) any { return o.Station }},
	{"valid", KindBool, func(o *Observation) any { return o.Valid }},
	{"sats", KindNumber, func(o *Observation) any { return o.Sats }},
	{"hdop", KindNumber, func(o *Observation) any { return deref(o.HDOP) }},
	{"date", KindString, func(o *Observation) any { return o.Date.String() }},
	{"time", KindString, func(o *Observation) any { return o.Time.String() }},
	{"datetime", KindTime, func(o *Observation) any { return o.Datetime }},
	{"lat", KindNumber, func(o *Observation) any { return o.Lat }},
	{"lng", KindNumber, func(o *Observation) any { return o.Lng }},
	{PointAttribute, KindPoint, func(o *Observation) any { return o.Point }},
	{"elev", KindNumber, func(o *Observation) any { return deref(o.Elev) }},
	{"gps_valid", KindBool, func(o *Observation) any { return o.GPSValid }},
	{"range_valid", KindBool, func(o *Observation) any { return o.RangeValid }},
	{"range_cm", KindNumber, func(o *Observation) any { return o.RangeCM }},
	{"optical_range_cm", KindNumber, func(o *Observation) any { return deref(o.OpticalRangeCM) }},
	{"above", KindNumber, func(o *Observation) any { return o.Above }},
	{"below", KindNumber, func(o *Observation) any { return o.Below }},
	{"wind_spd", KindNumber, func(o *Observation) any { return o.WindSpd }},
	{"temp_C", KindNumber, func(o *Observation) any { return deref(o.TempC) }},
	{"volts", KindNumber, func(o *Observation) any { return o.Volts }},
}

// LookupAttribute finds a queryable attribute by its canonical name.
func LookupAttribute(name string) (Attribute, bool) {
	i := slices.IndexFunc(attributes, func(a Attribute) bool { return a.Name == name })
	if i < 0 {
		return Attribute{}, false
	}
	return attributes[i], true
}

// AttributeNames lists the queryable attribute names in declaration order.
func AttributeNames() []string {
	names := make([]string, len(attributes))
	for i, a := range attributes {
		names[i] = a.Name
	}
	return names
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
