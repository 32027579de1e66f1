package domain

import "strings"

// FieldKind selects the conversion applied to a raw field.
type FieldKind int

const (
	FieldValidity FieldKind = iota
	FieldInt
	FieldFloat
	FieldDate
	FieldTime
	FieldLatitude
	FieldLongitude
)

// RawField maps one raw telemetry field to its canonical attribute.
// Position is the column index in header-free files, or -1 when the field
// only appears in header files.
type RawField struct {
	Alias     string
	Canonical string
	Kind      FieldKind
	Nullable  bool
	Position  int
}

// PositionalFieldCount is the number of columns in a header-free line.
const PositionalFieldCount = 14

var rawFields = []RawField{
	{Alias: "valid", Canonical: "valid", Kind: FieldValidity, Position: 0},
	{Alias: "sats", Canonical: "sats", Kind: FieldInt, Position: 1},
	{Alias: "hdop", Canonical: "hdop", Kind: FieldFloat, Nullable: true, Position: 2},
	{Alias: "time", Canonical: "time", Kind: FieldTime, Position: 3},
	{Alias: "date", Canonical: "date", Kind: FieldDate, Position: 4},
	{Alias: "lat", Canonical: "lat", Kind: FieldLatitude, Position: 5},
	{Alias: "long", Canonical: "lng", Kind: FieldLongitude, Position: 6},
	{Alias: "range", Canonical: "range_cm", Kind: FieldFloat, Position: 7},
	{Alias: "opt", Canonical: "optical_range_cm", Kind: FieldFloat, Nullable: true, Position: 8},
	{Alias: "topl", Canonical: "above", Kind: FieldInt, Position: 9},
	{Alias: "botl", Canonical: "below", Kind: FieldInt, Position: 10},
	{Alias: "wind", Canonical: "wind_spd", Kind: FieldFloat, Position: 11},
	{Alias: "temp", Canonical: "temp_C", Kind: FieldFloat, Nullable: true, Position: 12},
	{Alias: "batt", Canonical: "volts", Kind: FieldFloat, Position: 13},
	{Alias: "alt", Canonical: "elev", Kind: FieldFloat, Nullable: true, Position: -1},
}

// LookupRawField resolves a raw field alias, case-insensitively.
func LookupRawField(alias string) (RawField, bool) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	for _, f := range rawFields {
		if f.Alias == alias {
			return f, true
		}
	}
	return RawField{}, false
}

// PositionalFields returns the fields of a header-free line indexed by column.
func PositionalFields() []RawField {
	out := make([]RawField, PositionalFieldCount)
	for _, f := range rawFields {
		if f.Position >= 0 {
			out[f.Position] = f
		}
	}
	return out
}

// RequiredFields lists the fields every record must carry.
func RequiredFields() []RawField {
	var out []RawField
	for _, f := range rawFields {
		if !f.Nullable {
			out = append(out, f)
		}
	}
	return out
}
