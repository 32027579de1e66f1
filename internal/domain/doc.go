// Package domain models glacier ablation telemetry transmitted by remote
// monitoring stations.
//
// # Data Source
//
// Each station carries a GPS receiver, an acoustic ranger pointed at the ice
// surface and a small set of meteorological sensors. Readings are relayed over
// an Iridium uplink and land as comma-delimited text, either one aggregate
// file per station (first row is a header) or a header-free stream of
// positional lines.
//
// # Instrument Conventions
//
// Positional layout (header-free files):
//
//	0 valid  1 sats  2 hdop  3 time  4 date  5 lat  6 long  7 range
//	8 opt    9 topl 10 botl 11 wind 12 temp 13 batt
//
// Header files address the same fields by alias; "alt" (elevation) only
// appears in header files. See [LookupRawField].
//
// Validity code:
//
//	"A" (active) marks a reading the instrument considers valid; "V" (void)
//	lines are dropped before normalization.
//
// Date and time:
//
//	DDMMYY and HHMMSS, optionally followed by a fractional part which is
//	discarded. Short values are left-padded with zeros ("10712" -> "010712").
//	The two-digit year is 20YY. Both are naive station-local values; the
//	station's UTC offset (or an explicit zone) is applied once when the
//	composite datetime is derived.
//
// Coordinates:
//
//	Latitude DDMM.MMMM, degrees North.
//	Longitude DDDMM.MMMM, degrees West as transmitted. Stored negated so that
//	every persisted longitude follows the signed convention (West negative).
//
// Unknown values:
//
//	An empty field or the null token "_" is null. Only hdop, elevation,
//	optical range and temperature may be null; temperature drops out when the
//	sensor cannot report sub-zero values.
package domain
