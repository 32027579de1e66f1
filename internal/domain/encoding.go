package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const compactWidth = 6

// ParseCompactDate decodes a DDMMYY[.fraction] instrument date. The fraction
// is discarded, short values are left-padded with zeros and the year is 20YY.
func ParseCompactDate(raw string) (CivilDate, error) {
	digits, ok := compactDigits(raw)
	if !ok {
		return CivilDate{}, malformed(ErrMalformedDate, raw)
	}
	d := CivilDate{
		Day:   pairAt(digits, 0),
		Month: time.Month(pairAt(digits, 2)),
		Year:  2000 + pairAt(digits, 4),
	}
	if !d.Valid() {
		return CivilDate{}, malformed(ErrMalformedDate, raw)
	}
	return d, nil
}

// FormatCompactDate encodes d as DDMMYY. Years outside 2000-2099 have no
// compact form.
func FormatCompactDate(d CivilDate) (string, error) {
	if d.Year < 2000 || d.Year > 2099 || !d.Valid() {
		return "", fmt.Errorf("format compact date %s: %w", d, ErrOutOfDomain)
	}
	return fmt.Sprintf("%02d%02d%02d", d.Day, int(d.Month), d.Year-2000), nil
}

// ParseCompactTime decodes an HHMMSS[.fraction] instrument time with the same
// padding and truncation rules as ParseCompactDate. The result carries no zone;
// see Combine.
func ParseCompactTime(raw string) (TimeOfDay, error) {
	digits, ok := compactDigits(raw)
	if !ok {
		return TimeOfDay{}, malformed(ErrMalformedTime, raw)
	}
	t := TimeOfDay{
		Hour:   pairAt(digits, 0),
		Minute: pairAt(digits, 2),
		Second: pairAt(digits, 4),
	}
	if !t.Valid() {
		return TimeOfDay{}, malformed(ErrMalformedTime, raw)
	}
	return t, nil
}

// FormatCompactTime encodes t as HHMMSS.
func FormatCompactTime(t TimeOfDay) string {
	return fmt.Sprintf("%02d%02d%02d", t.Hour, t.Minute, t.Second)
}

// ParseLatitude decodes DDMM.MMMM (degrees North) to decimal degrees.
func ParseLatitude(raw string) (float64, error) {
	return parseSexagesimal(raw, 2, 90)
}

// ParseLongitude decodes DDDMM.MMMM to decimal degrees. The raw encoding is
// West-positive; callers negate the result to get the signed convention.
func ParseLongitude(raw string) (float64, error) {
	return parseSexagesimal(raw, 3, 180)
}

// FormatLatitude is the inverse of ParseLatitude, to four decimal minutes.
func FormatLatitude(deg float64) string {
	return formatSexagesimal(deg, 2)
}

// FormatLongitude is the inverse of ParseLongitude for a West-positive value.
func FormatLongitude(deg float64) string {
	return formatSexagesimal(deg, 3)
}

func parseSexagesimal(raw string, degDigits int, maxDeg float64) (float64, error) {
	s := strings.TrimSpace(raw)
	if len(s) <= degDigits || !allDigits(s[:degDigits]) || !decimalOnly(s[degDigits:]) {
		return 0, malformed(ErrMalformedCoordinate, raw)
	}
	deg, err := strconv.Atoi(s[:degDigits])
	if err != nil {
		return 0, malformed(ErrMalformedCoordinate, raw)
	}
	minutes, err := strconv.ParseFloat(s[degDigits:], 64)
	if err != nil || minutes >= 60 {
		return 0, malformed(ErrMalformedCoordinate, raw)
	}
	v := float64(deg) + minutes/60
	if v > maxDeg {
		return 0, malformed(ErrMalformedCoordinate, raw)
	}
	return v, nil
}

func formatSexagesimal(deg float64, degDigits int) string {
	deg = math.Abs(deg)
	whole := math.Floor(deg)
	minutes := (deg - whole) * 60
	// Rounding can carry minutes up to 60.0000.
	if math.Round(minutes*10000) >= 600000 {
		whole++
		minutes = 0
	}
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(whole), minutes)
}

// compactDigits strips the fractional suffix and left-pads to six digits.
func compactDigits(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if s == "" || len(s) > compactWidth || !allDigits(s) {
		return "", false
	}
	return strings.Repeat("0", compactWidth-len(s)) + s, true
}

func pairAt(digits string, i int) int {
	return int(digits[i]-'0')*10 + int(digits[i+1]-'0')
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// decimalOnly accepts an unsigned decimal such as "30.5" or "07".
func decimalOnly(s string) bool {
	dot := false
	digits := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '.' && !dot:
			dot = true
		case s[i] >= '0' && s[i] <= '9':
			digits++
		default:
			return false
		}
	}
	return digits > 0
}
