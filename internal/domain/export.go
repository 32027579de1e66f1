package domain

import "strconv"

const exportDatetimeLayout = "2006-01-02 15:04:05"

// ExportHeader returns the column names of a full-history export for st.
// Elevation follows longitude only for stations reporting it.
func ExportHeader(st Station) []string {
	cols := []string{"Satellites", "HDOP", "Time", "Date", "Datetime", "Latitude", "Longitude"}
	if st.Has(CapabilityElevation) {
		cols = append(cols, "Elevation")
	}
	return append(cols,
		"GPS Valid", "Range (cm)", "Optical Range (cm)", "Ablation Valid",
		"Irradiance", "Reflectance", "Wind Speed", "Temperature (C)", "Voltage")
}

// ExportRow renders o in ExportHeader(st) order. Datetime is shown in the
// station's zone; nulls are empty cells.
func ExportRow(o Observation, st Station) []string {
	row := []string{
		strconv.Itoa(o.Sats),
		formatNullable(o.HDOP),
		o.Time.String(),
		o.Date.String(),
		o.Datetime.In(st.Location()).Format(exportDatetimeLayout),
		formatFloat(o.Lat),
		formatFloat(o.Lng),
	}
	if st.Has(CapabilityElevation) {
		row = append(row, formatNullable(o.Elev))
	}
	return append(row,
		strconv.FormatBool(o.GPSValid),
		formatFloat(o.RangeCM),
		formatNullable(o.OpticalRangeCM),
		strconv.FormatBool(o.RangeValid),
		strconv.Itoa(o.Above),
		strconv.Itoa(o.Below),
		formatFloat(o.WindSpd),
		formatNullable(o.TempC),
		formatFloat(o.Volts),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNullable(p *float64) string {
	if p == nil {
		return ""
	}
	return formatFloat(*p)
}
