package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/glacier-telemetry/internal/domain"
)

// VoidMarker in the first column marks a line the instrument flagged as void.
const VoidMarker = "V"

// placeholderToken is written by some loggers in place of an unset reading.
const placeholderToken = "**.*"

// ErrStructure reports a line that cannot be mapped onto the field layout.
var ErrStructure = errors.New("line does not match field layout")

// Line is one cleaned input line. Header is nil for positional lines.
type Line struct {
	Source string
	Number int
	Header []string
	Fields []string

	values map[string]string
	err    error
}

// RecordLine wraps an already keyed raw field mapping as a line.
func RecordLine(source string, number int, values map[string]string) Line {
	return Line{Source: source, Number: number, values: values}
}

// Blank reports whether every field is empty after cleanup.
func (l Line) Blank() bool {
	if l.err != nil {
		return false
	}
	for _, v := range l.values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	for _, f := range l.Fields {
		if f != "" {
			return false
		}
	}
	return true
}

// Void reports whether the line carries the void marker.
func (l Line) Void() bool {
	return len(l.Fields) > 0 && l.Fields[0] == VoidMarker
}

// Record maps the line's fields to raw aliases, by header name when the line
// has a header and by fixed position otherwise.
func (l Line) Record() (domain.RawRecord, error) {
	rec := domain.RawRecord{Source: l.Source, Line: l.Number, Values: make(map[string]string)}
	if l.err != nil {
		return rec, fmt.Errorf("%w: %v", ErrStructure, l.err)
	}
	if l.values != nil {
		for k, v := range l.values {
			rec.Values[k] = v
		}
		return rec, nil
	}
	if l.Header != nil {
		if len(l.Fields) != len(l.Header) {
			return rec, fmt.Errorf("%w: %d fields, header has %d", ErrStructure, len(l.Fields), len(l.Header))
		}
		for i, name := range l.Header {
			rec.Values[name] = l.Fields[i]
		}
		return rec, nil
	}
	if len(l.Fields) < domain.PositionalFieldCount {
		return rec, fmt.Errorf("%w: %d fields, want %d", ErrStructure, len(l.Fields), domain.PositionalFieldCount)
	}
	for _, f := range domain.PositionalFields() {
		rec.Values[f.Alias] = l.Fields[f.Position]
	}
	return rec, nil
}

// cleanField strips quotes, blanks and the placeholder token.
func cleanField(s string) string {
	s = strings.ReplaceAll(s, placeholderToken, "")
	s = strings.ReplaceAll(s, `"`, "")
	return strings.Join(strings.Fields(s), "")
}

func cleanFields(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = cleanField(f)
	}
	return out
}

// LineSource yields lines until io.EOF.
type LineSource interface {
	Next() (Line, error)
}

// CSVSource reads comma-delimited telemetry, optionally with a header row.
type CSVSource struct {
	r      *csv.Reader
	name   string
	header []string
}

// NewCSVSource wraps r. When header is true the first row is read immediately
// and every column name must be a known raw field.
func NewCSVSource(r io.Reader, name string, header bool) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	s := &CSVSource{r: cr, name: name}
	if !header {
		return s, nil
	}
	row, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: missing header row", name)
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	cols := cleanFields(row)
	for i, c := range cols {
		if _, ok := domain.LookupRawField(c); !ok {
			return nil, fmt.Errorf("%s: header column %d %q: %w", name, i+1, c, domain.ErrUnknownField)
		}
		cols[i] = strings.ToLower(c)
	}
	s.header = cols
	return s, nil
}

// Next returns the next line. A line the CSV reader cannot split is returned
// without error and reported as a structural failure by Record.
func (s *CSVSource) Next() (Line, error) {
	row, err := s.r.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return Line{Source: s.name, Number: perr.StartLine, Header: s.header, err: perr.Err}, nil
		}
		return Line{}, err
	}
	line, _ := s.r.FieldPos(0)
	return Line{Source: s.name, Number: line, Header: s.header, Fields: cleanFields(row)}, nil
}

// SliceSource replays prepared lines.
type SliceSource struct {
	lines []Line
	i     int
}

// NewSliceSource returns a source over lines.
func NewSliceSource(lines ...Line) *SliceSource {
	return &SliceSource{lines: lines}
}

func (s *SliceSource) Next() (Line, error) {
	if s.i >= len(s.lines) {
		return Line{}, io.EOF
	}
	l := s.lines[s.i]
	s.i++
	return l, nil
}

// ParseLine splits a single positional line received outside a file.
func ParseLine(source string, number int, text string) Line {
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	row, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Line{Source: source, Number: number}
	}
	if err != nil {
		return Line{Source: source, Number: number, err: err}
	}
	return Line{Source: source, Number: number, Fields: cleanFields(row)}
}
