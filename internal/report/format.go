// Package report renders events as device-shaped tables ready for display or
// delimited-text export. Column order follows the device's field list.
package report

import (
	"strings"
	"time"

	"coinwatch/internal/telemetry"
)

const (
	// Missing marks a configured field absent from an event payload.
	Missing = "N/A"
	// TimestampColumn is the first header cell.
	TimestampColumn = "Timestamp"
	// DefaultLayout renders timestamps as dd/MM/yyyy HH:mm:ss.
	DefaultLayout = "02/01/2006 15:04:05"
)

// Row is one rendered event.
type Row struct {
	EventID   string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Values    []string `json:"values"`
}

// Table is the formatted result. NoData is set when there were no events,
// so callers can show an explicit empty state instead of a bare header.
type Table struct {
	Header []string `json:"header"`
	Rows   []Row    `json:"rows"`
	NoData bool     `json:"noData"`
}

// Formatter turns events into rows. The zero value uses DefaultLayout in
// time.Local.
type Formatter struct {
	Layout string
	Loc    *time.Location
}

func (f Formatter) layout() string {
	if f.Layout == "" {
		return DefaultLayout
	}
	return f.Layout
}

func (f Formatter) location() *time.Location {
	if f.Loc == nil {
		return time.Local
	}
	return f.Loc
}

// Header is the timestamp column followed by the device's field names.
func Header(d telemetry.Device) []string {
	h := make([]string, 0, len(d.Fields)+1)
	h = append(h, TimestampColumn)
	for _, fd := range d.Fields {
		h = append(h, fd.Name)
	}
	return h
}

// Format renders events in the given order against d's fields.
func (f Formatter) Format(events []telemetry.Event, d telemetry.Device) Table {
	t := Table{Header: Header(d), Rows: make([]Row, 0, len(events))}
	layout, loc := f.layout(), f.location()
	for _, e := range events {
		r := Row{
			EventID:   e.ID,
			Timestamp: e.Timestamp.In(loc).Format(layout),
			Values:    make([]string, len(d.Fields)),
		}
		for i, fd := range d.Fields {
			r.Values[i] = e.Payload.Text(fd.Key, Missing)
		}
		t.Rows = append(t.Rows, r)
	}
	t.NoData = len(t.Rows) == 0
	return t
}

// ToDelimitedText joins the header and one line per row with commas and
// newlines. Cells are not quoted: a comma or newline inside a value shifts
// the columns of that line.
func ToDelimitedText(rows []Row, header []string) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	for _, r := range rows {
		b.WriteByte('\n')
		b.WriteString(r.Timestamp)
		for _, v := range r.Values {
			b.WriteByte(',')
			b.WriteString(v)
		}
	}
	return b.String()
}

// CSV is ToDelimitedText over the whole table.
func (t Table) CSV() string { return ToDelimitedText(t.Rows, t.Header) }

// ExportFilename follows reports_<deviceName>_<startDate>_<endDate>.csv.
// Blank dates become "all"; path separators in the name become "-".
func ExportFilename(deviceName, startDate, endDate string) string {
	name := strings.NewReplacer("/", "-", `\`, "-").Replace(strings.TrimSpace(deviceName))
	if name == "" {
		name = "device"
	}
	if startDate == "" {
		startDate = "all"
	}
	if endDate == "" {
		endDate = "all"
	}
	return "reports_" + name + "_" + startDate + "_" + endDate + ".csv"
}
