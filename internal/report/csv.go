package report

import (
	"encoding/csv"
	"io"
	"time"

	"geoattend/internal/attendance"
)

// CSVHeader is the first line of every export.
var CSVHeader = []string{"Name", "Role", "Date", "Check In", "Check Out", "Late", "Notes"}

// Filename names an export produced on day.
func Filename(day time.Time) string {
	return "attendance_report_" + day.Format("20060102") + ".csv"
}

// WriteCSV writes rows with stamp times rendered in loc.
func WriteCSV(w io.Writer, rows []Row, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, row := range rows {
		late := "No"
		if row.Record.IsLate {
			late = "Yes"
		}
		if err := cw.Write([]string{
			row.Account.FullName(),
			row.Account.Role.Display(),
			row.Record.DayString(),
			stampTime(row.Record.CheckIn, loc),
			stampTime(row.Record.CheckOut, loc),
			late,
			row.Record.Notes,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func stampTime(s *attendance.Stamp, loc *time.Location) string {
	if s == nil {
		return ""
	}
	return s.At.In(loc).Format("15:04:05")
}
