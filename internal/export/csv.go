// Package export renders attendance sheets as CSV downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/Ignisight/attendance-server/internal/model"
)

// Columns is the fixed sheet column order.
var Columns = []string{
	"Roll No", "Name", "Reg No", "Email",
	"Year", "Program", "Branch", "Session", "Date", "Time",
}

// Row is one sheet row: a record plus the owning session's name.
type Row struct {
	Record  model.Record
	Session string
}

// WriteCSV writes the header and rows. Zero rows still produce a
// well-formed sheet with the header only.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range rows {
		r := row.Record
		record := []string{
			r.RollNo, r.Name, r.RollNumber, r.Email,
			r.Year, r.Program, r.Branch, row.Session, r.Date, r.Time,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename builds a safe attachment name from a session name.
func Filename(sessionName string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, sessionName)
	if safe == "" {
		safe = "attendance"
	}
	return fmt.Sprintf("%s.csv", safe)
}
