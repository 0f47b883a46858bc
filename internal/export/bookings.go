// Package export renders bookings into XLSX workbooks for admins.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"devlend/internal/models"
	"devlend/internal/scheduling"

	"github.com/xuri/excelize/v2"
)

const (
	listSheet     = "Bookings"
	calendarSheet = "Calendar"
	unassigned    = "Unassigned"
	dateLayout    = "2006-01-02 15:04"
)

var listHeaders = []string{
	"ID", "Requester", "Device", "Start", "End", "Status", "Quoted price", "Notes", "Created",
}

// Workbook builds the bookings export: a flat list plus a calendar grid of
// devices by day for [from, to).
type Workbook struct {
	f      *excelize.File
	styles map[string]int
	loc    *time.Location
}

// NewWorkbook renders bookings. Times are shown in loc (UTC when nil).
func NewWorkbook(bookings []models.Booking, from, to time.Time, loc *time.Location) (*Workbook, error) {
	if loc == nil {
		loc = time.UTC
	}
	w := &Workbook{f: excelize.NewFile(), styles: make(map[string]int), loc: loc}

	if err := w.writeList(bookings); err != nil {
		_ = w.f.Close()
		return nil, err
	}
	if err := w.writeCalendar(bookings, from, to); err != nil {
		_ = w.f.Close()
		return nil, err
	}
	_ = w.f.DeleteSheet("Sheet1")
	return w, nil
}

func (w *Workbook) Write(out io.Writer) error {
	return w.f.Write(out)
}

// SaveAs writes the workbook into dir and returns the file path.
func (w *Workbook) SaveAs(dir string, from, to time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	path := filepath.Join(dir, FileName(from, to))
	if err := w.f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

// FileName is the suggested name of an export for [from, to).
func FileName(from, to time.Time) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (w *Workbook) writeList(bookings []models.Booking) error {
	index, err := w.f.NewSheet(listSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	w.f.SetActiveSheet(index)

	header, err := w.style("header", &excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}
	for i, h := range listHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = w.f.SetCellValue(listSheet, cell, h)
		_ = w.f.SetCellStyle(listSheet, cell, cell, header)
	}

	for i := range bookings {
		b := &bookings[i]
		row := i + 2
		requester := b.RequesterEmail
		if requester == "" {
			requester = b.RequesterID
		}
		device := b.ResourceLabel
		if device == "" && b.ResourceID != nil {
			device = fmt.Sprintf("#%d", *b.ResourceID)
		}
		values := []any{
			b.ID,
			requester,
			device,
			b.StartAt.In(w.loc).Format(dateLayout),
			b.EndAt.In(w.loc).Format(dateLayout),
			string(b.Status),
			nil,
			b.Notes,
			b.CreatedAt.In(w.loc).Format(dateLayout),
		}
		if b.QuotedPrice != nil {
			values[6] = *b.QuotedPrice
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := w.f.SetSheetRow(listSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
	}

	_ = w.f.SetColWidth(listSheet, "A", "A", 8)
	_ = w.f.SetColWidth(listSheet, "B", "C", 25)
	_ = w.f.SetColWidth(listSheet, "D", "F", 18)
	_ = w.f.SetColWidth(listSheet, "G", "G", 14)
	_ = w.f.SetColWidth(listSheet, "H", "H", 30)
	_ = w.f.SetColWidth(listSheet, "I", "I", 18)
	return nil
}

// writeCalendar lays devices out as rows and days as columns. A cell lists
// every booking whose window touches that day, colored by the most
// committed status in it.
func (w *Workbook) writeCalendar(bookings []models.Booking, from, to time.Time) error {
	if _, err := w.f.NewSheet(calendarSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	days := dayRange(from.In(w.loc), to.In(w.loc))
	_ = w.f.SetCellValue(calendarSheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.In(w.loc).Format("2006-01-02"), to.In(w.loc).Format("2006-01-02")))
	title, err := w.style("title", &excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	if len(days) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(days)+1, 1)
		_ = w.f.MergeCell(calendarSheet, "A1", last)
	}
	_ = w.f.SetCellStyle(calendarSheet, "A1", "A1", title)

	header, err := w.style("header", nil)
	if err != nil {
		return err
	}
	for i, d := range days {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = w.f.SetCellValue(calendarSheet, cell, d.Format("01-02"))
		_ = w.f.SetCellStyle(calendarSheet, cell, cell, header)
	}

	rows, byRow := groupByDevice(bookings)
	for r, label := range rows {
		row := r + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = w.f.SetCellValue(calendarSheet, cell, label)
		_ = w.f.SetCellStyle(calendarSheet, cell, cell, header)

		for c, d := range days {
			dayWindow := scheduling.Window{Start: d, End: d.AddDate(0, 0, 1)}
			var text string
			var held []models.BookingStatus
			for _, b := range byRow[label] {
				if !scheduling.Overlaps(dayWindow, scheduling.Window{Start: b.StartAt, End: b.EndAt}) {
					continue
				}
				who := b.RequesterEmail
				if who == "" {
					who = b.RequesterID
				}
				text += fmt.Sprintf("%s #%d %s\n", StatusIcon(b.Status), b.ID, who)
				held = append(held, b.Status)
			}
			cell, _ := excelize.CoordinatesToCellName(c+2, row)
			_ = w.f.SetCellValue(calendarSheet, cell, text)
			if st, err := w.cellStyle(held); err == nil {
				_ = w.f.SetCellStyle(calendarSheet, cell, cell, st)
			}
		}
	}

	_ = w.f.SetColWidth(calendarSheet, "A", "A", 25)
	if len(days) > 0 {
		last, _ := excelize.ColumnNumberToName(len(days) + 1)
		_ = w.f.SetColWidth(calendarSheet, "B", last, 22)
	}
	return nil
}

func (w *Workbook) style(name string, s *excelize.Style) (int, error) {
	if id, ok := w.styles[name]; ok {
		return id, nil
	}
	if s == nil {
		return 0, fmt.Errorf("style %q not registered", name)
	}
	id, err := w.f.NewStyle(s)
	if err != nil {
		return 0, fmt.Errorf("error creating style: %w", err)
	}
	w.styles[name] = id
	return id, nil
}

// cellStyle: red when a device is held, yellow when only requested, grey for
// finished bookings, white when empty.
func (w *Workbook) cellStyle(statuses []models.BookingStatus) (int, error) {
	color := "#FFFFFF"
	rank := 0
	for _, s := range statuses {
		switch {
		case s.IsActive() && rank < 3:
			color, rank = "#FFC7CE", 3
		case s == models.StatusPending && rank < 2:
			color, rank = "#FFEB9C", 2
		case s == models.StatusReturned && rank < 1:
			color, rank = "#EDEDED", 1
		}
	}
	return w.style("cell"+color, &excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}

// StatusIcon is the marker used for a status in exports and chat messages.
func StatusIcon(s models.BookingStatus) string {
	switch s {
	case models.StatusApproved:
		return "✅"
	case models.StatusPickedUp:
		return "📦"
	case models.StatusPending:
		return "⏳"
	case models.StatusReturned:
		return "↩️"
	case models.StatusRejected:
		return "❌"
	default:
		return "❓"
	}
}

// dayRange returns midnights from the day of from up to, not including, to.
func dayRange(from, to time.Time) []time.Time {
	var days []time.Time
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for d.Before(to) {
		days = append(days, d)
		d = d.AddDate(0, 0, 1)
	}
	return days
}

// groupByDevice returns device row labels sorted by label, with bookings not
// yet bound to a device under the last row.
func groupByDevice(bookings []models.Booking) ([]string, map[string][]models.Booking) {
	byRow := make(map[string][]models.Booking)
	for _, b := range bookings {
		if b.Status == models.StatusRejected {
			continue
		}
		label := unassigned
		if b.ResourceID != nil {
			label = b.ResourceLabel
			if label == "" {
				label = fmt.Sprintf("#%d", *b.ResourceID)
			}
		}
		byRow[label] = append(byRow[label], b)
	}

	rows := make([]string, 0, len(byRow))
	for label := range byRow {
		if label != unassigned {
			rows = append(rows, label)
		}
	}
	sort.Strings(rows)
	if _, ok := byRow[unassigned]; ok {
		rows = append(rows, unassigned)
	}
	return rows, byRow
}
