package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"espacio/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes the schedule grid (spaces by days) for a date
// range to an .xlsx file for the admin dashboard.
type ExcelExporter struct {
	repo domain.Repository
	path string
}

func NewExcelExporter(repo domain.Repository, exportPath string) *ExcelExporter {
	return &ExcelExporter{repo: repo, path: exportPath}
}

// Export builds the workbook and returns the written file path.
func (e *ExcelExporter) Export(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if endDate.Before(startDate) {
		return "", fmt.Errorf("end date %s precedes start date %s",
			endDate.Format("2006-01-02"), startDate.Format("2006-01-02"))
	}

	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02")))

	days := e.writeDateHeaders(f, sheetName, startDate, endDate)

	spaces := e.repo.GetSpaces()
	for i, space := range spaces {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%s (%s)", space.Name, space.Type))

		for j, day := range days {
			cell, _ := excelize.CoordinatesToCellName(j+2, row)
			value, err := e.dayCell(ctx, space.ID, day)
			if err != nil {
				return "", err
			}
			_ = f.SetCellValue(sheetName, cell, value)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 28)
	if len(days) > 0 {
		lastCol, _ := excelize.ColumnNumberToName(len(days) + 1)
		_ = f.SetColWidth(sheetName, "B", lastCol, 24)
		_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	}

	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)

	fileName := fmt.Sprintf("schedule_%s_%s.xlsx",
		startDate.Format("20060102"), endDate.Format("20060102"))
	fullPath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("error saving export: %w", err)
	}

	return fullPath, nil
}

func (e *ExcelExporter) writeDateHeaders(f *excelize.File, sheetName string, startDate, endDate time.Time) []time.Time {
	var days []time.Time
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	for j, day := range days {
		cell, _ := excelize.CoordinatesToCellName(j+2, 2)
		_ = f.SetCellValue(sheetName, cell, day.Format("Mon 02.01"))
	}
	_ = f.SetCellValue(sheetName, "A2", "Space")

	return days
}

// dayCell summarizes one space-day as newline-joined reservation lines.
func (e *ExcelExporter) dayCell(ctx context.Context, spaceID int64, day time.Time) (string, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	reservations, err := e.repo.ListReservationsForSpaceRange(ctx, spaceID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("error reading schedule for space %d: %w", spaceID, err)
	}

	var lines []string
	for _, r := range reservations {
		lines = append(lines, fmt.Sprintf("%s-%s %s (user %d)",
			r.StartTime.Format("15:04"), r.EndTime.Format("15:04"), r.Status, r.RequesterID))
	}
	return strings.Join(lines, "\n"), nil
}
