package interfaces

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
)

// IndicatorRow is one latest-per-code indicator ready for export.
type IndicatorRow struct {
	PointID      int64
	Code         string
	Params       map[string]any
	Value        map[string]any
	CalculatedAt time.Time
}

// BuildIndicatorXLSX renders a workbook with a summary sheet and one
// detail sheet per indicator that carries a daily or hourly series.
func BuildIndicatorXLSX(rows []IndicatorRow) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	f.SetSheetName("Sheet1", summarySheet)

	_ = f.SetCellValue(summarySheet, "A1", "Point")
	_ = f.SetCellValue(summarySheet, "B1", "Indicator")
	_ = f.SetCellValue(summarySheet, "C1", "Total")
	_ = f.SetCellValue(summarySheet, "D1", "Calculated At")
	_ = f.SetCellValue(summarySheet, "E1", "Params")

	for i, row := range rows {
		line := i + 2
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", line), row.PointID)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", line), row.Code)
		if total, ok := row.Value["total"]; ok {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", line), total)
		}
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", line), row.CalculatedAt.Format(time.RFC3339))
		if len(row.Params) > 0 {
			encoded, err := json.Marshal(row.Params)
			if err != nil {
				return nil, fmt.Errorf("indicator export: encode params for %s: %w", row.Code, err)
			}
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("E%d", line), string(encoded))
		}

		if err := addDetailSheet(f, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addDetailSheet(f *excelize.File, row IndicatorRow) error {
	if daily, ok := row.Value["daily"].([]any); ok && len(daily) > 0 {
		return addDailySheet(f, row.Code, daily)
	}
	if hours, ok := row.Value["hours"].([]any); ok && len(hours) > 0 {
		return addHoursSheet(f, row.Code, hours)
	}
	return nil
}

func addDailySheet(f *excelize.File, code string, daily []any) error {
	if _, err := f.NewSheet(code); err != nil {
		return fmt.Errorf("indicator export: sheet %s: %w", code, err)
	}

	columns := dailyColumns(daily)
	for c, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(code, cell, name)
	}
	for i, entry := range daily {
		day, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for c, name := range columns {
			value, ok := day[name]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			_ = f.SetCellValue(code, cell, value)
		}
	}
	return nil
}

func addHoursSheet(f *excelize.File, code string, hours []any) error {
	if _, err := f.NewSheet(code); err != nil {
		return fmt.Errorf("indicator export: sheet %s: %w", code, err)
	}
	_ = f.SetCellValue(code, "A1", "hour")
	for i, hour := range hours {
		_ = f.SetCellValue(code, fmt.Sprintf("A%d", i+2), hour)
	}
	return nil
}

// dailyColumns returns the union of keys across entries, date first and
// the rest alphabetical, so ragged series still line up.
func dailyColumns(daily []any) []string {
	seen := make(map[string]bool)
	for _, entry := range daily {
		day, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		for key := range day {
			seen[key] = true
		}
	}
	var columns []string
	for key := range seen {
		if key != "date" {
			columns = append(columns, key)
		}
	}
	sort.Strings(columns)
	if seen["date"] {
		columns = append([]string{"date"}, columns...)
	}
	return columns
}
