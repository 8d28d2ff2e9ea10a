// Package xlsx renders access reports as Excel workbooks.
package xlsx

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	SheetDaily   = "Daily"
	SheetTopURLs = "Top URLs"
	SheetSummary = "Summary"
)

// WriteReport builds a workbook with the daily series, the top links and the
// summary on separate sheets. shortURL maps a short code to its public URL.
func WriteReport(report *entity.Report, shortURL func(code string) string) (*bytes.Buffer, error) {
	const op = "adapter.export.xlsx.WriteReport"

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), SheetDaily); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := xl.NewSheet(SheetTopURLs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := xl.NewSheet(SheetSummary); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := writeRows(xl, SheetDaily, dailyRows(report.Daily)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := writeRows(xl, SheetTopURLs, topRows(report.TopLinks, shortURL)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := writeRows(xl, SheetSummary, summaryRows(report.Summary)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to write workbook: %w", op, err)
	}

	return buf, nil
}

func writeRows(xl *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func dailyRows(daily []entity.DailyAccess) [][]any {
	rows := [][]any{{"date", "accessCount"}}
	for _, d := range daily {
		rows = append(rows, []any{d.Day(), d.AccessCount})
	}
	return rows
}

func topRows(top []entity.TopLink, shortURL func(string) string) [][]any {
	rows := [][]any{{"shortCode", "shortUrl", "originalUrl", "totalAccesses", "createdAt", "expiresAt"}}
	for _, t := range top {
		rows = append(rows, []any{
			t.ShortLink.ShortCode,
			shortURL(t.ShortLink.ShortCode),
			t.ShortLink.OriginalURL,
			t.TotalAccesses,
			t.ShortLink.CreatedAt.UTC().Format(time.RFC3339),
			t.ShortLink.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func summaryRows(s entity.Summary) [][]any {
	mostActive := ""
	if s.MostActiveDay != nil {
		mostActive = s.MostActiveDay.Format(entity.DateLayout)
	}

	return [][]any{
		{"metric", "value"},
		{"totalAccesses", s.TotalAccesses},
		{"averageAccessesPerDay", s.AverageAccessesPerDay},
		{"mostActiveDay", mostActive},
	}
}
