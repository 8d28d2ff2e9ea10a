package xlsx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func TestWriteReport(t *testing.T) {
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	report := &entity.Report{
		Daily: []entity.DailyAccess{
			{Date: day, AccessCount: 4},
			{Date: day.AddDate(0, 0, 1), AccessCount: 0},
		},
		TopLinks: []entity.TopLink{
			{
				ShortLink: entity.ShortLink{
					ShortCode:   "abc123",
					OriginalURL: "https://example.com",
					CreatedAt:   day,
					ExpiresAt:   day.Add(time.Hour),
				},
				TotalAccesses: 4,
			},
		},
		Summary: entity.Summary{
			TotalAccesses:         4,
			AverageAccessesPerDay: 2,
			MostActiveDay:         &day,
		},
	}

	buf, err := WriteReport(report, func(code string) string { return "http://sho.rt/" + code })
	require.NoError(t, err)

	xl, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer xl.Close()

	assert.Equal(t, []string{SheetDaily, SheetTopURLs, SheetSummary}, xl.GetSheetList())

	daily, err := xl.GetRows(SheetDaily)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"date", "accessCount"},
		{"2024-03-09", "4"},
		{"2024-03-10", "0"},
	}, daily)

	top, err := xl.GetRows(SheetTopURLs)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "http://sho.rt/abc123", top[1][1])
	assert.Equal(t, "4", top[1][3])

	summary, err := xl.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, []string{"mostActiveDay", "2024-03-09"}, summary[3])
}
