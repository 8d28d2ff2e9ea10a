package entity

import "time"

// DateLayout is the calendar-day format used in reports.
const DateLayout = "2006-01-02"

// DailyAccess is the number of access events recorded on one UTC calendar day.
type DailyAccess struct {
	Date        time.Time
	AccessCount int64
}

// Day formats the date as YYYY-MM-DD.
func (d DailyAccess) Day() string {
	return d.Date.Format(DateLayout)
}

// TopLink is a short link together with its all-time number of access events.
type TopLink struct {
	ShortLink     ShortLink
	TotalAccesses int64
}

// PeakAccess is the busiest day on record compared to the recent daily average.
type PeakAccess struct {
	Date                   time.Time
	AccessCount            int64
	PercentageAboveAverage float64
}

// Summary aggregates a daily series.
type Summary struct {
	TotalAccesses         int64
	AverageAccessesPerDay float64
	// MostActiveDay is nil when the series holds no accesses.
	MostActiveDay *time.Time
}

// Report bundles a daily series, the top links and the series summary.
type Report struct {
	Daily    []DailyAccess
	TopLinks []TopLink
	Summary  Summary
}
