package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/clock"
)

const (
	DefaultReportDays = 30
	DefaultTopLimit   = 10
	MaxReportDays     = 365
	// PeakAverageDays is the trailing window the peak day is compared against.
	PeakAverageDays = 30
)

type reportRepository interface {
	CountAccessEventsByDay(ctx context.Context, from, to time.Time) ([]entity.DailyAccess, error)
	TopShortLinksByAccessCount(ctx context.Context, limit int) ([]entity.TopLink, error)
	PeakAccessDay(ctx context.Context) (*entity.DailyAccess, error)
}

// ReportUseCase aggregates access events into read-only reports.
type ReportUseCase struct {
	repo  reportRepository
	clock clock.Clock
}

func NewReportUseCase(repo reportRepository, clk clock.Clock) *ReportUseCase {
	if clk == nil {
		clk = clock.Real{}
	}

	return &ReportUseCase{
		repo:  repo,
		clock: clk,
	}
}

// DailyAccessSeries returns one entry per UTC day from today-days through
// today, oldest first. Days without events are present with a zero count.
func (uc *ReportUseCase) DailyAccessSeries(ctx context.Context, days int) ([]entity.DailyAccess, error) {
	const op = "usecase.ReportUseCase.DailyAccessSeries"

	if days < 0 || days > MaxReportDays {
		return nil, fmt.Errorf("%s: days %d outside 0..%d: %w", op, days, MaxReportDays, entity.ErrInvalidInput)
	}

	today := startOfDay(uc.clock.Now())
	from := today.AddDate(0, 0, -days)
	to := today.AddDate(0, 0, 1)

	counts, err := uc.repo.CountAccessEventsByDay(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to count access events: %w", op, err)
	}

	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Day()] += c.AccessCount
	}

	series := make([]entity.DailyAccess, 0, days+1)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		series = append(series, entity.DailyAccess{
			Date:        d,
			AccessCount: byDay[d.Format(entity.DateLayout)],
		})
	}

	return series, nil
}

// TopLinks returns at most limit short links ordered by total recorded accesses.
func (uc *ReportUseCase) TopLinks(ctx context.Context, limit int) ([]entity.TopLink, error) {
	const op = "usecase.ReportUseCase.TopLinks"

	if limit < 1 {
		return nil, fmt.Errorf("%s: limit %d: %w", op, limit, entity.ErrInvalidInput)
	}

	links, err := uc.repo.TopShortLinksByAccessCount(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get top links: %w", op, err)
	}

	return links, nil
}

// PeakAccessDay returns the day with the most access events of all time, or
// nil when nothing has been recorded yet.
func (uc *ReportUseCase) PeakAccessDay(ctx context.Context) (*entity.PeakAccess, error) {
	const op = "usecase.ReportUseCase.PeakAccessDay"

	peak, err := uc.repo.PeakAccessDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get peak day: %w", op, err)
	}
	if peak == nil {
		return nil, nil
	}

	series, err := uc.DailyAccessSeries(ctx, PeakAverageDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	avg := average(series)

	var pct float64
	if avg > 0 {
		pct = (float64(peak.AccessCount) - avg) / avg * 100
	}

	return &entity.PeakAccess{
		Date:                   peak.Date,
		AccessCount:            peak.AccessCount,
		PercentageAboveAverage: round2(pct),
	}, nil
}

// ReportSummary builds the daily series and the top links concurrently and
// summarises the series.
func (uc *ReportUseCase) ReportSummary(ctx context.Context, days, topLimit int) (*entity.Report, error) {
	const op = "usecase.ReportUseCase.ReportSummary"

	var (
		daily []entity.DailyAccess
		top   []entity.TopLink
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		daily, err = uc.DailyAccessSeries(gCtx, days)
		return err
	})
	g.Go(func() error {
		var err error
		top, err = uc.TopLinks(gCtx, topLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &entity.Report{
		Daily:    daily,
		TopLinks: top,
		Summary:  summarize(daily),
	}, nil
}

func summarize(series []entity.DailyAccess) entity.Summary {
	var (
		s    entity.Summary
		best *entity.DailyAccess
	)

	for i := range series {
		s.TotalAccesses += series[i].AccessCount
		// Strict comparison keeps the earliest day on ties.
		if series[i].AccessCount > 0 && (best == nil || series[i].AccessCount > best.AccessCount) {
			best = &series[i]
		}
	}

	s.AverageAccessesPerDay = round2(average(series))
	if best != nil {
		d := best.Date
		s.MostActiveDay = &d
	}

	return s
}

func average(series []entity.DailyAccess) float64 {
	if len(series) == 0 {
		return 0
	}

	var total int64
	for _, d := range series {
		total += d.AccessCount
	}

	return float64(total) / float64(len(series))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
