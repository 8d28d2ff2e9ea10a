package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/ratelimit"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/pkg/clock"
)

type lifecycle struct {
	repo    *memory.Repository
	clock   *clock.Mock
	urls    *URLUseCase
	reports *ReportUseCase
}

func newLifecycle(t *testing.T, transactional bool) *lifecycle {
	t.Helper()

	repo := memory.NewRepository()
	clk := clock.NewMock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	urls := NewURLUseCase(
		repo,
		ratelimit.New(repo, 10, time.Hour),
		shortcode.NewGenerator(),
		URLConfig{TransactionalTracking: transactional},
		WithClock(clk),
		WithLogger(discardLogger()),
	)
	t.Cleanup(urls.Wait)

	return &lifecycle{
		repo:    repo,
		clock:   clk,
		urls:    urls,
		reports: NewReportUseCase(repo, clk),
	}
}

func (l *lifecycle) create(t *testing.T, ip string) *entity.ShortLink {
	t.Helper()

	link, err := l.urls.CreateShortLink(context.Background(), entity.CreateShortLinkParams{
		OriginalURL: "https://example.com/page",
		CreatorIP:   ip,
	})
	require.NoError(t, err)

	return link
}

func TestLifecycle_ConcurrentResolvesAreAllCounted(t *testing.T) {
	for _, transactional := range []bool{true, false} {
		t.Run(fmt.Sprintf("transactional=%t", transactional), func(t *testing.T) {
			l := newLifecycle(t, transactional)
			link := l.create(t, "10.0.0.1")

			const n = 100

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					url, err := l.urls.ResolveAndTrack(context.Background(), link.ShortCode, entity.AccessMeta{})
					assert.NoError(t, err)
					assert.Equal(t, "https://example.com/page", url)
				}()
			}
			wg.Wait()
			l.urls.Wait()

			stored, err := l.repo.FindShortLinkByCode(context.Background(), link.ShortCode, true, l.clock.Now())
			require.NoError(t, err)
			assert.Equal(t, int64(n), stored.AccessCount)
			assert.Len(t, l.repo.AccessEvents(), n)
		})
	}
}

// cyclingGenerator hands out a small fixed set of codes in turn.
type cyclingGenerator struct {
	codes []string
	next  atomic.Int64
}

func (g *cyclingGenerator) Generate() (string, error) {
	n := g.next.Add(1) - 1
	return g.codes[n%int64(len(g.codes))], nil
}

func TestLifecycle_ConcurrentCreatesNeverShareACode(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	gen := &cyclingGenerator{codes: []string{"code001", "code002", "code003", "code004"}}

	urls := NewURLUseCase(
		repo,
		ratelimit.New(repo, 10, time.Hour),
		gen,
		URLConfig{MaxAttempts: 64},
		WithClock(clock.NewMock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))),
		WithLogger(discardLogger()),
	)
	t.Cleanup(urls.Wait)

	const n = 16

	var (
		wg        sync.WaitGroup
		created   atomic.Int64
		exhausted atomic.Int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := urls.CreateShortLink(ctx, entity.CreateShortLinkParams{
				OriginalURL: "https://example.com/page",
			})
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, entity.ErrCodeGenerationExhausted):
				exhausted.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(len(gen.codes)), created.Load())
	assert.Equal(t, int64(n-len(gen.codes)), exhausted.Load())

	links, total, err := repo.ListShortLinks(ctx, entity.ListQuery{
		Limit:     100,
		SortBy:    entity.SortByCreatedAt,
		SortOrder: entity.SortDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(gen.codes)), total)

	codes := make([]string, 0, len(links))
	for _, link := range links {
		codes = append(codes, link.ShortCode)
	}
	assert.ElementsMatch(t, gen.codes, codes)
}

func TestLifecycle_TopLinksWithEqualCounts(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t, true)

	first := l.create(t, "10.0.0.1")
	second := l.create(t, "10.0.0.1")
	quiet := l.create(t, "10.0.0.1")

	for _, code := range []string{first.ShortCode, second.ShortCode, first.ShortCode, second.ShortCode} {
		_, err := l.urls.ResolveAndTrack(ctx, code, entity.AccessMeta{})
		require.NoError(t, err)
	}
	_, err := l.urls.ResolveAndTrack(ctx, quiet.ShortCode, entity.AccessMeta{})
	require.NoError(t, err)
	l.urls.Wait()

	top, err := l.reports.TopLinks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)

	// Ties are acceptable in any order.
	codes := []string{top[0].ShortLink.ShortCode, top[1].ShortLink.ShortCode}
	assert.ElementsMatch(t, []string{first.ShortCode, second.ShortCode}, codes)
	assert.Equal(t, int64(2), top[0].TotalAccesses)
	assert.Equal(t, int64(2), top[1].TotalAccesses)
	assert.NotContains(t, codes, quiet.ShortCode)
}

func TestLifecycle_RateLimitBoundary(t *testing.T) {
	l := newLifecycle(t, true)

	for i := 0; i < 10; i++ {
		l.create(t, "10.0.0.1")
	}

	_, err := l.urls.CreateShortLink(context.Background(), entity.CreateShortLinkParams{
		OriginalURL: "https://example.com/page",
		CreatorIP:   "10.0.0.1",
	})
	assert.ErrorIs(t, err, entity.ErrRateLimitExceeded)

	// Other creators and anonymous callers are unaffected.
	l.create(t, "10.0.0.2")
	l.create(t, "")

	l.clock.Advance(time.Hour + time.Second)
	l.create(t, "10.0.0.1")
}

func TestLifecycle_ExpiredLinkIsNotFound(t *testing.T) {
	l := newLifecycle(t, true)
	link := l.create(t, "10.0.0.1")

	assert.Equal(t, l.clock.Now().Add(DefaultExpiration), link.ExpiresAt)

	l.clock.Advance(DefaultExpiration - time.Second)
	_, err := l.urls.ResolveAndTrack(context.Background(), link.ShortCode, entity.AccessMeta{})
	assert.NoError(t, err)

	l.clock.Advance(time.Second)
	_, err = l.urls.ResolveAndTrack(context.Background(), link.ShortCode, entity.AccessMeta{})
	assert.ErrorIs(t, err, entity.ErrLinkNotFound)

	_, err = l.urls.ResolveAndTrack(context.Background(), "nonexistent", entity.AccessMeta{})
	assert.ErrorIs(t, err, entity.ErrLinkNotFound)
}

func TestLifecycle_ReportsOverRecordedAccesses(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t, true)

	// Two accesses three days ago, three today.
	l.clock.Advance(-72 * time.Hour)
	old := l.create(t, "10.0.0.1")
	for i := 0; i < 2; i++ {
		_, err := l.urls.ResolveAndTrack(ctx, old.ShortCode, entity.AccessMeta{})
		require.NoError(t, err)
	}

	l.clock.Advance(72 * time.Hour)
	fresh := l.create(t, "10.0.0.1")
	for i := 0; i < 3; i++ {
		_, err := l.urls.ResolveAndTrack(ctx, fresh.ShortCode, entity.AccessMeta{})
		require.NoError(t, err)
	}
	l.urls.Wait()

	t.Run("daily series is gap free", func(t *testing.T) {
		series, err := l.reports.DailyAccessSeries(ctx, 7)
		require.NoError(t, err)
		require.Len(t, series, 8)

		assert.Equal(t, "2024-03-03", series[0].Day())
		assert.Equal(t, "2024-03-10", series[7].Day())
		assert.Equal(t, int64(2), series[4].AccessCount)
		assert.Equal(t, int64(3), series[7].AccessCount)

		var total int64
		for _, d := range series {
			total += d.AccessCount
		}
		assert.Equal(t, int64(5), total)
	})

	t.Run("top links", func(t *testing.T) {
		top, err := l.reports.TopLinks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, fresh.ShortCode, top[0].ShortLink.ShortCode)
		assert.Equal(t, int64(3), top[0].TotalAccesses)
	})

	t.Run("peak day", func(t *testing.T) {
		peak, err := l.reports.PeakAccessDay(ctx)
		require.NoError(t, err)
		require.NotNil(t, peak)
		assert.Equal(t, "2024-03-10", peak.Date.Format(entity.DateLayout))
		assert.Equal(t, int64(3), peak.AccessCount)
		// Average over 31 days is 5/31.
		assert.Equal(t, 1760.0, peak.PercentageAboveAverage)
	})

	t.Run("summary", func(t *testing.T) {
		report, err := l.reports.ReportSummary(ctx, 7, 1)
		require.NoError(t, err)
		assert.Len(t, report.Daily, 8)
		assert.Len(t, report.TopLinks, 1)
		assert.Equal(t, int64(5), report.Summary.TotalAccesses)
		assert.Equal(t, 0.63, report.Summary.AverageAccessesPerDay)
		require.NotNil(t, report.Summary.MostActiveDay)
		assert.Equal(t, "2024-03-10", report.Summary.MostActiveDay.Format(entity.DateLayout))
	})
}

func TestLifecycle_PeakOutsideAverageWindow(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t, true)

	link := l.create(t, "10.0.0.1")
	_, err := l.urls.ResolveAndTrack(ctx, link.ShortCode, entity.AccessMeta{})
	require.NoError(t, err)
	l.urls.Wait()

	l.clock.Advance(40 * 24 * time.Hour)

	peak, err := l.reports.PeakAccessDay(ctx)
	require.NoError(t, err)
	require.NotNil(t, peak)
	assert.Equal(t, int64(1), peak.AccessCount)
	assert.Zero(t, peak.PercentageAboveAverage)
}

func TestLifecycle_NoAccesses(t *testing.T) {
	ctx := context.Background()
	l := newLifecycle(t, true)

	peak, err := l.reports.PeakAccessDay(ctx)
	assert.NoError(t, err)
	assert.Nil(t, peak)

	report, err := l.reports.ReportSummary(ctx, 0, 5)
	require.NoError(t, err)
	require.Len(t, report.Daily, 1)
	assert.Zero(t, report.Summary.TotalAccesses)
	assert.Zero(t, report.Summary.AverageAccessesPerDay)
	assert.Nil(t, report.Summary.MostActiveDay)
	assert.Empty(t, report.TopLinks)
}
