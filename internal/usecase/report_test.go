package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/clock"
)

type ReportUseCaseTestSuite struct {
	suite.Suite
	errUnknown error
	now        time.Time
	repo       *mockReportRepository
	uc         *ReportUseCase
}

func (suite *ReportUseCaseTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.now = time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)
}

func (suite *ReportUseCaseTestSuite) SetupSubTest() {
	suite.repo = new(mockReportRepository)
	suite.uc = NewReportUseCase(suite.repo, clock.NewMock(suite.now))
}

func (suite *ReportUseCaseTestSuite) TearDownSubTest() {
	suite.repo.AssertExpectations(suite.T())
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func (suite *ReportUseCaseTestSuite) TestDailyAccessSeries() {
	ctx := context.Background()

	suite.Run("negative days", func() {
		series, err := suite.uc.DailyAccessSeries(ctx, -1)

		suite.ErrorIs(err, entity.ErrInvalidInput)
		suite.Nil(series)
	})

	suite.Run("days above the maximum", func() {
		series, err := suite.uc.DailyAccessSeries(ctx, MaxReportDays+1)

		suite.ErrorIs(err, entity.ErrInvalidInput)
		suite.Nil(series)
	})

	suite.Run("fills missing days", func() {
		suite.repo.
			On("CountAccessEventsByDay", ctx, day(3), day(11)).
			Once().
			Return([]entity.DailyAccess{
				{Date: day(4), AccessCount: 2},
				{Date: day(10), AccessCount: 5},
			}, nil)

		series, err := suite.uc.DailyAccessSeries(ctx, 7)

		suite.NoError(err)
		suite.Len(series, 8)
		for i, d := range series {
			suite.Equal(day(3+i), d.Date)
		}
		suite.Equal(int64(0), series[0].AccessCount)
		suite.Equal(int64(2), series[1].AccessCount)
		suite.Equal(int64(5), series[7].AccessCount)
	})

	suite.Run("storage error", func() {
		suite.repo.
			On("CountAccessEventsByDay", ctx, mock.Anything, mock.Anything).
			Once().
			Return(nil, suite.errUnknown)

		series, err := suite.uc.DailyAccessSeries(ctx, 7)

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(series)
	})
}

func (suite *ReportUseCaseTestSuite) TestTopLinks() {
	ctx := context.Background()

	suite.Run("invalid limit", func() {
		links, err := suite.uc.TopLinks(ctx, 0)

		suite.ErrorIs(err, entity.ErrInvalidInput)
		suite.Nil(links)
	})

	suite.Run("success", func() {
		want := []entity.TopLink{
			{ShortLink: entity.ShortLink{ID: 1, ShortCode: "abc123"}, TotalAccesses: 9},
		}

		suite.repo.On("TopShortLinksByAccessCount", ctx, 5).Once().Return(want, nil)

		links, err := suite.uc.TopLinks(ctx, 5)

		suite.NoError(err)
		suite.Equal(want, links)
	})
}

func (suite *ReportUseCaseTestSuite) TestPeakAccessDay() {
	ctx := context.Background()

	suite.Run("no events", func() {
		suite.repo.On("PeakAccessDay", ctx).Once().Return(nil, nil)

		peak, err := suite.uc.PeakAccessDay(ctx)

		suite.NoError(err)
		suite.Nil(peak)
	})

	suite.Run("percentage above average", func() {
		suite.repo.
			On("PeakAccessDay", ctx).
			Once().
			Return(&entity.DailyAccess{Date: day(9), AccessCount: 62}, nil)
		suite.repo.
			On("CountAccessEventsByDay", ctx, time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC), day(11)).
			Once().
			Return([]entity.DailyAccess{{Date: day(9), AccessCount: 62}}, nil)

		peak, err := suite.uc.PeakAccessDay(ctx)

		suite.NoError(err)
		suite.Equal(day(9), peak.Date)
		suite.Equal(int64(62), peak.AccessCount)
		// 62 events over 31 days average 2 per day.
		suite.Equal(3000.0, peak.PercentageAboveAverage)
	})

	suite.Run("storage error", func() {
		suite.repo.On("PeakAccessDay", ctx).Once().Return(nil, suite.errUnknown)

		peak, err := suite.uc.PeakAccessDay(ctx)

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(peak)
	})
}

func (suite *ReportUseCaseTestSuite) TestReportSummary() {
	ctx := context.Background()

	suite.Run("success", func() {
		top := []entity.TopLink{{ShortLink: entity.ShortLink{ID: 1}, TotalAccesses: 6}}

		suite.repo.
			On("CountAccessEventsByDay", mock.Anything, day(8), day(11)).
			Once().
			Return([]entity.DailyAccess{
				{Date: day(8), AccessCount: 3},
				{Date: day(9), AccessCount: 3},
				{Date: day(10), AccessCount: 1},
			}, nil)
		suite.repo.On("TopShortLinksByAccessCount", mock.Anything, 3).Once().Return(top, nil)

		report, err := suite.uc.ReportSummary(ctx, 2, 3)

		suite.NoError(err)
		suite.Len(report.Daily, 3)
		suite.Equal(top, report.TopLinks)
		suite.Equal(int64(7), report.Summary.TotalAccesses)
		suite.Equal(2.33, report.Summary.AverageAccessesPerDay)
		suite.Require().NotNil(report.Summary.MostActiveDay)
		suite.Equal(day(8), *report.Summary.MostActiveDay)
	})

	suite.Run("all days empty", func() {
		suite.repo.
			On("CountAccessEventsByDay", mock.Anything, day(8), day(11)).
			Once().
			Return([]entity.DailyAccess{}, nil)
		suite.repo.On("TopShortLinksByAccessCount", mock.Anything, 3).Once().Return([]entity.TopLink{}, nil)

		report, err := suite.uc.ReportSummary(ctx, 2, 3)

		suite.NoError(err)
		suite.Zero(report.Summary.TotalAccesses)
		suite.Nil(report.Summary.MostActiveDay)
	})

	suite.Run("invalid top limit", func() {
		suite.repo.
			On("CountAccessEventsByDay", mock.Anything, mock.Anything, mock.Anything).
			Maybe().
			Return([]entity.DailyAccess{}, nil)

		report, err := suite.uc.ReportSummary(ctx, 2, 0)

		suite.ErrorIs(err, entity.ErrInvalidInput)
		suite.Nil(report)
	})
}

func TestReportUseCase(t *testing.T) {
	suite.Run(t, new(ReportUseCaseTestSuite))
}
