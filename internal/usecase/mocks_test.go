package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) InsertShortLink(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error) {
	args := m.Called(ctx, link)
	res, _ := args.Get(0).(*entity.ShortLink)
	return res, args.Error(1)
}

func (m *mockRepository) FindShortLinkByCode(ctx context.Context, code string, includeExpired bool, now time.Time) (*entity.ShortLink, error) {
	args := m.Called(ctx, code, includeExpired, now)
	res, _ := args.Get(0).(*entity.ShortLink)
	return res, args.Error(1)
}

func (m *mockRepository) IncrementAccessCount(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockRepository) InsertAccessEvent(ctx context.Context, event *entity.AccessEvent) (uuid.UUID, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockRepository) ListShortLinks(ctx context.Context, q entity.ListQuery) ([]entity.ShortLink, int64, error) {
	args := m.Called(ctx, q)
	res, _ := args.Get(0).([]entity.ShortLink)
	return res, args.Get(1).(int64), args.Error(2)
}

type mockTxRepository struct {
	mockRepository
}

func (m *mockTxRepository) TrackAccess(ctx context.Context, event *entity.AccessEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Check(ctx context.Context, identity string, now time.Time) error {
	args := m.Called(ctx, identity, now)
	return args.Error(0)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, code string) (*entity.ShortLink, error) {
	args := m.Called(ctx, code)
	res, _ := args.Get(0).(*entity.ShortLink)
	return res, args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, link *entity.ShortLink, now time.Time) error {
	args := m.Called(ctx, link, now)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) OnURLCreated() {
	m.Called()
}

func (m *mockNotifier) OnRedirect() {
	m.Called()
}

type mockReportRepository struct {
	mock.Mock
}

func (m *mockReportRepository) CountAccessEventsByDay(ctx context.Context, from, to time.Time) ([]entity.DailyAccess, error) {
	args := m.Called(ctx, from, to)
	res, _ := args.Get(0).([]entity.DailyAccess)
	return res, args.Error(1)
}

func (m *mockReportRepository) TopShortLinksByAccessCount(ctx context.Context, limit int) ([]entity.TopLink, error) {
	args := m.Called(ctx, limit)
	res, _ := args.Get(0).([]entity.TopLink)
	return res, args.Error(1)
}

func (m *mockReportRepository) PeakAccessDay(ctx context.Context) (*entity.DailyAccess, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*entity.DailyAccess)
	return res, args.Error(1)
}
