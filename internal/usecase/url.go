// Package usecase holds the URL lifecycle and reporting logic. It depends
// only on narrow interfaces over storage, rate limiting and code generation.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/clock"
)

const (
	DefaultExpiration      = 60 * time.Minute
	DefaultMaxAttempts     = 10
	DefaultTrackingTimeout = 5 * time.Second
)

var customCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

type shortLinkRepository interface {
	InsertShortLink(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error)
	FindShortLinkByCode(ctx context.Context, code string, includeExpired bool, now time.Time) (*entity.ShortLink, error)
	IncrementAccessCount(ctx context.Context, id int64, at time.Time) error
	InsertAccessEvent(ctx context.Context, event *entity.AccessEvent) (uuid.UUID, error)
	ListShortLinks(ctx context.Context, q entity.ListQuery) ([]entity.ShortLink, int64, error)
}

// accessTracker is implemented by repositories able to apply the counter
// increment and the event insert in a single transaction.
type accessTracker interface {
	TrackAccess(ctx context.Context, event *entity.AccessEvent) error
}

type rateLimiter interface {
	Check(ctx context.Context, identity string, now time.Time) error
}

type codeGenerator interface {
	Generate() (string, error)
}

type linkCache interface {
	// Get returns nil without error on a miss.
	Get(ctx context.Context, code string) (*entity.ShortLink, error)
	Set(ctx context.Context, link *entity.ShortLink, now time.Time) error
}

// Notifier is told about lifecycle events. It must not block.
type Notifier interface {
	OnURLCreated()
	OnRedirect()
}

type noopNotifier struct{}

func (noopNotifier) OnURLCreated() {}
func (noopNotifier) OnRedirect()   {}

// URLConfig tunes the lifecycle behaviour.
type URLConfig struct {
	Expiration            time.Duration
	MaxAttempts           int
	TrackingTimeout       time.Duration
	TransactionalTracking bool
}

// URLOption customises a URLUseCase.
type URLOption func(*URLUseCase)

func WithClock(c clock.Clock) URLOption {
	return func(uc *URLUseCase) {
		uc.clock = c
	}
}

func WithLogger(l *slog.Logger) URLOption {
	return func(uc *URLUseCase) {
		uc.logger = l
	}
}

func WithCache(c linkCache) URLOption {
	return func(uc *URLUseCase) {
		uc.cache = c
	}
}

func WithNotifier(n Notifier) URLOption {
	return func(uc *URLUseCase) {
		uc.notifier = n
	}
}

func WithIDGenerator(fn func() (uuid.UUID, error)) URLOption {
	return func(uc *URLUseCase) {
		uc.newID = fn
	}
}

// URLUseCase creates short links and resolves them while recording accesses.
type URLUseCase struct {
	repo     shortLinkRepository
	limiter  rateLimiter
	gen      codeGenerator
	cfg      URLConfig
	clock    clock.Clock
	logger   *slog.Logger
	cache    linkCache
	notifier Notifier
	newID    func() (uuid.UUID, error)
	tracking sync.WaitGroup
}

func NewURLUseCase(repo shortLinkRepository, limiter rateLimiter, gen codeGenerator, cfg URLConfig, opts ...URLOption) *URLUseCase {
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultExpiration
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.TrackingTimeout <= 0 {
		cfg.TrackingTimeout = DefaultTrackingTimeout
	}

	uc := &URLUseCase{
		repo:     repo,
		limiter:  limiter,
		gen:      gen,
		cfg:      cfg,
		clock:    clock.Real{},
		logger:   slog.Default(),
		notifier: noopNotifier{},
		newID:    uuid.NewRandom,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// CreateShortLink checks the creator's rate limit, picks a free short code and
// stores the link. Nothing is persisted when it fails.
func (uc *URLUseCase) CreateShortLink(ctx context.Context, params entity.CreateShortLinkParams) (*entity.ShortLink, error) {
	const op = "usecase.URLUseCase.CreateShortLink"

	if err := validateOriginalURL(params.OriginalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if params.CustomCode != "" && !customCodeRe.MatchString(params.CustomCode) {
		return nil, fmt.Errorf("%s: malformed custom code: %w", op, entity.ErrInvalidInput)
	}
	if entity.IsReservedShortCode(params.CustomCode) {
		return nil, fmt.Errorf("%s: custom code %q is reserved: %w", op, params.CustomCode, entity.ErrInvalidInput)
	}

	now := uc.clock.Now()

	if params.CreatorIP != "" {
		if err := uc.limiter.Check(ctx, params.CreatorIP, now); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	expiresAt := now.Add(uc.cfg.Expiration)
	if params.ExpiresAt != nil {
		if !params.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%s: expiry must be in the future: %w", op, entity.ErrInvalidInput)
		}
		expiresAt = params.ExpiresAt.UTC()
	}

	link := &entity.ShortLink{
		OriginalURL: params.OriginalURL,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if params.CreatorIP != "" {
		ip := params.CreatorIP
		link.CreatorIP = &ip
	}

	var (
		created *entity.ShortLink
		err     error
	)

	if params.CustomCode != "" {
		created, err = uc.createWithCode(ctx, link, params.CustomCode, now)
	} else {
		created, err = uc.createWithGeneratedCode(ctx, link, now)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uc.notifier.OnURLCreated()

	return created, nil
}

func (uc *URLUseCase) createWithGeneratedCode(ctx context.Context, link *entity.ShortLink, now time.Time) (*entity.ShortLink, error) {
	const op = "usecase.URLUseCase.createWithGeneratedCode"

	for attempt := 1; attempt <= uc.cfg.MaxAttempts; attempt++ {
		code, err := uc.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		created, err := uc.createWithCode(ctx, link, code, now)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, entity.ErrShortCodeExists) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		uc.logger.Debug("short code collision",
			slog.String("op", op),
			slog.String("short_code", code),
			slog.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("%s: %d attempts collided: %w", op, uc.cfg.MaxAttempts, entity.ErrCodeGenerationExhausted)
}

// createWithCode stores link under code unless any link, expired or not, already uses it.
func (uc *URLUseCase) createWithCode(ctx context.Context, link *entity.ShortLink, code string, now time.Time) (*entity.ShortLink, error) {
	const op = "usecase.URLUseCase.createWithCode"

	_, err := uc.repo.FindShortLinkByCode(ctx, code, true, now)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	case !errors.Is(err, entity.ErrLinkNotFound):
		return nil, fmt.Errorf("%s: failed to check short code: %w", op, err)
	}

	candidate := *link
	candidate.ShortCode = code

	// An issued insert must finish even if the caller goes away.
	created, err := uc.repo.InsertShortLink(context.WithoutCancel(ctx), &candidate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

// ResolveAndTrack returns the destination of a live short link and records the
// access. Expired and unknown codes both yield entity.ErrLinkNotFound.
// Tracking runs in the background and its failures are only logged.
func (uc *URLUseCase) ResolveAndTrack(ctx context.Context, code string, meta entity.AccessMeta) (string, error) {
	const op = "usecase.URLUseCase.ResolveAndTrack"

	now := uc.clock.Now()

	link, err := uc.lookup(ctx, code, now)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	uc.track(ctx, link.ID, meta, now)
	uc.notifier.OnRedirect()

	return link.OriginalURL, nil
}

func (uc *URLUseCase) lookup(ctx context.Context, code string, now time.Time) (*entity.ShortLink, error) {
	const op = "usecase.URLUseCase.lookup"

	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, code)
		if err != nil {
			uc.logger.Warn("link cache read failed", slog.String("op", op), slog.Any("err", err))
		}
		if cached != nil && !cached.IsExpired(now) {
			return cached, nil
		}
	}

	link, err := uc.repo.FindShortLinkByCode(ctx, code, false, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, link, now); err != nil {
			uc.logger.Warn("link cache write failed", slog.String("op", op), slog.Any("err", err))
		}
	}

	return link, nil
}

func (uc *URLUseCase) track(ctx context.Context, linkID int64, meta entity.AccessMeta, now time.Time) {
	const op = "usecase.URLUseCase.track"

	id, err := uc.newID()
	if err != nil {
		uc.logger.Error("failed to generate access event id",
			slog.String("op", op),
			slog.Int64("short_link_id", linkID),
			slog.Any("err", err),
		)
		return
	}

	event := &entity.AccessEvent{
		ID:          id,
		ShortLinkID: linkID,
		AccessedAt:  now,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		Referer:     meta.Referer,
	}

	trackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.TrackingTimeout)

	uc.tracking.Add(1)
	go func() {
		defer uc.tracking.Done()
		defer cancel()

		if err := uc.writeAccess(trackCtx, event); err != nil {
			uc.logger.Error("failed to track access",
				slog.String("op", op),
				slog.Int64("short_link_id", linkID),
				slog.Any("err", err),
			)
		}
	}()
}

func (uc *URLUseCase) writeAccess(ctx context.Context, event *entity.AccessEvent) error {
	if uc.cfg.TransactionalTracking {
		if tracker, ok := uc.repo.(accessTracker); ok {
			return tracker.TrackAccess(ctx, event)
		}
	}

	var (
		g              errgroup.Group
		incErr, insErr error
	)

	g.Go(func() error {
		incErr = uc.repo.IncrementAccessCount(ctx, event.ShortLinkID, event.AccessedAt)
		return incErr
	})
	g.Go(func() error {
		_, insErr = uc.repo.InsertAccessEvent(ctx, event)
		return insErr
	})
	_ = g.Wait()

	return errors.Join(incErr, insErr)
}

// Wait blocks until every background tracking write has finished.
func (uc *URLUseCase) Wait() {
	uc.tracking.Wait()
}

// ListShortLinks returns one page of short links, optionally filtered by a
// case-insensitive substring of the original URL or the short code.
func (uc *URLUseCase) ListShortLinks(ctx context.Context, params entity.ListParams) (*entity.Page[entity.ShortLink], error) {
	const op = "usecase.URLUseCase.ListShortLinks"

	if params.Page == 0 {
		params.Page = 1
	}
	if params.PageSize == 0 {
		params.PageSize = entity.DefaultPageSize
	}
	if params.SortBy == "" {
		params.SortBy = entity.SortByCreatedAt
	}
	if params.SortOrder == "" {
		params.SortOrder = entity.SortDesc
	}

	if params.Page < 1 || params.PageSize < 1 || params.PageSize > entity.MaxPageSize {
		return nil, fmt.Errorf("%s: page %d of size %d: %w", op, params.Page, params.PageSize, entity.ErrInvalidInput)
	}
	if !params.SortBy.Valid() || !params.SortOrder.Valid() {
		return nil, fmt.Errorf("%s: unsupported ordering %q %q: %w", op, params.SortBy, params.SortOrder, entity.ErrInvalidInput)
	}

	items, total, err := uc.repo.ListShortLinks(ctx, entity.ListQuery{
		Offset:    (params.Page - 1) * params.PageSize,
		Limit:     params.PageSize,
		Search:    strings.TrimSpace(params.Search),
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list short links: %w", op, err)
	}

	return entity.NewPage(items, total, params.Page, params.PageSize), nil
}

func validateOriginalURL(raw string) error {
	if raw == "" || len(raw) > entity.MaxOriginalURLLength {
		return entity.ErrInvalidURL
	}

	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return entity.ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return entity.ErrInvalidURL
	}

	return nil
}
