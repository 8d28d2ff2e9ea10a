// Package memory is a process-local short link store. It backs the service
// when storage.driver is "memory" and drives the use case tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type Repository struct {
	mu     sync.RWMutex
	nextID int64
	links  map[int64]*entity.ShortLink
	codes  map[string]int64
	events []entity.AccessEvent
}

func NewRepository() *Repository {
	return &Repository{
		links: make(map[int64]*entity.ShortLink),
		codes: make(map[string]int64),
	}
}

func (r *Repository) InsertShortLink(_ context.Context, link *entity.ShortLink) (*entity.ShortLink, error) {
	const op = "adapter.repository.memory.Repository.InsertShortLink"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[link.ShortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	r.nextID++

	stored := cloneLink(link)
	stored.ID = r.nextID

	r.links[stored.ID] = stored
	r.codes[stored.ShortCode] = stored.ID

	return cloneLink(stored), nil
}

func (r *Repository) FindShortLinkByCode(_ context.Context, code string, includeExpired bool, now time.Time) (*entity.ShortLink, error) {
	const op = "adapter.repository.memory.Repository.FindShortLinkByCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codes[code]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	link := r.links[id]
	if !includeExpired && link.IsExpired(now) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return cloneLink(link), nil
}

func (r *Repository) IncrementAccessCount(_ context.Context, id int64, at time.Time) error {
	const op = "adapter.repository.memory.Repository.IncrementAccessCount"

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.incrementLocked(id, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Repository) InsertAccessEvent(_ context.Context, event *entity.AccessEvent) (uuid.UUID, error) {
	const op = "adapter.repository.memory.Repository.InsertAccessEvent"

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.insertEventLocked(event); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return event.ID, nil
}

// TrackAccess applies the counter increment and the event insert atomically.
func (r *Repository) TrackAccess(_ context.Context, event *entity.AccessEvent) error {
	const op = "adapter.repository.memory.Repository.TrackAccess"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[event.ShortLinkID]; !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	if err := r.insertEventLocked(event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.incrementLocked(event.ShortLinkID, event.AccessedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Repository) incrementLocked(id int64, at time.Time) error {
	link, ok := r.links[id]
	if !ok {
		return entity.ErrLinkNotFound
	}

	link.AccessCount++
	link.UpdatedAt = at

	return nil
}

func (r *Repository) insertEventLocked(event *entity.AccessEvent) error {
	if _, ok := r.links[event.ShortLinkID]; !ok {
		return entity.ErrLinkNotFound
	}

	r.events = append(r.events, *event)

	return nil
}

func (r *Repository) CountCreatedSince(_ context.Context, creatorIP string, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, link := range r.links {
		if link.CreatorIP != nil && *link.CreatorIP == creatorIP && !link.CreatedAt.Before(since) {
			n++
		}
	}

	return n, nil
}

func (r *Repository) CountAccessEventsByDay(_ context.Context, from, to time.Time) ([]entity.DailyAccess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byDay := make(map[time.Time]int64)
	for _, e := range r.events {
		if e.AccessedAt.Before(from) || !e.AccessedAt.Before(to) {
			continue
		}
		byDay[truncateDay(e.AccessedAt)]++
	}

	return sortedDays(byDay), nil
}

func (r *Repository) TopShortLinksByAccessCount(_ context.Context, limit int) ([]entity.TopLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	totals := make(map[int64]int64, len(r.links))
	for _, e := range r.events {
		totals[e.ShortLinkID]++
	}

	top := make([]entity.TopLink, 0, len(r.links))
	for id, link := range r.links {
		top = append(top, entity.TopLink{
			ShortLink:     *cloneLink(link),
			TotalAccesses: totals[id],
		})
	}

	slices.SortFunc(top, func(a, b entity.TopLink) int {
		if c := cmp.Compare(b.TotalAccesses, a.TotalAccesses); c != 0 {
			return c
		}
		return cmp.Compare(a.ShortLink.ID, b.ShortLink.ID)
	})

	if len(top) > limit {
		top = top[:limit]
	}

	return top, nil
}

func (r *Repository) PeakAccessDay(_ context.Context) (*entity.DailyAccess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byDay := make(map[time.Time]int64)
	for _, e := range r.events {
		byDay[truncateDay(e.AccessedAt)]++
	}

	var peak *entity.DailyAccess
	for _, d := range sortedDays(byDay) {
		if peak == nil || d.AccessCount >= peak.AccessCount {
			d := d
			peak = &d
		}
	}

	return peak, nil
}

func (r *Repository) ListShortLinks(_ context.Context, q entity.ListQuery) ([]entity.ShortLink, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(q.Search)

	matched := make([]entity.ShortLink, 0, len(r.links))
	for _, link := range r.links {
		if search != "" &&
			!strings.Contains(strings.ToLower(link.OriginalURL), search) &&
			!strings.Contains(strings.ToLower(link.ShortCode), search) {
			continue
		}
		matched = append(matched, *cloneLink(link))
	}

	slices.SortFunc(matched, func(a, b entity.ShortLink) int {
		c := compareBy(q.SortBy, a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if q.SortOrder == entity.SortDesc {
			return -c
		}
		return c
	})

	total := int64(len(matched))

	if q.Offset >= len(matched) {
		return []entity.ShortLink{}, total, nil
	}

	end := min(q.Offset+q.Limit, len(matched))

	return matched[q.Offset:end], total, nil
}

// AccessEvents returns a copy of every recorded access event.
func (r *Repository) AccessEvents() []entity.AccessEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.events)
}

func compareBy(field entity.SortField, a, b entity.ShortLink) int {
	switch field {
	case entity.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case entity.SortByAccessCount:
		return cmp.Compare(a.AccessCount, b.AccessCount)
	case entity.SortByExpiresAt:
		return a.ExpiresAt.Compare(b.ExpiresAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func sortedDays(byDay map[time.Time]int64) []entity.DailyAccess {
	days := make([]entity.DailyAccess, 0, len(byDay))
	for d, n := range byDay {
		days = append(days, entity.DailyAccess{Date: d, AccessCount: n})
	}

	slices.SortFunc(days, func(a, b entity.DailyAccess) int {
		return a.Date.Compare(b.Date)
	})

	return days
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func cloneLink(link *entity.ShortLink) *entity.ShortLink {
	c := *link
	if link.CreatorIP != nil {
		ip := *link.CreatorIP
		c.CreatorIP = &ip
	}
	return &c
}
