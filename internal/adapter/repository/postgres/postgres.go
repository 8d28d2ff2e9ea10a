package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	uniqueViolationErrCode     = "23505"
	foreignKeyViolationErrCode = "23503"
)

const shortLinkColumns = `id, short_code, original_url, access_count, expires_at, created_at, updated_at, creator_ip`

var sortColumns = map[entity.SortField]string{
	entity.SortByCreatedAt:   "created_at",
	entity.SortByUpdatedAt:   "updated_at",
	entity.SortByAccessCount: "access_count",
	entity.SortByExpiresAt:   "expires_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolationError(err error) bool {
	return pgErrCode(err) == uniqueViolationErrCode
}

func isForeignKeyViolationError(err error) bool {
	return pgErrCode(err) == foreignKeyViolationErrCode
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
}

type shortLinkDB struct {
	ID          int64          `db:"id"`
	ShortCode   string         `db:"short_code"`
	OriginalURL string         `db:"original_url"`
	AccessCount int64          `db:"access_count"`
	ExpiresAt   time.Time      `db:"expires_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	CreatorIP   sql.NullString `db:"creator_ip"`
}

func (l *shortLinkDB) toEntity() *entity.ShortLink {
	link := &entity.ShortLink{
		ID:          l.ID,
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		AccessCount: l.AccessCount,
		ExpiresAt:   l.ExpiresAt.UTC(),
		CreatedAt:   l.CreatedAt.UTC(),
		UpdatedAt:   l.UpdatedAt.UTC(),
	}
	if l.CreatorIP.Valid {
		ip := l.CreatorIP.String
		link.CreatorIP = &ip
	}
	return link
}

type topLinkDB struct {
	shortLinkDB
	TotalAccesses int64 `db:"total_accesses"`
}

type dailyAccessDB struct {
	Day         time.Time `db:"day"`
	AccessCount int64     `db:"access_count"`
}

func (d *dailyAccessDB) toEntity() entity.DailyAccess {
	t := d.Day
	return entity.DailyAccess{
		Date:        time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		AccessCount: d.AccessCount,
	}
}

// Repository is the PostgreSQL persistence gateway.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping(ctx context.Context) error {
	const op = "adapter.repository.postgres.Repository.Ping"

	if err := r.db.PingContext(ctx); err != nil {
		return storageErr(op, err)
	}

	return nil
}

func (r *Repository) InsertShortLink(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.Repository.InsertShortLink"
	const query = `INSERT INTO short_links (short_code, original_url, expires_at, created_at, updated_at, creator_ip)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + shortLinkColumns

	var row shortLinkDB

	err := r.db.GetContext(ctx, &row, query,
		link.ShortCode, link.OriginalURL, link.ExpiresAt, link.CreatedAt, link.UpdatedAt, link.CreatorIP)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, storageErr(op, err)
	}

	return row.toEntity(), nil
}

func (r *Repository) FindShortLinkByCode(ctx context.Context, code string, includeExpired bool, now time.Time) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.Repository.FindShortLinkByCode"
	const query = `SELECT ` + shortLinkColumns + ` FROM short_links WHERE short_code = $1`
	const liveQuery = query + ` AND expires_at > $2`

	var (
		row shortLinkDB
		err error
	)

	if includeExpired {
		err = r.db.GetContext(ctx, &row, query, code)
	} else {
		err = r.db.GetContext(ctx, &row, liveQuery, code, now)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, storageErr(op, err)
	}

	return row.toEntity(), nil
}

func (r *Repository) IncrementAccessCount(ctx context.Context, id int64, at time.Time) error {
	const op = "adapter.repository.postgres.Repository.IncrementAccessCount"

	if err := incrementAccessCount(ctx, r.db, id, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Repository) InsertAccessEvent(ctx context.Context, event *entity.AccessEvent) (uuid.UUID, error) {
	const op = "adapter.repository.postgres.Repository.InsertAccessEvent"

	id, err := insertAccessEvent(ctx, r.db, event)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// TrackAccess records the event and bumps the link's counter in one transaction.
func (r *Repository) TrackAccess(ctx context.Context, event *entity.AccessEvent) error {
	const op = "adapter.repository.postgres.Repository.TrackAccess"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(op, err)
	}
	defer tx.Rollback()

	if _, err := insertAccessEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := incrementAccessCount(ctx, tx, event.ShortLinkID, event.AccessedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}

	return nil
}

func incrementAccessCount(ctx context.Context, db sqlx.ExtContext, id int64, at time.Time) error {
	const op = "adapter.repository.postgres.incrementAccessCount"
	const query = `UPDATE short_links SET access_count = access_count + 1, updated_at = $2 WHERE id = $1`

	res, err := db.ExecContext(ctx, query, id, at)
	if err != nil {
		return storageErr(op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return nil
}

func insertAccessEvent(ctx context.Context, db sqlx.QueryerContext, event *entity.AccessEvent) (uuid.UUID, error) {
	const op = "adapter.repository.postgres.insertAccessEvent"
	const query = `INSERT INTO access_events (id, short_link_id, accessed_at, user_agent, ip_address, referer)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

	var id uuid.UUID

	err := sqlx.GetContext(ctx, db, &id, query,
		event.ID, event.ShortLinkID, event.AccessedAt, event.UserAgent, event.IPAddress, event.Referer)
	if err != nil {
		if isForeignKeyViolationError(err) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return uuid.Nil, storageErr(op, err)
	}

	return id, nil
}

func (r *Repository) CountCreatedSince(ctx context.Context, creatorIP string, since time.Time) (int64, error) {
	const op = "adapter.repository.postgres.Repository.CountCreatedSince"
	const query = `SELECT COUNT(*) FROM short_links WHERE creator_ip = $1 AND created_at >= $2`

	var n int64

	if err := r.db.GetContext(ctx, &n, query, creatorIP, since); err != nil {
		return 0, storageErr(op, err)
	}

	return n, nil
}

func (r *Repository) CountAccessEventsByDay(ctx context.Context, from, to time.Time) ([]entity.DailyAccess, error) {
	const op = "adapter.repository.postgres.Repository.CountAccessEventsByDay"
	const query = `SELECT (accessed_at AT TIME ZONE 'UTC')::date AS day, COUNT(*) AS access_count
FROM access_events
WHERE accessed_at >= $1 AND accessed_at < $2
GROUP BY day
ORDER BY day`

	var rows []dailyAccessDB

	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, storageErr(op, err)
	}

	days := make([]entity.DailyAccess, 0, len(rows))
	for i := range rows {
		days = append(days, rows[i].toEntity())
	}

	return days, nil
}

func (r *Repository) TopShortLinksByAccessCount(ctx context.Context, limit int) ([]entity.TopLink, error) {
	const op = "adapter.repository.postgres.Repository.TopShortLinksByAccessCount"
	const query = `SELECT s.id, s.short_code, s.original_url, s.access_count, s.expires_at, s.created_at, s.updated_at, s.creator_ip,
	COUNT(e.id) AS total_accesses
FROM short_links s
LEFT JOIN access_events e ON e.short_link_id = s.id
GROUP BY s.id
ORDER BY total_accesses DESC, s.id ASC
LIMIT $1`

	var rows []topLinkDB

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, storageErr(op, err)
	}

	top := make([]entity.TopLink, 0, len(rows))
	for i := range rows {
		top = append(top, entity.TopLink{
			ShortLink:     *rows[i].toEntity(),
			TotalAccesses: rows[i].TotalAccesses,
		})
	}

	return top, nil
}

// PeakAccessDay returns nil without error when no access has been recorded.
// Ties resolve to the most recent day.
func (r *Repository) PeakAccessDay(ctx context.Context) (*entity.DailyAccess, error) {
	const op = "adapter.repository.postgres.Repository.PeakAccessDay"
	const query = `SELECT (accessed_at AT TIME ZONE 'UTC')::date AS day, COUNT(*) AS access_count
FROM access_events
GROUP BY day
ORDER BY access_count DESC, day DESC
LIMIT 1`

	var row dailyAccessDB

	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, storageErr(op, err)
	}

	peak := row.toEntity()

	return &peak, nil
}

func (r *Repository) ListShortLinks(ctx context.Context, q entity.ListQuery) ([]entity.ShortLink, int64, error) {
	const op = "adapter.repository.postgres.Repository.ListShortLinks"

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = sortColumns[entity.SortByCreatedAt]
	}
	direction := "DESC"
	if q.SortOrder == entity.SortAsc {
		direction = "ASC"
	}

	var (
		where string
		args  []any
	)
	if q.Search != "" {
		where = ` WHERE original_url ILIKE $1 OR short_code ILIKE $1`
		args = append(args, "%"+likeEscaper.Replace(q.Search)+"%")
	}

	var total int64

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM short_links`+where, args...); err != nil {
		return nil, 0, storageErr(op, err)
	}

	query := fmt.Sprintf(`SELECT %s FROM short_links%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		shortLinkColumns, where, column, direction, direction, len(args)+1, len(args)+2)

	var rows []shortLinkDB

	if err := r.db.SelectContext(ctx, &rows, query, append(args, q.Limit, q.Offset)...); err != nil {
		return nil, 0, storageErr(op, err)
	}

	links := make([]entity.ShortLink, 0, len(rows))
	for i := range rows {
		links = append(links, *rows[i].toEntity())
	}

	return links, total, nil
}
