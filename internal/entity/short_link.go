// Package entity defines the entities and errors used in the application.
// It includes the ShortLink and AccessEvent records, the values produced by
// reporting, and the sentinel errors shared by every layer.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxOriginalURLLength is the longest destination URL accepted.
const MaxOriginalURLLength = 2048

// reservedShortCodes are top-level paths served by the application itself.
var reservedShortCodes = map[string]struct{}{
	"api":     {},
	"metrics": {},
}

// IsReservedShortCode reports whether code collides with a built-in route.
func IsReservedShortCode(code string) bool {
	_, ok := reservedShortCodes[strings.ToLower(code)]
	return ok
}

// ShortLink is a persisted mapping from a short code to a destination URL.
type ShortLink struct {
	ID          int64     // ID is the storage-assigned identifier.
	ShortCode   string    // ShortCode is unique across all links, expired ones included.
	OriginalURL string    // OriginalURL is the redirect target.
	AccessCount int64     // AccessCount is the number of successful redirects.
	ExpiresAt   time.Time // ExpiresAt is the instant after which redirects stop.
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatorIP   *string // CreatorIP identifies the creator for rate limiting.
}

// IsExpired reports whether the link can no longer be used for redirects at now.
func (l *ShortLink) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// AccessEvent is one recorded redirect against a ShortLink.
type AccessEvent struct {
	ID          uuid.UUID
	ShortLinkID int64
	AccessedAt  time.Time
	UserAgent   *string
	IPAddress   *string
	Referer     *string
}

// AccessMeta carries the optional request details captured on redirect.
type AccessMeta struct {
	UserAgent *string
	IPAddress *string
	Referer   *string
}

// CreateShortLinkParams holds the input of a short link creation.
type CreateShortLinkParams struct {
	OriginalURL string
	// CreatorIP is the originating identity; empty disables rate limiting for the call.
	CreatorIP string
	// CustomCode, when set, is used instead of a generated code.
	CustomCode string
	// ExpiresAt, when set, overrides the configured expiration.
	ExpiresAt *time.Time
}
