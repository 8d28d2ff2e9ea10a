package entity

// SortField is a column short links can be ordered by.
type SortField string

const (
	SortByCreatedAt   SortField = "createdAt"
	SortByUpdatedAt   SortField = "updatedAt"
	SortByAccessCount SortField = "accessCount"
	SortByExpiresAt   SortField = "expiresAt"
)

// Valid reports whether f is a known sort field.
func (f SortField) Valid() bool {
	switch f {
	case SortByCreatedAt, SortByUpdatedAt, SortByAccessCount, SortByExpiresAt:
		return true
	default:
		return false
	}
}

// SortOrder is the direction of a listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether o is a known sort order.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListParams is the caller-facing listing request.
type ListParams struct {
	Page      int
	PageSize  int
	Search    string
	SortBy    SortField
	SortOrder SortOrder
}

// ListQuery is the storage-facing listing request.
type ListQuery struct {
	Offset    int
	Limit     int
	Search    string
	SortBy    SortField
	SortOrder SortOrder
}

// Page is one page of a listing along with navigation metadata.
type Page[T any] struct {
	Items       []T
	TotalItems  int64
	CurrentPage int
	PageSize    int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

// NewPage builds a Page for the given page number and size.
func NewPage[T any](items []T, total int64, page, size int) *Page[T] {
	totalPages := int((total + int64(size) - 1) / int64(size))

	return &Page[T]{
		Items:       items,
		TotalItems:  total,
		CurrentPage: page,
		PageSize:    size,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}
