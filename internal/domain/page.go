package domain

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 1000
)

// Page is one page of an offset-paginated listing.
type Page[T any] struct {
	Items      []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// NormalizePage clamps page to >= 1 and limit to [1, MaxPageLimit],
// replacing a non-positive limit with DefaultPageLimit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// NewPage builds a page and derives TotalPages from total and limit.
func NewPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// Offset returns the number of rows skipped before page.
func Offset(page, limit int) int {
	return (page - 1) * limit
}
