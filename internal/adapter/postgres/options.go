package postgres

import (
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// FindOptions controls a paginated FindAll query.
type FindOptions struct {
	Page  int
	Limit int
	// OrderBy must name a stored column. Empty orders by the key.
	OrderBy string
	// OrderDirection is ASC or DESC (case-insensitive). Empty means ASC.
	OrderDirection string
	Where          sq.Sqlizer
	IncludeDeleted bool
}

// orderClause validates the requested order and appends the key as a
// tie-breaker so that pages never overlap.
func (r *Repository[D, R, K]) orderClause(orderBy, direction string) ([]string, error) {
	col := strings.TrimSpace(orderBy)
	if col == "" {
		col = r.spec.Key
	}
	if col != r.spec.Key && !slices.Contains(r.spec.Columns, col) {
		return nil, fmt.Errorf("%s: %w", r.spec.Entity, domain.NewValidationError("order_by", fmt.Sprintf("unknown column %q", orderBy)))
	}

	dir := strings.ToUpper(strings.TrimSpace(direction))
	switch dir {
	case "":
		dir = "ASC"
	case "ASC", "DESC":
	default:
		return nil, fmt.Errorf("%s: %w", r.spec.Entity, domain.NewValidationError("order_direction", "must be ASC or DESC"))
	}

	order := []string{col + " " + dir}
	if col != r.spec.Key {
		order = append(order, r.spec.Key+" "+dir)
	}
	return order, nil
}
