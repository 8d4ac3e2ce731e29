// Package option provides composable gorm query modifiers used by the
// generic repository and list endpoints.
package option

import (
	"fmt"
	"strings"
	"time"

	"github.com/fanstack/fanstack/pkg/db/pagination"
	"gorm.io/gorm"
)

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a comparison condition on a single column.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if strings.TrimSpace(cond.Field) == "" {
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	})
}

// ApplyPagination applies a cursor token and fetches one extra row so the
// caller can detect whether more pages exist.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 20
		}

		if token := strings.TrimSpace(p.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor != nil && cursor.CreatedAt != "" {
				if at, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err == nil {
					db = db.Where("created_at < ?", at)
				}
			}
		}

		return db.Limit(size + 1)
	})
}

// WithSortBy orders the query by a pre-validated clause.
func WithSortBy(clause string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if strings.TrimSpace(clause) == "" {
			return db
		}
		return db.Order(clause)
	})
}

// WithQuerySortBy validates the requested sort field against an allowlist
// and falls back to created_at desc.
func WithQuerySortBy(field, direction string, allowed map[string]bool) string {
	field = strings.TrimSpace(strings.ToLower(field))
	if !allowed[field] {
		field = "created_at"
	}

	direction = strings.TrimSpace(strings.ToLower(direction))
	if direction != "asc" && direction != "desc" {
		direction = "desc"
	}

	return fmt.Sprintf("%s %s", field, direction)
}

// WithLimit caps the result set size.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}
