package query

import (
	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/pkg/db/store"
)

// Page is the pagination input of a query.
type Page struct {
	Size   int
	Cursor string
}

// Compose returns the constraints of a loadout query: equality filters
// first, then the range filter, the single sort, the limit and the cursor.
// Search text is not part of the result; apply Search to the returned
// loadouts instead. Personal-only is ignored when userID is empty.
func Compose(filter Filter, page Page, userID string) []store.Constraint {
	f := filter.normalized()
	constraints := make([]store.Constraint, 0, 8)

	if f.PersonalOnly && userID != "" {
		constraints = append(constraints, store.Where{Field: "userId", Op: store.OpEqual, Value: userID})
	}

	if len(f.Categories) > 0 {
		categories := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			categories[i] = string(c)
		}
		constraints = append(constraints, store.Where{Field: "category", Op: store.OpIn, Value: categories})
	}

	if len(f.Tags) > 0 {
		constraints = append(constraints, store.Where{Field: "tags", Op: store.OpArrayContainsAny, Value: f.Tags})
	}

	if f.Public != nil {
		constraints = append(constraints, store.Where{Field: "isPublic", Op: store.OpEqual, Value: *f.Public})
	}

	if f.CreatedAfter != nil {
		constraints = append(constraints, store.Where{
			Field: "createdAt",
			Op:    store.OpGreaterOrEqual,
			Value: loadout.Millis(*f.CreatedAfter),
		})
	}

	direction := store.Descending
	if f.SortDirection == Ascending {
		direction = store.Ascending
	}
	constraints = append(constraints, store.OrderBy{Field: f.SortBy.SortField(), Direction: direction})

	if page.Size > 0 {
		constraints = append(constraints, store.Limit{N: page.Size})
	}
	if page.Cursor != "" {
		constraints = append(constraints, store.StartAfter{Cursor: page.Cursor})
	}

	return constraints
}
