// Package query composes loadout filters into remote store constraints and
// applies the parts the store cannot evaluate on the client.
package query

import (
	"slices"
	"time"

	"github.com/mwantia/loadoutsync/internal/loadout"
)

type SortKey string

const (
	SortByDate  SortKey = "date"
	SortByLikes SortKey = "likes"
	SortByViews SortKey = "views"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Filter selects and orders loadouts. It is a plain value; any change to it
// resets pagination.
type Filter struct {
	Search        string             `json:"search"`
	Categories    []loadout.Category `json:"categories"`
	Tags          []string           `json:"tags"`
	SortBy        SortKey            `json:"sortBy" validate:"omitempty,oneof=date likes views"`
	SortDirection Direction          `json:"sortDirection" validate:"omitempty,oneof=asc desc"`
	PersonalOnly  bool               `json:"showPersonalOnly"`

	// Public is tri-state: nil matches both public and private loadouts.
	Public *bool `json:"isPublic"`

	CreatedAfter *time.Time `json:"createdAfter,omitempty"`
}

// DefaultFilter lists public loadouts, newest first.
func DefaultFilter() Filter {
	public := true
	return Filter{
		Categories:    []loadout.Category{},
		Tags:          []string{},
		SortBy:        SortByDate,
		SortDirection: Descending,
		Public:        &public,
	}
}

// Equal reports whether f and other select the same loadouts in the same order.
func (f Filter) Equal(other Filter) bool {
	return f.Search == other.Search &&
		slices.Equal(f.Categories, other.Categories) &&
		slices.Equal(f.Tags, other.Tags) &&
		f.SortBy == other.SortBy &&
		f.SortDirection == other.SortDirection &&
		f.PersonalOnly == other.PersonalOnly &&
		equalPtr(f.Public, other.Public) &&
		equalPtr(f.CreatedAfter, other.CreatedAfter)
}

// Clone returns a copy of f sharing no slices or pointers.
func (f Filter) Clone() Filter {
	out := f
	out.Categories = append([]loadout.Category{}, f.Categories...)
	out.Tags = append([]string{}, f.Tags...)
	if f.Public != nil {
		v := *f.Public
		out.Public = &v
	}
	if f.CreatedAfter != nil {
		v := *f.CreatedAfter
		out.CreatedAfter = &v
	}
	return out
}

// normalized fills the sort defaults.
func (f Filter) normalized() Filter {
	if f.SortBy == "" {
		f.SortBy = SortByDate
	}
	if f.SortDirection != Ascending {
		f.SortDirection = Descending
	}
	return f
}

// SortField returns the stored field the sort key orders by.
func (k SortKey) SortField() string {
	switch k {
	case SortByLikes:
		return "likes"
	case SortByViews:
		return "views"
	default:
		return "createdAt"
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
