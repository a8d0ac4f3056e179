package query

import (
	"sort"
	"strings"

	"github.com/mwantia/loadoutsync/internal/loadout"
	"golang.org/x/text/cases"
)

// fold builds a new Caser per call; a Caser must not be shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// MatchesSearch reports whether term occurs in the name, the notes or any
// tag of l, ignoring case. An empty term matches everything.
func MatchesSearch(l *loadout.Loadout, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	needle := fold(term)

	if strings.Contains(fold(l.Setup.Name), needle) ||
		strings.Contains(fold(l.Setup.Notes), needle) {
		return true
	}
	for _, tag := range l.Tags {
		if strings.Contains(fold(tag), needle) {
			return true
		}
	}
	return false
}

// Search keeps the loadouts matching term, preserving order.
func Search(loadouts []loadout.Loadout, term string) []loadout.Loadout {
	if strings.TrimSpace(term) == "" {
		return loadouts
	}
	out := make([]loadout.Loadout, 0, len(loadouts))
	for i := range loadouts {
		if MatchesSearch(&loadouts[i], term) {
			out = append(out, loadouts[i])
		}
	}
	return out
}

// View applies the whole filter to loadouts held locally and sorts the
// result. Unlike the remote query, tags must all be present.
func View(loadouts []loadout.Loadout, filter Filter, userID string) []loadout.Loadout {
	f := filter.normalized()
	out := make([]loadout.Loadout, 0, len(loadouts))

	for i := range loadouts {
		l := &loadouts[i]
		if !MatchesSearch(l, f.Search) {
			continue
		}
		if len(f.Categories) > 0 && !containsCategory(f.Categories, l.Category) {
			continue
		}
		if !hasAllTags(l, f.Tags) {
			continue
		}
		if f.PersonalOnly && userID != "" && l.UserID != userID {
			continue
		}
		if f.Public != nil && l.IsPublic != *f.Public {
			continue
		}
		if f.CreatedAfter != nil && l.CreatedAt.Before(*f.CreatedAfter) {
			continue
		}
		out = append(out, *l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := compare(&out[i], &out[j], f.SortBy)
		if f.SortDirection == Ascending {
			return c < 0
		}
		return c > 0
	})
	return out
}

// AllTags returns the sorted set of tags used by loadouts.
func AllTags(loadouts []loadout.Loadout) []string {
	seen := map[string]struct{}{}
	for _, l := range loadouts {
		for _, tag := range l.Tags {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func compare(a, b *loadout.Loadout, key SortKey) int {
	switch key {
	case SortByLikes:
		return cmpInt(a.Likes, b.Likes)
	case SortByViews:
		return cmpInt(a.Views, b.Views)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func containsCategory(categories []loadout.Category, c loadout.Category) bool {
	for _, candidate := range categories {
		if candidate == c {
			return true
		}
	}
	return false
}

func hasAllTags(l *loadout.Loadout, tags []string) bool {
	for _, tag := range tags {
		if !l.HasTag(tag) {
			return false
		}
	}
	return true
}
