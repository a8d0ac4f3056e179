// Package localstore holds the loadout collection presented to readers.
// Every mutation publishes a new slice; published slices are never modified.
package localstore

import (
	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/observable"
)

type Store struct {
	subject *observable.Subject[[]loadout.Loadout]
}

func New() *Store {
	return &Store{
		subject: observable.NewSubject([]loadout.Loadout{}),
	}
}

// Loadouts returns the current collection. Callers must not modify it.
func (s *Store) Loadouts() []loadout.Loadout {
	return s.subject.Value()
}

func (s *Store) Subscribe() (<-chan []loadout.Loadout, func()) {
	return s.subject.Subscribe()
}

func (s *Store) Len() int {
	return len(s.subject.Value())
}

// Get returns the loadout with id.
func (s *Store) Get(id string) (loadout.Loadout, bool) {
	for _, l := range s.subject.Value() {
		if l.ID == id {
			return l, true
		}
	}
	return loadout.Loadout{}, false
}

// Replace discards the current contents.
func (s *Store) Replace(loadouts []loadout.Loadout) {
	next := make([]loadout.Loadout, len(loadouts))
	copy(next, loadouts)
	s.subject.Publish(next)
}

// Append adds a page after the current contents, preserving arrival order.
func (s *Store) Append(loadouts []loadout.Loadout) {
	s.subject.Update(func(current []loadout.Loadout) []loadout.Loadout {
		next := make([]loadout.Loadout, 0, len(current)+len(loadouts))
		next = append(next, current...)
		return append(next, loadouts...)
	})
}

// Insert adds l at the front or the back. An existing loadout with the same
// id is replaced in place.
func (s *Store) Insert(l loadout.Loadout, front bool) {
	s.subject.Update(func(current []loadout.Loadout) []loadout.Loadout {
		for i := range current {
			if current[i].ID == l.ID {
				next := make([]loadout.Loadout, len(current))
				copy(next, current)
				next[i] = l
				return next
			}
		}

		next := make([]loadout.Loadout, 0, len(current)+1)
		if front {
			next = append(next, l)
			return append(next, current...)
		}
		next = append(next, current...)
		return append(next, l)
	})
}

// Remove drops the loadout with id and reports whether it was present.
func (s *Store) Remove(id string) bool {
	removed := false
	s.subject.Update(func(current []loadout.Loadout) []loadout.Loadout {
		next := make([]loadout.Loadout, 0, len(current))
		for _, l := range current {
			if l.ID == id {
				removed = true
				continue
			}
			next = append(next, l)
		}
		if !removed {
			return current
		}
		return next
	})
	return removed
}

// AdjustLikes adds delta to the like counter of id without going below zero.
func (s *Store) AdjustLikes(id string, delta int64) bool {
	return s.modify(id, func(l *loadout.Loadout) {
		l.Likes += delta
		if l.Likes < 0 {
			l.Likes = 0
		}
	})
}

// AdjustViews adds delta to the view counter of id.
func (s *Store) AdjustViews(id string, delta int64) bool {
	return s.modify(id, func(l *loadout.Loadout) {
		l.Views += delta
		if l.Views < 0 {
			l.Views = 0
		}
	})
}

func (s *Store) modify(id string, fn func(l *loadout.Loadout)) bool {
	found := false
	s.subject.Update(func(current []loadout.Loadout) []loadout.Loadout {
		for i := range current {
			if current[i].ID != id {
				continue
			}
			found = true
			next := make([]loadout.Loadout, len(current))
			copy(next, current)
			fn(&next[i])
			return next
		}
		return current
	})
	return found
}
