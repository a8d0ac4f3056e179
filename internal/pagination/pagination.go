// Package pagination tracks the cursor state of the loadout list.
package pagination

import (
	"sync"

	"github.com/mwantia/loadoutsync/internal/observable"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLoading   Phase = "loading"
	PhaseLoaded    Phase = "loaded"
	PhaseExhausted Phase = "exhausted"
	PhaseError     Phase = "error"
)

const DefaultPageSize = 10

// State is the published pagination snapshot.
type State struct {
	PageSize int    `json:"pageSize"`
	Cursor   string `json:"cursor,omitempty"`
	HasMore  bool   `json:"hasMore"`
	Loading  bool   `json:"loading"`
	Phase    Phase  `json:"phase"`
	Err      string `json:"error,omitempty"`
}

func initialState(pageSize int) State {
	return State{
		PageSize: pageSize,
		HasMore:  true,
		Phase:    PhaseIdle,
	}
}

type Kind int

const (
	First Kind = iota
	Next
)

// Ticket identifies one fetch. A ticket goes stale when the manager is
// reset, a newer first-page fetch begins or a peeked read is adopted.
type Ticket struct {
	Kind       Kind
	Generation uint64
	Cursor     string
	PageSize   int
}

// Manager owns the pagination state. All transitions are serialized.
type Manager struct {
	mu         sync.Mutex
	pageSize   int
	generation uint64
	state      *observable.Subject[State]
}

func NewManager(pageSize int) *Manager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Manager{
		pageSize: pageSize,
		state:    observable.NewSubject(initialState(pageSize)),
	}
}

func (m *Manager) State() State {
	return m.state.Value()
}

func (m *Manager) Subscribe() (<-chan State, func()) {
	return m.state.Subscribe()
}

// Reset returns to the initial state and invalidates every issued ticket.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.state.Publish(initialState(m.pageSize))
}

// Begin starts a fetch. A first-page fetch always starts and supersedes any
// fetch in flight. A next-page fetch is refused while loading, once
// exhausted, or before a cursor exists.
func (m *Manager) Begin(kind Kind) (Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.state.Value()

	if kind == Next {
		if current.Loading || current.Phase == PhaseExhausted || !current.HasMore || current.Cursor == "" {
			return Ticket{}, false
		}
	} else {
		m.generation++
		current = initialState(m.pageSize)
	}

	ticket := Ticket{
		Kind:       kind,
		Generation: m.generation,
		Cursor:     current.Cursor,
		PageSize:   m.pageSize,
	}

	next := current
	next.Loading = true
	next.Phase = PhaseLoading
	next.Err = ""
	m.state.Publish(next)

	return ticket, true
}

// Complete records a successful fetch of count documents ending at cursor.
// apply runs under the manager lock so the local store mutation and the
// pagination transition are observed together. Stale tickets are dropped
// and Complete returns false without calling apply.
func (m *Manager) Complete(t Ticket, cursor string, count int, apply func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Generation != m.generation {
		return false
	}

	if apply != nil {
		apply()
	}

	m.state.Publish(finished(m.state.Value(), t.PageSize, cursor, count))
	return true
}

// Peek returns a first-page ticket for the current generation without
// starting a fetch. Its result can only be applied through Adopt.
func (m *Manager) Peek() Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Ticket{
		Kind:       First,
		Generation: m.generation,
		PageSize:   m.pageSize,
	}
}

// Adopt applies a peeked first-page read as the new first page. It is
// refused while any fetch is in flight or once the generation moved on, so
// a peek never displaces a current fetch. Other peeks of the same
// generation go stale.
func (m *Manager) Adopt(t Ticket, cursor string, count int, apply func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Kind != First || t.Generation != m.generation || m.state.Value().Loading {
		return false
	}
	m.generation++

	if apply != nil {
		apply()
	}

	m.state.Publish(finished(initialState(m.pageSize), t.PageSize, cursor, count))
	return true
}

func finished(s State, pageSize int, cursor string, count int) State {
	s.Loading = false
	s.Err = ""
	s.HasMore = count > 0 && count == pageSize
	if cursor != "" {
		s.Cursor = cursor
	}
	if s.HasMore {
		s.Phase = PhaseLoaded
	} else {
		s.Phase = PhaseExhausted
	}
	return s
}

// Fail records a failed fetch. The cursor is kept so the fetch can be retried.
func (m *Manager) Fail(t Ticket, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Generation != m.generation {
		return false
	}

	next := m.state.Value()
	next.Loading = false
	next.Phase = PhaseError
	if err != nil {
		next.Err = err.Error()
	}
	m.state.Publish(next)
	return true
}
