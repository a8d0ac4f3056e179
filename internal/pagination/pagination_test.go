package pagination

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_InitialState(t *testing.T) {
	m := NewManager(0)
	assert.Equal(t, State{PageSize: DefaultPageSize, HasMore: true, Phase: PhaseIdle}, m.State())
}

func TestManager_FullPageKeepsMore(t *testing.T) {
	m := NewManager(10)

	ticket, ok := m.Begin(First)
	require.True(t, ok)
	assert.Equal(t, PhaseLoading, m.State().Phase)
	assert.True(t, m.State().Loading)

	applied := false
	require.True(t, m.Complete(ticket, "c1", 10, func() { applied = true }))
	assert.True(t, applied)

	s := m.State()
	assert.True(t, s.HasMore)
	assert.Equal(t, PhaseLoaded, s.Phase)
	assert.Equal(t, "c1", s.Cursor)
	assert.False(t, s.Loading)
}

func TestManager_ShortPageExhausts(t *testing.T) {
	m := NewManager(10)

	ticket, _ := m.Begin(First)
	m.Complete(ticket, "c1", 3, nil)
	assert.Equal(t, PhaseExhausted, m.State().Phase)
	assert.False(t, m.State().HasMore)

	_, ok := m.Begin(Next)
	assert.False(t, ok)
}

func TestManager_ZeroResultsExhausts(t *testing.T) {
	m := NewManager(10)

	ticket, _ := m.Begin(First)
	m.Complete(ticket, "", 0, nil)
	assert.Equal(t, PhaseExhausted, m.State().Phase)
	assert.Empty(t, m.State().Cursor)
}

func TestManager_NextRequiresCursorAndIdle(t *testing.T) {
	m := NewManager(2)

	_, ok := m.Begin(Next)
	assert.False(t, ok, "no cursor yet")

	first, _ := m.Begin(First)
	_, ok = m.Begin(Next)
	assert.False(t, ok, "first page still loading")

	m.Complete(first, "c1", 2, nil)
	next, ok := m.Begin(Next)
	require.True(t, ok)
	assert.Equal(t, "c1", next.Cursor)

	_, ok = m.Begin(Next)
	assert.False(t, ok, "next page still loading")
}

func TestManager_FailKeepsCursor(t *testing.T) {
	m := NewManager(2)

	first, _ := m.Begin(First)
	m.Complete(first, "c1", 2, nil)

	next, _ := m.Begin(Next)
	require.True(t, m.Fail(next, errors.New("boom")))

	s := m.State()
	assert.Equal(t, PhaseError, s.Phase)
	assert.Equal(t, "c1", s.Cursor)
	assert.Equal(t, "boom", s.Err)

	retry, ok := m.Begin(Next)
	require.True(t, ok)
	assert.Equal(t, "c1", retry.Cursor)
}

func TestManager_ResetDropsStaleResults(t *testing.T) {
	m := NewManager(2)

	first, _ := m.Begin(First)
	m.Complete(first, "c1", 2, nil)
	stale, _ := m.Begin(Next)

	m.Reset()
	assert.Equal(t, State{PageSize: 2, HasMore: true, Phase: PhaseIdle}, m.State())

	applied := false
	assert.False(t, m.Complete(stale, "c2", 2, func() { applied = true }))
	assert.False(t, applied)
	assert.False(t, m.Fail(stale, errors.New("late")))
	assert.Equal(t, PhaseIdle, m.State().Phase)
}

func TestManager_FirstSupersedesInFlight(t *testing.T) {
	m := NewManager(2)

	older, _ := m.Begin(First)
	newer, _ := m.Begin(First)

	assert.False(t, m.Complete(older, "old", 2, nil))
	assert.True(t, m.Complete(newer, "new", 1, nil))
	assert.Equal(t, "new", m.State().Cursor)
}

func TestManager_Subscribe(t *testing.T) {
	m := NewManager(2)
	ch, cancel := m.Subscribe()
	defer cancel()

	assert.Equal(t, PhaseIdle, (<-ch).Phase)
	m.Begin(First)
	assert.Equal(t, PhaseLoading, (<-ch).Phase)
}

func TestManager_AdoptPeekedRead(t *testing.T) {
	m := NewManager(2)
	first, _ := m.Begin(First)
	m.Complete(first, "c1", 2, nil)

	peek := m.Peek()
	assert.Equal(t, First, peek.Kind)
	assert.Empty(t, peek.Cursor)
	assert.Equal(t, PhaseLoaded, m.State().Phase, "peek publishes nothing")

	applied := false
	assert.True(t, m.Adopt(peek, "c2", 1, func() { applied = true }))
	assert.True(t, applied)

	s := m.State()
	assert.Equal(t, "c2", s.Cursor)
	assert.False(t, s.HasMore)
	assert.Equal(t, PhaseExhausted, s.Phase)
}

func TestManager_AdoptRefusedWhileFetching(t *testing.T) {
	m := NewManager(2)
	first, _ := m.Begin(First)
	m.Complete(first, "c1", 2, nil)

	peek := m.Peek()
	next, ok := m.Begin(Next)
	require.True(t, ok)

	applied := false
	assert.False(t, m.Adopt(peek, "p", 2, func() { applied = true }))
	assert.False(t, applied)
	assert.True(t, m.Complete(next, "c2", 2, nil), "next page is not superseded")
	assert.Equal(t, "c2", m.State().Cursor)
}

func TestManager_AdoptRefusedAfterReset(t *testing.T) {
	m := NewManager(2)
	peek := m.Peek()

	m.Reset()
	reload, _ := m.Begin(First)
	assert.True(t, m.Complete(reload, "fresh", 2, nil))

	assert.False(t, m.Adopt(peek, "old", 2, nil))
	assert.Equal(t, "fresh", m.State().Cursor)
}

func TestManager_AdoptStalesOtherPeeks(t *testing.T) {
	m := NewManager(2)
	a := m.Peek()
	b := m.Peek()

	assert.True(t, m.Adopt(a, "a", 2, nil))
	assert.False(t, m.Adopt(b, "b", 2, nil))
	assert.Equal(t, "a", m.State().Cursor)
}
