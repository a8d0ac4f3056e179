package observable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject_SubscribeReceivesCurrentValue(t *testing.T) {
	s := NewSubject(1)

	ch, cancel := s.Subscribe()
	defer cancel()

	assert.Equal(t, 1, <-ch)
}

func TestSubject_LatestValueWins(t *testing.T) {
	s := NewSubject(0)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Publish(1)
	s.Publish(2)
	s.Publish(3)

	assert.Equal(t, 3, <-ch)
	assert.Equal(t, 3, s.Value())
}

func TestSubject_Update(t *testing.T) {
	s := NewSubject([]string{"a"})

	got := s.Update(func(v []string) []string {
		return append(append([]string{}, v...), "b")
	})

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []string{"a", "b"}, s.Value())
}

func TestSubject_CancelClosesChannel(t *testing.T) {
	s := NewSubject("x")
	ch, cancel := s.Subscribe()
	<-ch

	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)

	// publishing after cancel must not panic
	s.Publish("y")
}
