package usecase

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbot/internal/domain"
)

func TestSession_AppendOrder(t *testing.T) {
	s := NewSession()
	require.NotEmpty(t, s.ID)

	for i := 0; i < 6; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		s.Append(role, fmt.Sprintf("turn %d", i))
	}

	turns := s.Turns()
	require.Len(t, turns, 6)
	assert.Equal(t, 6, s.Len())
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("turn %d", i), turn.Content)
		if i > 0 {
			assert.False(t, turn.CreatedAt.Before(turns[i-1].CreatedAt))
		}
	}
}

func TestSession_TimestampsNeverGoBack(t *testing.T) {
	s := NewSession()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Minute)}
	s.now = func() time.Time {
		ts := times[0]
		times = times[1:]
		return ts
	}

	s.Append(domain.RoleUser, "a")
	s.Append(domain.RoleAssistant, "b")

	turns := s.Turns()
	assert.Equal(t, base, turns[1].CreatedAt)
}

func TestSession_TurnsIsACopy(t *testing.T) {
	s := NewSession()
	s.Append(domain.RoleUser, "a")

	turns := s.Turns()
	turns[0].Content = "changed"
	assert.Equal(t, "a", s.Turns()[0].Content)
}

func TestSession_Window(t *testing.T) {
	s := NewSession()
	for i := 0; i < 5; i++ {
		s.commit(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	assert.Len(t, s.Window(0), 10)
	assert.Len(t, s.Window(100), 10)

	w := s.Window(4)
	require.Len(t, w, 4)
	assert.Equal(t, "q3", w[0].Content)
	assert.Equal(t, "a4", w[3].Content)

	// an odd window would start on an answer, so it drops that turn
	w = s.Window(3)
	require.Len(t, w, 2)
	assert.Equal(t, domain.RoleUser, w[0].Role)
	assert.Equal(t, "q4", w[0].Content)

	assert.Equal(t, 10, s.Len(), "windowing never truncates the transcript")
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore()

	a := store.Create()
	b := store.Create()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, store.Len())

	got, ok := store.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, store.Delete(a.ID))
	assert.False(t, store.Delete(a.ID))
	_, ok = store.Get(a.ID)
	assert.False(t, ok)
}

func TestSessionStore_Concurrent(t *testing.T) {
	store := NewSessionStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := store.Create()
			s.Append(domain.RoleUser, "hi")
			_, _ = store.Get(s.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, store.Len())
}
