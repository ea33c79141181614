package gamestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	st := NewMemoryStore()
	now := time.Now().UTC()

	_, err := st.GetSession("abc")
	require.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, st.CreateSession(&Session{ID: "abc", Name: "first", CreatedAt: now, LastTouchedAt: now}))
	require.NoError(t, st.CreateSession(&Session{ID: "abc", Name: "second", CreatedAt: now, LastTouchedAt: now}))

	got, err := st.GetSession("abc")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name, "create overwrites")

	later := now.Add(time.Minute)
	require.NoError(t, st.TouchSession("abc", later))
	got, err = st.GetSession("abc")
	require.NoError(t, err)
	assert.Equal(t, later, got.LastTouchedAt)

	require.ErrorIs(t, st.TouchSession("missing", later), ErrSessionNotFound)

	require.NoError(t, st.DeleteSession("abc"))
	require.ErrorIs(t, st.DeleteSession("abc"), ErrSessionNotFound)
}

func TestCreateSessionRequiresID(t *testing.T) {
	st := NewMemoryStore()
	assert.Error(t, st.CreateSession(&Session{}))
	assert.Error(t, st.CreateSession(nil))
}

func TestGetSessionReturnsCopy(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.CreateSession(&Session{ID: "s", Attributes: map[string]json.RawMessage{"a": json.RawMessage(`1`)}}))

	got, err := st.GetSession("s")
	require.NoError(t, err)
	got.Name = "mutated"
	got.Attributes["b"] = json.RawMessage(`2`)

	again, err := st.GetSession("s")
	require.NoError(t, err)
	assert.Empty(t, again.Name)
	assert.NotContains(t, again.Attributes, "b")
}

func TestAssociateUnknownInstanceIsStateError(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.AssociateInstance("never-seen", "abc")
	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, "never-seen", stateErr.ID)
	assert.Equal(t, 409, stateErr.StatusCode())
}

func TestAssociateKnownInstance(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.PutInstance(&Instance{ID: "i-1", DisplayName: "cobalt-falcon"}))

	inst, err := st.AssociateInstance("i-1", "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", inst.SessionID)
	assert.Equal(t, "cobalt-falcon", inst.DisplayName)

	stored, err := st.GetInstance("i-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", stored.SessionID)
}

func TestExpireIdle(t *testing.T) {
	st := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateSession(&Session{ID: "old", LastTouchedAt: base}))
	require.NoError(t, st.CreateSession(&Session{ID: "fresh", LastTouchedAt: base.Add(time.Hour)}))

	expired, err := st.ExpireIdle(base.Add(30 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, expired)

	sessions, err := st.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "fresh", sessions[0].ID)
}

func TestExpireLoopStopsWithContext(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.CreateSession(&Session{ID: "stale", LastTouchedAt: time.Now().UTC().Add(-time.Hour)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ExpireLoop(ctx, st, time.Minute, 5*time.Millisecond, nil)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := st.GetSession("stale")
		return errors.Is(err, ErrSessionNotFound)
	}, 3*MinSweepInterval, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expire loop did not stop")
	}
}

func TestExpireLoopTinyIdleDoesNotPanic(t *testing.T) {
	st := NewMemoryStore()
	require.NoError(t, st.CreateSession(&Session{ID: "stale", LastTouchedAt: time.Now().UTC().Add(-time.Minute)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ExpireLoop(ctx, st, time.Nanosecond, 0, nil)
	}()

	require.Eventually(t, func() bool {
		_, err := st.GetSession("stale")
		return errors.Is(err, ErrSessionNotFound)
	}, 3*MinSweepInterval, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expire loop did not stop")
	}
}

func TestExpireLoopDisabled(t *testing.T) {
	done := make(chan struct{})
	go func() {
		ExpireLoop(context.Background(), NewMemoryStore(), 0, time.Millisecond, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled expire loop should return immediately")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i%5)
			_ = st.CreateSession(&Session{ID: id})
			_ = st.TouchSession(id, time.Now())
		}(i)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("i-%d", i%5)
			_ = st.PutInstance(&Instance{ID: id, DisplayName: RandomName()})
			_, _ = st.AssociateInstance(id, "s")
			_, _ = st.ListSessions()
		}(i)
	}
	wg.Wait()

	sessions, err := st.ListSessions()
	require.NoError(t, err)
	assert.Len(t, sessions, 5)
}

func TestRandomNameVaries(t *testing.T) {
	a, b := RandomName(), RandomName()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^[a-z]+-[a-z]+-[0-9a-f]{8}$`, a)
}

func TestSessionPurpose(t *testing.T) {
	assert.Equal(t, "public", (&Session{Public: true}).Purpose())
	assert.Equal(t, "private", (&Session{}).Purpose())
}
