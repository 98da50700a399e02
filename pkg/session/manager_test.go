package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateAndGet(t *testing.T) {
	m := NewManager(0)
	s := m.Create()
	s.AddMessage(RoleUser, "scan the perimeter")

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	require.Len(t, got.History(), 1)
	assert.Equal(t, RoleUser, got.History()[0].Role)
}

func TestManager_Get_NotFound(t *testing.T) {
	m := NewManager(0)
	_, err := m.Get("missing")
	assert.Error(t, err)
}

func TestManager_Delete(t *testing.T) {
	m := NewManager(0)
	s := m.Create()
	require.NoError(t, m.Delete(s.ID))
	_, err := m.Get(s.ID)
	assert.Error(t, err)
}

func TestSession_AddMessage_EvictsOldestHalf(t *testing.T) {
	m := NewManager(3)
	s := m.Create()
	for i := 0; i < 10; i++ {
		s.AddMessage(RoleAssistant, "reply")
	}
	history := s.History()
	assert.LessOrEqual(t, len(history), 6)
}

func TestSession_Cancel_NoCancelFunc(t *testing.T) {
	m := NewManager(0)
	s := m.Create()
	assert.False(t, s.Cancel())
}

func TestSession_Cancel_WithCancelFunc(t *testing.T) {
	m := NewManager(0)
	s := m.Create()
	called := false
	s.SetCancelFunc(func() { called = true })
	assert.True(t, s.Cancel())
	assert.True(t, called)
	assert.Equal(t, StatusCancelled, s.Status)
}

func TestSession_LockSerializesProcessing(t *testing.T) {
	m := NewManager(0)
	s := m.Create()

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Lock()
			defer s.Unlock()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Len(t, order, 5)
}
