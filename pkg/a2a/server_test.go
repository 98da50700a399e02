package a2a

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCard() Card {
	return Card{
		Name:    "test-agent",
		Version: "0.1.0",
		Skills: []Skill{
			{ID: "echo", Description: "echoes input"},
		},
		Capabilities: Capabilities{Streaming: false},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(testCard(), nil)
	s.Register("echo", func(ctx context.Context, task *Task) (*TaskResult, error) {
		return &TaskResult{TaskID: task.ID, Success: true, Output: task.Input}, nil
	})
	require.NoError(t, s.ValidateWiring())
	return s
}

func TestValidateWiring_MissingHandler(t *testing.T) {
	s := NewServer(testCard(), nil)
	err := s.ValidateWiring()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "echo")
}

func TestDispatch_EchoRoundTrip(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	input, _ := json.Marshal(map[string]string{"hello": "world"})
	result, err := client.Dispatch(context.Background(), &Task{
		ID:        "t1",
		Skill:     "echo",
		Input:     input,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.JSONEq(t, `{"hello":"world"}`, string(result.Output))
}

func TestDispatch_UnknownSkill(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	result, err := client.Dispatch(context.Background(), &Task{
		ID:        "t2",
		Skill:     "does-not-exist",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, ErrKindUnknownSkill)
}

func TestCard_Fetch(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	card, err := client.Card(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-agent", card.Name)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "echo", card.Skills[0].ID)
}
