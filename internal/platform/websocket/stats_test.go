package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startStats(t *testing.T, hub *Hub, source StatsSource) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunStats(ctx, hub, source, 10*time.Millisecond, zerolog.Nop())
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRunStats_OnlyWhileAdminConnected(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	user := newTestClient("u", "u1", "user", "user", UserRoom("u1"), RoleRoom("user"))
	hub.Register(user)

	startStats(t, hub, func(context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"total_users": 42}, nil
	})

	time.Sleep(50 * time.Millisecond)
	assertEmpty(t, user)

	admin := newTestClient("a", "a1", "admin", "admin", UserRoom("a1"), RoleRoom("admin"))
	hub.Register(admin)

	ev := receive(t, admin)
	assert.Equal(t, EventSystemStats, ev.Type)
	assert.Equal(t, RoleRoom("admin"), ev.Topic)

	var data struct {
		TotalUsers     int            `json:"total_users"`
		ConnectedUsers int            `json:"connected_users"`
		UsersByRole    map[string]int `json:"users_by_role"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, 42, data.TotalUsers)
	assert.Equal(t, 2, data.ConnectedUsers)
	assert.Equal(t, map[string]int{"user": 1, "admin": 1}, data.UsersByRole)

	assertEmpty(t, user)
}

func TestRunStats_SourceErrorSkipsTick(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	admin := newTestClient("a", "a1", "admin", "admin", RoleRoom("admin"))
	hub.Register(admin)

	startStats(t, hub, func(context.Context) (map[string]interface{}, error) {
		return nil, errors.New("db down")
	})

	time.Sleep(50 * time.Millisecond)
	assertEmpty(t, admin)
}
