package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/admin"
	"github.com/hms/hms/internal/domain/hospital"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/websocket"
)

type fakeHospitalRepo struct {
	hospital.HospitalRepository
	total  int
	err    error
	params map[string]string
	limit  int
}

func (f *fakeHospitalRepo) Search(_ context.Context, params map[string]string, limit, _ int) ([]*hospital.Hospital, int, error) {
	f.params = params
	f.limit = limit
	return nil, f.total, f.err
}

func TestHospitalCounter(t *testing.T) {
	repo := &fakeHospitalRepo{total: 7}
	n, err := hospitalCounter{repo: repo}.CountHospitals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}
	if len(repo.params) != 0 || repo.limit != 1 {
		t.Errorf("expected unfiltered search with limit 1, got %v limit %d", repo.params, repo.limit)
	}

	repo.err = errors.New("db down")
	if _, err := (hospitalCounter{repo: repo}).CountHospitals(context.Background()); err == nil {
		t.Error("expected error to propagate")
	}
}

type fakeAdminRepo struct {
	admin.AdminRepository
	stats *admin.DashboardStats
}

func (f *fakeAdminRepo) DashboardStats(context.Context) (*admin.DashboardStats, error) {
	return f.stats, nil
}

func TestStatsSource(t *testing.T) {
	repo := &fakeAdminRepo{stats: &admin.DashboardStats{
		TotalUsers: 10, TotalHospitals: 2, TotalAdmins: 1, TotalAppointments: 30, TotalEmergencies: 4,
	}}
	svc := admin.NewService(repo, nil, zerolog.Nop())

	got, err := statsSource(svc)(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]int{
		"total_users": 10, "total_hospitals": 2, "total_admins": 1,
		"total_appointments": 30, "total_emergencies": 4,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %d", k, got[k], v)
		}
	}
}

func connectedClient(hub *websocket.Hub, typ string) *websocket.Client {
	c := &websocket.Client{
		ID:     uuid.NewString(),
		UserID: uuid.NewString(),
		Role:   auth.RoleUser,
		Type:   typ,
		Send:   make(chan []byte, 4),
	}
	hub.Register(c)
	return c
}

func TestPendingOnConnect_SendsUnreadCount(t *testing.T) {
	hub := websocket.NewHub(zerolog.Nop())
	client := connectedClient(hub, auth.TypeUser)

	hook := pendingOnConnect(hub, func(context.Context, uuid.UUID) (int, error) { return 3, nil }, zerolog.Nop())
	hook(context.Background(), client)

	select {
	case raw := <-client.Send:
		var ev struct {
			Type  string         `json:"type"`
			Topic string         `json:"topic"`
			Data  map[string]int `json:"data"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Type != websocket.EventPendingNotifications {
			t.Errorf("type = %q", ev.Type)
		}
		if ev.Topic != websocket.UserRoom(client.UserID) {
			t.Errorf("topic = %q", ev.Topic)
		}
		if ev.Data["unread_count"] != 3 {
			t.Errorf("unread_count = %d, want 3", ev.Data["unread_count"])
		}
	case <-time.After(time.Second):
		t.Fatal("expected pending_notifications event")
	}
}

func TestPendingOnConnect_Skips(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		count  int
		err    error
		userID string
	}{
		{name: "nothing unread", typ: auth.TypeUser, count: 0},
		{name: "hospital account", typ: auth.TypeHospital, count: 5},
		{name: "count fails", typ: auth.TypeUser, err: errors.New("boom")},
		{name: "bad user id", typ: auth.TypeUser, count: 2, userID: "not-a-uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := websocket.NewHub(zerolog.Nop())
			client := connectedClient(hub, tt.typ)
			if tt.userID != "" {
				client.UserID = tt.userID
			}
			hook := pendingOnConnect(hub, func(context.Context, uuid.UUID) (int, error) { return tt.count, tt.err }, zerolog.Nop())
			hook(context.Background(), client)

			select {
			case raw := <-client.Send:
				t.Errorf("unexpected event %s", raw)
			default:
			}
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	if got := newLogger("debug", false).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}
	if got := newLogger("nonsense", false).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("level = %v, want info fallback", got)
	}
	if got := newLogger("", true).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("level = %v, want info for empty", got)
	}
}

func TestPoolConfig(t *testing.T) {
	cfg := &config.Config{
		DatabaseURL:       "postgres://localhost/hms",
		DBMaxConns:        20,
		DBMinConns:        2,
		DBMaxConnLifetime: time.Hour,
		DBMaxConnIdleTime: 30 * time.Minute,
	}
	pc := poolConfig(cfg, nil)
	if pc.URL != cfg.DatabaseURL || pc.MaxConns != 20 || pc.MinConns != 2 {
		t.Errorf("pool config = %+v", pc)
	}
	if pc.MaxConnLifetime != time.Hour || pc.MaxConnIdleTime != 30*time.Minute {
		t.Errorf("lifetimes = %v / %v", pc.MaxConnLifetime, pc.MaxConnIdleTime)
	}
	if pc.Tracer != nil {
		t.Error("expected no tracer")
	}
}

func TestSecurityConfig(t *testing.T) {
	dev := securityConfig(&config.Config{Env: "development"})
	if dev.HSTSMaxAge != 0 {
		t.Errorf("development HSTS = %v, want disabled", dev.HSTSMaxAge)
	}
	prod := securityConfig(&config.Config{Env: "production", FrameAncestors: "https://portal.example.com"})
	if prod.HSTSMaxAge <= 0 {
		t.Error("expected HSTS in production")
	}
	if prod.FrameAncestors != "https://portal.example.com" {
		t.Errorf("frame ancestors = %q", prod.FrameAncestors)
	}
}

func TestMigrationsDir(t *testing.T) {
	cfg := &config.Config{MigrationsDir: "./migrations"}

	cmd := migrateCmd()
	up, _, err := cmd.Find([]string{"up"})
	if err != nil {
		t.Fatalf("find up: %v", err)
	}
	if got := migrationsDir(up, cfg); got != "./migrations" {
		t.Errorf("default dir = %q", got)
	}
	if err := up.Flags().Set("dir", "/tmp/sql"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if got := migrationsDir(up, cfg); got != "/tmp/sql" {
		t.Errorf("flag dir = %q", got)
	}
}

func TestPrintStatus(t *testing.T) {
	applied := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var out bytes.Buffer
	cmd := migrateCmd()
	cmd.SetOut(&out)

	printStatus(cmd, []db.MigrationStatus{
		{Version: 1, Name: "initial_schema", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "audit_logs"},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[2], "applied") || !strings.Contains(lines[2], "2026-03-01 09:30:00") {
		t.Errorf("applied row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "pending") || !strings.Contains(lines[3], "audit_logs") {
		t.Errorf("pending row = %q", lines[3])
	}
}

func TestAdminCreate_RequiresFlags(t *testing.T) {
	cmd := adminCmd()
	cmd.SetArgs([]string{"create", "--username", "root"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--password") {
		t.Errorf("expected missing password error, got %v", err)
	}
}
