//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/audit"
)

func TestAuditRepo(t *testing.T) {
	ctx := context.Background()
	repo := audit.NewRepo(globalPool)
	actor := createTestUser(t, ctx, "user")
	ip := "10.9." + suffix()[:2] + ".1"

	entries := []*audit.Log{
		{EventType: audit.EventLoginAttempt, UserID: &actor.ID, Username: actor.Username, Action: "login",
			Status: audit.StatusFailure, RiskLevel: audit.RiskMedium, IPAddress: ip},
		{EventType: audit.EventLoginAttempt, UserID: &actor.ID, Username: actor.Username, Action: "login",
			Status: audit.StatusFailure, RiskLevel: audit.RiskMedium, IPAddress: ip},
		{EventType: audit.EventDataAccess, UserID: &actor.ID, Username: actor.Username, Action: "delete",
			ResourceType: "prescription", ResourceID: uuid.NewString(), Status: audit.StatusSuccess,
			RiskLevel: audit.RiskHigh, Details: map[string]interface{}{"reason": "cleanup"}},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("create audit log: %v", err)
		}
	}

	base := audit.Filter{
		Start:  time.Now().Add(-time.Hour),
		End:    time.Now().Add(time.Hour),
		UserID: &actor.ID,
	}

	t.Run("SearchByUser", func(t *testing.T) {
		logs, total, err := repo.Search(ctx, base)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if total != 3 || len(logs) != 3 {
			t.Fatalf("total=%d len=%d, want 3", total, len(logs))
		}
	})

	t.Run("FilterRisk", func(t *testing.T) {
		f := base
		f.RiskLevels = []string{audit.RiskHigh, audit.RiskCritical}
		logs, total, err := repo.Search(ctx, f)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if total != 1 || logs[0].ResourceType != "prescription" {
			t.Fatalf("expected the prescription delete, got total=%d", total)
		}
		if logs[0].Details["reason"] != "cleanup" {
			t.Errorf("details = %v", logs[0].Details)
		}
	})

	t.Run("CountByIP", func(t *testing.T) {
		f := base
		f.Status = audit.StatusFailure
		counts, err := repo.CountBy(ctx, f, "ip_address", 5)
		if err != nil {
			t.Fatalf("CountBy: %v", err)
		}
		if len(counts) != 1 || counts[0].Key != ip || counts[0].Count != 2 {
			t.Errorf("counts = %+v", counts)
		}
	})

	t.Run("RejectsUnknownColumn", func(t *testing.T) {
		if _, err := repo.CountBy(ctx, base, "password_hash", 5); err == nil {
			t.Error("expected error grouping by a non-whitelisted column")
		}
	})

	t.Run("TopUsers", func(t *testing.T) {
		top, err := repo.TopUsers(ctx, base, 5)
		if err != nil {
			t.Fatalf("TopUsers: %v", err)
		}
		if len(top) != 1 || top[0].UserID != actor.ID || top[0].Count != 3 {
			t.Errorf("top = %+v", top)
		}
	})
}
