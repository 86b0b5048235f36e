//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/hms/hms/internal/domain/user"
	"github.com/hms/hms/pkg/apperr"
)

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := user.NewRepo(globalPool)

	t.Run("CreateAndFetch", func(t *testing.T) {
		u := createTestUser(t, ctx, "user")

		byID, err := repo.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if byID.Username != u.Username {
			t.Errorf("username = %q, want %q", byID.Username, u.Username)
		}

		byEmail, err := repo.GetByEmail(ctx, u.Email)
		if err != nil {
			t.Fatalf("GetByEmail: %v", err)
		}
		if byEmail.ID != u.ID {
			t.Errorf("GetByEmail returned %s, want %s", byEmail.ID, u.ID)
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		u := createTestUser(t, ctx, "user")
		dup := &user.User{
			Username:     u.Username,
			Fullname:     "Copy",
			Email:        "copy_" + u.Email,
			PasswordHash: "x",
			Role:         "user",
		}
		err := repo.Create(ctx, dup)
		if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("SearchByRole", func(t *testing.T) {
		d := createTestUser(t, ctx, "donor")

		users, total, err := repo.Search(ctx, map[string]string{"role": "donor", "search": d.Username}, 10, 0)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if total != 1 || len(users) != 1 || users[0].ID != d.ID {
			t.Errorf("expected only %s, got total=%d users=%v", d.ID, total, users)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		u := createTestUser(t, ctx, "user")
		if err := repo.Delete(ctx, u.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := repo.GetByID(ctx, u.ID); !apperr.IsNotFound(err) {
			t.Errorf("expected not found after delete, got %v", err)
		}
	})
}
