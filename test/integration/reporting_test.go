//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/hospital"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/reporting"
)

func TestReportingMeasures(t *testing.T) {
	ctx := context.Background()
	h := createTestHospital(t, ctx)
	createTestUser(t, ctx, auth.RoleUser)

	floor := &hospital.Floor{HospitalID: h.ID, FloorNumber: "1"}
	if err := hospital.NewFloorRepo(globalPool).Create(ctx, floor); err != nil {
		t.Fatalf("create floor: %v", err)
	}
	wards := hospital.NewWardRepo(globalPool)
	cat, err := wards.GetOrCreateCategory(ctx, "General")
	if err != nil {
		t.Fatalf("category: %v", err)
	}
	ward := &hospital.Ward{FloorID: floor.ID, CategoryID: cat.ID, WardNumber: "R1", Capacity: 2}
	if err := wards.Create(ctx, ward); err != nil {
		t.Fatalf("create ward: %v", err)
	}
	beds := hospital.NewBedRepo(globalPool)
	for i, status := range []string{hospital.BedOccupied, hospital.BedVacant} {
		b := &hospital.Bed{WardID: ward.ID, BedNumber: "R1-" + string(rune('A'+i)), Status: status, BedType: "General"}
		if err := beds.Create(ctx, b); err != nil {
			t.Fatalf("create bed: %v", err)
		}
	}

	store := cache.NewMemoryStore("it:")
	defer store.Close()
	svc := reporting.NewService(reporting.NewPoolEvaluator(globalPool), store, zerolog.Nop())
	admin := &auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin, Type: auth.TypeAdmin}

	for _, m := range reporting.PredefinedMeasures {
		t.Run(m.ID, func(t *testing.T) {
			if _, err := svc.EvaluateMeasure(ctx, admin, m.ID, reporting.Params{}); err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if _, err := svc.EvaluateMeasure(ctx, admin, m.ID, reporting.Params{HospitalID: &h.ID, Role: auth.RoleUser}); err != nil {
				t.Fatalf("evaluate with filters: %v", err)
			}
		})
	}

	t.Run("HospitalStatistics", func(t *testing.T) {
		report, err := svc.HospitalStatistics(ctx, admin, &h.ID, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("HospitalStatistics: %v", err)
		}
		if len(report.Hospitals) != 1 {
			t.Fatalf("hospitals = %d, want 1", len(report.Hospitals))
		}
		got := report.Hospitals[0]
		if got.HospitalID != h.ID.String() || got.TotalFloors != 1 || got.TotalWards != 1 || got.TotalBeds != 2 {
			t.Errorf("layout = %+v", got)
		}
		if got.BedOccupancy != 50 {
			t.Errorf("occupancy = %v, want 50", got.BedOccupancy)
		}
		if report.SystemWide != nil {
			t.Error("scoped report should not carry system-wide stats")
		}

		all, err := svc.HospitalStatistics(ctx, admin, nil, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("HospitalStatistics all: %v", err)
		}
		if all.SystemWide == nil || all.SystemWide.UserRoles[auth.RoleUser] < 1 {
			t.Errorf("system wide = %+v", all.SystemWide)
		}
	})

	t.Run("UserActivity", func(t *testing.T) {
		report, err := svc.UserActivity(ctx, auth.RoleUser, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("UserActivity: %v", err)
		}
		if report.Summary.TotalUsers < 1 || report.Summary.NewRegistrations < 1 || len(report.Users) < 1 {
			t.Errorf("report = %+v", report.Summary)
		}
		for _, u := range report.Users {
			if u.Role != auth.RoleUser {
				t.Errorf("user %s has role %s", u.Username, u.Role)
			}
		}
	})
}
