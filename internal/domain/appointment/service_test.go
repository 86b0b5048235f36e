package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/websocket"
	"github.com/hms/hms/pkg/apperr"
)

// -- Mock Repositories --

type mockStore struct {
	hospitals    map[uuid.UUID]bool
	opds         map[uuid.UUID]*OPD
	slots        map[uuid.UUID]*Slot
	reservations map[uuid.UUID]*Reservation
	appointments map[uuid.UUID]*Appointment
}

func newMockStore() *mockStore {
	return &mockStore{
		hospitals:    make(map[uuid.UUID]bool),
		opds:         make(map[uuid.UUID]*OPD),
		slots:        make(map[uuid.UUID]*Slot),
		reservations: make(map[uuid.UUID]*Reservation),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

type mockOPDRepo struct{ s *mockStore }

func (m mockOPDRepo) HospitalExists(_ context.Context, id uuid.UUID) (bool, error) {
	return m.s.hospitals[id], nil
}

func (m mockOPDRepo) Create(_ context.Context, o *OPD) error {
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	m.s.opds[o.ID] = o
	return nil
}

func (m mockOPDRepo) GetByID(_ context.Context, id uuid.UUID) (*OPD, error) {
	if o, ok := m.s.opds[id]; ok {
		return o, nil
	}
	return nil, apperr.NotFound("OPD")
}

type mockSlotRepo struct{ s *mockStore }

func (m mockSlotRepo) Create(_ context.Context, sl *Slot) error {
	sl.ID = uuid.New()
	m.s.slots[sl.ID] = sl
	return nil
}

func (m mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	if sl, ok := m.s.slots[id]; ok {
		cp := *sl
		return &cp, nil
	}
	return nil, apperr.NotFound("slot")
}

func (m mockSlotRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return m.GetByID(ctx, id)
}

func (m mockSlotRepo) SetOccupancy(_ context.Context, id uuid.UUID, occupancy int) error {
	m.s.slots[id].Occupancy = occupancy
	return nil
}

func (m mockSlotRepo) Available(_ context.Context, q SlotQuery) ([]*AvailableSlot, error) {
	var out []*AvailableSlot
	for _, sl := range m.s.slots {
		if sl.HospitalID != q.HospitalID || !sl.SlotStart.After(q.After) || sl.Occupancy >= sl.Capacity {
			continue
		}
		out = append(out, &AvailableSlot{Slot: *sl, AvailableCapacity: sl.Capacity - sl.Occupancy})
	}
	return out, nil
}

type mockReservationRepo struct{ s *mockStore }

func (m mockReservationRepo) Create(_ context.Context, r *Reservation) error {
	r.ID = uuid.New()
	m.s.reservations[r.ID] = r
	return nil
}

func (m mockReservationRepo) DeleteBySlotAndUser(_ context.Context, slotID, userID uuid.UUID) error {
	for id, r := range m.s.reservations {
		if r.SlotID == slotID && r.UserID == userID {
			delete(m.s.reservations, id)
		}
	}
	return nil
}

type mockAppointmentRepo struct{ s *mockStore }

func (m mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.s.appointments[a.ID] = a
	return nil
}

func (m mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	if a, ok := m.s.appointments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, apperr.NotFound("appointment")
}

func (m mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	m.s.appointments[a.ID] = a
	return nil
}

func (m mockAppointmentRepo) HasActiveForSlot(_ context.Context, patientID, slotID uuid.UUID) (bool, error) {
	for _, a := range m.s.appointments {
		if a.PatientID == patientID && a.SlotID != nil && *a.SlotID == slotID &&
			(a.Status == StatusPending || a.Status == StatusConfirmed) {
			return true, nil
		}
	}
	return false, nil
}

func (m mockAppointmentRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.s.appointments {
		if v := params["patient_id"]; v != "" && a.PatientID.String() != v {
			continue
		}
		if v := params["hospital_id"]; v != "" && a.HospitalID.String() != v {
			continue
		}
		if v := params["status"]; v != "" && a.Status != v {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

type pushed struct {
	room, eventType string
}

type mockPublisher struct {
	mu     sync.Mutex
	events []pushed
}

func (m *mockPublisher) NotifyUser(_ context.Context, userID, eventType string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, pushed{websocket.UserRoom(userID), eventType})
	return nil
}

func (m *mockPublisher) NotifyHospital(_ context.Context, hospitalID, eventType string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, pushed{websocket.HospitalRoom(hospitalID), eventType})
	return nil
}

type mockNotifier struct {
	titles map[uuid.UUID][]string
}

func (m *mockNotifier) Notify(_ context.Context, userID uuid.UUID, title, _ string, _ map[string]interface{}) error {
	m.titles[userID] = append(m.titles[userID], title)
	return nil
}

type testEnv struct {
	svc      *Service
	store    *mockStore
	events   *mockPublisher
	notifier *mockNotifier
	now      time.Time
}

func newTestEnv() *testEnv {
	store := newMockStore()
	events := &mockPublisher{}
	notifier := &mockNotifier{titles: make(map[uuid.UUID][]string)}
	svc := NewService(db.NoopTxRunner{}, mockOPDRepo{store}, mockSlotRepo{store}, mockReservationRepo{store},
		mockAppointmentRepo{store}, events, notifier, zerolog.Nop())
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return &testEnv{svc: svc, store: store, events: events, notifier: notifier, now: now}
}

func (env *testEnv) addHospital() uuid.UUID {
	id := uuid.New()
	env.store.hospitals[id] = true
	return id
}

func (env *testEnv) addSlot(hospitalID uuid.UUID, start time.Time, capacity int) *Slot {
	sl := &Slot{
		ID: uuid.New(), OPDID: uuid.New(), SlotCode: "SLOT-TEST", HospitalID: hospitalID,
		SlotStart: start, SlotEnd: start.Add(30 * time.Minute), Capacity: capacity,
	}
	env.store.slots[sl.ID] = sl
	return sl
}

func patient() *auth.Principal {
	return &auth.Principal{ID: uuid.New(), Role: auth.RoleUser, Type: auth.TypeUser}
}

func hospitalAdmin(hospitalID uuid.UUID) *auth.Principal {
	return &auth.Principal{ID: uuid.New(), Role: auth.RoleHospitalAdmin, Type: auth.TypeHospital, HospitalID: &hospitalID}
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !apperr.Is(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
}

// -- OPD & Slots --

func TestCreateOPD_DefaultsToOwnHospital(t *testing.T) {
	env := newTestEnv()
	h := env.addHospital()

	o, err := env.svc.CreateOPD(context.Background(), hospitalAdmin(h), CreateOPDRequest{Department: "Cardiology"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.HospitalID != h {
		t.Errorf("expected hospital %s, got %s", h, o.HospitalID)
	}
}

func TestCreateOPD_Validation(t *testing.T) {
	env := newTestEnv()
	h := env.addHospital()
	other := env.addHospital()

	_, err := env.svc.CreateOPD(context.Background(), hospitalAdmin(h), CreateOPDRequest{})
	assertKind(t, err, apperr.KindValidation)

	_, err = env.svc.CreateOPD(context.Background(), hospitalAdmin(h), CreateOPDRequest{HospitalID: other.String(), Department: "ENT"})
	assertKind(t, err, apperr.KindForbidden)

	admin := &auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin, Type: auth.TypeAdmin}
	_, err = env.svc.CreateOPD(context.Background(), admin, CreateOPDRequest{Department: "ENT"})
	assertKind(t, err, apperr.KindValidation)

	_, err = env.svc.CreateOPD(context.Background(), admin, CreateOPDRequest{HospitalID: uuid.NewString(), Department: "ENT"})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for unknown hospital, got %v", err)
	}
}

func TestCreateSlot(t *testing.T) {
	env := newTestEnv()
	h := env.addHospital()
	ctx := context.Background()
	o, _ := env.svc.CreateOPD(ctx, hospitalAdmin(h), CreateOPDRequest{Department: "Cardiology"})

	start := env.now.Add(24 * time.Hour)
	slot, err := env.svc.CreateSlot(ctx, hospitalAdmin(h), o.ID, CreateSlotRequest{SlotStart: start, SlotEnd: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.Capacity != 1 {
		t.Errorf("expected default capacity 1, got %d", slot.Capacity)
	}
	if len(slot.SlotCode) != len("SLOT")+8+8 || slot.SlotCode[:12] != "SLOT20260310" {
		t.Errorf("unexpected slot code %q", slot.SlotCode)
	}

	_, err = env.svc.CreateSlot(ctx, hospitalAdmin(h), o.ID, CreateSlotRequest{SlotStart: start, SlotEnd: start})
	assertKind(t, err, apperr.KindValidation)

	zero := 0
	_, err = env.svc.CreateSlot(ctx, hospitalAdmin(h), o.ID, CreateSlotRequest{SlotStart: start, SlotEnd: start.Add(time.Hour), Capacity: &zero})
	assertKind(t, err, apperr.KindValidation)

	_, err = env.svc.CreateSlot(ctx, hospitalAdmin(env.addHospital()), o.ID, CreateSlotRequest{SlotStart: start, SlotEnd: start.Add(time.Hour)})
	assertKind(t, err, apperr.KindForbidden)
}

// -- Booking --

func TestBook_Success(t *testing.T) {
	env := newTestEnv()
	h := env.addHospital()
	slot := env.addSlot(h, env.now.Add(2*time.Hour), 2)
	p := patient()

	a, err := env.svc.Book(context.Background(), p, BookRequest{HospitalID: h.String(), SlotID: slot.ID.String()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusConfirmed || a.PatientID != p.ID || a.BookedBy != p.ID {
		t.Errorf("unexpected appointment %+v", a)
	}
	if env.store.slots[slot.ID].Occupancy != 1 {
		t.Errorf("expected occupancy 1, got %d", env.store.slots[slot.ID].Occupancy)
	}
	if len(env.store.reservations) != 1 {
		t.Errorf("expected 1 reservation, got %d", len(env.store.reservations))
	}
	if len(env.events.events) != 2 {
		t.Fatalf("expected 2 pushed events, got %d", len(env.events.events))
	}
	if env.events.events[0].room != websocket.UserRoom(p.ID.String()) || env.events.events[0].eventType != websocket.EventAppointmentUpdate {
		t.Errorf("unexpected patient event %+v", env.events.events[0])
	}
	if env.events.events[1].room != websocket.HospitalRoom(h.String()) {
		t.Errorf("unexpected hospital event %+v", env.events.events[1])
	}
	if len(env.notifier.titles[p.ID]) != 1 {
		t.Errorf("expected one stored notification, got %v", env.notifier.titles[p.ID])
	}
}

func TestBook_Failures(t *testing.T) {
	env := newTestEnv()
	h := env.addHospital()
	other := env.addHospital()
	ctx := context.Background()

	future := env.addSlot(h, env.now.Add(time.Hour), 1)
	past := env.addSlot(h, env.now.Add(-time.Hour), 1)
	foreign := env.addSlot(other, env.now.Add(time.Hour), 1)

	tests := []struct {
		name string
		req  BookRequest
		kind apperr.Kind
	}{
		{"missing hospital", BookRequest{SlotID: future.ID.String()}, apperr.KindValidation},
		{"missing slot", BookRequest{HospitalID: h.String()}, apperr.KindValidation},
		{"unknown hospital", BookRequest{HospitalID: uuid.NewString(), SlotID: future.ID.String()}, apperr.KindNotFound},
		{"unknown slot", BookRequest{HospitalID: h.String(), SlotID: uuid.NewString()}, apperr.KindNotFound},
		{"other hospital", BookRequest{HospitalID: h.String(), SlotID: foreign.ID.String()}, apperr.KindValidation},
		{"past slot", BookRequest{HospitalID: h.String(), SlotID: past.ID.String()}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Book(ctx, patient(), tt.req)
			assertKind(t, err, tt.kind)
		})
	}
}

func TestBook_FullAndDuplicate(t *testing.T) {
	env := newTestEnv()
	h := env.addHospital()
	ctx := context.Background()
	slot := env.addSlot(h, env.now.Add(time.Hour), 2)
	req := BookRequest{HospitalID: h.String(), SlotID: slot.ID.String()}

	p := patient()
	if _, err := env.svc.Book(ctx, p, req); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := env.svc.Book(ctx, p, req)
	assertKind(t, err, apperr.KindConflict)

	if _, err := env.svc.Book(ctx, patient(), req); err != nil {
		t.Fatalf("second patient: %v", err)
	}
	_, err = env.svc.Book(ctx, patient(), req)
	assertKind(t, err, apperr.KindConflict)
	if env.store.slots[slot.ID].Occupancy != 2 {
		t.Errorf("occupancy must not exceed capacity, got %d", env.store.slots[slot.ID].Occupancy)
	}
}

func TestBook_OnBehalfOfPatient(t *testing.T) {
	env := newTestEnv()
	h := env.addHospital()
	ctx := context.Background()
	slot := env.addSlot(h, env.now.Add(time.Hour), 3)
	req := BookRequest{HospitalID: h.String(), SlotID: slot.ID.String()}

	_, err := env.svc.Book(ctx, hospitalAdmin(h), req)
	assertKind(t, err, apperr.KindValidation)

	patientID := uuid.New()
	req.PatientID = patientID.String()
	a, err := env.svc.Book(ctx, hospitalAdmin(h), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.PatientID != patientID {
		t.Errorf("expected patient %s, got %s", patientID, a.PatientID)
	}

	_, err = env.svc.Book(ctx, patient(), req)
	assertKind(t, err, apperr.KindForbidden)
}

// -- Lifecycle --

func bookOne(t *testing.T, env *testEnv, p *auth.Principal) (*Appointment, *Slot, uuid.UUID) {
	t.Helper()
	h := env.addHospital()
	slot := env.addSlot(h, env.now.Add(time.Hour), 1)
	a, err := env.svc.Book(context.Background(), p, BookRequest{HospitalID: h.String(), SlotID: slot.ID.String()})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return a, slot, h
}

func TestGetAppointment_Access(t *testing.T) {
	env := newTestEnv()
	p := patient()
	a, _, h := bookOne(t, env, p)
	ctx := context.Background()

	allowed := []*auth.Principal{
		p,
		hospitalAdmin(h),
		{ID: uuid.New(), Role: auth.RoleDoctor, Type: auth.TypeUser},
		{ID: uuid.New(), Role: auth.RoleAdmin, Type: auth.TypeAdmin},
	}
	for _, who := range allowed {
		if _, err := env.svc.GetAppointment(ctx, who, a.ID); err != nil {
			t.Errorf("%s should see appointment: %v", who.Role, err)
		}
	}

	_, err := env.svc.GetAppointment(ctx, patient(), a.ID)
	assertKind(t, err, apperr.KindForbidden)
	_, err = env.svc.GetAppointment(ctx, hospitalAdmin(uuid.New()), a.ID)
	assertKind(t, err, apperr.KindForbidden)
}

func TestUpdateAppointment_PatientMayOnlyCancel(t *testing.T) {
	env := newTestEnv()
	p := patient()
	a, slot, _ := bookOne(t, env, p)
	ctx := context.Background()

	completed := StatusCompleted
	_, err := env.svc.UpdateAppointment(ctx, p, a.ID, UpdateRequest{Status: &completed})
	assertKind(t, err, apperr.KindForbidden)

	bogus := "lost"
	_, err = env.svc.UpdateAppointment(ctx, p, a.ID, UpdateRequest{Status: &bogus})
	assertKind(t, err, apperr.KindValidation)

	cancelled := StatusCancelled
	updated, err := env.svc.UpdateAppointment(ctx, p, a.ID, UpdateRequest{Status: &cancelled})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", updated.Status)
	}
	if env.store.slots[slot.ID].Occupancy != 0 {
		t.Errorf("expected slot freed, occupancy %d", env.store.slots[slot.ID].Occupancy)
	}
	if len(env.store.reservations) != 0 {
		t.Errorf("expected reservation removed")
	}

	// A second cancel must not drive occupancy negative.
	if _, err := env.svc.UpdateAppointment(ctx, p, a.ID, UpdateRequest{Status: &cancelled}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.store.slots[slot.ID].Occupancy != 0 {
		t.Errorf("occupancy went negative: %d", env.store.slots[slot.ID].Occupancy)
	}
}

func TestUpdateAppointment_HospitalCompletes(t *testing.T) {
	env := newTestEnv()
	a, slot, h := bookOne(t, env, patient())

	completed := StatusCompleted
	updated, err := env.svc.UpdateAppointment(context.Background(), hospitalAdmin(h), a.ID, UpdateRequest{Status: &completed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}
	if env.store.slots[slot.ID].Occupancy != 1 {
		t.Errorf("completion must keep the slot occupied")
	}
}

func TestUpdateAppointment_CancelAfterCompletionKeepsSlot(t *testing.T) {
	ctx := context.Background()
	for _, from := range []string{StatusCompleted, StatusNoShow} {
		t.Run(from, func(t *testing.T) {
			env := newTestEnv()
			a, slot, h := bookOne(t, env, patient())
			admin := hospitalAdmin(h)

			status := from
			if _, err := env.svc.UpdateAppointment(ctx, admin, a.ID, UpdateRequest{Status: &status}); err != nil {
				t.Fatalf("update to %s: %v", from, err)
			}
			cancelled := StatusCancelled
			if _, err := env.svc.UpdateAppointment(ctx, admin, a.ID, UpdateRequest{Status: &cancelled}); err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if got := env.store.slots[slot.ID].Occupancy; got != 1 {
				t.Errorf("occupancy after %s->cancelled = %d, want 1", from, got)
			}
			if len(env.store.reservations) != 1 {
				t.Errorf("reservation should be kept, got %d", len(env.store.reservations))
			}
		})
	}
}

func TestCancelAppointment(t *testing.T) {
	env := newTestEnv()
	p := patient()
	a, slot, _ := bookOne(t, env, p)
	ctx := context.Background()

	_, err := env.svc.CancelAppointment(ctx, patient(), a.ID)
	assertKind(t, err, apperr.KindForbidden)

	if _, err := env.svc.CancelAppointment(ctx, p, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.store.slots[slot.ID].Occupancy != 0 {
		t.Errorf("expected slot freed")
	}

	_, err = env.svc.CancelAppointment(ctx, p, a.ID)
	assertKind(t, err, apperr.KindValidation)
}

func TestHospitalAppointments_Access(t *testing.T) {
	env := newTestEnv()
	_, _, h := bookOne(t, env, patient())
	ctx := context.Background()

	items, total, err := env.svc.HospitalAppointments(ctx, hospitalAdmin(h), h, map[string]string{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("expected 1 appointment, got %d", total)
	}

	_, _, err = env.svc.HospitalAppointments(ctx, hospitalAdmin(uuid.New()), h, map[string]string{}, 20, 0)
	assertKind(t, err, apperr.KindForbidden)

	_, _, err = env.svc.HospitalAppointments(ctx, hospitalAdmin(h), h, map[string]string{"status": "nope"}, 20, 0)
	assertKind(t, err, apperr.KindValidation)

	admin := &auth.Principal{ID: uuid.New(), Role: auth.RoleAdmin, Type: auth.TypeAdmin}
	_, _, err = env.svc.HospitalAppointments(ctx, admin, uuid.New(), map[string]string{}, 20, 0)
	assertKind(t, err, apperr.KindNotFound)
}

func TestMyAppointments_OnlyOwn(t *testing.T) {
	env := newTestEnv()
	p := patient()
	bookOne(t, env, p)
	bookOne(t, env, patient())

	items, total, err := env.svc.MyAppointments(context.Background(), p, map[string]string{}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].PatientID != p.ID {
		t.Errorf("expected only own appointment, got %d", total)
	}

	_, _, err = env.svc.MyAppointments(context.Background(), p, map[string]string{"status": "lost"}, 20, 0)
	assertKind(t, err, apperr.KindValidation)
}

func TestAvailableSlots(t *testing.T) {
	env := newTestEnv()
	h := env.addHospital()
	env.addSlot(h, env.now.Add(time.Hour), 2)
	env.addSlot(h, env.now.Add(-time.Hour), 2)
	full := env.addSlot(h, env.now.Add(2*time.Hour), 1)
	full.Occupancy = 1

	slots, err := env.svc.AvailableSlots(context.Background(), SlotQuery{HospitalID: h})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 1 || slots[0].AvailableCapacity != 2 {
		t.Fatalf("expected one open future slot, got %+v", slots)
	}
}
