package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/apperr"
)

// -- OPD Repository --

type opdRepoPG struct {
	pool *pgxpool.Pool
}

func NewOPDRepo(pool *pgxpool.Pool) OPDRepository {
	return &opdRepoPG{pool: pool}
}

func (r *opdRepoPG) HospitalExists(ctx context.Context, hospitalID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM hospitals WHERE id = $1)`, hospitalID).Scan(&exists)
	return exists, err
}

func (r *opdRepoPG) Create(ctx context.Context, o *OPD) error {
	o.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO opds (id, hospital_id, department, shift, from_time, to_time, from_day, to_day, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		o.ID, o.HospitalID, o.Department, o.Shift, o.FromTime, o.ToTime, o.FromDay, o.ToDay, o.Description,
	).Scan(&o.CreatedAt)
}

func (r *opdRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*OPD, error) {
	var o OPD
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, hospital_id, department, shift, from_time, to_time, from_day, to_day, description, created_at
		FROM opds WHERE id = $1`, id,
	).Scan(&o.ID, &o.HospitalID, &o.Department, &o.Shift, &o.FromTime, &o.ToTime, &o.FromDay, &o.ToDay, &o.Description, &o.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("opd")
		}
		return nil, err
	}
	return &o, nil
}

// -- Slot Repository --

type slotRepoPG struct {
	pool *pgxpool.Pool
}

func NewSlotRepo(pool *pgxpool.Pool) SlotRepository {
	return &slotRepoPG{pool: pool}
}

const slotSelect = `SELECT s.id, s.opd_id, s.slot_code, s.doctor_id, s.slot_start, s.slot_end, s.capacity, s.occupancy,
	o.hospital_id, o.department
	FROM opd_slots s JOIN opds o ON o.id = s.opd_id`

func scanSlot(row pgx.Row, extra ...interface{}) (*Slot, error) {
	var s Slot
	dest := append([]interface{}{&s.ID, &s.OPDID, &s.SlotCode, &s.DoctorID, &s.SlotStart, &s.SlotEnd,
		&s.Capacity, &s.Occupancy, &s.HospitalID, &s.Department}, extra...)
	if err := row.Scan(dest...); err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("slot")
		}
		return nil, err
	}
	return &s, nil
}

func (r *slotRepoPG) Create(ctx context.Context, s *Slot) error {
	s.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO opd_slots (id, opd_id, slot_code, doctor_id, slot_start, slot_end, capacity, occupancy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.OPDID, s.SlotCode, s.DoctorID, s.SlotStart, s.SlotEnd, s.Capacity, s.Occupancy,
	)
	switch {
	case db.IsUniqueViolation(err):
		return apperr.Conflict("slot code already exists")
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("doctor")
	}
	return err
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(db.Conn(ctx, r.pool).QueryRow(ctx, slotSelect+` WHERE s.id = $1`, id))
}

func (r *slotRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(db.Conn(ctx, r.pool).QueryRow(ctx, slotSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id))
}

func (r *slotRepoPG) SetOccupancy(ctx context.Context, id uuid.UUID, occupancy int) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE opd_slots SET occupancy = $2 WHERE id = $1`, id, occupancy)
	return err
}

func (r *slotRepoPG) Available(ctx context.Context, q SlotQuery) ([]*AvailableSlot, error) {
	query := `SELECT s.id, s.opd_id, s.slot_code, s.doctor_id, s.slot_start, s.slot_end, s.capacity, s.occupancy,
		o.hospital_id, o.department, d.name
		FROM opd_slots s
		JOIN opds o ON o.id = s.opd_id
		LEFT JOIN doctors d ON d.id = s.doctor_id
		WHERE o.hospital_id = $1 AND s.slot_start > $2 AND s.occupancy < s.capacity`
	args := []interface{}{q.HospitalID, q.After}
	idx := 3

	if q.DoctorID != nil {
		query += fmt.Sprintf(` AND s.doctor_id = $%d`, idx)
		args = append(args, *q.DoctorID)
		idx++
	}
	if q.Department != "" {
		query += fmt.Sprintf(` AND o.department ILIKE $%d`, idx)
		args = append(args, "%"+q.Department+"%")
		idx++
	}
	if q.Date != nil {
		query += fmt.Sprintf(` AND s.slot_start >= $%d AND s.slot_start < $%d`, idx, idx+1)
		args = append(args, *q.Date, q.Date.Add(24*time.Hour))
		idx += 2
	}
	query += fmt.Sprintf(` ORDER BY s.slot_start LIMIT $%d`, idx)
	args = append(args, q.Limit)

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []*AvailableSlot
	for rows.Next() {
		var doctorName *string
		s, err := scanSlot(rows, &doctorName)
		if err != nil {
			return nil, err
		}
		slots = append(slots, &AvailableSlot{Slot: *s, AvailableCapacity: s.Capacity - s.Occupancy, DoctorName: doctorName})
	}
	return slots, rows.Err()
}

// -- Reservation Repository --

type reservationRepoPG struct {
	pool *pgxpool.Pool
}

func NewReservationRepo(pool *pgxpool.Pool) ReservationRepository {
	return &reservationRepoPG{pool: pool}
}

func (r *reservationRepoPG) Create(ctx context.Context, res *Reservation) error {
	res.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO reservations (id, slot_id, user_id, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		res.ID, res.SlotID, res.UserID, res.Reason,
	).Scan(&res.CreatedAt)
}

func (r *reservationRepoPG) DeleteBySlotAndUser(ctx context.Context, slotID, userID uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM reservations WHERE slot_id = $1 AND user_id = $2`, slotID, userID)
	return err
}

// -- Appointment Repository --

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const appointmentSelect = `SELECT a.id, a.type, a.patient_id, a.hospital_id, a.doctor_id, a.slot_id, a.booked_by, a.status,
	a.scheduled_time, a.reason, a.created_at, a.updated_at, h.name
	FROM appointments a JOIN hospitals h ON h.id = a.hospital_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Type, &a.PatientID, &a.HospitalID, &a.DoctorID, &a.SlotID, &a.BookedBy, &a.Status,
		&a.ScheduledTime, &a.Reason, &a.CreatedAt, &a.UpdatedAt, &a.HospitalName)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("appointment")
		}
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, type, patient_id, hospital_id, doctor_id, slot_id, booked_by, status, scheduled_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		a.ID, a.Type, a.PatientID, a.HospitalID, a.DoctorID, a.SlotID, a.BookedBy, a.Status, a.ScheduledTime, a.Reason,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("patient")
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, appointmentSelect+` WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET status = $2, reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Status, a.Reason,
	).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("appointment")
	}
	return err
}

func (r *appointmentRepoPG) HasActiveForSlot(ctx context.Context, patientID, slotID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1 AND slot_id = $2 AND status IN ('pending', 'confirmed')
		)`, patientID, slotID,
	).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	for _, col := range []string{"patient_id", "hospital_id", "doctor_id"} {
		v := params[col]
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, 0, apperr.Validation("invalid " + col)
		}
		where += fmt.Sprintf(` AND a.%s = $%d`, col, idx)
		args = append(args, id)
		idx++
	}
	if v := params["status"]; v != "" {
		where += fmt.Sprintf(` AND a.status = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v := params["type"]; v != "" {
		where += fmt.Sprintf(` AND a.type = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v := params["date"]; v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, 0, apperr.Validation("date must be YYYY-MM-DD")
		}
		where += fmt.Sprintf(` AND a.scheduled_time >= $%d AND a.scheduled_time < $%d`, idx, idx+1)
		args = append(args, day, day.Add(24*time.Hour))
		idx += 2
	}
	order := "DESC"
	if params["upcoming"] == "true" {
		where += ` AND a.scheduled_time >= NOW() AND a.status IN ('pending', 'confirmed')`
		order = "ASC"
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := appointmentSelect + where + fmt.Sprintf(` ORDER BY a.scheduled_time %s LIMIT $%d OFFSET $%d`, order, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}
