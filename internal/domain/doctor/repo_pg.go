package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/apperr"
)

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &doctorRepoPG{pool: pool}
}

const doctorColumns = `d.id, d.user_id, d.name, d.specialisation, d.availability, d.mail, d.phone, d.created_at, d.updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Specialisation, &d.Availability, &d.Mail, &d.Phone, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("doctor")
		}
		return nil, err
	}
	return &d, nil
}

func translate(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		if db.ConstraintName(err) == "doctors_user_id_key" {
			return apperr.Conflict("user is already linked to a doctor")
		}
		return apperr.Conflict("doctor with this mail already exists")
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("user")
	}
	return err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, name, specialisation, availability, mail, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.Name, d.Specialisation, d.Availability, d.Mail, d.Phone,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return translate(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors d WHERE d.id = $1`, id))
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors d WHERE d.user_id = $1`, userID))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctors SET name = $2, specialisation = $3, availability = $4, mail = $5, phone = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Name, d.Specialisation, d.Availability, d.Mail, d.Phone,
	).Scan(&d.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("doctor")
	}
	return translate(err)
}

func (r *doctorRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	from := ` FROM doctors d WHERE 1=1`
	var args []interface{}
	idx := 1

	if v := params["specialisation"]; v != "" {
		from += fmt.Sprintf(` AND d.specialisation ILIKE $%d`, idx)
		args = append(args, "%"+v+"%")
		idx++
	}
	if v := params["hospital_id"]; v != "" {
		hospitalID, err := uuid.Parse(v)
		if err != nil {
			return nil, 0, apperr.Validation("invalid hospital_id")
		}
		from += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM hospital_doctor hd WHERE hd.doctor_id = d.id AND hd.hospital_id = $%d)`, idx)
		args = append(args, hospitalID)
		idx++
	}
	if v := params["available"]; v != "" {
		from += fmt.Sprintf(` AND d.availability = $%d`, idx)
		args = append(args, v == "true")
		idx++
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + doctorColumns + from + fmt.Sprintf(` ORDER BY d.name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func (r *doctorRepoPG) LinkHospital(ctx context.Context, doctorID, hospitalID uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO hospital_doctor (hospital_id, doctor_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, hospitalID, doctorID)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("hospital")
	}
	return err
}

func (r *doctorRepoPG) Hospitals(ctx context.Context, doctorID uuid.UUID) ([]HospitalRef, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT h.id, h.name, h.location
		FROM hospital_doctor hd JOIN hospitals h ON h.id = hd.hospital_id
		WHERE hd.doctor_id = $1
		ORDER BY h.name`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []HospitalRef
	for rows.Next() {
		var ref HospitalRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Location); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// -- Schedule Repository --

type scheduleRepoPG struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepoPG{pool: pool}
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctor_schedules (id, doctor_id, hospital_id, day_of_week, start_time, end_time, specific_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		s.ID, s.DoctorID, s.HospitalID, s.DayOfWeek, s.StartTime, s.EndTime, s.SpecificDate, s.Notes,
	).Scan(&s.CreatedAt)
}

func (r *scheduleRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Schedule, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, doctor_id, hospital_id, day_of_week, start_time, end_time, specific_date, notes, created_at
		FROM doctor_schedules WHERE doctor_id = $1
		ORDER BY day_of_week, start_time`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.DoctorID, &s.HospitalID, &s.DayOfWeek, &s.StartTime, &s.EndTime,
			&s.SpecificDate, &s.Notes, &s.CreatedAt); err != nil {
			return nil, err
		}
		schedules = append(schedules, &s)
	}
	return schedules, rows.Err()
}
