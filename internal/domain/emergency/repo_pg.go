package emergency

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/apperr"
)

// -- Emergency Repository --

type emergencyRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &emergencyRepoPG{pool: pool}
}

const emergencyColumns = `id, emergency_type, hospital_id, location, contact_number, details, user_ip, user_id,
	forwarded_to_org, forward_status, created_at, updated_at`

func scanEmergency(row pgx.Row) (*Emergency, error) {
	var e Emergency
	err := row.Scan(&e.ID, &e.EmergencyType, &e.HospitalID, &e.Location, &e.ContactNumber, &e.Details,
		&e.UserIP, &e.UserID, &e.ForwardedToOrg, &e.ForwardStatus, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("emergency")
		}
		return nil, err
	}
	return &e, nil
}

func (r *emergencyRepoPG) Create(ctx context.Context, e *Emergency) error {
	e.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO emergencies (id, emergency_type, hospital_id, location, contact_number, details, user_ip, user_id, forward_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		e.ID, e.EmergencyType, e.HospitalID, e.Location, e.ContactNumber, e.Details, e.UserIP, e.UserID, e.ForwardStatus,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *emergencyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	return scanEmergency(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+emergencyColumns+` FROM emergencies WHERE id = $1`, id))
}

func (r *emergencyRepoPG) Update(ctx context.Context, e *Emergency) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE emergencies SET hospital_id = $2, forwarded_to_org = $3, forward_status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		e.ID, e.HospitalID, e.ForwardedToOrg, e.ForwardStatus,
	).Scan(&e.UpdatedAt)
}

func (r *emergencyRepoPG) HospitalExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM hospitals WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *emergencyRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Emergency, int, error) {
	query := `SELECT ` + emergencyColumns + ` FROM emergencies WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM emergencies WHERE 1=1`
	var args []interface{}
	idx := 1

	if v := params["type"]; v != "" {
		query += fmt.Sprintf(" AND emergency_type = $%d", idx)
		countQuery += fmt.Sprintf(" AND emergency_type = $%d", idx)
		args = append(args, v)
		idx++
	}
	if v := params["status"]; v != "" {
		query += fmt.Sprintf(" AND forward_status = $%d", idx)
		countQuery += fmt.Sprintf(" AND forward_status = $%d", idx)
		args = append(args, v)
		idx++
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Emergency
	for rows.Next() {
		e, err := scanEmergency(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

// -- Ambulance Repository --

type ambulanceRepoPG struct {
	pool *pgxpool.Pool
}

func NewAmbulanceRepo(pool *pgxpool.Pool) AmbulanceRepository {
	return &ambulanceRepoPG{pool: pool}
}

const ambulanceColumns = `id, hospital_id, type, status, driver_name, driver_phone, latitude, longitude, updated_at`

func scanAmbulance(row pgx.Row) (*Ambulance, error) {
	var a Ambulance
	err := row.Scan(&a.ID, &a.HospitalID, &a.Type, &a.Status, &a.DriverName, &a.DriverPhone,
		&a.Latitude, &a.Longitude, &a.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("ambulance")
		}
		return nil, err
	}
	return &a, nil
}

func (r *ambulanceRepoPG) Create(ctx context.Context, a *Ambulance) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO ambulances (id, hospital_id, type, status, driver_name, driver_phone, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING updated_at`,
		a.ID, a.HospitalID, a.Type, a.Status, a.DriverName, a.DriverPhone, a.Latitude, a.Longitude,
	).Scan(&a.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("hospital")
	}
	return err
}

func (r *ambulanceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ambulance, error) {
	return scanAmbulance(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+ambulanceColumns+` FROM ambulances WHERE id = $1`, id))
}

func (r *ambulanceRepoPG) UpdateStatus(ctx context.Context, a *Ambulance) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE ambulances SET status = $2, latitude = $3, longitude = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Status, a.Latitude, a.Longitude,
	).Scan(&a.UpdatedAt)
}

func (r *ambulanceRepoPG) Available(ctx context.Context, params map[string]string) ([]*Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM ambulances WHERE status = 'vacant'`
	var args []interface{}
	idx := 1

	if v := params["hospital_id"]; v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, apperr.Validation("invalid hospital_id")
		}
		query += fmt.Sprintf(" AND hospital_id = $%d", idx)
		args = append(args, id)
		idx++
	}
	if v := params["type"]; v != "" {
		query += fmt.Sprintf(" AND type = $%d", idx)
		args = append(args, v)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Ambulance
	for rows.Next() {
		a, err := scanAmbulance(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
