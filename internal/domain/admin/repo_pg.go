package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/apperr"
)

// -- Admin Repository --

type adminRepoPG struct {
	pool *pgxpool.Pool
}

func NewAdminRepo(pool *pgxpool.Pool) AdminRepository {
	return &adminRepoPG{pool: pool}
}

const adminColumns = `id, username, password_hash, role, created_at`

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("admin")
		}
		return nil, err
	}
	return &a, nil
}

func (r *adminRepoPG) Create(ctx context.Context, a *Admin) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO admins (id, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		a.ID, a.Username, a.PasswordHash, a.Role,
	).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("admin username already exists")
	}
	return err
}

func (r *adminRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return scanAdmin(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
}

func (r *adminRepoPG) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	return scanAdmin(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE username = $1`, username))
}

func (r *adminRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE admins SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("admin")
	}
	return nil
}

func (r *adminRepoPG) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var s DashboardStats
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM hospitals),
		       (SELECT COUNT(*) FROM admins),
		       (SELECT COUNT(*) FROM appointments),
		       (SELECT COUNT(*) FROM emergencies)`,
	).Scan(&s.TotalUsers, &s.TotalHospitals, &s.TotalAdmins, &s.TotalAppointments, &s.TotalEmergencies)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// -- Admin Log Repository --

type logRepoPG struct {
	pool *pgxpool.Pool
}

func NewLogRepo(pool *pgxpool.Pool) LogRepository {
	return &logRepoPG{pool: pool}
}

func (r *logRepoPG) Create(ctx context.Context, l *Log) error {
	l.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO admin_logs (id, admin_id, user_id, action)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		l.ID, l.AdminID, l.UserID, l.Action,
	).Scan(&l.CreatedAt)
}

func (r *logRepoPG) List(ctx context.Context, adminID *uuid.UUID, limit, offset int) ([]*Log, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if adminID != nil {
		where += fmt.Sprintf(` AND admin_id = $%d`, idx)
		args = append(args, *adminID)
		idx++
	}

	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM admin_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, admin_id, user_id, action, created_at FROM admin_logs` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.AdminID, &l.UserID, &l.Action, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		logs = append(logs, &l)
	}
	return logs, total, rows.Err()
}
