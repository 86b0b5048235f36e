package audit

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

// maxExportRows caps unpaginated searches.
const maxExportRows = 10000

var dialect = goqu.Dialect("postgres")

var groupable = map[string]bool{
	"risk_level": true,
	"ip_address": true,
	"username":   true,
	"status":     true,
	"event_type": true,
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const logColumns = `id, event_type, user_id, COALESCE(user_type, ''), COALESCE(user_role, ''), COALESCE(username, ''),
	action, COALESCE(resource_type, ''), COALESCE(resource_id, ''), COALESCE(method, ''), COALESCE(path, ''),
	status, risk_level, COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(session_id, ''), details, created_at`

func scanLog(row pgx.Row) (*Log, error) {
	var l Log
	err := row.Scan(&l.ID, &l.EventType, &l.UserID, &l.UserType, &l.UserRole, &l.Username,
		&l.Action, &l.ResourceType, &l.ResourceID, &l.Method, &l.Path,
		&l.Status, &l.RiskLevel, &l.IPAddress, &l.UserAgent, &l.SessionID, &l.Details, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *repoPG) Create(ctx context.Context, l *Log) error {
	l.ID = uuid.New()
	if l.Details == nil {
		l.Details = map[string]interface{}{}
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO audit_logs (id, event_type, user_id, user_type, user_role, username, action, resource_type,
			resource_id, method, path, status, risk_level, ip_address, user_agent, session_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at`,
		l.ID, l.EventType, l.UserID, nullable(l.UserType), nullable(l.UserRole), nullable(l.Username), l.Action,
		nullable(l.ResourceType), nullable(l.ResourceID), nullable(l.Method), nullable(l.Path), l.Status, l.RiskLevel,
		nullable(l.IPAddress), nullable(l.UserAgent), nullable(l.SessionID), l.Details,
	).Scan(&l.CreatedAt)
}

// filtered builds the WHERE clause shared by every query.
func filtered(f Filter) *goqu.SelectDataset {
	ds := dialect.From("audit_logs").Prepared(true).Where(
		goqu.C("created_at").Gte(f.Start),
		goqu.C("created_at").Lte(f.End),
	)
	if f.UserID != nil {
		ds = ds.Where(goqu.C("user_id").Eq(goqu.Cast(goqu.V(f.UserID.String()), "UUID")))
	}
	if f.EventType != "" {
		ds = ds.Where(goqu.C("event_type").Eq(f.EventType))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(f.Status))
	}
	if len(f.RiskLevels) > 0 {
		ds = ds.Where(goqu.C("risk_level").In(f.RiskLevels))
	}
	if f.OffHoursOnly {
		ds = ds.Where(goqu.L("EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC') < 6"))
	}
	return ds
}

func (r *repoPG) Count(ctx context.Context, f Filter) (int, error) {
	query, args, err := filtered(f).Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build audit count: %w", err)
	}
	var n int
	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *repoPG) Search(ctx context.Context, f Filter) ([]*Log, int, error) {
	total, err := r.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > maxExportRows {
		limit = maxExportRows
	}
	query, args, err := filtered(f).
		Select(goqu.L(logColumns)).
		Order(goqu.C("created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint(f.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit search: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountBy(ctx context.Context, f Filter, column string, limit int) ([]Count, error) {
	if !groupable[column] {
		return nil, fmt.Errorf("audit: cannot group by %q", column)
	}
	col := goqu.C(column)
	ds := filtered(f).
		Select(col, goqu.COUNT("*").As("n")).
		Where(col.IsNotNull()).
		GroupBy(col).
		Order(goqu.I("n").Desc(), col.Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build audit group: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repoPG) Distinct(ctx context.Context, f Filter, column string) (int, error) {
	if !groupable[column] {
		return 0, fmt.Errorf("audit: cannot count distinct %q", column)
	}
	query, args, err := filtered(f).Select(goqu.COUNT(goqu.DISTINCT(column))).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build audit distinct: %w", err)
	}
	var n int
	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *repoPG) TopUsers(ctx context.Context, f Filter, limit int) ([]UserActivity, error) {
	query, args, err := filtered(f).
		Select(goqu.C("user_id"), goqu.L("COALESCE(MAX(username), '')"), goqu.COUNT("*").As("n")).
		Where(goqu.C("user_id").IsNotNull()).
		GroupBy(goqu.C("user_id")).
		Order(goqu.I("n").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build audit top users: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserActivity
	for rows.Next() {
		var u UserActivity
		if err := rows.Scan(&u.UserID, &u.Username, &u.Count); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *repoPG) DailyUserCounts(ctx context.Context, f Filter) ([]DailyCount, error) {
	day := goqu.L("(created_at AT TIME ZONE 'UTC')::date")
	query, args, err := filtered(f).
		Select(goqu.C("user_id"), day.As("day"), goqu.COUNT("*")).
		Where(goqu.C("user_id").IsNotNull()).
		GroupBy(goqu.C("user_id"), goqu.I("day")).
		Order(goqu.C("user_id").Asc(), goqu.I("day").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build audit daily counts: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyCount
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.UserID, &d.Day, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
