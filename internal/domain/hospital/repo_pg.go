package hospital

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/apperr"
)

func notFound(err error, resource string) error {
	if db.IsNoRows(err) {
		return apperr.NotFound(resource)
	}
	return err
}

// -- Account Repository --

type accountRepoPG struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepoPG{pool: pool}
}

const accountColumns = `id, username, name, type, email, password_hash, location, is_multi_level, reg_id, availability, created_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.Name, &a.Type, &a.Email, &a.PasswordHash,
		&a.Location, &a.IsMultiLevel, &a.RegID, &a.Availability, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "hospital account")
	}
	return &a, nil
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO hospital_accounts (id, username, name, type, email, password_hash, location, is_multi_level, reg_id, availability)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		a.ID, a.Username, a.Name, a.Type, a.Email, a.PasswordHash, a.Location, a.IsMultiLevel, a.RegID, a.Availability,
	).Scan(&a.CreatedAt)
	if db.IsUniqueViolation(err) {
		switch db.ConstraintName(err) {
		case "hospital_accounts_username_key":
			return apperr.Conflict("username already exists")
		case "hospital_accounts_email_key":
			return apperr.Conflict("email already exists")
		}
		return apperr.Conflict("hospital account already exists")
	}
	return err
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountColumns+` FROM hospital_accounts WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+accountColumns+` FROM hospital_accounts WHERE username = $1`, username))
}

func (r *accountRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE hospital_accounts SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("hospital account")
	}
	return nil
}

func (r *accountRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM hospital_accounts WHERE id = $1`, id)
	return err
}

// -- Hospital Repository --

type hospitalRepoPG struct {
	pool *pgxpool.Pool
}

func NewHospitalRepo(pool *pgxpool.Pool) HospitalRepository {
	return &hospitalRepoPG{pool: pool}
}

const hospitalSelect = `SELECT h.id, h.account_id, h.name, h.location, h.contact_num, h.email, h.hospital_type,
	h.bed_availability, h.oxygen_units, h.opd_status, h.last_updated_by, a.is_multi_level, h.created_at, h.updated_at
	FROM hospitals h JOIN hospital_accounts a ON a.id = h.account_id`

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.AccountID, &h.Name, &h.Location, &h.ContactNum, &h.Email, &h.HospitalType,
		&h.BedAvailability, &h.OxygenUnits, &h.OPDStatus, &h.LastUpdatedBy, &h.IsMultiLevel, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "hospital")
	}
	return &h, nil
}

func (r *hospitalRepoPG) Create(ctx context.Context, h *Hospital) error {
	h.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO hospitals (id, account_id, name, location, contact_num, email, hospital_type,
			bed_availability, oxygen_units, opd_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		h.ID, h.AccountID, h.Name, h.Location, h.ContactNum, h.Email, h.HospitalType,
		h.BedAvailability, h.OxygenUnits, h.OPDStatus,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
}

func (r *hospitalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return scanHospital(db.Conn(ctx, r.pool).QueryRow(ctx, hospitalSelect+` WHERE h.id = $1`, id))
}

func (r *hospitalRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Hospital, error) {
	return scanHospital(db.Conn(ctx, r.pool).QueryRow(ctx, hospitalSelect+` WHERE h.account_id = $1`, accountID))
}

func (r *hospitalRepoPG) Update(ctx context.Context, h *Hospital) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE hospitals SET name = $2, location = $3, contact_num = $4, email = $5, hospital_type = $6,
			bed_availability = $7, oxygen_units = $8, opd_status = $9, last_updated_by = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		h.ID, h.Name, h.Location, h.ContactNum, h.Email, h.HospitalType,
		h.BedAvailability, h.OxygenUnits, h.OPDStatus, h.LastUpdatedBy,
	).Scan(&h.UpdatedAt)
	return notFound(err, "hospital")
}

func (r *hospitalRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Hospital, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if v := params["type"]; v != "" {
		where += fmt.Sprintf(` AND h.hospital_type = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v := params["location"]; v != "" {
		where += fmt.Sprintf(` AND h.location ILIKE $%d`, idx)
		args = append(args, "%"+v+"%")
		idx++
	}
	if v := params["opd_status"]; v != "" {
		where += fmt.Sprintf(` AND h.opd_status = $%d`, idx)
		args = append(args, v)
		idx++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM hospitals h` + where
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := hospitalSelect + where + fmt.Sprintf(` ORDER BY h.name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var hospitals []*Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, 0, err
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, total, rows.Err()
}

func (r *hospitalRepoPG) Summary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	var s Summary
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM floors WHERE hospital_id = $1),
			(SELECT COUNT(*) FROM wards w JOIN floors f ON f.id = w.floor_id WHERE f.hospital_id = $1),
			COUNT(b.id),
			COUNT(b.id) FILTER (WHERE b.status = 'vacant'),
			COUNT(b.id) FILTER (WHERE b.status = 'occupied')
		FROM beds b
		JOIN wards w ON w.id = b.ward_id
		JOIN floors f ON f.id = w.floor_id
		WHERE f.hospital_id = $1`, id,
	).Scan(&s.Floors, &s.Wards, &s.Beds, &s.VacantBeds, &s.OccupiedBeds)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// -- Floor Repository --

type floorRepoPG struct {
	pool *pgxpool.Pool
}

func NewFloorRepo(pool *pgxpool.Pool) FloorRepository {
	return &floorRepoPG{pool: pool}
}

const floorColumns = `id, hospital_id, floor_number, floor_name, created_at`

func scanFloor(row pgx.Row) (*Floor, error) {
	var f Floor
	if err := row.Scan(&f.ID, &f.HospitalID, &f.FloorNumber, &f.FloorName, &f.CreatedAt); err != nil {
		return nil, notFound(err, "floor")
	}
	return &f, nil
}

func (r *floorRepoPG) Create(ctx context.Context, f *Floor) error {
	f.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO floors (id, hospital_id, floor_number, floor_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		f.ID, f.HospitalID, f.FloorNumber, f.FloorName,
	).Scan(&f.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("floor number already exists for this hospital")
	}
	return err
}

func (r *floorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Floor, error) {
	return scanFloor(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+floorColumns+` FROM floors WHERE id = $1`, id))
}

func (r *floorRepoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Floor, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+floorColumns+` FROM floors WHERE hospital_id = $1 ORDER BY floor_number`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var floors []*Floor
	for rows.Next() {
		f, err := scanFloor(rows)
		if err != nil {
			return nil, err
		}
		floors = append(floors, f)
	}
	return floors, rows.Err()
}

// -- Ward Repository --

type wardRepoPG struct {
	pool *pgxpool.Pool
}

func NewWardRepo(pool *pgxpool.Pool) WardRepository {
	return &wardRepoPG{pool: pool}
}

const wardSelect = `SELECT w.id, w.floor_id, w.category_id, w.ward_number, w.capacity, w.created_at, f.hospital_id, c.name
	FROM wards w
	JOIN floors f ON f.id = w.floor_id
	JOIN ward_categories c ON c.id = w.category_id`

func scanWard(row pgx.Row) (*Ward, error) {
	var w Ward
	err := row.Scan(&w.ID, &w.FloorID, &w.CategoryID, &w.WardNumber, &w.Capacity, &w.CreatedAt, &w.HospitalID, &w.CategoryName)
	if err != nil {
		return nil, notFound(err, "ward")
	}
	return &w, nil
}

func (r *wardRepoPG) GetOrCreateCategory(ctx context.Context, name string) (*Category, error) {
	var c Category
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO ward_categories (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, description`,
		uuid.New(), name,
	).Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *wardRepoPG) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	var c Category
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, description FROM ward_categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		return nil, notFound(err, "ward category")
	}
	return &c, nil
}

func (r *wardRepoPG) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT id, name, description FROM ward_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		cats = append(cats, &c)
	}
	return cats, rows.Err()
}

func (r *wardRepoPG) Create(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO wards (id, floor_id, category_id, ward_number, capacity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		w.ID, w.FloorID, w.CategoryID, w.WardNumber, w.Capacity,
	).Scan(&w.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("ward number already exists on this floor")
	}
	return err
}

func (r *wardRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return scanWard(db.Conn(ctx, r.pool).QueryRow(ctx, wardSelect+` WHERE w.id = $1`, id))
}

func (r *wardRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return scanWard(db.Conn(ctx, r.pool).QueryRow(ctx, wardSelect+` WHERE w.id = $1 FOR UPDATE OF w`, id))
}

func (r *wardRepoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Ward, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		wardSelect+` WHERE f.hospital_id = $1 ORDER BY f.floor_number, w.ward_number`, hospitalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wards []*Ward
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, err
		}
		wards = append(wards, w)
	}
	return wards, rows.Err()
}

func (r *wardRepoPG) BedCounts(ctx context.Context, wardID uuid.UUID) (*BedCounts, error) {
	var c BedCounts
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'occupied'),
		       COUNT(*) FILTER (WHERE status = 'vacant')
		FROM beds WHERE ward_id = $1`, wardID,
	).Scan(&c.Total, &c.Occupied, &c.Available)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// -- Bed Repository --

type bedRepoPG struct {
	pool *pgxpool.Pool
}

func NewBedRepo(pool *pgxpool.Pool) BedRepository {
	return &bedRepoPG{pool: pool}
}

const bedSelect = `SELECT b.id, b.ward_id, b.bed_number, b.status, b.bed_type, b.updated_at, f.hospital_id
	FROM beds b
	JOIN wards w ON w.id = b.ward_id
	JOIN floors f ON f.id = w.floor_id`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	if err := row.Scan(&b.ID, &b.WardID, &b.BedNumber, &b.Status, &b.BedType, &b.UpdatedAt, &b.HospitalID); err != nil {
		return nil, notFound(err, "bed")
	}
	return &b, nil
}

func (r *bedRepoPG) Create(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO beds (id, ward_id, bed_number, status, bed_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING updated_at`,
		b.ID, b.WardID, b.BedNumber, b.Status, b.BedType,
	).Scan(&b.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("bed number already exists in this ward")
	}
	return err
}

func (r *bedRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(db.Conn(ctx, r.pool).QueryRow(ctx, bedSelect+` WHERE b.id = $1`, id))
}

func (r *bedRepoPG) ListByWard(ctx context.Context, wardID uuid.UUID, status string) ([]*Bed, error) {
	query := bedSelect + ` WHERE b.ward_id = $1`
	args := []interface{}{wardID}
	if status != "" {
		query += ` AND b.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY b.bed_number`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		beds = append(beds, b)
	}
	return beds, rows.Err()
}

func (r *bedRepoPG) Update(ctx context.Context, b *Bed) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE beds SET status = $2, bed_type = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.Status, b.BedType,
	).Scan(&b.UpdatedAt)
	return notFound(err, "bed")
}
