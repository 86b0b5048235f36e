package bloodbank

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/pkg/apperr"
)

// -- Blood Bank Repository --

type bankRepoPG struct {
	pool *pgxpool.Pool
}

func NewBankRepo(pool *pgxpool.Pool) BankRepository {
	return &bankRepoPG{pool: pool}
}

const bankColumns = `id, name, location, contact_no, email, blood_types_available, stock_levels, category, created_at, updated_at`

func scanBank(row pgx.Row) (*BloodBank, error) {
	var b BloodBank
	err := row.Scan(&b.ID, &b.Name, &b.Location, &b.ContactNo, &b.Email,
		&b.BloodTypesAvailable, &b.StockLevels, &b.Category, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("blood bank")
		}
		return nil, err
	}
	if b.StockLevels == nil {
		b.StockLevels = map[string]int{}
	}
	return &b, nil
}

func (r *bankRepoPG) Create(ctx context.Context, b *BloodBank) error {
	b.ID = uuid.New()
	if b.StockLevels == nil {
		b.StockLevels = map[string]int{}
	}
	if b.BloodTypesAvailable == nil {
		b.BloodTypesAvailable = []string{}
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO blood_banks (id, name, location, contact_no, email, blood_types_available, stock_levels, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		b.ID, b.Name, b.Location, b.ContactNo, b.Email, b.BloodTypesAvailable, b.StockLevels, b.Category,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("blood bank with this email already exists")
	}
	return err
}

func (r *bankRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BloodBank, error) {
	return scanBank(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+bankColumns+` FROM blood_banks WHERE id = $1`, id))
}

func (r *bankRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*BloodBank, int, error) {
	query := `SELECT ` + bankColumns + ` FROM blood_banks WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM blood_banks WHERE 1=1`
	var args []interface{}
	idx := 1

	if v := params["location"]; v != "" {
		query += fmt.Sprintf(" AND location ILIKE $%d", idx)
		countQuery += fmt.Sprintf(" AND location ILIKE $%d", idx)
		args = append(args, "%"+v+"%")
		idx++
	}
	if v := params["blood_type"]; v != "" {
		query += fmt.Sprintf(" AND $%d = ANY(blood_types_available)", idx)
		countQuery += fmt.Sprintf(" AND $%d = ANY(blood_types_available)", idx)
		args = append(args, v)
		idx++
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*BloodBank
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *bankRepoPG) UpdateStock(ctx context.Context, id uuid.UUID, levels map[string]int, available []string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE blood_banks SET stock_levels = $2, blood_types_available = $3, updated_at = NOW() WHERE id = $1`,
		id, levels, available)
	return err
}

// -- Inventory Repository --

type inventoryRepoPG struct {
	pool *pgxpool.Pool
}

func NewInventoryRepo(pool *pgxpool.Pool) InventoryRepository {
	return &inventoryRepoPG{pool: pool}
}

const inventoryColumns = `id, bloodbank_id, blood_type, units, expiry_date, lot_number, updated_at`

func scanInventory(row pgx.Row) (*Inventory, error) {
	var i Inventory
	if err := row.Scan(&i.ID, &i.BloodBankID, &i.BloodType, &i.Units, &i.ExpiryDate, &i.LotNumber, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *inventoryRepoPG) Upsert(ctx context.Context, inv *Inventory) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO blood_inventory (id, bloodbank_id, blood_type, units, expiry_date, lot_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bloodbank_id, blood_type, lot_number) DO UPDATE
		SET units = blood_inventory.units + EXCLUDED.units,
			expiry_date = COALESCE(EXCLUDED.expiry_date, blood_inventory.expiry_date),
			updated_at = NOW()
		RETURNING `+inventoryColumns,
		uuid.New(), inv.BloodBankID, inv.BloodType, inv.Units, inv.ExpiryDate, inv.LotNumber,
	).Scan(&inv.ID, &inv.BloodBankID, &inv.BloodType, &inv.Units, &inv.ExpiryDate, &inv.LotNumber, &inv.UpdatedAt)
}

func (r *inventoryRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Inventory, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

func (r *inventoryRepoPG) ListByBank(ctx context.Context, bankID uuid.UUID) ([]*Inventory, error) {
	return r.list(ctx, `SELECT `+inventoryColumns+` FROM blood_inventory
		WHERE bloodbank_id = $1 ORDER BY blood_type, expiry_date NULLS LAST`, bankID)
}

func (r *inventoryRepoPG) ListForUpdate(ctx context.Context, bankID uuid.UUID, bloodType string) ([]*Inventory, error) {
	return r.list(ctx, `SELECT `+inventoryColumns+` FROM blood_inventory
		WHERE bloodbank_id = $1 AND blood_type = $2
		ORDER BY expiry_date NULLS LAST, lot_number
		FOR UPDATE`, bankID, bloodType)
}

func (r *inventoryRepoPG) SetUnits(ctx context.Context, id uuid.UUID, units int) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE blood_inventory SET units = $2, updated_at = NOW() WHERE id = $1`, id, units)
	return err
}

// -- Request Repository --

type requestRepoPG struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

const requestColumns = `id, user_id, requester_name, requester_phone, requester_email, blood_group, quantity_units,
	location, reference, bloodbank_id, inventory_id, status, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var q Request
	err := row.Scan(&q.ID, &q.UserID, &q.RequesterName, &q.RequesterPhone, &q.RequesterEmail, &q.BloodGroup,
		&q.QuantityUnits, &q.Location, &q.Reference, &q.BloodBankID, &q.InventoryID, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, apperr.NotFound("blood request")
		}
		return nil, err
	}
	return &q, nil
}

func (r *requestRepoPG) Create(ctx context.Context, q *Request) error {
	q.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO blood_requests (id, user_id, requester_name, requester_phone, requester_email, blood_group,
			quantity_units, location, reference, bloodbank_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		q.ID, q.UserID, q.RequesterName, q.RequesterPhone, q.RequesterEmail, q.BloodGroup,
		q.QuantityUnits, q.Location, q.Reference, q.BloodBankID, q.Status,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return apperr.NotFound("blood bank")
	}
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+requestColumns+` FROM blood_requests WHERE id = $1`, id))
}

func (r *requestRepoPG) Update(ctx context.Context, q *Request) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE blood_requests SET status = $2, bloodbank_id = $3, inventory_id = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		q.ID, q.Status, q.BloodBankID, q.InventoryID,
	).Scan(&q.UpdatedAt)
}

func (r *requestRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Request, int, error) {
	query := `SELECT ` + requestColumns + ` FROM blood_requests WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM blood_requests WHERE 1=1`
	var args []interface{}
	idx := 1

	if v := params["user_id"]; v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, 0, apperr.Validation("invalid user_id")
		}
		query += fmt.Sprintf(" AND user_id = $%d", idx)
		countQuery += fmt.Sprintf(" AND user_id = $%d", idx)
		args = append(args, id)
		idx++
	}
	if v := params["status"]; v != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		countQuery += fmt.Sprintf(" AND status = $%d", idx)
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

	var items []*Request
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, rows.Err()
}
