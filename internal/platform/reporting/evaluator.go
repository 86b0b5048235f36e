package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

// Row is one result row keyed by column name.
type Row map[string]interface{}

// Int returns the integer in column key, or 0.
func (r Row) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// String returns the text in column key, or "".
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Evaluator runs a measure's SQL.
type Evaluator interface {
	Evaluate(ctx context.Context, sql string, args ...interface{}) ([]Row, error)
}

// PoolEvaluator evaluates measures against Postgres.
type PoolEvaluator struct {
	pool *pgxpool.Pool
}

func NewPoolEvaluator(pool *pgxpool.Pool) *PoolEvaluator {
	return &PoolEvaluator{pool: pool}
}

// Evaluate runs sql and returns each row as a column map. It never returns a
// nil slice.
func (e *PoolEvaluator) Evaluate(ctx context.Context, sql string, args ...interface{}) ([]Row, error) {
	rows, err := db.Conn(ctx, e.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
