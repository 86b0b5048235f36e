package audit

import "context"

type Repository interface {
	Create(ctx context.Context, l *Log) error
	// Search returns matching logs newest first. A zero Limit returns every match.
	Search(ctx context.Context, f Filter) ([]*Log, int, error)
	Count(ctx context.Context, f Filter) (int, error)
	// CountBy groups matches by column (risk_level, ip_address, username, status).
	CountBy(ctx context.Context, f Filter, column string, limit int) ([]Count, error)
	// Distinct counts distinct non-null values of column.
	Distinct(ctx context.Context, f Filter, column string) (int, error)
	TopUsers(ctx context.Context, f Filter, limit int) ([]UserActivity, error)
	DailyUserCounts(ctx context.Context, f Filter) ([]DailyCount, error)
}
